package identity

import (
	"encoding/json"
	"testing"
)

func TestOptionalTriState(t *testing.T) {
	var upd ProfileUpdate
	if err := json.Unmarshal([]byte(`{"name":"A","phone":null}`), &upd); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if !upd.Name.Set || !upd.Name.Valid || upd.Name.Value != "A" {
		t.Fatalf("name should be present with value, got %+v", upd.Name)
	}
	if !upd.Phone.Set || upd.Phone.Valid {
		t.Fatalf("phone should be explicit null, got %+v", upd.Phone)
	}
	if upd.Preferences.Set {
		t.Fatalf("preferences should be absent, got %+v", upd.Preferences)
	}

	if upd.Phone.Ptr() != nil {
		t.Fatal("explicit null must yield a nil pointer")
	}
	if ptr := upd.Name.Ptr(); ptr == nil || *ptr != "A" {
		t.Fatalf("value must yield a pointer to it, got %v", ptr)
	}
}
