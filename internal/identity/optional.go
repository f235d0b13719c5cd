package identity

import "encoding/json"

// Optional is a tri-state JSON field: absent, explicit null, or a value.
// encoding/json only invokes UnmarshalJSON for keys present in the input,
// so Set stays false on omission and the merge in UpdateProfile can keep
// the stored value.
type Optional[T any] struct {
	Set   bool
	Valid bool
	Value T
}

// UnmarshalJSON records presence and distinguishes null from a value.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		var zero T
		o.Valid = false
		o.Value = zero
		return nil
	}
	if err := json.Unmarshal(data, &o.Value); err != nil {
		return err
	}
	o.Valid = true
	return nil
}

// Ptr returns nil for an explicit null and a pointer to the value otherwise.
// Only meaningful when Set is true.
func (o Optional[T]) Ptr() *T {
	if !o.Valid {
		return nil
	}
	v := o.Value
	return &v
}
