package identity

import "testing"

func TestBcryptHasherRoundtrip(t *testing.T) {
	hasher := NewBcryptHasher(4)

	hash, err := hasher.Hash("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "s3cret" || hash == "" {
		t.Fatalf("hash must not echo the plaintext: %q", hash)
	}

	ok, err := hasher.Verify("s3cret", hash)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatal("expected match")
	}
}

func TestBcryptHasherMismatchIsNotAnError(t *testing.T) {
	hasher := NewBcryptHasher(4)

	hash, err := hasher.Hash("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	ok, err := hasher.Verify("wrong", hash)
	if err != nil {
		t.Fatalf("mismatch must not be an error: %v", err)
	}
	if ok {
		t.Fatal("expected mismatch")
	}
}

func TestBcryptHasherSaltsEveryHash(t *testing.T) {
	hasher := NewBcryptHasher(4)

	first, err := hasher.Hash("same")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	second, err := hasher.Hash("same")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if first == second {
		t.Fatal("equal plaintexts must hash differently")
	}
}
