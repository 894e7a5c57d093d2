package helpers

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("secret1")
	if err != nil {
		t.Fatal(err)
	}
	if !CompareHashAndPassword(hash, "secret1") || CompareHashAndPassword(hash, "secret2") {
		t.Fatal("compare mismatch")
	}
	if NeedsRehash(hash) {
		t.Fatal("fresh hash needs rehash")
	}
}

func TestNeedsRehash(t *testing.T) {
	weak, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	if !NeedsRehash(string(weak)) {
		t.Fatal("min cost hash should be upgraded")
	}
	if NeedsRehash("not-a-hash") {
		t.Fatal("garbage reported as upgradable")
	}
}
