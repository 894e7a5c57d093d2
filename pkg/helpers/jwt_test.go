package helpers

import (
	"testing"
	"time"
)

func TestDeviceTokenRoundTrip(t *testing.T) {
	m := NewDeviceTokenManager("secret", time.Hour)
	tok, id, exp, err := m.Issue()
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if id == "" || time.Until(exp) <= 0 {
		t.Fatalf("id = %q exp = %v", id, exp)
	}
	claims, err := m.Parse(tok)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.DeviceID != id {
		t.Fatalf("device id = %q, want %q", claims.DeviceID, id)
	}
}

func TestDeviceTokenRejectsOtherSecret(t *testing.T) {
	tok, _, _, err := NewDeviceTokenManager("a", time.Hour).Issue()
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := NewDeviceTokenManager("b", time.Hour).Parse(tok); err == nil {
		t.Fatal("token signed with another secret accepted")
	}
}

func TestDeviceTokenExpires(t *testing.T) {
	m := NewDeviceTokenManager("secret", time.Minute)
	issued := time.Now().Add(-2 * time.Hour)
	m.now = func() time.Time { return issued }
	tok, _, err := m.Sign("dev-1")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	m.now = time.Now
	if _, err := m.Parse(tok); err == nil {
		t.Fatal("expired token accepted")
	}
}
