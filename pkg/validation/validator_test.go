package validation

import (
	"encoding/json"
	"testing"

	"github.com/gin-gonic/gin/binding"
)

type signupPayload struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,pwd"`
	Role     string `json:"role" binding:"omitempty,oneof=customer"`
}

func TestToDetailsUsesJSONNames(t *testing.T) {
	Init()
	err := binding.Validator.ValidateStruct(&signupPayload{Email: "nope", Password: "123", Role: "root"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	got := ToDetails(err)
	want := map[string]string{
		"email":    "must be a valid email",
		"password": "min length 6",
		"role":     "must be one of: customer",
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("details[%s] = %q, want %q (all: %v)", k, got[k], v, got)
		}
	}
}

func TestToDetailsInvalidJSON(t *testing.T) {
	var v map[string]any
	err := json.Unmarshal([]byte("{"), &v)
	if got := ToDetails(err); got["payload"] != "invalid json" {
		t.Fatalf("details = %v", got)
	}
	if ToDetails(nil) != nil {
		t.Fatal("nil error should give nil details")
	}
}
