package policy

import (
	"testing"

	"github.com/oksasatya/go-storefront-session/internal/domain/entity"
)

func TestAllowlistContainsNormalizes(t *testing.T) {
	a := ParseAllowlist(" MarkJeresoltam@gmail.com , ,demo@shop.test")
	if !a.Contains("markjeresoltam@gmail.com") {
		t.Fatal("expected allowlisted email")
	}
	if !a.Contains("  DEMO@shop.test ") {
		t.Fatal("expected case-insensitive match")
	}
	if a.Contains("someone@x.com") {
		t.Fatal("unexpected match")
	}
	if got := len(a.Emails()); got != 2 {
		t.Fatalf("emails = %d, want 2", got)
	}
}

func TestZeroAllowlistMatchesNothing(t *testing.T) {
	var a Allowlist
	if a.Contains("markjeresoltam@gmail.com") {
		t.Fatal("zero allowlist should be empty")
	}
}

func TestRoute(t *testing.T) {
	a := NewAllowlist("vip@x.com")
	verified := &entity.Identity{UID: "u1", Email: "a@x.com", EmailVerified: true}
	unverified := &entity.Identity{UID: "u2", Email: "b@x.com"}
	bypass := &entity.Identity{UID: "u3", Email: "vip@x.com"}

	tests := []struct {
		name    string
		loading bool
		id      *entity.Identity
		role    entity.Role
		want    Destination
	}{
		{name: "loading wins", loading: true, id: verified, want: DestinationLoading},
		{name: "signed out", want: DestinationLogin},
		{name: "unverified", id: unverified, role: entity.RoleCustomer, want: DestinationVerifyEmail},
		{name: "allowlisted", id: bypass, role: entity.RoleCustomer, want: DestinationStorefront},
		{name: "admin", id: verified, role: entity.RoleAdmin, want: DestinationAdminHome},
		{name: "customer", id: verified, role: entity.RoleCustomer, want: DestinationStorefront},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.Route(tt.loading, tt.id, tt.role); got != tt.want {
				t.Fatalf("Route() = %q, want %q", got, tt.want)
			}
		})
	}
}
