package policy

import "github.com/oksasatya/go-storefront-session/internal/domain/entity"

// Destination is where the presentation layer should send the user.
type Destination string

const (
	DestinationLoading     Destination = "loading"
	DestinationLogin       Destination = "login"
	DestinationVerifyEmail Destination = "verify_email"
	DestinationAdminHome   Destination = "admin_home"
	DestinationStorefront  Destination = "storefront"
)

// Route decides the landing destination for a session.
func (a Allowlist) Route(loading bool, id *entity.Identity, role entity.Role) Destination {
	switch {
	case loading:
		return DestinationLoading
	case id == nil:
		return DestinationLogin
	case !a.GateCleared(id):
		return DestinationVerifyEmail
	case role == entity.RoleAdmin:
		return DestinationAdminHome
	default:
		return DestinationStorefront
	}
}
