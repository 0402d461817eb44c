package domain

import "context"

// Role is the kind of participant a credential is issued for.
type Role string

const (
	RoleCamera Role = "camera" // publishes a camera feed
	RoleAdmin  Role = "admin"  // observes and administers the room
	RoleOutput Role = "output" // renders the broadcast output
	RoleNone   Role = ""       // unrecognized, no media access
)

// ParseRole maps the requested type to a Role, falling back to RoleNone.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleCamera, RoleAdmin, RoleOutput:
		return Role(s)
	default:
		return RoleNone
	}
}

// String returns the wire name of the role; RoleNone renders as "none".
func (r Role) String() string {
	if r == RoleNone {
		return "none"
	}
	return string(r)
}

// Grant is a signed, time-scoped capability for one room.
type Grant struct {
	Token string `json:"token"`
	Room  string `json:"room"`
	URL   string `json:"url,omitempty"`
}

// CredentialIssuer produces grants for the external media platform. Enforcement
// of the grant happens on that platform, never in the score hub.
type CredentialIssuer interface {
	Issue(ctx context.Context, phase string, requestedType string) (*Grant, error)
}
