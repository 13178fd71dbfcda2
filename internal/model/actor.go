package model

// Roles recognized by the service
const (
	RoleOperator = "operator"
	RoleAdmin    = "admin"
)

// Actor is the authenticated identity performing a mutation. Every mutation
// requires one; there is no fallback user.
type Actor struct {
	ID         uint   `json:"id"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	ClientInfo string `json:"-"` // IP and user agent, audit metadata only
}

// IsAdmin reports whether the actor has the admin role
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// IsZero reports whether the actor is missing
func (a Actor) IsZero() bool {
	return a.ID == 0
}
