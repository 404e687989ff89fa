package compat

// Role is the part a peer plays in a session.
type Role int

const (
	// RoleClient is a connecting peer
	RoleClient Role = iota
	// RoleServer is the authoritative peer, the source of truth for shared state
	RoleServer
)

// String returns the string representation of Role
func (r Role) String() string {
	switch r {
	case RoleClient:
		return "client"
	case RoleServer:
		return "server"
	default:
		return "unknown"
	}
}

// Authoritative reports whether the role owns shared world state.
func (r Role) Authoritative() bool {
	return r == RoleServer
}

// ParseRole parses "server" or "client"; anything else is a client.
func ParseRole(s string) Role {
	if s == "server" {
		return RoleServer
	}
	return RoleClient
}
