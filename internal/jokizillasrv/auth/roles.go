// Package auth validates bearer tokens and restricts handlers to callers holding a role.
package auth

// Role is an elevated permission level. Higher values grant more.
type Role int

const (
	Writer Role = 10
	Admin  Role = 100
)

// String is the role's name as it appears in tokens.
func (r Role) String() string {
	switch r {
	case Writer:
		return "JokizillaWriter"
	case Admin:
		return "JokizillaAdmin"
	}
	return "Unknown"
}

func roleNames(roles []Role) []string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = r.String()
	}
	return names
}
