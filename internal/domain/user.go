package domain

import "strings"

const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

// IsAdmin reports whether role is the administrative role.
func IsAdmin(role string) bool {
	return strings.EqualFold(strings.TrimSpace(role), RoleAdmin)
}

// DirectoryUser is a member of the user population as reported by the user directory.
type DirectoryUser struct {
	ID   string
	Role string
}
