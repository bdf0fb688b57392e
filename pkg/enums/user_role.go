package enums

import "fmt"

// UserRole is the role carried in access tokens.
type UserRole string

const (
	UserRoleProvider   UserRole = "provider"
	UserRoleConsultant UserRole = "consultant"
	UserRoleClient     UserRole = "client"
	UserRoleAdmin      UserRole = "admin"
)

var validUserRoles = []UserRole{
	UserRoleProvider,
	UserRoleConsultant,
	UserRoleClient,
	UserRoleAdmin,
}

// IsValid reports whether the value is a known role.
func (r UserRole) IsValid() bool {
	for _, candidate := range validUserRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseUserRole converts raw input into UserRole.
func ParseUserRole(value string) (UserRole, error) {
	for _, candidate := range validUserRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid user role %q", value)
}
