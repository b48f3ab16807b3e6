package enums

import "fmt"

// UserRole distinguishes storefront customers from back-office admins.
type UserRole string

const (
	UserRoleCustomer UserRole = "customer"
	UserRoleAdmin    UserRole = "admin"
)

func (u UserRole) String() string { return string(u) }

func (u UserRole) IsValid() bool {
	switch u {
	case UserRoleCustomer, UserRoleAdmin:
		return true
	}
	return false
}

// ParseUserRole validates raw input against the role enum.
func ParseUserRole(value string) (UserRole, error) {
	parsed := UserRole(value)
	if !parsed.IsValid() {
		return "", fmt.Errorf("unknown user role %q", value)
	}
	return parsed, nil
}
