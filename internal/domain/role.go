package domain

// Role is the application role carried by a user account and embedded in session tokens
type Role string

const (
	RolePatient      Role = "patient"
	RoleNutritionist Role = "nutritionist"
	RoleAdmin        Role = "admin"
	RoleStudent      Role = "student"
)

// AllRoles contains all valid roles
var AllRoles = []Role{RolePatient, RoleNutritionist, RoleAdmin, RoleStudent}

// SelfRegisterableRoles are the roles a user may pick when signing up
var SelfRegisterableRoles = []Role{RolePatient, RoleNutritionist, RoleStudent}

// IsValid checks if a role is valid
func (r Role) IsValid() bool {
	switch r {
	case RolePatient, RoleNutritionist, RoleAdmin, RoleStudent:
		return true
	}
	return false
}

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a user-friendly display name for the role
func (r Role) DisplayName() string {
	switch r {
	case RolePatient:
		return "Patient"
	case RoleNutritionist:
		return "Nutritionist"
	case RoleAdmin:
		return "Administrator"
	case RoleStudent:
		return "Student"
	default:
		return string(r)
	}
}
