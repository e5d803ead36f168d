package models

// StaffRole is the role of a staff directory entry.
type StaffRole string

const (
	RoleAdmin      StaffRole = "Admin"
	RoleDoctor     StaffRole = "Doctor"
	RoleTechnician StaffRole = "Technician"
	RoleAssistant  StaffRole = "Assistant"
)

// Valid reports whether the role is in the fixed vocabulary.
func (r StaffRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleDoctor, RoleTechnician, RoleAssistant:
		return true
	}
	return false
}

// SubUser is a staff directory entry. Email is unique within the
// organization; duplicates are rejected at creation with a conflict error.
type SubUser struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Role       StaffRole `json:"role"`
	LastActive string    `json:"lastActive"`
}
