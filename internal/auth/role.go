package auth

import "fmt"

// Role is the portal role carried in a token.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleFaculty Role = "faculty"
	RoleStudent Role = "student"
)

// ParseRole accepts only the known portal roles.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleAdmin, RoleFaculty, RoleStudent:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// RecordsAttendance reports whether joining a session as this role marks attendance.
func (r Role) RecordsAttendance() bool {
	switch r {
	case RoleStudent:
		return true
	case RoleAdmin, RoleFaculty:
		return false
	}
	return false
}

// CanSchedule reports whether the role may create and inspect sessions.
func (r Role) CanSchedule() bool {
	switch r {
	case RoleAdmin, RoleFaculty:
		return true
	case RoleStudent:
		return false
	}
	return false
}

// Principal is the authenticated caller.
type Principal struct {
	UserID string
	Role   Role
}
