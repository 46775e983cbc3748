package models

import "fmt"

type Role string

const (
	RolePatient    Role = "patient"
	RoleDoctor     Role = "doctor"
	RoleAdmin      Role = "admin"
	RoleLHW        Role = "lhw"
	RolePharmacist Role = "pharmacist"
)

func ParseRole(raw string) (Role, error) {
	switch r := Role(raw); r {
	case RolePatient, RoleDoctor, RoleAdmin, RoleLHW, RolePharmacist:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", raw)
}

// Actor is the authenticated caller as supplied by the identity provider.
// UserID refers to the account, not to the doctor or patient profile.
type Actor struct {
	UserID string `json:"id"`
	Role   Role   `json:"role"`
}

func (a Actor) Is(roles ...Role) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }
