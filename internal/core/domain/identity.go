package domain

import "slices"

// Roles that are allowed into the shared staff room.
const (
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RoleTechnician = "technician"
)

var privilegedRoles = []string{RoleAdmin, RoleManager, RoleTechnician}

// Identity is the authenticated principal behind the current access token.
type Identity struct {
	UserID string
	Roles  []string
}

// IsZero reports whether no user is known.
func (i Identity) IsZero() bool {
	return i.UserID == ""
}

// IsPrivileged returns true if the identity carries a staff role.
func (i Identity) IsPrivileged() bool {
	for _, role := range i.Roles {
		if slices.Contains(privilegedRoles, role) {
			return true
		}
	}
	return false
}

// Credential is the access/refresh token pair. It is replaced wholesale on refresh.
type Credential struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// IsZero reports whether there is no access token.
func (c Credential) IsZero() bool {
	return c.AccessToken == ""
}
