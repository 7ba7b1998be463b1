package model

// User is the principal acting on a form.
// Authorization data (groups) travels with the user value.
type User struct {
	ID          string   `json:"id,omitempty"`
	DisplayName string   `json:"display_name,omitempty"`
	Groups      []string `json:"groups,omitempty"`
}

// Anonymous is the unauthenticated principal.
var Anonymous = &User{}

// IsAnonymous reports whether u is unauthenticated.
func (u *User) IsAnonymous() bool {
	return u == nil || u.ID == ""
}

// InGroup reports whether u belongs to any of groups.
func (u *User) InGroup(groups ...string) bool {
	if u.IsAnonymous() {
		return false
	}
	for _, g := range groups {
		for _, ug := range u.Groups {
			if g == ug {
				return true
			}
		}
	}
	return false
}

// UserID returns the ID of u or the empty string for anonymous users.
func (u *User) UserID() string {
	if u == nil {
		return ""
	}
	return u.ID
}
