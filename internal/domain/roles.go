package domain

type Role string

const (
	// RoleUser is a learner; logins are device bound.
	RoleUser Role = "user"
	// RoleAdmin reviews device change requests and manages other admins.
	RoleAdmin Role = "admin"
)

func IsValidRole(r string) bool {
	return r == string(RoleUser) || r == string(RoleAdmin)
}

// RoleRank: bigger => higher privilege
func RoleRank(r string) int {
	switch r {
	case string(RoleUser):
		return 1
	case string(RoleAdmin):
		return 2
	default:
		return 0
	}
}
