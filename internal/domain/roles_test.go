package domain

import "testing"

func TestIsValidRole(t *testing.T) {
	cases := []struct {
		role string
		ok   bool
	}{
		{"user", true},
		{"admin", true},
		{"moderator", false},
		{"", false},
	}

	for _, c := range cases {
		if IsValidRole(c.role) != c.ok {
			t.Fatalf("unexpected IsValidRole(%q)", c.role)
		}
	}
}

func TestRoleRank(t *testing.T) {
	if RoleRank("user") >= RoleRank("admin") {
		t.Fatalf("user should be lower than admin")
	}
	if RoleRank("root") != 0 {
		t.Fatalf("unknown role should rank 0")
	}
}
