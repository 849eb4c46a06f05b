package middlewares

import (
	"testing"

	"github.com/contarapida/finance_backend/models"
)

func TestRoleAtLeast(t *testing.T) {
	cases := []struct {
		role     models.UserRole
		min      models.UserRole
		expected bool
	}{
		{models.UserRoleOwner, models.UserRoleOwner, true},
		{models.UserRoleOwner, models.UserRoleViewer, true},
		{models.UserRoleAdmin, models.UserRoleOwner, false},
		{models.UserRoleAdmin, models.UserRoleMember, true},
		{models.UserRoleMember, models.UserRoleAdmin, false},
		{models.UserRoleViewer, models.UserRoleMember, false},
		{models.UserRoleViewer, models.UserRoleViewer, true},
		{models.UserRole("unknown"), models.UserRoleViewer, false},
	}
	for _, tc := range cases {
		if got := RoleAtLeast(tc.role, tc.min); got != tc.expected {
			t.Fatalf("RoleAtLeast(%s, %s) expected %t, got %t", tc.role, tc.min, tc.expected, got)
		}
	}
}
