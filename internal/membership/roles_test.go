package membership

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bananalabs-oss/bandroom/internal/models"
)

func TestDefaultPermissions(t *testing.T) {
	tests := []struct {
		role     models.Role
		expected []models.Permission
	}{
		{models.RoleLeader, AllPermissions},
		{models.RoleAdmin, []models.Permission{
			models.PermissionManageMembers,
			models.PermissionManageVideos,
			models.PermissionManageProfile,
			models.PermissionViewAnalytics,
		}},
		{models.RoleMember, []models.Permission{models.PermissionManageVideos}},
		{models.RoleGuest, []models.Permission{}},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.expected, DefaultPermissions(tt.role))
		})
	}
}

func TestDefaultPermissions_ReturnsCopy(t *testing.T) {
	perms := DefaultPermissions(models.RoleLeader)
	perms[0] = "tampered"

	assert.Equal(t, models.PermissionManageMembers, AllPermissions[0])
	assert.Equal(t, models.PermissionManageMembers, DefaultPermissions(models.RoleLeader)[0])
}

func TestAdminLacksManageGigs(t *testing.T) {
	assert.NotContains(t, DefaultPermissions(models.RoleAdmin), models.PermissionManageGigs)
}

func TestIsValidRole(t *testing.T) {
	for _, r := range []models.Role{models.RoleLeader, models.RoleAdmin, models.RoleMember, models.RoleGuest} {
		assert.True(t, IsValidRole(r), r)
	}
	assert.False(t, IsValidRole("owner"))
	assert.False(t, IsValidRole(""))
}

func TestIsValidPermission(t *testing.T) {
	for _, p := range AllPermissions {
		assert.True(t, IsValidPermission(p), p)
	}
	assert.False(t, IsValidPermission("manage_everything"))
}

func TestOutranks(t *testing.T) {
	assert.True(t, Outranks(models.RoleLeader, models.RoleAdmin))
	assert.True(t, Outranks(models.RoleAdmin, models.RoleMember))
	assert.True(t, Outranks(models.RoleMember, models.RoleGuest))
	assert.False(t, Outranks(models.RoleGuest, models.RoleGuest))
	assert.False(t, Outranks(models.RoleMember, models.RoleLeader))
}
