package membership

import "github.com/bananalabs-oss/bandroom/internal/models"

// AllPermissions lists every permission in display order.
var AllPermissions = []models.Permission{
	models.PermissionManageMembers,
	models.PermissionManageVideos,
	models.PermissionManageProfile,
	models.PermissionManageGigs,
	models.PermissionViewAnalytics,
}

var roleRank = map[models.Role]int{
	models.RoleLeader: 4,
	models.RoleAdmin:  3,
	models.RoleMember: 2,
	models.RoleGuest:  1,
}

// IsValidRole checks if the given role is one of the four band roles.
func IsValidRole(role models.Role) bool {
	_, ok := roleRank[role]
	return ok
}

// IsValidPermission checks if the given permission is known.
func IsValidPermission(p models.Permission) bool {
	for _, known := range AllPermissions {
		if known == p {
			return true
		}
	}
	return false
}

// Outranks reports whether role a carries more authority than role b.
func Outranks(a, b models.Role) bool {
	return roleRank[a] > roleRank[b]
}

// DefaultPermissions returns the permission set a role starts with. The
// returned slice is a fresh copy and safe to store.
func DefaultPermissions(role models.Role) []models.Permission {
	switch role {
	case models.RoleLeader:
		return append([]models.Permission(nil), AllPermissions...)
	case models.RoleAdmin:
		return []models.Permission{
			models.PermissionManageMembers,
			models.PermissionManageVideos,
			models.PermissionManageProfile,
			models.PermissionViewAnalytics,
		}
	case models.RoleMember:
		return []models.Permission{models.PermissionManageVideos}
	default:
		return []models.Permission{}
	}
}
