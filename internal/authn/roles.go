package authn

import (
	"strings"

	"github.com/isometry/admanager/internal/store"
)

// ComputeRoles maps a user's direct group memberships onto the role
// catalog. A role is granted exactly when its mapped group DN appears in
// memberOf; roles without a mapped group are never granted here. DN
// comparison is case-insensitive, matching directory semantics. The result
// is the user's complete role set: callers replace, never merge.
func ComputeRoles(memberOf []string, catalog []*store.Role) []string {
	var names []string
	for _, role := range catalog {
		if role.GroupDN == "" {
			continue
		}
		for _, groupDN := range memberOf {
			if strings.EqualFold(groupDN, role.GroupDN) {
				names = append(names, role.Name)
				break
			}
		}
	}
	return names
}

// EffectiveRole picks the highest-priority role from a set. An empty set
// yields the read-only role: an authenticated user with no mapped roles
// can look but not touch.
func EffectiveRole(roles []*store.Role) string {
	best := ""
	bestPriority := -1
	for _, r := range roles {
		if r.Priority > bestPriority {
			best = r.Name
			bestPriority = r.Priority
		}
	}
	if best == "" {
		return store.RoleReadOnly
	}
	return best
}

// rolePriorities orders role names for authorization checks without a
// database round trip. Kept in sync with the seeded catalog.
var rolePriorities = map[string]int{
	store.RoleAdmin:        3,
	store.RoleHelpDesk:     2,
	store.RoleGroupManager: 1,
	store.RoleReadOnly:     0,
}

// RoleAtLeast reports whether role meets or exceeds the required role's
// priority. Unknown role names never satisfy any requirement.
func RoleAtLeast(role, required string) bool {
	rp, ok := rolePriorities[role]
	if !ok {
		return false
	}
	req, ok := rolePriorities[required]
	if !ok {
		return false
	}
	return rp >= req
}
