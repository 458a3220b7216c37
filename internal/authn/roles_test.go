package authn

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/isometry/admanager/internal/store"
)

func testRolesCatalog() []*store.Role {
	return []*store.Role{
		{Name: store.RoleAdmin, Priority: 3, GroupDN: "CN=AD Admins,OU=Groups,DC=example,DC=com"},
		{Name: store.RoleHelpDesk, Priority: 2, GroupDN: "CN=Help Desk,OU=Groups,DC=example,DC=com"},
		{Name: store.RoleGroupManager, Priority: 1, GroupDN: "CN=Group Managers,OU=Groups,DC=example,DC=com"},
		{Name: store.RoleReadOnly, Priority: 0, GroupDN: ""},
	}
}

func TestComputeRoles(t *testing.T) {
	testCases := []struct {
		name     string
		memberOf []string
		want     []string
	}{
		{
			name:     "no memberships",
			memberOf: nil,
			want:     nil,
		},
		{
			name:     "single role",
			memberOf: []string{"CN=Help Desk,OU=Groups,DC=example,DC=com"},
			want:     []string{store.RoleHelpDesk},
		},
		{
			name: "multiple roles",
			memberOf: []string{
				"CN=AD Admins,OU=Groups,DC=example,DC=com",
				"CN=Group Managers,OU=Groups,DC=example,DC=com",
				"CN=Unrelated,OU=Groups,DC=example,DC=com",
			},
			want: []string{store.RoleAdmin, store.RoleGroupManager},
		},
		{
			name:     "case insensitive dn match",
			memberOf: []string{"cn=help desk,ou=groups,dc=example,dc=com"},
			want:     []string{store.RoleHelpDesk},
		},
		{
			name:     "unmapped role never granted",
			memberOf: []string{""},
			want:     nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ComputeRoles(tc.memberOf, testRolesCatalog()))
		})
	}
}

func TestEffectiveRole(t *testing.T) {
	assert.Equal(t, store.RoleReadOnly, EffectiveRole(nil))
	assert.Equal(t, store.RoleAdmin, EffectiveRole([]*store.Role{
		{Name: store.RoleGroupManager, Priority: 1},
		{Name: store.RoleAdmin, Priority: 3},
		{Name: store.RoleHelpDesk, Priority: 2},
	}))
	assert.Equal(t, store.RoleHelpDesk, EffectiveRole([]*store.Role{
		{Name: store.RoleHelpDesk, Priority: 2},
	}))
}

func TestRoleAtLeast(t *testing.T) {
	testCases := []struct {
		role     string
		required string
		want     bool
	}{
		{role: store.RoleAdmin, required: store.RoleAdmin, want: true},
		{role: store.RoleAdmin, required: store.RoleReadOnly, want: true},
		{role: store.RoleHelpDesk, required: store.RoleAdmin, want: false},
		{role: store.RoleGroupManager, required: store.RoleHelpDesk, want: false},
		{role: store.RoleReadOnly, required: store.RoleReadOnly, want: true},
		{role: "bogus", required: store.RoleReadOnly, want: false},
		{role: store.RoleAdmin, required: "bogus", want: false},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.want, RoleAtLeast(tc.role, tc.required), "%s >= %s", tc.role, tc.required)
	}
}
