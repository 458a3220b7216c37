package directory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	adldap "github.com/isometry/admanager/internal/ldap"
)

const testGroupDN = "CN=Admins,OU=Groups,DC=example,DC=com"

func TestAddMemberIdempotent(t *testing.T) {
	fake := newFakeClient()
	fake.modifyErr = func(req *adldap.ModifyRequest) error {
		return &adldap.DirectoryError{Op: "modify", Kind: adldap.KindAlreadyExists, Message: "value exists"}
	}
	svc := NewGroups(fake, "DC=example,DC=com", nil)

	err := svc.AddMember(context.Background(), testGroupDN, "CN=John,DC=example,DC=com")
	assert.NoError(t, err)
}

func TestAddMemberOtherErrorSurfaces(t *testing.T) {
	fake := newFakeClient()
	fake.modifyErr = func(req *adldap.ModifyRequest) error {
		return &adldap.DirectoryError{Op: "modify", Kind: adldap.KindPermissionDenied, Message: "denied"}
	}
	svc := NewGroups(fake, "DC=example,DC=com", nil)

	err := svc.AddMember(context.Background(), testGroupDN, "CN=John,DC=example,DC=com")
	require.Error(t, err)
	assert.True(t, adldap.IsPermissionDenied(err))
}

func TestRemoveMemberAbsentIsNoError(t *testing.T) {
	fake := newFakeClient()
	fake.modifyErr = func(req *adldap.ModifyRequest) error {
		return &adldap.DirectoryError{Op: "modify", Kind: adldap.KindNotFound, Message: "no such attribute"}
	}
	svc := NewGroups(fake, "DC=example,DC=com", nil)

	err := svc.RemoveMember(context.Background(), testGroupDN, "CN=Ghost,DC=example,DC=com")
	assert.NoError(t, err)
}

func TestRemoveMemberRecheckOnAmbiguousError(t *testing.T) {
	// Some servers answer unwillingToPerform when deleting an absent
	// member. The remove re-checks the member list and succeeds when the
	// requested state already holds.
	fake := newFakeClient()
	fake.put(adldap.NewEntry(testGroupDN, map[string][]string{
		"cn":     {"Admins"},
		"member": {"CN=Someone Else,DC=example,DC=com"},
	}))
	fake.modifyErr = func(req *adldap.ModifyRequest) error {
		return &adldap.DirectoryError{Op: "modify", Kind: adldap.KindPermissionDenied, Message: "unwilling to perform"}
	}
	svc := NewGroups(fake, "DC=example,DC=com", nil)

	err := svc.RemoveMember(context.Background(), testGroupDN, "CN=Ghost,DC=example,DC=com")
	assert.NoError(t, err)
}

func TestRemoveMemberStillPresentFails(t *testing.T) {
	fake := newFakeClient()
	fake.put(adldap.NewEntry(testGroupDN, map[string][]string{
		"cn":     {"Admins"},
		"member": {"CN=John,DC=example,DC=com"},
	}))
	fake.modifyErr = func(req *adldap.ModifyRequest) error {
		return &adldap.DirectoryError{Op: "modify", Kind: adldap.KindPermissionDenied, Message: "denied"}
	}
	svc := NewGroups(fake, "DC=example,DC=com", nil)

	err := svc.RemoveMember(context.Background(), testGroupDN, "CN=John,DC=example,DC=com")
	require.Error(t, err)
	assert.True(t, adldap.IsPermissionDenied(err))
}

func TestPrimaryObjectClass(t *testing.T) {
	testCases := []struct {
		name    string
		classes []string
		want    string
	}{
		{name: "user", classes: []string{"top", "person", "organizationalPerson", "user"}, want: "user"},
		{name: "computer", classes: []string{"top", "person", "organizationalPerson", "user", "computer"}, want: "computer"},
		{name: "group", classes: []string{"top", "group"}, want: "group"},
		{name: "empty", classes: nil, want: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, primaryObjectClass(tc.classes))
		})
	}
}
