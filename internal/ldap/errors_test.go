package ldap

import (
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapErrorResultCodes(t *testing.T) {
	testCases := []struct {
		name string
		code uint16
		want Kind
	}{
		{name: "invalid credentials", code: ldap.LDAPResultInvalidCredentials, want: KindInvalidCredentials},
		{name: "inappropriate auth", code: ldap.LDAPResultInappropriateAuthentication, want: KindInvalidCredentials},
		{name: "insufficient access", code: ldap.LDAPResultInsufficientAccessRights, want: KindPermissionDenied},
		{name: "unwilling to perform", code: ldap.LDAPResultUnwillingToPerform, want: KindPermissionDenied},
		{name: "no such object", code: ldap.LDAPResultNoSuchObject, want: KindNotFound},
		{name: "no such attribute", code: ldap.LDAPResultNoSuchAttribute, want: KindNotFound},
		{name: "entry exists", code: ldap.LDAPResultEntryAlreadyExists, want: KindAlreadyExists},
		{name: "value exists", code: ldap.LDAPResultAttributeOrValueExists, want: KindAlreadyExists},
		{name: "invalid syntax", code: ldap.LDAPResultInvalidAttributeSyntax, want: KindInvalidInput},
		{name: "constraint violation", code: ldap.LDAPResultConstraintViolation, want: KindInvalidInput},
		{name: "server down", code: ldap.LDAPResultServerDown, want: KindUnavailable},
		{name: "busy", code: ldap.LDAPResultBusy, want: KindUnavailable},
		{name: "unavailable", code: ldap.LDAPResultUnavailable, want: KindUnavailable},
		{name: "other", code: ldap.LDAPResultOther, want: KindBackend},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := WrapError("search", ldap.NewError(tc.code, errors.New("boom")))
			require.Error(t, err)

			var derr *DirectoryError
			require.ErrorAs(t, err, &derr)
			assert.Equal(t, tc.want, derr.Kind)
			assert.Equal(t, "search", derr.Op)
			assert.Equal(t, tc.code, derr.ResultCode)
		})
	}
}

func TestWrapErrorNil(t *testing.T) {
	assert.NoError(t, WrapError("search", nil))
	assert.NoError(t, WrapErrorDN("search", "DC=example", nil))
}

func TestWrapErrorPassthrough(t *testing.T) {
	orig := NewUnavailableError("dial", errors.New("refused"))
	wrapped := WrapError("search", orig)

	var derr *DirectoryError
	require.ErrorAs(t, wrapped, &derr)
	assert.Equal(t, KindUnavailable, derr.Kind)
	// Re-wrapping must not change the original categorization.
	assert.Equal(t, "dial", derr.Op)
}

func TestWrapErrorNetwork(t *testing.T) {
	var netErr net.Error = &net.OpError{Op: "dial", Err: errors.New("connection refused")}
	err := WrapError("connect", netErr)

	assert.Equal(t, KindUnavailable, KindOf(err))
	assert.True(t, IsUnavailable(err))
}

func TestWrapErrorDN(t *testing.T) {
	err := WrapErrorDN("modify", "CN=John,DC=example,DC=com",
		ldap.NewError(ldap.LDAPResultNoSuchObject, errors.New("missing")))

	var derr *DirectoryError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "CN=John,DC=example,DC=com", derr.DN)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "modify")
}

func TestKindHelpers(t *testing.T) {
	assert.True(t, IsInvalidInput(NewInvalidInputError("op", "bad")))
	assert.False(t, IsNotFound(NewInvalidInputError("op", "bad")))
	assert.False(t, IsUnavailable(nil))
	assert.False(t, IsUnavailable(errors.New("plain")))
}

func TestDirectoryErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := WrapError("add", fmt.Errorf("outer: %w", cause))
	assert.ErrorIs(t, err, cause)
}
