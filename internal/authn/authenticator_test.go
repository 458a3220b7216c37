package authn

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/isometry/admanager/internal/directory"
	adldap "github.com/isometry/admanager/internal/ldap"
	"github.com/isometry/admanager/internal/store"
)

type fakeAccounts struct {
	user   *directory.User
	err    error
	called bool
}

func (f *fakeAccounts) GetBySAM(ctx context.Context, samAccountName string) (*directory.User, error) {
	f.called = true
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

type fakeVerifier struct {
	err    error
	bindDN string
}

func (f *fakeVerifier) UserBind(ctx context.Context, bindDN, password string) error {
	f.bindDN = bindDN
	return f.err
}

type fakeProfiles struct {
	err error
}

func (f *fakeProfiles) Upsert(ctx context.Context, p *store.Profile) (*store.Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := *p
	out.ID = 42
	return &out, nil
}

type fakeRoles struct {
	catalog    []*store.Role
	assigned   []*store.Role
	replaced   []string
	replacedID int64
}

func (f *fakeRoles) Catalog(ctx context.Context) ([]*store.Role, error) {
	return f.catalog, nil
}

func (f *fakeRoles) ReplaceAssignments(ctx context.Context, profileID int64, roleNames []string) error {
	f.replacedID = profileID
	f.replaced = append([]string{}, roleNames...)
	return nil
}

func (f *fakeRoles) RolesForProfile(ctx context.Context, profileID int64) ([]*store.Role, error) {
	return f.assigned, nil
}

type fakeLimiter struct {
	allowed bool
	err     error
	resets  int
}

func (f *fakeLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return f.allowed, f.err
}

func (f *fakeLimiter) Reset(ctx context.Context, key string) {
	f.resets++
}

func testUser() *directory.User {
	return &directory.User{
		DN:             "CN=Jane Doe,OU=Staff,DC=example,DC=com",
		GUID:           "11111111-2222-3333-4444-555555555555",
		SAMAccountName: "jdoe",
		DisplayName:    "Jane Doe",
		Mail:           "jdoe@example.com",
		MemberOf: []string{
			"CN=HelpDesk,OU=Groups,DC=example,DC=com",
			"CN=Staff,OU=Groups,DC=example,DC=com",
		},
	}
}

func testCatalog() []*store.Role {
	return []*store.Role{
		{Name: store.RoleAdmin, Priority: 3, GroupDN: "CN=Admins,OU=Groups,DC=example,DC=com"},
		{Name: store.RoleHelpDesk, Priority: 2, GroupDN: "CN=HelpDesk,OU=Groups,DC=example,DC=com"},
		{Name: store.RoleGroupManager, Priority: 1, GroupDN: ""},
		{Name: store.RoleReadOnly, Priority: 0, GroupDN: ""},
	}
}

func testAuthenticator(t *testing.T, accounts *fakeAccounts, verifier *fakeVerifier, roles *fakeRoles, limiter *fakeLimiter) *Authenticator {
	t.Helper()
	tokens, err := NewTokenIssuer("0123456789abcdef0123456789abcdef", time.Hour)
	require.NoError(t, err)
	return &Authenticator{
		users:    accounts,
		verifier: verifier,
		profiles: &fakeProfiles{},
		roles:    roles,
		limiter:  limiter,
		tokens:   tokens,
		log:      zap.NewNop(),
	}
}

func TestLoginCredentialFailures(t *testing.T) {
	testCases := []struct {
		name       string
		accountErr error
		bindErr    error
	}{
		{
			name:       "unknown account",
			accountErr: &adldap.DirectoryError{Op: "search", Kind: adldap.KindNotFound},
		},
		{
			name:    "bind rejected",
			bindErr: &adldap.DirectoryError{Op: "user_bind", Kind: adldap.KindInvalidCredentials},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			accounts := &fakeAccounts{user: testUser(), err: tc.accountErr}
			a := testAuthenticator(t, accounts, &fakeVerifier{err: tc.bindErr}, &fakeRoles{}, &fakeLimiter{allowed: true})

			_, err := a.Login(context.Background(), "jdoe", "hunter2hunter222", "10.0.0.9")
			// Unknown account and wrong password must be
			// indistinguishable to the caller.
			assert.ErrorIs(t, err, ErrInvalidLogin)
		})
	}
}

func TestLoginRateLimited(t *testing.T) {
	accounts := &fakeAccounts{user: testUser()}
	a := testAuthenticator(t, accounts, &fakeVerifier{}, &fakeRoles{}, &fakeLimiter{allowed: false})

	_, err := a.Login(context.Background(), "jdoe", "hunter2hunter222", "10.0.0.9")
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.False(t, accounts.called, "directory must not be queried once the limiter denies")
}

func TestLoginLimiterErrorFailsClosed(t *testing.T) {
	accounts := &fakeAccounts{user: testUser()}
	a := testAuthenticator(t, accounts, &fakeVerifier{}, &fakeRoles{}, &fakeLimiter{allowed: true, err: errors.New("redis down")})

	_, err := a.Login(context.Background(), "jdoe", "hunter2hunter222", "10.0.0.9")
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.False(t, accounts.called)
}

func TestLoginDirectoryUnavailable(t *testing.T) {
	accounts := &fakeAccounts{err: adldap.NewUnavailableError("search", errors.New("connection refused"))}
	a := testAuthenticator(t, accounts, &fakeVerifier{}, &fakeRoles{}, &fakeLimiter{allowed: true})

	_, err := a.Login(context.Background(), "jdoe", "hunter2hunter222", "10.0.0.9")
	require.Error(t, err)
	assert.True(t, adldap.IsUnavailable(err))
	assert.NotErrorIs(t, err, ErrInvalidLogin)
}

func TestLoginSuccessReplacesRoles(t *testing.T) {
	roles := &fakeRoles{
		catalog: testCatalog(),
		assigned: []*store.Role{
			{Name: store.RoleHelpDesk, Priority: 2},
			{Name: store.RoleReadOnly, Priority: 0},
		},
	}
	verifier := &fakeVerifier{}
	limiter := &fakeLimiter{allowed: true}
	a := testAuthenticator(t, &fakeAccounts{user: testUser()}, verifier, roles, limiter)

	session, err := a.Login(context.Background(), "jdoe", "hunter2hunter222", "10.0.0.9")
	require.NoError(t, err)

	assert.Equal(t, "CN=Jane Doe,OU=Staff,DC=example,DC=com", verifier.bindDN)

	// The stored role set is fully replaced with what the group
	// memberships grant now, not merged with previous assignments.
	assert.Equal(t, int64(42), roles.replacedID)
	assert.Equal(t, []string{store.RoleHelpDesk}, roles.replaced)

	assert.Equal(t, store.RoleHelpDesk, session.EffectiveRole)
	assert.Equal(t, "jdoe", session.Profile.Username)
	assert.Equal(t, 1, limiter.resets)

	claims, err := a.tokens.Parse(session.Token)
	require.NoError(t, err)
	assert.Equal(t, "jdoe", claims.Username)
	assert.Equal(t, store.RoleHelpDesk, claims.EffectiveRole)
}
