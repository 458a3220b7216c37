package directory

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"

	goldap "github.com/go-ldap/ldap/v3"
	"go.uber.org/zap"

	"github.com/isometry/admanager/internal/ldap"
)

var userAttributes = []string{
	"distinguishedName", "objectGUID", "objectSid",
	"sAMAccountName", "userPrincipalName", "cn", "displayName",
	"givenName", "sn", "mail", "description",
	"userAccountControl", "lockoutTime", "pwdLastSet",
	"lastLogonTimestamp", "whenCreated", "memberOf",
}

// Users manages user accounts in the directory.
type Users struct {
	client ldap.Client
	baseDN string
	log    *zap.Logger
}

// NewUsers creates a user service rooted at baseDN.
func NewUsers(client ldap.Client, baseDN string, log *zap.Logger) *Users {
	if log == nil {
		log = zap.NewNop()
	}
	return &Users{client: client, baseDN: baseDN, log: log.Named("users")}
}

// List returns all user accounts under the base DN, fetching every page.
func (s *Users) List(ctx context.Context) ([]*User, error) {
	entries, err := s.client.Search(ctx, &ldap.SearchRequest{
		BaseDN:     s.baseDN,
		Scope:      ldap.ScopeWholeSubtree,
		Filter:     "(&(objectClass=user)(!(objectClass=computer)))",
		Attributes: userAttributes,
		Paged:      true,
	})
	if err != nil {
		return nil, err
	}
	return entriesToUsers(entries), nil
}

// Search returns users whose name, account name or mail contains query.
// The query is filter-escaped, never interpolated raw.
func (s *Users) Search(ctx context.Context, query string) ([]*User, error) {
	q := goldap.EscapeFilter(strings.TrimSpace(query))
	if q == "" {
		return s.List(ctx)
	}

	filter := fmt.Sprintf(
		"(&(objectClass=user)(!(objectClass=computer))(|(cn=*%[1]s*)(displayName=*%[1]s*)(sAMAccountName=*%[1]s*)(mail=*%[1]s*)))", q)

	entries, err := s.client.Search(ctx, &ldap.SearchRequest{
		BaseDN:     s.baseDN,
		Scope:      ldap.ScopeWholeSubtree,
		Filter:     filter,
		Attributes: userAttributes,
		Paged:      true,
	})
	if err != nil {
		return nil, err
	}
	return entriesToUsers(entries), nil
}

// Get fetches one user by DN.
func (s *Users) Get(ctx context.Context, dn string) (*User, error) {
	entry, err := s.client.Get(ctx, dn, userAttributes)
	if err != nil {
		return nil, err
	}
	return entryToUser(entry), nil
}

// GetBySAM fetches one user by sAMAccountName.
func (s *Users) GetBySAM(ctx context.Context, samAccountName string) (*User, error) {
	filter := fmt.Sprintf("(&(objectClass=user)(!(objectClass=computer))(sAMAccountName=%s))",
		goldap.EscapeFilter(samAccountName))

	entries, err := s.client.Search(ctx, &ldap.SearchRequest{
		BaseDN:     s.baseDN,
		Scope:      ldap.ScopeWholeSubtree,
		Filter:     filter,
		Attributes: userAttributes,
		SizeLimit:  2,
	})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, &ldap.DirectoryError{Op: "get_user", Kind: ldap.KindNotFound,
			Message: fmt.Sprintf("no user with sAMAccountName %q", samAccountName)}
	}
	return entryToUser(entries[0]), nil
}

// CreateUserRequest describes a new user account.
type CreateUserRequest struct {
	ParentDN          string // OU the account is created in, defaults to the base DN
	SAMAccountName    string
	UserPrincipalName string
	GivenName         string
	Surname           string
	DisplayName       string
	Mail              string
	Description       string
	Password          string
}

func (r *CreateUserRequest) validate() error {
	if r.SAMAccountName == "" {
		return ldap.NewInvalidInputError("create_user", "sAMAccountName is required")
	}
	if r.DisplayName == "" {
		return ldap.NewInvalidInputError("create_user", "displayName is required")
	}
	if r.Password == "" {
		return ldap.NewInvalidInputError("create_user", "password is required")
	}
	return nil
}

// Create provisions a user account in three steps: add the account disabled,
// set its password, then enable it. AD refuses unicodePwd on the initial add
// over anything short of a confirmed-secure channel, hence the sequencing.
// When the password step fails the half-created account is deleted so a
// retry starts clean; a failed cleanup is reported alongside the original
// error.
func (s *Users) Create(ctx context.Context, req *CreateUserRequest) (*User, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	parent := req.ParentDN
	if parent == "" {
		parent = s.baseDN
	}
	dn := fmt.Sprintf("CN=%s,%s", ldap.EscapeDNValue(req.DisplayName), parent)

	attrs := map[string][]string{
		"objectClass":        {"top", "person", "organizationalPerson", "user"},
		"sAMAccountName":     {req.SAMAccountName},
		"displayName":        {req.DisplayName},
		"userAccountControl": {strconv.FormatInt(UACNormalAccount|UACAccountDisabled, 10)},
	}
	if req.UserPrincipalName != "" {
		attrs["userPrincipalName"] = []string{req.UserPrincipalName}
	}
	if req.GivenName != "" {
		attrs["givenName"] = []string{req.GivenName}
	}
	if req.Surname != "" {
		attrs["sn"] = []string{req.Surname}
	}
	if req.Mail != "" {
		attrs["mail"] = []string{req.Mail}
	}
	if req.Description != "" {
		attrs["description"] = []string{req.Description}
	}

	if err := s.client.Add(ctx, &ldap.AddRequest{DN: dn, Attributes: attrs}); err != nil {
		return nil, err
	}

	if err := s.setPassword(ctx, dn, req.Password); err != nil {
		if delErr := s.client.Delete(ctx, dn); delErr != nil {
			s.log.Error("cleanup of half-created user failed",
				zap.String("dn", dn), zap.Error(delErr))
			return nil, fmt.Errorf("set password failed and cleanup failed, account %s left disabled: %w", dn, err)
		}
		s.log.Warn("user creation rolled back after password failure", zap.String("dn", dn))
		return nil, fmt.Errorf("set password failed, account rolled back: %w", err)
	}

	if err := s.client.Modify(ctx, &ldap.ModifyRequest{
		DN: dn,
		ReplaceAttributes: map[string][]string{
			"userAccountControl": {strconv.FormatInt(UACNormalAccount, 10)},
		},
	}); err != nil {
		// Account exists with its password set; leaving it disabled is safe
		// and the caller can enable it separately.
		return nil, fmt.Errorf("account %s created but enable failed: %w", dn, err)
	}

	s.log.Info("user created", zap.String("dn", dn), zap.String("sam", req.SAMAccountName))
	return s.Get(ctx, dn)
}

// ResetPassword replaces a user's password. Policy validation is the
// caller's responsibility; the directory enforces its own rules regardless.
func (s *Users) ResetPassword(ctx context.Context, dn, password string) error {
	if err := s.setPassword(ctx, dn, password); err != nil {
		return err
	}
	s.log.Info("password reset", zap.String("dn", dn))
	return nil
}

func (s *Users) setPassword(ctx context.Context, dn, password string) error {
	return s.client.Modify(ctx, &ldap.ModifyRequest{
		DN: dn,
		ReplaceAttributes: map[string][]string{
			"unicodePwd": {string(EncodePassword(password))},
		},
	})
}

// EncodePassword renders a password in the form AD's unicodePwd attribute
// requires: the password wrapped in double quotes, encoded UTF-16LE.
func EncodePassword(password string) []byte {
	quoted := `"` + password + `"`
	codes := utf16.Encode([]rune(quoted))
	out := make([]byte, len(codes)*2)
	for i, c := range codes {
		out[i*2] = byte(c)
		out[i*2+1] = byte(c >> 8)
	}
	return out
}

// SetEnabled flips the account-disabled UAC bit, preserving all other bits.
func (s *Users) SetEnabled(ctx context.Context, dn string, enabled bool) error {
	entry, err := s.client.Get(ctx, dn, []string{"userAccountControl"})
	if err != nil {
		return err
	}

	uac := entry.Int64("userAccountControl")
	if enabled {
		uac &^= UACAccountDisabled
	} else {
		uac |= UACAccountDisabled
	}

	if err := s.client.Modify(ctx, &ldap.ModifyRequest{
		DN: dn,
		ReplaceAttributes: map[string][]string{
			"userAccountControl": {strconv.FormatInt(uac, 10)},
		},
	}); err != nil {
		return err
	}

	s.log.Info("account state changed", zap.String("dn", dn), zap.Bool("enabled", enabled))
	return nil
}

// Unlock clears a lockout by zeroing lockoutTime.
func (s *Users) Unlock(ctx context.Context, dn string) error {
	if err := s.client.Modify(ctx, &ldap.ModifyRequest{
		DN: dn,
		ReplaceAttributes: map[string][]string{
			"lockoutTime": {"0"},
		},
	}); err != nil {
		return err
	}
	s.log.Info("account unlocked", zap.String("dn", dn))
	return nil
}

// Delete removes a user account.
func (s *Users) Delete(ctx context.Context, dn string) error {
	if err := s.client.Delete(ctx, dn); err != nil {
		return err
	}
	s.log.Info("user deleted", zap.String("dn", dn))
	return nil
}

// Groups returns the DNs of groups the user is a direct member of.
func (s *Users) Groups(ctx context.Context, dn string) ([]string, error) {
	entry, err := s.client.Get(ctx, dn, []string{"memberOf"})
	if err != nil {
		return nil, err
	}
	return entry.Strings("memberOf"), nil
}

func entriesToUsers(entries []*ldap.Entry) []*User {
	users := make([]*User, 0, len(entries))
	for _, e := range entries {
		users = append(users, entryToUser(e))
	}
	return users
}

func entryToUser(entry *ldap.Entry) *User {
	uac := entry.Int64("userAccountControl")

	return &User{
		DN:                   entry.DN,
		GUID:                 ldap.EntryGUID(entry),
		SID:                  ldap.EntrySID(entry),
		SAMAccountName:       entry.String("sAMAccountName"),
		UserPrincipalName:    entry.String("userPrincipalName"),
		DisplayName:          entry.String("displayName"),
		GivenName:            entry.String("givenName"),
		Surname:              entry.String("sn"),
		Mail:                 entry.String("mail"),
		Description:          entry.String("description"),
		Enabled:              uac&UACAccountDisabled == 0,
		Locked:               entry.Int64("lockoutTime") > 0,
		PasswordNeverExpires: uac&UACPasswordNeverExpires != 0,
		PasswordLastSet:      entry.FileTime("pwdLastSet"),
		LastLogon:            entry.FileTime("lastLogonTimestamp"),
		WhenCreated:          parseGeneralizedTime(entry.String("whenCreated")),
		MemberOf:             entry.Strings("memberOf"),
	}
}
