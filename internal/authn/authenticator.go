// Package authn authenticates directory users and manages their session
// tokens and role assignments.
package authn

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/isometry/admanager/internal/audit"
	"github.com/isometry/admanager/internal/directory"
	adldap "github.com/isometry/admanager/internal/ldap"
	"github.com/isometry/admanager/internal/ratelimit"
	"github.com/isometry/admanager/internal/store"
)

// ErrInvalidLogin is returned for any credential failure. Callers must not
// reveal whether the account exists, so user-not-found and wrong-password
// both surface as this single error.
var ErrInvalidLogin = errors.New("invalid username or password")

// ErrRateLimited is returned when the caller has exceeded the login
// attempt limit for the current window.
var ErrRateLimited = errors.New("too many login attempts, try again later")

// Session is the result of a successful login.
type Session struct {
	Token         string
	ExpiresAt     time.Time
	Profile       *store.Profile
	Roles         []string
	EffectiveRole string
}

// accountDirectory is the slice of the directory layer login needs.
type accountDirectory interface {
	GetBySAM(ctx context.Context, samAccountName string) (*directory.User, error)
}

// credentialVerifier checks a password by binding as the user.
type credentialVerifier interface {
	UserBind(ctx context.Context, bindDN, password string) error
}

type profileStore interface {
	Upsert(ctx context.Context, p *store.Profile) (*store.Profile, error)
}

type roleStore interface {
	Catalog(ctx context.Context) ([]*store.Role, error)
	ReplaceAssignments(ctx context.Context, profileID int64, roleNames []string) error
	RolesForProfile(ctx context.Context, profileID int64) ([]*store.Role, error)
}

type loginLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string)
}

// Authenticator performs the search-then-bind login flow against the
// directory and synchronizes the resulting profile and roles into the
// database.
type Authenticator struct {
	users    accountDirectory
	verifier credentialVerifier
	profiles profileStore
	roles    roleStore
	limiter  loginLimiter
	tokens   *TokenIssuer
	auditor  audit.Recorder
	log      *zap.Logger
}

// NewAuthenticator wires the login flow.
func NewAuthenticator(users *directory.Users, client adldap.Client, st *store.Store, limiter *ratelimit.Limiter, tokens *TokenIssuer, auditor audit.Recorder, log *zap.Logger) *Authenticator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Authenticator{
		users:    users,
		verifier: client,
		profiles: st.Profiles,
		roles:    st.Roles,
		limiter:  limiter,
		tokens:   tokens,
		auditor:  auditor,
		log:      log.Named("authn"),
	}
}

// Login authenticates username/password from clientIP. The flow is
// search-then-bind: resolve the account by sAMAccountName with the service
// connection, then verify the password by binding as the user. On success
// the profile is upserted, the role set is recomputed from group
// memberships and fully replaced, and a session token is issued.
//
// Rate limiting is checked first and fails closed: if the limiter backend
// is unreachable, logins are denied rather than left unmetered.
func (a *Authenticator) Login(ctx context.Context, username, password, clientIP string) (*Session, error) {
	allowed, err := a.limiter.Allow(ctx, clientIP)
	if err != nil {
		a.log.Error("rate limiter unavailable, denying login",
			zap.String("client_ip", clientIP), zap.Error(err))
		return nil, ErrRateLimited
	}
	if !allowed {
		a.audit(ctx, username, clientIP, false, "rate limited")
		return nil, ErrRateLimited
	}

	user, err := a.users.GetBySAM(ctx, username)
	if err != nil {
		if adldap.IsNotFound(err) {
			// Same failure as a bad password so account names cannot
			// be probed.
			a.audit(ctx, username, clientIP, false, "unknown account")
			return nil, ErrInvalidLogin
		}
		if adldap.IsUnavailable(err) {
			return nil, err
		}
		a.log.Error("account lookup failed", zap.String("username", username), zap.Error(err))
		return nil, err
	}

	if err := a.verifier.UserBind(ctx, user.DN, password); err != nil {
		if adldap.IsInvalidCredentials(err) {
			a.audit(ctx, username, clientIP, false, "bind rejected")
			return nil, ErrInvalidLogin
		}
		if adldap.IsUnavailable(err) {
			return nil, err
		}
		a.log.Error("user bind failed", zap.String("dn", user.DN), zap.Error(err))
		return nil, ErrInvalidLogin
	}

	profile, err := a.profiles.Upsert(ctx, &store.Profile{
		GUID:        user.GUID,
		Username:    user.SAMAccountName,
		DisplayName: user.DisplayName,
		Email:       user.Mail,
		DN:          user.DN,
	})
	if err != nil {
		return nil, err
	}

	catalog, err := a.roles.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	roleNames := ComputeRoles(user.MemberOf, catalog)
	if err := a.roles.ReplaceAssignments(ctx, profile.ID, roleNames); err != nil {
		return nil, err
	}
	roles, err := a.roles.RolesForProfile(ctx, profile.ID)
	if err != nil {
		return nil, err
	}
	effective := EffectiveRole(roles)

	a.limiter.Reset(ctx, clientIP)

	token, expiresAt, err := a.tokens.Issue(profile.ID, profile.Username, roleNames, effective)
	if err != nil {
		return nil, err
	}

	a.audit(ctx, username, clientIP, true, "effective role "+effective)
	a.log.Info("login",
		zap.String("username", profile.Username),
		zap.Strings("roles", roleNames),
		zap.String("effective_role", effective),
		zap.String("client_ip", clientIP))

	return &Session{
		Token:         token,
		ExpiresAt:     expiresAt,
		Profile:       profile,
		Roles:         roleNames,
		EffectiveRole: effective,
	}, nil
}

func (a *Authenticator) audit(ctx context.Context, username, clientIP string, success bool, detail string) {
	if a.auditor == nil {
		return
	}
	// Audit failures are logged inside the recorder; a failed write must
	// not block the login path.
	_ = a.auditor.Record(ctx, audit.Entry{
		Actor:    username,
		Category: audit.CategoryAuth,
		Action:   "auth.login",
		Detail:   detail,
		ClientIP: clientIP,
		Success:  success,
	})
}
