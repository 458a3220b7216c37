package directory

import (
	"context"

	"go.uber.org/zap"

	"github.com/isometry/admanager/internal/ldap"
)

// DefaultMaxPasswordAgeDays is assumed when the domain policy cannot be
// read or the domain disables password ageing.
const DefaultMaxPasswordAgeDays = 90

// Policy reads domain-level password policy.
type Policy struct {
	client ldap.Client
	baseDN string
	log    *zap.Logger
}

// NewPolicy creates a policy reader for the domain rooted at baseDN.
func NewPolicy(client ldap.Client, baseDN string, log *zap.Logger) *Policy {
	if log == nil {
		log = zap.NewNop()
	}
	return &Policy{client: client, baseDN: baseDN, log: log.Named("policy")}
}

// MaxPasswordAge returns the domain's maximum password age in whole days.
// AD stores maxPwdAge as a negative count of 100-nanosecond intervals; zero
// or the int64 minimum means ageing is disabled, for which the default is
// substituted so expiry math stays meaningful.
func (p *Policy) MaxPasswordAge(ctx context.Context) (PasswordPolicy, error) {
	fallback := PasswordPolicy{MaxPasswordAgeDays: DefaultMaxPasswordAgeDays}

	entry, err := p.client.Get(ctx, p.baseDN, []string{"maxPwdAge"})
	if err != nil {
		p.log.Warn("domain policy unreadable, using default max password age",
			zap.Int("default_days", DefaultMaxPasswordAgeDays), zap.Error(err))
		return fallback, err
	}

	interval := entry.Int64("maxPwdAge")
	if interval == 0 || interval == -0x8000000000000000 {
		return fallback, nil
	}

	days := int(ldap.FileTimeIntervalToDuration(interval).Hours() / 24)
	if days <= 0 {
		return fallback, nil
	}
	return PasswordPolicy{MaxPasswordAgeDays: days}, nil
}
