package directory

import (
	"context"
	"fmt"
	"strings"

	goldap "github.com/go-ldap/ldap/v3"
	"go.uber.org/zap"

	"github.com/isometry/admanager/internal/ldap"
)

var computerAttributes = []string{
	"distinguishedName", "objectGUID", "cn", "dNSHostName",
	"operatingSystem", "operatingSystemVersion",
	"userAccountControl", "lastLogonTimestamp", "whenCreated",
}

// Computers provides read access to computer accounts.
type Computers struct {
	client ldap.Client
	baseDN string
	log    *zap.Logger
}

// NewComputers creates a computer service rooted at baseDN.
func NewComputers(client ldap.Client, baseDN string, log *zap.Logger) *Computers {
	if log == nil {
		log = zap.NewNop()
	}
	return &Computers{client: client, baseDN: baseDN, log: log.Named("computers")}
}

// List returns all computer accounts under the base DN.
func (s *Computers) List(ctx context.Context) ([]*Computer, error) {
	return s.search(ctx, "(objectClass=computer)")
}

// Search returns computers whose name or DNS host name contains query.
func (s *Computers) Search(ctx context.Context, query string) ([]*Computer, error) {
	q := goldap.EscapeFilter(strings.TrimSpace(query))
	if q == "" {
		return s.List(ctx)
	}
	return s.search(ctx, fmt.Sprintf("(&(objectClass=computer)(|(cn=*%[1]s*)(dNSHostName=*%[1]s*)))", q))
}

// Get fetches one computer by DN.
func (s *Computers) Get(ctx context.Context, dn string) (*Computer, error) {
	entry, err := s.client.Get(ctx, dn, computerAttributes)
	if err != nil {
		return nil, err
	}
	return entryToComputer(entry), nil
}

func (s *Computers) search(ctx context.Context, filter string) ([]*Computer, error) {
	entries, err := s.client.Search(ctx, &ldap.SearchRequest{
		BaseDN:     s.baseDN,
		Scope:      ldap.ScopeWholeSubtree,
		Filter:     filter,
		Attributes: computerAttributes,
		Paged:      true,
	})
	if err != nil {
		return nil, err
	}

	computers := make([]*Computer, 0, len(entries))
	for _, e := range entries {
		computers = append(computers, entryToComputer(e))
	}
	return computers, nil
}

func entryToComputer(entry *ldap.Entry) *Computer {
	uac := entry.Int64("userAccountControl")
	return &Computer{
		DN:              entry.DN,
		GUID:            ldap.EntryGUID(entry),
		Name:            entry.String("cn"),
		DNSHostName:     entry.String("dNSHostName"),
		OperatingSystem: entry.String("operatingSystem"),
		OSVersion:       entry.String("operatingSystemVersion"),
		Enabled:         uac&UACAccountDisabled == 0,
		LastLogon:       entry.FileTime("lastLogonTimestamp"),
		WhenCreated:     parseGeneralizedTime(entry.String("whenCreated")),
	}
}
