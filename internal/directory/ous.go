package directory

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/isometry/admanager/internal/ldap"
)

var ouAttributes = []string{"distinguishedName", "objectGUID", "ou", "name", "description"}

// OUs provides read access to the organizational unit hierarchy. The tree
// is browsed lazily: each call fetches one level, so a deep directory never
// costs more than the levels actually expanded.
type OUs struct {
	client ldap.Client
	baseDN string
	log    *zap.Logger
}

// NewOUs creates an OU service rooted at baseDN.
func NewOUs(client ldap.Client, baseDN string, log *zap.Logger) *OUs {
	if log == nil {
		log = zap.NewNop()
	}
	return &OUs{client: client, baseDN: baseDN, log: log.Named("ous")}
}

// Roots returns the OUs directly under the base DN.
func (s *OUs) Roots(ctx context.Context) ([]*OU, error) {
	return s.Children(ctx, s.baseDN)
}

// Children returns the OUs one level below parentDN, each annotated with
// whether it has OU children of its own so a tree view knows which nodes
// are expandable.
func (s *OUs) Children(ctx context.Context, parentDN string) ([]*OU, error) {
	entries, err := s.client.Search(ctx, &ldap.SearchRequest{
		BaseDN:     parentDN,
		Scope:      ldap.ScopeSingleLevel,
		Filter:     "(objectClass=organizationalUnit)",
		Attributes: ouAttributes,
	})
	if err != nil {
		return nil, err
	}

	ous := make([]*OU, 0, len(entries))
	for _, e := range entries {
		ou := entryToOU(e)
		hasChildren, err := s.hasOUChildren(ctx, ou.DN)
		if err != nil {
			return nil, err
		}
		ou.HasChildren = hasChildren
		ous = append(ous, ou)
	}
	return ous, nil
}

// Get fetches one OU by DN.
func (s *OUs) Get(ctx context.Context, dn string) (*OU, error) {
	entry, err := s.client.Get(ctx, dn, ouAttributes)
	if err != nil {
		return nil, err
	}
	ou := entryToOU(entry)
	hasChildren, err := s.hasOUChildren(ctx, dn)
	if err != nil {
		return nil, err
	}
	ou.HasChildren = hasChildren
	return ou, nil
}

// Objects lists the users, groups and computers directly inside an OU.
func (s *OUs) Objects(ctx context.Context, dn string) ([]*OUObject, error) {
	entries, err := s.client.Search(ctx, &ldap.SearchRequest{
		BaseDN:     dn,
		Scope:      ldap.ScopeSingleLevel,
		Filter:     "(|(objectClass=user)(objectClass=group)(objectClass=computer))",
		Attributes: []string{"cn", "name", "description", "objectClass"},
		Paged:      true,
	})
	if err != nil {
		return nil, err
	}

	objects := make([]*OUObject, 0, len(entries))
	for _, e := range entries {
		name := e.String("cn")
		if name == "" {
			name = e.String("name")
		}
		objects = append(objects, &OUObject{
			DN:          e.DN,
			Name:        name,
			ObjectClass: primaryObjectClass(e.Strings("objectClass")),
			Description: e.String("description"),
		})
	}
	return objects, nil
}

func (s *OUs) hasOUChildren(ctx context.Context, dn string) (bool, error) {
	entries, err := s.client.Search(ctx, &ldap.SearchRequest{
		BaseDN:     dn,
		Scope:      ldap.ScopeSingleLevel,
		Filter:     "(objectClass=organizationalUnit)",
		Attributes: []string{"ou"},
		SizeLimit:  1,
	})
	if err != nil {
		// Size-limit-exceeded still means a child exists.
		if ldap.KindOf(err) == ldap.KindBackend && strings.Contains(strings.ToLower(err.Error()), "size limit") {
			return true, nil
		}
		return false, err
	}
	return len(entries) > 0, nil
}

func entryToOU(entry *ldap.Entry) *OU {
	name := entry.String("ou")
	if name == "" {
		name = entry.String("name")
	}
	return &OU{
		DN:          entry.DN,
		GUID:        ldap.EntryGUID(entry),
		Name:        name,
		Description: entry.String("description"),
		ParentDN:    ldap.ParentDN(entry.DN),
	}
}

// parseGeneralizedTime parses LDAP generalizedTime values such as
// "20240131120000.0Z". Unparseable values return the zero time.
func parseGeneralizedTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{"20060102150405.0Z", "20060102150405Z", "20060102150405.0-0700"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
