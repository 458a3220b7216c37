package directory

import (
	"context"
	"fmt"

	goldap "github.com/go-ldap/ldap/v3"
	"go.uber.org/zap"

	"github.com/isometry/admanager/internal/ldap"
)

var gpoAttributes = []string{
	"distinguishedName", "cn", "displayName", "flags",
	"gPCFileSysPath", "versionNumber", "whenCreated", "whenChanged",
}

// GPOs provides read access to group policy objects, which live under
// CN=Policies,CN=System in the domain partition.
type GPOs struct {
	client ldap.Client
	baseDN string
	log    *zap.Logger
}

// NewGPOs creates a GPO service for the domain rooted at baseDN.
func NewGPOs(client ldap.Client, baseDN string, log *zap.Logger) *GPOs {
	if log == nil {
		log = zap.NewNop()
	}
	return &GPOs{client: client, baseDN: baseDN, log: log.Named("gpos")}
}

func (s *GPOs) policiesDN() string {
	return "CN=Policies,CN=System," + s.baseDN
}

// List returns all group policy objects in the domain.
func (s *GPOs) List(ctx context.Context) ([]*GPO, error) {
	entries, err := s.client.Search(ctx, &ldap.SearchRequest{
		BaseDN:     s.policiesDN(),
		Scope:      ldap.ScopeSingleLevel,
		Filter:     "(objectClass=groupPolicyContainer)",
		Attributes: gpoAttributes,
		Paged:      true,
	})
	if err != nil {
		return nil, err
	}

	gpos := make([]*GPO, 0, len(entries))
	for _, e := range entries {
		gpos = append(gpos, entryToGPO(e))
	}
	return gpos, nil
}

// Get fetches one GPO by its GUID name, braces included.
func (s *GPOs) Get(ctx context.Context, guid string) (*GPO, error) {
	entries, err := s.client.Search(ctx, &ldap.SearchRequest{
		BaseDN:     s.policiesDN(),
		Scope:      ldap.ScopeSingleLevel,
		Filter:     fmt.Sprintf("(&(objectClass=groupPolicyContainer)(cn=%s))", goldap.EscapeFilter(guid)),
		Attributes: gpoAttributes,
		SizeLimit:  1,
	})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, &ldap.DirectoryError{Op: "get_gpo", Kind: ldap.KindNotFound,
			Message: fmt.Sprintf("no GPO %q", guid)}
	}
	return entryToGPO(entries[0]), nil
}

// LinkedOUs returns the DNs of containers whose gPLink references the GPO.
func (s *GPOs) LinkedOUs(ctx context.Context, gpoDN string) ([]string, error) {
	entries, err := s.client.Search(ctx, &ldap.SearchRequest{
		BaseDN:     s.baseDN,
		Scope:      ldap.ScopeWholeSubtree,
		Filter:     fmt.Sprintf("(gPLink=*%s*)", goldap.EscapeFilter(gpoDN)),
		Attributes: []string{"distinguishedName"},
		Paged:      true,
	})
	if err != nil {
		return nil, err
	}

	dns := make([]string, 0, len(entries))
	for _, e := range entries {
		dns = append(dns, e.DN)
	}
	return dns, nil
}

// gpoStatus interprets the flags attribute of a groupPolicyContainer.
func gpoStatus(flags int64) GPOStatus {
	switch flags {
	case 1:
		return GPOStatusUserSettingsDisabled
	case 2:
		return GPOStatusComputerDisabled
	case 3:
		return GPOStatusAllDisabled
	default:
		return GPOStatusEnabled
	}
}

func entryToGPO(entry *ldap.Entry) *GPO {
	return &GPO{
		DN:          entry.DN,
		GUID:        entry.String("cn"),
		DisplayName: entry.String("displayName"),
		Status:      gpoStatus(entry.Int64("flags")),
		FileSysPath: entry.String("gPCFileSysPath"),
		Version:     entry.Int64("versionNumber"),
		WhenCreated: parseGeneralizedTime(entry.String("whenCreated")),
		WhenChanged: parseGeneralizedTime(entry.String("whenChanged")),
	}
}
