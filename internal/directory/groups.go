package directory

import (
	"context"
	"fmt"
	"strings"

	goldap "github.com/go-ldap/ldap/v3"
	"go.uber.org/zap"

	"github.com/isometry/admanager/internal/ldap"
)

var groupAttributes = []string{
	"distinguishedName", "objectGUID", "objectSid",
	"cn", "sAMAccountName", "description", "groupType", "member",
}

// Groups manages security and distribution groups.
type Groups struct {
	client ldap.Client
	baseDN string
	log    *zap.Logger
}

// NewGroups creates a group service rooted at baseDN.
func NewGroups(client ldap.Client, baseDN string, log *zap.Logger) *Groups {
	if log == nil {
		log = zap.NewNop()
	}
	return &Groups{client: client, baseDN: baseDN, log: log.Named("groups")}
}

// List returns all groups under the base DN.
func (s *Groups) List(ctx context.Context) ([]*Group, error) {
	entries, err := s.client.Search(ctx, &ldap.SearchRequest{
		BaseDN:     s.baseDN,
		Scope:      ldap.ScopeWholeSubtree,
		Filter:     "(objectClass=group)",
		Attributes: groupAttributes,
		Paged:      true,
	})
	if err != nil {
		return nil, err
	}

	groups := make([]*Group, 0, len(entries))
	for _, e := range entries {
		groups = append(groups, entryToGroup(e))
	}
	return groups, nil
}

// Search returns groups whose name or description contains query.
func (s *Groups) Search(ctx context.Context, query string) ([]*Group, error) {
	q := goldap.EscapeFilter(strings.TrimSpace(query))
	if q == "" {
		return s.List(ctx)
	}

	entries, err := s.client.Search(ctx, &ldap.SearchRequest{
		BaseDN:     s.baseDN,
		Scope:      ldap.ScopeWholeSubtree,
		Filter:     fmt.Sprintf("(&(objectClass=group)(|(cn=*%[1]s*)(description=*%[1]s*)))", q),
		Attributes: groupAttributes,
		Paged:      true,
	})
	if err != nil {
		return nil, err
	}

	groups := make([]*Group, 0, len(entries))
	for _, e := range entries {
		groups = append(groups, entryToGroup(e))
	}
	return groups, nil
}

// Get fetches one group by DN.
func (s *Groups) Get(ctx context.Context, dn string) (*Group, error) {
	entry, err := s.client.Get(ctx, dn, groupAttributes)
	if err != nil {
		return nil, err
	}
	return entryToGroup(entry), nil
}

// Members resolves the direct members of a group to display names and
// object classes. Members that vanish between the group read and the member
// read are skipped rather than failing the listing.
func (s *Groups) Members(ctx context.Context, dn string) ([]*GroupMember, error) {
	group, err := s.Get(ctx, dn)
	if err != nil {
		return nil, err
	}

	members := make([]*GroupMember, 0, len(group.MemberDNs))
	for _, memberDN := range group.MemberDNs {
		entry, err := s.client.Get(ctx, memberDN, []string{"cn", "sAMAccountName", "objectClass"})
		if err != nil {
			if ldap.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		members = append(members, &GroupMember{
			DN:             entry.DN,
			Name:           entry.String("cn"),
			SAMAccountName: entry.String("sAMAccountName"),
			ObjectClass:    primaryObjectClass(entry.Strings("objectClass")),
		})
	}
	return members, nil
}

// AddMember adds memberDN to the group. Adding a DN that is already a
// member succeeds: the caller asked for a state the group is already in.
func (s *Groups) AddMember(ctx context.Context, groupDN, memberDN string) error {
	err := s.client.Modify(ctx, &ldap.ModifyRequest{
		DN:            groupDN,
		AddAttributes: map[string][]string{"member": {memberDN}},
	})
	if err != nil {
		if ldap.IsAlreadyExists(err) {
			s.log.Debug("member already present", zap.String("group", groupDN), zap.String("member", memberDN))
			return nil
		}
		return err
	}

	s.log.Info("member added", zap.String("group", groupDN), zap.String("member", memberDN))
	return nil
}

// RemoveMember removes memberDN from the group. Removing an absent member
// succeeds for the same reason AddMember tolerates a present one. Servers
// disagree on the error for this case, so a rejected remove is re-checked
// against the current member list before being treated as a failure.
func (s *Groups) RemoveMember(ctx context.Context, groupDN, memberDN string) error {
	err := s.client.Modify(ctx, &ldap.ModifyRequest{
		DN:               groupDN,
		DeleteAttributes: map[string][]string{"member": {memberDN}},
	})
	if err != nil {
		if ldap.IsNotFound(err) {
			return nil
		}
		if absent, checkErr := s.memberAbsent(ctx, groupDN, memberDN); checkErr == nil && absent {
			return nil
		}
		return err
	}

	s.log.Info("member removed", zap.String("group", groupDN), zap.String("member", memberDN))
	return nil
}

func (s *Groups) memberAbsent(ctx context.Context, groupDN, memberDN string) (bool, error) {
	group, err := s.Get(ctx, groupDN)
	if err != nil {
		return false, err
	}
	for _, dn := range group.MemberDNs {
		if strings.EqualFold(dn, memberDN) {
			return false, nil
		}
	}
	return true, nil
}

// GroupsOfUser returns groups that have userDN as a direct member.
func (s *Groups) GroupsOfUser(ctx context.Context, userDN string) ([]*Group, error) {
	entries, err := s.client.Search(ctx, &ldap.SearchRequest{
		BaseDN:     s.baseDN,
		Scope:      ldap.ScopeWholeSubtree,
		Filter:     fmt.Sprintf("(&(objectClass=group)(member=%s))", goldap.EscapeFilter(userDN)),
		Attributes: groupAttributes,
		Paged:      true,
	})
	if err != nil {
		return nil, err
	}

	groups := make([]*Group, 0, len(entries))
	for _, e := range entries {
		groups = append(groups, entryToGroup(e))
	}
	return groups, nil
}

func entryToGroup(entry *ldap.Entry) *Group {
	return &Group{
		DN:             entry.DN,
		GUID:           ldap.EntryGUID(entry),
		SID:            ldap.EntrySID(entry),
		Name:           entry.String("cn"),
		SAMAccountName: entry.String("sAMAccountName"),
		Description:    entry.String("description"),
		GroupType:      entry.Int64("groupType"),
		MemberDNs:      entry.Strings("member"),
	}
}

// primaryObjectClass picks the most specific objectClass from the value
// list, which AD orders from most general to most specific.
func primaryObjectClass(classes []string) string {
	for i := len(classes) - 1; i >= 0; i-- {
		switch strings.ToLower(classes[i]) {
		case "computer", "group", "user":
			return strings.ToLower(classes[i])
		}
	}
	if len(classes) > 0 {
		return strings.ToLower(classes[len(classes)-1])
	}
	return ""
}
