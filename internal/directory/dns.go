package directory

import (
	"context"
	"fmt"
	"strings"

	goldap "github.com/go-ldap/ldap/v3"
	"go.uber.org/zap"

	"github.com/isometry/admanager/internal/ldap"
)

// DNS manages directory-integrated DNS zones and their node records.
// Zones live in the DomainDnsZones and ForestDnsZones application
// partitions under CN=MicrosoftDNS.
type DNS struct {
	client   ldap.Client
	domainDN string
	log      *zap.Logger
}

// NewDNS creates a DNS service for the domain rooted at domainDN.
func NewDNS(client ldap.Client, domainDN string, log *zap.Logger) *DNS {
	if log == nil {
		log = zap.NewNop()
	}
	return &DNS{client: client, domainDN: domainDN, log: log.Named("dns")}
}

func (s *DNS) partitionDN(partition string) string {
	switch partition {
	case "forest":
		return "CN=MicrosoftDNS,DC=ForestDnsZones," + s.domainDN
	default:
		return "CN=MicrosoftDNS,DC=DomainDnsZones," + s.domainDN
	}
}

// Zones lists the zones in both application partitions. A partition that
// does not exist on this forest is skipped.
func (s *DNS) Zones(ctx context.Context) ([]*DNSZone, error) {
	var zones []*DNSZone
	for _, partition := range []string{"domain", "forest"} {
		entries, err := s.client.Search(ctx, &ldap.SearchRequest{
			BaseDN:     s.partitionDN(partition),
			Scope:      ldap.ScopeSingleLevel,
			Filter:     "(objectClass=dnsZone)",
			Attributes: []string{"dc", "name"},
		})
		if err != nil {
			if ldap.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		for _, e := range entries {
			name := e.String("dc")
			if name == "" {
				name = e.String("name")
			}
			// RootDNSServers and similar infrastructure zones are
			// not manageable content.
			if strings.HasPrefix(name, "..") || strings.EqualFold(name, "RootDNSServers") {
				continue
			}
			zones = append(zones, &DNSZone{DN: e.DN, Name: name, Partition: partition})
		}
	}
	return zones, nil
}

// Records lists the decoded records of every node in a zone. Undecodable
// record blobs are returned raw rather than failing the listing.
func (s *DNS) Records(ctx context.Context, zoneDN string) ([]*DNSRecord, error) {
	entries, err := s.client.Search(ctx, &ldap.SearchRequest{
		BaseDN:     zoneDN,
		Scope:      ldap.ScopeSingleLevel,
		Filter:     "(objectClass=dnsNode)",
		Attributes: []string{"dc", "dnsRecord"},
		Paged:      true,
	})
	if err != nil {
		return nil, err
	}

	var records []*DNSRecord
	for _, e := range entries {
		name := e.String("dc")
		for _, raw := range e.RawValues("dnsRecord") {
			rec, err := DecodeDNSRecord(raw)
			if err != nil {
				s.log.Warn("skipping malformed dnsRecord",
					zap.String("node", e.DN), zap.Error(err))
				continue
			}
			rec.NodeDN = e.DN
			rec.Name = name
			records = append(records, rec)
		}
	}
	return records, nil
}

// CreateRecordRequest describes a record to add to a zone.
type CreateRecordRequest struct {
	ZoneDN string
	Name   string // node name relative to the zone, e.g. "www"
	Type   string // "A", "AAAA", "CNAME", "MX", "PTR", "SRV", "TXT"
	Value  string
	TTL    uint32
}

// CreateRecord adds a record. A node that already exists gets the record
// appended to its dnsRecord values; otherwise the node is created.
func (s *DNS) CreateRecord(ctx context.Context, req *CreateRecordRequest) (*DNSRecord, error) {
	if req.Name == "" {
		return nil, ldap.NewInvalidInputError("create_dns_record", "record name is required")
	}

	raw, err := EncodeDNSRecord(req.Type, req.Value, req.TTL, 1)
	if err != nil {
		return nil, err
	}

	nodeDN := fmt.Sprintf("DC=%s,%s", ldap.EscapeDNValue(req.Name), req.ZoneDN)

	addErr := s.client.Add(ctx, &ldap.AddRequest{
		DN: nodeDN,
		Attributes: map[string][]string{
			"objectClass": {"top", "dnsNode"},
			"dnsRecord":   {string(raw)},
		},
	})
	if addErr != nil {
		if !ldap.IsAlreadyExists(addErr) {
			return nil, addErr
		}
		if err := s.client.Modify(ctx, &ldap.ModifyRequest{
			DN:            nodeDN,
			AddAttributes: map[string][]string{"dnsRecord": {string(raw)}},
		}); err != nil {
			return nil, err
		}
	}

	s.log.Info("dns record created",
		zap.String("node", nodeDN), zap.String("type", req.Type), zap.String("value", req.Value))

	rec, err := DecodeDNSRecord(raw)
	if err != nil {
		return nil, err
	}
	rec.NodeDN = nodeDN
	rec.Name = req.Name
	return rec, nil
}

// UpdateRecord replaces one record value on a node, leaving sibling records
// of the node untouched.
func (s *DNS) UpdateRecord(ctx context.Context, nodeDN, recordType, oldValue, newValue string, ttl uint32) error {
	entry, err := s.client.Get(ctx, nodeDN, []string{"dnsRecord"})
	if err != nil {
		return err
	}

	oldRaw, found := s.findRecord(entry, recordType, oldValue)
	if !found {
		return &ldap.DirectoryError{Op: "update_dns_record", Kind: ldap.KindNotFound, DN: nodeDN,
			Message: fmt.Sprintf("no %s record with value %q", recordType, oldValue)}
	}

	newRaw, err := EncodeDNSRecord(recordType, newValue, ttl, 1)
	if err != nil {
		return err
	}

	if err := s.client.Modify(ctx, &ldap.ModifyRequest{
		DN:               nodeDN,
		AddAttributes:    map[string][]string{"dnsRecord": {string(newRaw)}},
		DeleteAttributes: map[string][]string{"dnsRecord": {string(oldRaw)}},
	}); err != nil {
		return err
	}

	s.log.Info("dns record updated", zap.String("node", nodeDN), zap.String("type", recordType))
	return nil
}

// DeleteRecord removes one record value from a node; when it was the last
// record, the node itself is deleted.
func (s *DNS) DeleteRecord(ctx context.Context, nodeDN, recordType, value string) error {
	entry, err := s.client.Get(ctx, nodeDN, []string{"dnsRecord"})
	if err != nil {
		return err
	}

	raw, found := s.findRecord(entry, recordType, value)
	if !found {
		return &ldap.DirectoryError{Op: "delete_dns_record", Kind: ldap.KindNotFound, DN: nodeDN,
			Message: fmt.Sprintf("no %s record with value %q", recordType, value)}
	}

	if len(entry.RawValues("dnsRecord")) == 1 {
		if err := s.client.Delete(ctx, nodeDN); err != nil {
			return err
		}
	} else {
		if err := s.client.Modify(ctx, &ldap.ModifyRequest{
			DN:               nodeDN,
			DeleteAttributes: map[string][]string{"dnsRecord": {string(raw)}},
		}); err != nil {
			return err
		}
	}

	s.log.Info("dns record deleted", zap.String("node", nodeDN), zap.String("type", recordType))
	return nil
}

// findRecord locates the stored binary value matching a decoded type and
// value. Matching decodes each stored record rather than re-encoding the
// target, so records written by other tools still match.
func (s *DNS) findRecord(entry *ldap.Entry, recordType, value string) ([]byte, bool) {
	wantType := strings.ToUpper(strings.TrimSpace(recordType))
	wantValue := strings.TrimSpace(value)

	for _, raw := range entry.RawValues("dnsRecord") {
		rec, err := DecodeDNSRecord(raw)
		if err != nil {
			continue
		}
		if rec.Type == wantType && rec.Value == wantValue {
			return raw, true
		}
	}
	return nil, false
}

// ZoneByName resolves a zone name to its zone object.
func (s *DNS) ZoneByName(ctx context.Context, name string) (*DNSZone, error) {
	for _, partition := range []string{"domain", "forest"} {
		entries, err := s.client.Search(ctx, &ldap.SearchRequest{
			BaseDN:     s.partitionDN(partition),
			Scope:      ldap.ScopeSingleLevel,
			Filter:     fmt.Sprintf("(&(objectClass=dnsZone)(dc=%s))", goldap.EscapeFilter(name)),
			Attributes: []string{"dc"},
			SizeLimit:  1,
		})
		if err != nil {
			if ldap.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		if len(entries) > 0 {
			return &DNSZone{DN: entries[0].DN, Name: entries[0].String("dc"), Partition: partition}, nil
		}
	}
	return nil, &ldap.DirectoryError{Op: "get_dns_zone", Kind: ldap.KindNotFound,
		Message: fmt.Sprintf("no zone %q", name)}
}
