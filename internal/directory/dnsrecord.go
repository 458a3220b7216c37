package directory

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/isometry/admanager/internal/ldap"
)

// dnsRecord wire layout, as stored in the dnsRecord attribute of dnsNode
// objects. The 24-byte header is little-endian except the TTL, which the
// DNS server keeps in network byte order:
//
//	offset 0  uint16  rdata length
//	offset 2  uint16  record type
//	offset 4  uint8   version (always 5)
//	offset 5  uint8   rank (240 = zone authoritative)
//	offset 6  uint16  flags
//	offset 8  uint32  serial
//	offset 12 uint32  TTL (big-endian)
//	offset 16 uint32  reserved
//	offset 20 uint32  timestamp (0 = static record)
//	offset 24 ...     type-specific rdata
const (
	dnsHeaderLen     = 24
	dnsRecordVersion = 5
	dnsRecordRank    = 240
)

// DNS record type codes.
const (
	dnsTypeA     uint16 = 1
	dnsTypeNS    uint16 = 2
	dnsTypeCNAME uint16 = 5
	dnsTypeSOA   uint16 = 6
	dnsTypePTR   uint16 = 12
	dnsTypeMX    uint16 = 15
	dnsTypeTXT   uint16 = 16
	dnsTypeAAAA  uint16 = 28
	dnsTypeSRV   uint16 = 33
)

var dnsTypeNames = map[uint16]string{
	dnsTypeA:     "A",
	dnsTypeNS:    "NS",
	dnsTypeCNAME: "CNAME",
	dnsTypeSOA:   "SOA",
	dnsTypePTR:   "PTR",
	dnsTypeMX:    "MX",
	dnsTypeTXT:   "TXT",
	dnsTypeAAAA:  "AAAA",
	dnsTypeSRV:   "SRV",
}

var dnsTypeCodes = func() map[string]uint16 {
	m := make(map[string]uint16, len(dnsTypeNames))
	for code, name := range dnsTypeNames {
		m[name] = code
	}
	return m
}()

// DNSTypeName returns the textual name for a record type code, or
// "TYPE<code>" for codes without one.
func DNSTypeName(code uint16) string {
	if name, ok := dnsTypeNames[code]; ok {
		return name
	}
	return fmt.Sprintf("TYPE%d", code)
}

// EncodeDNSRecord builds the binary dnsRecord value for a record of the
// given textual type and zone-file-style value.
func EncodeDNSRecord(recordType, value string, ttl, serial uint32) ([]byte, error) {
	code, ok := dnsTypeCodes[strings.ToUpper(strings.TrimSpace(recordType))]
	if !ok {
		return nil, ldap.NewInvalidInputError("encode_dns_record",
			fmt.Sprintf("unsupported record type %q", recordType))
	}

	rdata, err := encodeRData(code, strings.TrimSpace(value))
	if err != nil {
		return nil, err
	}

	buf := make([]byte, dnsHeaderLen+len(rdata))
	binary.LittleEndian.PutUint16(buf[0:2], uint16(len(rdata)))
	binary.LittleEndian.PutUint16(buf[2:4], code)
	buf[4] = dnsRecordVersion
	buf[5] = dnsRecordRank
	binary.LittleEndian.PutUint16(buf[6:8], 0)
	binary.LittleEndian.PutUint32(buf[8:12], serial)
	binary.BigEndian.PutUint32(buf[12:16], ttl)
	binary.LittleEndian.PutUint32(buf[16:20], 0)
	binary.LittleEndian.PutUint32(buf[20:24], 0)
	copy(buf[dnsHeaderLen:], rdata)
	return buf, nil
}

// DecodeDNSRecord parses a binary dnsRecord value. Records of types without
// a decoder come back with Raw set and their rdata hex-encoded, so a zone
// listing never fails on an exotic record.
func DecodeDNSRecord(raw []byte) (*DNSRecord, error) {
	if len(raw) < dnsHeaderLen {
		return nil, ldap.NewInvalidInputError("decode_dns_record",
			fmt.Sprintf("record too short: %d bytes", len(raw)))
	}

	dataLen := binary.LittleEndian.Uint16(raw[0:2])
	code := binary.LittleEndian.Uint16(raw[2:4])
	serial := binary.LittleEndian.Uint32(raw[8:12])
	ttl := binary.BigEndian.Uint32(raw[12:16])

	rdata := raw[dnsHeaderLen:]
	if int(dataLen) <= len(rdata) {
		rdata = rdata[:dataLen]
	}

	rec := &DNSRecord{
		Type:   DNSTypeName(code),
		TTL:    ttl,
		Serial: serial,
	}

	value, err := decodeRData(code, rdata)
	if err != nil {
		rec.Value = hex.EncodeToString(rdata)
		rec.Raw = true
		return rec, nil
	}
	rec.Value = value
	return rec, nil
}

func encodeRData(code uint16, value string) ([]byte, error) {
	switch code {
	case dnsTypeA:
		ip := net.ParseIP(value)
		if ip == nil || ip.To4() == nil {
			return nil, ldap.NewInvalidInputError("encode_dns_record",
				fmt.Sprintf("invalid IPv4 address %q", value))
		}
		return ip.To4(), nil

	case dnsTypeAAAA:
		ip := net.ParseIP(value)
		if ip == nil || ip.To4() != nil {
			return nil, ldap.NewInvalidInputError("encode_dns_record",
				fmt.Sprintf("invalid IPv6 address %q", value))
		}
		return ip.To16(), nil

	case dnsTypeCNAME, dnsTypePTR, dnsTypeNS:
		return encodeCountedName(value)

	case dnsTypeMX:
		pref, host, err := splitUints(value, 1)
		if err != nil {
			return nil, ldap.NewInvalidInputError("encode_dns_record",
				fmt.Sprintf("MX value must be %q, got %q", "<preference> <host>", value))
		}
		name, err := encodeCountedName(host)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, 2, 2+len(name))
		binary.BigEndian.PutUint16(buf, uint16(pref[0]))
		return append(buf, name...), nil

	case dnsTypeSRV:
		nums, host, err := splitUints(value, 3)
		if err != nil {
			return nil, ldap.NewInvalidInputError("encode_dns_record",
				fmt.Sprintf("SRV value must be %q, got %q", "<priority> <weight> <port> <target>", value))
		}
		name, err := encodeCountedName(host)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, 6, 6+len(name))
		binary.BigEndian.PutUint16(buf[0:2], uint16(nums[0]))
		binary.BigEndian.PutUint16(buf[2:4], uint16(nums[1]))
		binary.BigEndian.PutUint16(buf[4:6], uint16(nums[2]))
		return append(buf, name...), nil

	case dnsTypeTXT:
		if len(value) > 255 {
			return nil, ldap.NewInvalidInputError("encode_dns_record", "TXT string exceeds 255 bytes")
		}
		buf := make([]byte, 0, 1+len(value))
		buf = append(buf, byte(len(value)))
		return append(buf, value...), nil

	default:
		return nil, ldap.NewInvalidInputError("encode_dns_record",
			fmt.Sprintf("no encoder for record type %s", DNSTypeName(code)))
	}
}

func decodeRData(code uint16, rdata []byte) (string, error) {
	switch code {
	case dnsTypeA:
		if len(rdata) != 4 {
			return "", fmt.Errorf("A record rdata must be 4 bytes, got %d", len(rdata))
		}
		return net.IP(rdata).String(), nil

	case dnsTypeAAAA:
		if len(rdata) != 16 {
			return "", fmt.Errorf("AAAA record rdata must be 16 bytes, got %d", len(rdata))
		}
		return net.IP(rdata).String(), nil

	case dnsTypeCNAME, dnsTypePTR, dnsTypeNS:
		return decodeCountedName(rdata)

	case dnsTypeMX:
		if len(rdata) < 3 {
			return "", fmt.Errorf("MX record rdata too short")
		}
		pref := binary.BigEndian.Uint16(rdata[0:2])
		host, err := decodeCountedName(rdata[2:])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d %s", pref, host), nil

	case dnsTypeSRV:
		if len(rdata) < 7 {
			return "", fmt.Errorf("SRV record rdata too short")
		}
		priority := binary.BigEndian.Uint16(rdata[0:2])
		weight := binary.BigEndian.Uint16(rdata[2:4])
		port := binary.BigEndian.Uint16(rdata[4:6])
		target, err := decodeCountedName(rdata[6:])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d %d %d %s", priority, weight, port, target), nil

	case dnsTypeTXT:
		var parts []string
		for i := 0; i < len(rdata); {
			n := int(rdata[i])
			i++
			if i+n > len(rdata) {
				return "", fmt.Errorf("TXT string overruns rdata")
			}
			parts = append(parts, string(rdata[i:i+n]))
			i += n
		}
		return strings.Join(parts, " "), nil

	default:
		return "", fmt.Errorf("no decoder for record type %d", code)
	}
}

// encodeCountedName renders an FQDN in the counted-name form dnsRecord
// uses: total length, label count, length-prefixed labels, zero terminator.
func encodeCountedName(fqdn string) ([]byte, error) {
	fqdn = strings.TrimSuffix(strings.TrimSpace(fqdn), ".")
	if fqdn == "" {
		return nil, ldap.NewInvalidInputError("encode_dns_record", "empty host name")
	}

	labels := strings.Split(fqdn, ".")
	total := 1 // zero terminator
	for _, label := range labels {
		if label == "" || len(label) > 63 {
			return nil, ldap.NewInvalidInputError("encode_dns_record",
				fmt.Sprintf("invalid DNS label in %q", fqdn))
		}
		total += 1 + len(label)
	}

	buf := make([]byte, 0, 2+total)
	buf = append(buf, byte(total), byte(len(labels)))
	for _, label := range labels {
		buf = append(buf, byte(len(label)))
		buf = append(buf, label...)
	}
	return append(buf, 0), nil
}

func decodeCountedName(data []byte) (string, error) {
	if len(data) < 2 {
		return "", fmt.Errorf("counted name too short")
	}

	labelCount := int(data[1])
	labels := make([]string, 0, labelCount)
	i := 2
	for j := 0; j < labelCount; j++ {
		if i >= len(data) {
			return "", fmt.Errorf("counted name truncated")
		}
		n := int(data[i])
		i++
		if n == 0 || i+n > len(data) {
			return "", fmt.Errorf("counted name label overruns data")
		}
		labels = append(labels, string(data[i:i+n]))
		i += n
	}
	if len(labels) == 0 {
		return "", fmt.Errorf("counted name has no labels")
	}
	return strings.Join(labels, "."), nil
}

// splitUints parses "<n>... <host>" values like MX and SRV rdata text.
func splitUints(value string, count int) ([]uint64, string, error) {
	fields := strings.Fields(value)
	if len(fields) != count+1 {
		return nil, "", fmt.Errorf("expected %d fields, got %d", count+1, len(fields))
	}
	nums := make([]uint64, count)
	for i := 0; i < count; i++ {
		n, err := strconv.ParseUint(fields[i], 10, 16)
		if err != nil {
			return nil, "", err
		}
		nums[i] = n
	}
	return nums, fields[count], nil
}
