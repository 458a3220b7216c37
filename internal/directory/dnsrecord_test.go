package directory

import (
	"encoding/binary"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	adldap "github.com/isometry/admanager/internal/ldap"
)

func TestEncodeDNSRecordHeader(t *testing.T) {
	raw, err := EncodeDNSRecord("A", "192.0.2.10", 3600, 42)
	require.NoError(t, err)
	require.Len(t, raw, dnsHeaderLen+4)

	assert.Equal(t, uint16(4), binary.LittleEndian.Uint16(raw[0:2]))
	assert.Equal(t, dnsTypeA, binary.LittleEndian.Uint16(raw[2:4]))
	assert.Equal(t, byte(dnsRecordVersion), raw[4])
	assert.Equal(t, byte(dnsRecordRank), raw[5])
	assert.Equal(t, uint32(42), binary.LittleEndian.Uint32(raw[8:12]))
	// TTL is the one big-endian field in the header.
	assert.Equal(t, uint32(3600), binary.BigEndian.Uint32(raw[12:16]))
	assert.Equal(t, []byte{192, 0, 2, 10}, raw[dnsHeaderLen:])
}

func TestDNSRecordRoundTrip(t *testing.T) {
	testCases := []struct {
		name       string
		recordType string
		value      string
	}{
		{name: "A", recordType: "A", value: "192.0.2.10"},
		{name: "AAAA", recordType: "AAAA", value: "2001:db8::1"},
		{name: "CNAME", recordType: "CNAME", value: "web.example.com"},
		{name: "PTR", recordType: "PTR", value: "host.example.com"},
		{name: "NS", recordType: "NS", value: "ns1.example.com"},
		{name: "MX", recordType: "MX", value: "10 mail.example.com"},
		{name: "SRV", recordType: "SRV", value: "0 5 389 dc1.example.com"},
		{name: "TXT", recordType: "TXT", value: "v=spf1 -all"},
		{name: "lowercase type", recordType: "cname", value: "web.example.com"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := EncodeDNSRecord(tc.recordType, tc.value, 600, 7)
			require.NoError(t, err)

			rec, err := DecodeDNSRecord(raw)
			require.NoError(t, err)
			assert.False(t, rec.Raw)
			assert.Equal(t, tc.value, rec.Value)
			assert.Equal(t, uint32(600), rec.TTL)
			assert.Equal(t, uint32(7), rec.Serial)
		})
	}
}

func TestEncodeDNSRecordInvalid(t *testing.T) {
	testCases := []struct {
		name       string
		recordType string
		value      string
	}{
		{name: "unsupported type", recordType: "NAPTR", value: "x"},
		{name: "bad ipv4", recordType: "A", value: "not-an-ip"},
		{name: "ipv6 in A", recordType: "A", value: "2001:db8::1"},
		{name: "ipv4 in AAAA", recordType: "AAAA", value: "192.0.2.1"},
		{name: "empty cname", recordType: "CNAME", value: ""},
		{name: "mx missing preference", recordType: "MX", value: "mail.example.com"},
		{name: "srv missing fields", recordType: "SRV", value: "0 5 dc1.example.com"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := EncodeDNSRecord(tc.recordType, tc.value, 600, 0)
			require.Error(t, err)
			assert.True(t, adldap.IsInvalidInput(err))
		})
	}
}

func TestDecodeDNSRecordTooShort(t *testing.T) {
	_, err := DecodeDNSRecord([]byte{0x01, 0x02, 0x03})
	require.Error(t, err)
	assert.True(t, adldap.IsInvalidInput(err))
}

func TestDecodeDNSRecordUnknownTypeFallsBackToRaw(t *testing.T) {
	// An SOA record has no text decoder; listing must still succeed.
	rdata := []byte{0xde, 0xad, 0xbe, 0xef}
	raw := make([]byte, dnsHeaderLen+len(rdata))
	binary.LittleEndian.PutUint16(raw[0:2], uint16(len(rdata)))
	binary.LittleEndian.PutUint16(raw[2:4], dnsTypeSOA)
	raw[4] = dnsRecordVersion
	raw[5] = dnsRecordRank
	binary.BigEndian.PutUint32(raw[12:16], 900)
	copy(raw[dnsHeaderLen:], rdata)

	rec, err := DecodeDNSRecord(raw)
	require.NoError(t, err)
	assert.True(t, rec.Raw)
	assert.Equal(t, "SOA", rec.Type)
	assert.Equal(t, hex.EncodeToString(rdata), rec.Value)
	assert.Equal(t, uint32(900), rec.TTL)
}

func TestDecodeDNSRecordCorruptRDataFallsBackToRaw(t *testing.T) {
	raw, err := EncodeDNSRecord("CNAME", "web.example.com", 600, 0)
	require.NoError(t, err)
	// Truncate the counted name mid-label.
	raw = raw[:dnsHeaderLen+3]
	binary.LittleEndian.PutUint16(raw[0:2], 3)

	rec, err := DecodeDNSRecord(raw)
	require.NoError(t, err)
	assert.True(t, rec.Raw)
}

func TestCountedNameRejectsLongLabel(t *testing.T) {
	label := make([]byte, 64)
	for i := range label {
		label[i] = 'a'
	}
	_, err := EncodeDNSRecord("CNAME", string(label)+".example.com", 600, 0)
	require.Error(t, err)
	assert.True(t, adldap.IsInvalidInput(err))
}

func TestDNSTypeName(t *testing.T) {
	assert.Equal(t, "A", DNSTypeName(1))
	assert.Equal(t, "SRV", DNSTypeName(33))
	assert.Equal(t, "TYPE99", DNSTypeName(99))
}
