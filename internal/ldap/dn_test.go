package ldap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeDN(t *testing.T) {
	testCases := []struct {
		name string
		dn   string
	}{
		{name: "simple", dn: "CN=John Doe,OU=Staff,DC=example,DC=com"},
		{name: "escaped comma", dn: "CN=Doe\\, John,OU=Staff,DC=example,DC=com"},
		{name: "unicode", dn: "CN=Jörg Müller,OU=München,DC=example,DC=de"},
		{name: "plus and slash bytes", dn: "CN=a+b/c?,DC=example,DC=com"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			encoded := EncodeDN(tc.dn)
			assert.NotContains(t, encoded, "/")
			assert.NotContains(t, encoded, "+")
			assert.NotContains(t, encoded, "=")

			decoded, err := DecodeDN(encoded)
			require.NoError(t, err)
			assert.Equal(t, tc.dn, decoded)
		})
	}
}

func TestDecodeDNPadded(t *testing.T) {
	// Clients sometimes send standard base64 with padding.
	decoded, err := DecodeDN(EncodeDN("DC=example") + "==")
	require.NoError(t, err)
	assert.Equal(t, "DC=example", decoded)
}

func TestDecodeDNInvalid(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{name: "not base64", input: "!!!not-base64!!!"},
		{name: "invalid utf8 payload", input: EncodeDN(string([]byte{0xff, 0xfe, 0x01}))},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeDN(tc.input)
			require.Error(t, err)
			assert.Equal(t, KindInvalidInput, KindOf(err))
		})
	}
}

func TestEscapeDNValue(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "plain", input: "JohnDoe", expected: "JohnDoe"},
		{name: "comma", input: "Doe, John", expected: "Doe\\, John"},
		{name: "plus", input: "a+b", expected: "a\\+b"},
		{name: "backslash", input: "a\\b", expected: "a\\\\b"},
		{name: "leading space", input: " John", expected: "\\ John"},
		{name: "trailing space", input: "John ", expected: "John\\ "},
		{name: "leading hash", input: "#John", expected: "\\#John"},
		{name: "angle brackets", input: "<cn>", expected: "\\<cn\\>"},
		{name: "empty", input: "", expected: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, EscapeDNValue(tc.input))
			assert.Equal(t, tc.input, UnescapeDNValue(EscapeDNValue(tc.input)))
		})
	}
}

func TestParentDN(t *testing.T) {
	testCases := []struct {
		name     string
		dn       string
		expected string
	}{
		{name: "user under ou", dn: "CN=John,OU=Staff,DC=example,DC=com", expected: "OU=Staff,DC=example,DC=com"},
		{name: "escaped comma in rdn", dn: "CN=Doe\\, John,OU=Staff,DC=example,DC=com", expected: "OU=Staff,DC=example,DC=com"},
		{name: "single rdn", dn: "DC=com", expected: ""},
		{name: "empty", dn: "", expected: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ParentDN(tc.dn))
		})
	}
}

func TestFirstRDNValue(t *testing.T) {
	assert.Equal(t, "John", FirstRDNValue("CN=John,OU=Staff,DC=example,DC=com"))
	assert.Equal(t, "Doe, John", FirstRDNValue("CN=Doe\\, John,DC=example"))
	assert.Equal(t, "", FirstRDNValue(""))
}
