package ldap

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/google/uuid"
)

// Active Directory stores objectGUID in a mixed-endian layout: the first
// three groups are little-endian, the final eight bytes keep their order.

// GUIDFromBytes converts objectGUID bytes to the canonical hyphenated string.
func GUIDFromBytes(guidBytes []byte) (string, error) {
	if len(guidBytes) != 16 {
		return "", fmt.Errorf("invalid GUID length: expected 16 bytes, got %d", len(guidBytes))
	}

	standard := make([]byte, 16)
	standard[0], standard[1], standard[2], standard[3] = guidBytes[3], guidBytes[2], guidBytes[1], guidBytes[0]
	standard[4], standard[5] = guidBytes[5], guidBytes[4]
	standard[6], standard[7] = guidBytes[7], guidBytes[6]
	copy(standard[8:], guidBytes[8:])

	u, err := uuid.FromBytes(standard)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// GUIDToBytes converts a canonical GUID string to objectGUID bytes.
func GUIDToBytes(guidString string) ([]byte, error) {
	u, err := uuid.Parse(strings.TrimSpace(guidString))
	if err != nil {
		return nil, fmt.Errorf("invalid GUID %q: %w", guidString, err)
	}

	standard := u[:]
	adBytes := make([]byte, 16)
	adBytes[0], adBytes[1], adBytes[2], adBytes[3] = standard[3], standard[2], standard[1], standard[0]
	adBytes[4], adBytes[5] = standard[5], standard[4]
	adBytes[6], adBytes[7] = standard[7], standard[6]
	copy(adBytes[8:], standard[8:])
	return adBytes, nil
}

// GUIDFilter builds a search filter matching an object by its GUID.
func GUIDFilter(guidString string) (string, error) {
	adBytes, err := GUIDToBytes(guidString)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(objectGUID=%s)", ldap.EscapeFilter(string(adBytes))), nil
}

// GUIDHexFilter builds a GUID search filter with per-byte hex escapes, the
// form some directory implementations require.
func GUIDHexFilter(guidString string) (string, error) {
	adBytes, err := GUIDToBytes(guidString)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, by := range adBytes {
		b.WriteString("\\")
		b.WriteString(hex.EncodeToString([]byte{by}))
	}
	return fmt.Sprintf("(objectGUID=%s)", b.String()), nil
}

// EntryGUID extracts the objectGUID of an entry as a canonical string, or
// "" when absent or malformed.
func EntryGUID(entry *Entry) string {
	raw := entry.Raw("objectGUID")
	if len(raw) != 16 {
		return ""
	}
	s, err := GUIDFromBytes(raw)
	if err != nil {
		return ""
	}
	return s
}
