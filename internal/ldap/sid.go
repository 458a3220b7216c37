package ldap

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/go-objectsid"
)

// SIDFromBytes converts a binary objectSid value to its S-1-5-... string form.
func SIDFromBytes(binarySID []byte) (string, error) {
	if len(binarySID) == 0 {
		return "", fmt.Errorf("binary SID cannot be empty")
	}
	sid := objectsid.Decode(binarySID)
	return sid.String(), nil
}

// EntrySID extracts the objectSid of an entry as a string, or "" when
// absent or malformed.
func EntrySID(entry *Entry) string {
	raw := entry.Raw("objectSid")
	if len(raw) == 0 {
		return ""
	}
	s, err := SIDFromBytes(raw)
	if err != nil {
		return ""
	}
	return s
}

// SIDRelativeID returns the final sub-authority of a SID string, the RID
// that AD uses in primaryGroupID references.
func SIDRelativeID(sidString string) (int64, bool) {
	idx := strings.LastIndex(sidString, "-")
	if idx < 0 || idx == len(sidString)-1 {
		return 0, false
	}
	var rid int64
	for _, r := range sidString[idx+1:] {
		if r < '0' || r > '9' {
			return 0, false
		}
		rid = rid*10 + int64(r-'0')
	}
	return rid, true
}
