package ldap

import (
	"strconv"
	"time"

	"github.com/go-ldap/ldap/v3"
)

// Windows FILETIME counts 100-nanosecond intervals since 1601-01-01.
// filetimeEpochDelta is the interval count between that epoch and the Unix
// epoch.
const filetimeEpochDelta = 116444736000000000

// Entry wraps a directory entry with typed attribute accessors. Missing
// attributes yield zero values; callers that must distinguish use Has.
type Entry struct {
	DN  string
	raw *ldap.Entry
}

func newEntry(e *ldap.Entry) *Entry {
	return &Entry{DN: e.DN, raw: e}
}

// NewEntry builds an Entry from a DN and attribute map. Tests and fakes use
// this to hand entries to code that normally receives them from a search.
func NewEntry(dn string, attributes map[string][]string) *Entry {
	raw := ldap.NewEntry(dn, attributes)
	return &Entry{DN: dn, raw: raw}
}

// Has reports whether the attribute is present on the entry.
func (e *Entry) Has(attribute string) bool {
	for _, a := range e.raw.Attributes {
		if a.Name == attribute {
			return true
		}
	}
	return false
}

// String returns the first value of the attribute, or "".
func (e *Entry) String(attribute string) string {
	return e.raw.GetAttributeValue(attribute)
}

// Strings returns all values of the attribute.
func (e *Entry) Strings(attribute string) []string {
	return e.raw.GetAttributeValues(attribute)
}

// Raw returns the first value of the attribute as bytes, or nil.
func (e *Entry) Raw(attribute string) []byte {
	return e.raw.GetRawAttributeValue(attribute)
}

// RawValues returns all values of the attribute as bytes.
func (e *Entry) RawValues(attribute string) [][]byte {
	return e.raw.GetRawAttributeValues(attribute)
}

// Int64 parses the first value of the attribute as a decimal integer.
// Unparseable or absent values return 0.
func (e *Entry) Int64(attribute string) int64 {
	v := e.String(attribute)
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// FileTime parses the first value of the attribute as a Windows FILETIME.
// The AD convention of 0 meaning "never set" returns the zero time.
func (e *Entry) FileTime(attribute string) time.Time {
	return FileTimeToTime(e.Int64(attribute))
}

// FileTimeToTime converts a Windows FILETIME value to a time.Time. Values
// of 0 or the AD "never" sentinel 0x7FFFFFFFFFFFFFFF return the zero time.
func FileTimeToTime(ft int64) time.Time {
	if ft <= 0 || ft == 0x7FFFFFFFFFFFFFFF {
		return time.Time{}
	}
	unixHundredNanos := ft - filetimeEpochDelta
	return time.Unix(unixHundredNanos/10000000, (unixHundredNanos%10000000)*100).UTC()
}

// FileTimeIntervalToDuration converts a FILETIME interval attribute such as
// maxPwdAge, which AD stores as a negative count of 100-nanosecond units,
// to a positive duration.
func FileTimeIntervalToDuration(interval int64) time.Duration {
	if interval < 0 {
		interval = -interval
	}
	return time.Duration(interval * 100)
}
