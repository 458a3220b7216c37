package ldap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFileTimeToTime(t *testing.T) {
	testCases := []struct {
		name string
		ft   int64
		want time.Time
	}{
		{name: "zero means never", ft: 0, want: time.Time{}},
		{name: "max means never", ft: 0x7FFFFFFFFFFFFFFF, want: time.Time{}},
		{name: "windows epoch", ft: filetimeEpochDelta, want: time.Unix(0, 0).UTC()},
		// 2021-01-01T00:00:00Z in 100ns intervals since 1601.
		{name: "known instant", ft: 132539328000000000, want: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := FileTimeToTime(tc.ft)
			if tc.want.IsZero() {
				assert.True(t, got.IsZero())
			} else {
				assert.True(t, tc.want.Equal(got), "want %v, got %v", tc.want, got)
			}
		})
	}
}

func TestFileTimeIntervalToDuration(t *testing.T) {
	// maxPwdAge is stored as a negative 100ns interval.
	ninetyDays := int64(-90 * 24 * int64(time.Hour) / 100)
	assert.Equal(t, 90*24*time.Hour, FileTimeIntervalToDuration(ninetyDays))
	assert.Equal(t, time.Duration(0), FileTimeIntervalToDuration(0))
}

func TestEntryAccessors(t *testing.T) {
	entry := NewEntry("CN=John,DC=example,DC=com", map[string][]string{
		"sAMAccountName":     {"jdoe"},
		"memberOf":           {"CN=A,DC=example,DC=com", "CN=B,DC=example,DC=com"},
		"userAccountControl": {"512"},
	})

	assert.Equal(t, "CN=John,DC=example,DC=com", entry.DN)
	assert.True(t, entry.Has("sAMAccountName"))
	assert.False(t, entry.Has("mail"))
	assert.Equal(t, "jdoe", entry.String("sAMAccountName"))
	assert.Equal(t, "", entry.String("mail"))
	assert.Len(t, entry.Strings("memberOf"), 2)
	assert.Equal(t, int64(512), entry.Int64("userAccountControl"))
	assert.Equal(t, int64(0), entry.Int64("missing"))
}
