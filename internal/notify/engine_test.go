package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/isometry/admanager/internal/directory"
)

var sweepTime = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

func expiryUser(pwdSetDaysAgo int) *directory.User {
	return &directory.User{
		DN:              "CN=John,DC=example,DC=com",
		Enabled:         true,
		PasswordLastSet: sweepTime.AddDate(0, 0, -pwdSetDaysAgo),
	}
}

func TestDaysRemaining(t *testing.T) {
	engine := &Engine{now: func() time.Time { return sweepTime }}
	maxAge := 90 * 24 * time.Hour

	testCases := []struct {
		name     string
		user     *directory.User
		wantDays int
		wantOK   bool
	}{
		{name: "set 60 days ago leaves 30", user: expiryUser(60), wantDays: 30, wantOK: true},
		{name: "set 89 days ago leaves 1", user: expiryUser(89), wantDays: 1, wantOK: true},
		{name: "expired", user: expiryUser(90), wantOK: false},
		{name: "long expired", user: expiryUser(200), wantOK: false},
		{name: "fresh password", user: expiryUser(0), wantDays: 90, wantOK: true},
		{
			name: "never expires",
			user: &directory.User{
				Enabled:              true,
				PasswordNeverExpires: true,
				PasswordLastSet:      sweepTime.AddDate(0, 0, -60),
			},
			wantOK: false,
		},
		{
			name: "disabled account",
			user: &directory.User{
				Enabled:         false,
				PasswordLastSet: sweepTime.AddDate(0, 0, -60),
			},
			wantOK: false,
		},
		{
			name:   "password never set",
			user:   &directory.User{Enabled: true},
			wantOK: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			days, ok := engine.daysRemaining(tc.user, maxAge, engine.now())
			assert.Equal(t, tc.wantOK, ok)
			if tc.wantOK {
				assert.Equal(t, tc.wantDays, days)
			}
		})
	}
}

func TestMatchThresholdExact(t *testing.T) {
	thresholds := []int{30, 14, 7, 3, 1}

	testCases := []struct {
		days      int
		wantMatch bool
		want      int
	}{
		{days: 30, wantMatch: true, want: 30},
		{days: 14, wantMatch: true, want: 14},
		{days: 1, wantMatch: true, want: 1},
		// A missed threshold day does not fire late.
		{days: 31, wantMatch: false},
		{days: 29, wantMatch: false},
		{days: 13, wantMatch: false},
		{days: 0, wantMatch: false},
	}

	for _, tc := range testCases {
		threshold, ok := matchThreshold(tc.days, thresholds)
		assert.Equal(t, tc.wantMatch, ok, "days=%d", tc.days)
		if tc.wantMatch {
			assert.Equal(t, tc.want, threshold)
		}
	}
}

func TestRenderTemplate(t *testing.T) {
	out, err := render("test", "Hello {{.DisplayName}}, {{.DaysRemaining}} days left (expires {{.ExpiresAt}})", TemplateData{
		DisplayName:   "John Doe",
		DaysRemaining: 14,
		ExpiresAt:     "Monday, 15 June 2025",
	})
	assert.NoError(t, err)
	assert.Equal(t, "Hello John Doe, 14 days left (expires Monday, 15 June 2025)", out)
}

func TestRenderTemplateBadSyntax(t *testing.T) {
	_, err := render("test", "Hello {{.Broken", TemplateData{})
	assert.Error(t, err)
}
