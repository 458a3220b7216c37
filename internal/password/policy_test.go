package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func violationRules(violations []Violation) []string {
	var rules []string
	for _, v := range violations {
		rules = append(rules, v.Rule)
	}
	return rules
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name     string
		password string
		want     []string
	}{
		{
			name:     "valid",
			password: "Str0ng&LongEnough!",
			want:     nil,
		},
		{
			name:     "empty reports every rule",
			password: "",
			want:     []string{RuleLength, RuleUpper, RuleLower, RuleDigit, RuleSpecial},
		},
		{
			name:     "too short only",
			password: "Ab1!xyz",
			want:     []string{RuleLength},
		},
		{
			name:     "missing upper",
			password: "no-upper-here-123!",
			want:     []string{RuleUpper},
		},
		{
			name:     "missing digit and special",
			password: "OnlyLettersInHere",
			want:     []string{RuleDigit, RuleSpecial},
		},
		{
			name:     "exactly minimum length",
			password: "Abcdefghijk1234",
			want:     []string{RuleSpecial},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Validate(tc.password)
			assert.Equal(t, tc.want, violationRules(got))
		})
	}
}

func TestGenerateSatisfiesPolicy(t *testing.T) {
	for i := 0; i < 50; i++ {
		pw, err := Generate(DefaultGenerateLength)
		require.NoError(t, err)
		assert.Len(t, pw, DefaultGenerateLength)
		assert.Empty(t, Validate(pw), "generated password %q violates policy", pw)
	}
}

func TestGenerateRaisesShortLength(t *testing.T) {
	pw, err := Generate(4)
	require.NoError(t, err)
	assert.Len(t, pw, DefaultGenerateLength)
}

func TestGenerateCustomLength(t *testing.T) {
	pw, err := Generate(32)
	require.NoError(t, err)
	assert.Len(t, pw, 32)
	assert.Empty(t, Validate(pw))
}
