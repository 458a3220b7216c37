// Package password implements the password complexity policy and a
// generator that always satisfies it.
package password

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"unicode"
)

// Policy constants. The minimum length is deliberately above common
// directory defaults; raising it here does not relax what the directory
// itself enforces.
const (
	MinLength             = 15
	DefaultGenerateLength = 20
)

// SpecialChars is the set of characters the "special" class accepts, and
// the pool the generator draws specials from.
const SpecialChars = "!@#$%^&*()-_=+[]{}|;:,.<>?"

const (
	upperChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerChars = "abcdefghijklmnopqrstuvwxyz"
	digitChars = "0123456789"
)

// Rule identifiers reported by Validate.
const (
	RuleLength  = "length"
	RuleUpper   = "upper"
	RuleLower   = "lower"
	RuleDigit   = "digit"
	RuleSpecial = "special"
)

// Violation describes one failed policy rule.
type Violation struct {
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Validate checks password against every rule independently and returns all
// violations, never just the first. An empty slice means the password
// satisfies the policy.
func Validate(password string) []Violation {
	var violations []Violation

	if len(password) < MinLength {
		violations = append(violations, Violation{
			Rule:    RuleLength,
			Message: fmt.Sprintf("password must be at least %d characters", MinLength),
		})
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(SpecialChars, r):
			hasSpecial = true
		}
	}

	if !hasUpper {
		violations = append(violations, Violation{Rule: RuleUpper, Message: "password must contain an uppercase letter"})
	}
	if !hasLower {
		violations = append(violations, Violation{Rule: RuleLower, Message: "password must contain a lowercase letter"})
	}
	if !hasDigit {
		violations = append(violations, Violation{Rule: RuleDigit, Message: "password must contain a digit"})
	}
	if !hasSpecial {
		violations = append(violations, Violation{Rule: RuleSpecial, Message: "password must contain a special character"})
	}

	return violations
}

// Generate returns a random password of the given length that satisfies the
// policy. Lengths below MinLength are raised to DefaultGenerateLength. One
// character from each class is guaranteed, the rest are drawn from the
// combined pool, and the result is shuffled so the guaranteed characters do
// not sit at fixed positions. All randomness is crypto/rand.
func Generate(length int) (string, error) {
	if length < MinLength {
		length = DefaultGenerateLength
	}

	pool := upperChars + lowerChars + digitChars + SpecialChars

	chars := make([]byte, 0, length)
	for _, class := range []string{upperChars, lowerChars, digitChars, SpecialChars} {
		c, err := randomChar(class)
		if err != nil {
			return "", err
		}
		chars = append(chars, c)
	}
	for len(chars) < length {
		c, err := randomChar(pool)
		if err != nil {
			return "", err
		}
		chars = append(chars, c)
	}

	// Fisher-Yates with crypto/rand indices.
	for i := len(chars) - 1; i > 0; i-- {
		j, err := randomInt(i + 1)
		if err != nil {
			return "", err
		}
		chars[i], chars[j] = chars[j], chars[i]
	}

	return string(chars), nil
}

func randomChar(pool string) (byte, error) {
	i, err := randomInt(len(pool))
	if err != nil {
		return 0, err
	}
	return pool[i], nil
}

func randomInt(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("random source failed: %w", err)
	}
	return int(v.Int64()), nil
}
