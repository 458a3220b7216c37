package ldap

import (
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"
)

// EncodeDN renders a distinguished name safe for use as a URL path segment.
// The encoding is unpadded URL-safe base64 of the UTF-8 DN.
func EncodeDN(dn string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(dn))
}

// DecodeDN reverses EncodeDN. Padded input is accepted. The decoded value
// must be valid UTF-8; anything else is rejected rather than passed on to
// the directory.
func DecodeDN(encoded string) (string, error) {
	if encoded == "" {
		return "", NewInvalidInputError("decode_dn", "empty encoded DN")
	}

	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(encoded, "="))
	if err != nil {
		return "", NewInvalidInputError("decode_dn", fmt.Sprintf("malformed encoded DN: %v", err))
	}
	if !utf8.Valid(decoded) {
		return "", NewInvalidInputError("decode_dn", "encoded DN is not valid UTF-8")
	}
	return string(decoded), nil
}

// EscapeDNValue escapes special characters in a DN attribute value according
// to RFC 4514:
//   - , + " \ < > ; are always escaped
//   - a leading # is escaped
//   - leading and trailing spaces are escaped
//   - NUL is escaped as \00
func EscapeDNValue(value string) string {
	if value == "" {
		return value
	}

	var result strings.Builder
	result.Grow(len(value) + 8)

	for i, r := range value {
		switch r {
		case ',', '+', '"', '\\', '<', '>', ';':
			result.WriteRune('\\')
			result.WriteRune(r)
		case '#':
			if i == 0 {
				result.WriteRune('\\')
			}
			result.WriteRune(r)
		case ' ':
			if i == 0 || i == len(value)-1 {
				result.WriteRune('\\')
			}
			result.WriteRune(r)
		case 0:
			result.WriteString("\\00")
		default:
			result.WriteRune(r)
		}
	}

	return result.String()
}

// UnescapeDNValue reverses EscapeDNValue, including \XX hex escapes.
func UnescapeDNValue(value string) string {
	if !strings.Contains(value, "\\") {
		return value
	}

	var result strings.Builder
	result.Grow(len(value))

	escaped := false
	hexBuffer := make([]rune, 0, 2)

	for i, r := range value {
		if escaped {
			if isHexDigit(r) {
				hexBuffer = append(hexBuffer, r)
				if len(hexBuffer) == 2 {
					result.WriteRune(rune(hexValue(hexBuffer[0])<<4 | hexValue(hexBuffer[1])))
					hexBuffer = hexBuffer[:0]
					escaped = false
				}
				continue
			}

			// One hex digit followed by a non-hex rune was not a hex
			// escape after all.
			if len(hexBuffer) > 0 {
				result.WriteRune('\\')
				result.WriteRune(hexBuffer[0])
				hexBuffer = hexBuffer[:0]
			}

			result.WriteRune(r)
			escaped = false
		} else if r == '\\' {
			if i == len(value)-1 {
				// Trailing backslash is not a valid escape, keep it.
				result.WriteRune(r)
			} else {
				escaped = true
			}
		} else {
			result.WriteRune(r)
		}
	}

	if escaped {
		result.WriteRune('\\')
	}
	for _, h := range hexBuffer {
		result.WriteRune(h)
	}

	return result.String()
}

// ParentDN returns the DN with its first RDN removed, honoring escaped
// commas. The empty string is returned when the DN has no parent.
func ParentDN(dn string) string {
	escaped := false
	for i, r := range dn {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			escaped = true
		case ',':
			return strings.TrimSpace(dn[i+1:])
		}
	}
	return ""
}

// FirstRDNValue extracts the value of the leading RDN, unescaped. For
// "CN=Doe\, Jane,OU=People,DC=example,DC=com" it returns "Doe, Jane".
func FirstRDNValue(dn string) string {
	eq := strings.Index(dn, "=")
	if eq < 0 {
		return ""
	}

	rest := dn[eq+1:]
	end := len(rest)
	escaped := false
	for i, r := range rest {
		if escaped {
			escaped = false
			continue
		}
		if r == '\\' {
			escaped = true
			continue
		}
		if r == ',' {
			end = i
			break
		}
	}

	return UnescapeDNValue(strings.TrimSpace(rest[:end]))
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func hexValue(r rune) int {
	switch {
	case r >= '0' && r <= '9':
		return int(r - '0')
	case r >= 'a' && r <= 'f':
		return int(r-'a') + 10
	default:
		return int(r-'A') + 10
	}
}
