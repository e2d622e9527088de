package auth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// TokenKind is the closed classification of a raw bearer credential's shape.
type TokenKind string

const (
	TokenStructured          TokenKind = "structured"
	TokenDirectIdentifier    TokenKind = "direct_identifier"
	TokenDevelopmentShortcut TokenKind = "development_shortcut"
)

// AllTokenKinds returns every kind ClassifyToken can produce.
func AllTokenKinds() []TokenKind {
	return []TokenKind{TokenStructured, TokenDirectIdentifier, TokenDevelopmentShortcut}
}

const (
	// DevTokenPrefix marks a development shortcut token ("dev:ops@example.com").
	DevTokenPrefix = "dev:"
	// StructuredTokenPrefix is the base64url encoding of `{"`, the start of every JSON header.
	StructuredTokenPrefix = "eyJ"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ClassifyToken maps a raw bearer string to exactly one TokenKind by shape alone.
// Unrecognized input, including the empty string, is Structured so it reaches the strictest verifier.
func ClassifyToken(raw string) TokenKind {
	tok := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(tok, DevTokenPrefix):
		return TokenDevelopmentShortcut
	case strings.HasPrefix(tok, StructuredTokenPrefix):
		return TokenStructured
	case IsEmail(tok):
		return TokenDirectIdentifier
	default:
		return TokenStructured
	}
}

// IsEmail reports whether s has a basic email shape: local@domain.tld with no whitespace.
func IsEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// IsStructuredToken validates the structure of a purported signed credential:
// exactly three non-empty dot-separated segments and a header that decodes to a JSON object.
func IsStructuredToken(raw string) bool {
	parts := strings.Split(strings.TrimSpace(raw), ".")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	header, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[0], "="))
	if err != nil {
		return false
	}
	var obj map[string]any
	return json.Unmarshal(header, &obj) == nil
}

// ExtractEmailFromDevToken returns the email embedded in a development shortcut token.
// It reports false when the prefix is missing or the remainder is not an email.
func ExtractEmailFromDevToken(raw string) (string, bool) {
	tok := strings.TrimSpace(raw)
	if !strings.HasPrefix(tok, DevTokenPrefix) {
		return "", false
	}
	email := tok[len(DevTokenPrefix):]
	if !IsEmail(email) {
		return "", false
	}
	return email, true
}

// DescribeToken renders a logging-safe description that never contains the full token.
func DescribeToken(raw string) string {
	tok := strings.TrimSpace(raw)
	if tok == "" {
		return "empty token"
	}
	switch ClassifyToken(tok) {
	case TokenDevelopmentShortcut:
		if email, ok := ExtractEmailFromDevToken(tok); ok {
			return "development token for " + MaskEmail(email)
		}
		return fmt.Sprintf("malformed development token (len=%d)", len(tok))
	case TokenDirectIdentifier:
		return "direct identifier " + MaskEmail(tok)
	case TokenStructured:
		return fmt.Sprintf("structured token (len=%d, segments=%d)", len(tok), strings.Count(tok, ".")+1)
	default:
		return fmt.Sprintf("opaque token (len=%d)", len(tok))
	}
}

// MaskEmail keeps the first two characters of the local part and the full domain.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return "***"
	}
	local, domain := []rune(email[:at]), email[at+1:]
	if len(local) > 2 {
		local = local[:2]
	}
	return string(local) + "***@" + domain
}
