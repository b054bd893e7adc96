// Package validation implements the input gate: every externally supplied
// free-text field passes Validate and Sanitize before it reaches persistence
// or rendering. The deny-list is a secondary defense layered on top of
// parameterized queries and encoded output, not the sole control.
package validation

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxInputLength caps any single free-text field, counted in runes so
// multi-byte input is measured the way users perceive it.
const MaxInputLength = 255

var (
	ErrEmptyInput     = errors.New("input is empty")
	ErrInputTooLong   = errors.New("input exceeds maximum length")
	ErrDeniedPattern  = errors.New("input matches a denied pattern")
	ErrInvalidPattern = errors.New("invalid deny-list pattern")
)

// denyPatterns covers markup injection, query injection and path traversal.
// Matching is case-insensitive. Inherently incomplete against novel
// encodings; the store still uses parameterized queries regardless.
var denyPatterns = []string{
	`<script[^>]*>.*?</script>`,
	`javascript:`,
	`on\w+\s*=`,
	`eval\s*\(`,
	`expression\s*\(`,
	`vbscript:`,
	`data:text/html`,
	`<iframe[^>]*>.*?</iframe>`,
	`<object[^>]*>.*?</object>`,
	`<embed[^>]*>.*?</embed>`,
	`<link[^>]*>`,
	`<meta[^>]*>`,
	`<style[^>]*>.*?</style>`,
	`--`,
	`/\*`,
	`\*/`,
	`;\s*(drop|delete|insert|update|create|alter|exec|execute)`,
	`union\s+select`,
	`1\s*=\s*1`,
	`'\s*or\s*'`,
	`\|\|`,
	`&&`,
	`\.\./`,
}

var controlChars = regexp.MustCompile("[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]")

var entityReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"/", "&#x2F;",
	`\`, "&#x5C;",
	"`", "&#x60;",
)

// Gate validates and sanitizes untrusted text against an immutable pattern
// list compiled once at construction. Methods are pure and safe for
// concurrent use.
type Gate struct {
	patterns []*regexp.Regexp
}

// NewGate compiles the built-in deny-list plus any extra patterns from
// configuration. Extra patterns that fail to compile abort startup rather
// than silently weakening the gate.
func NewGate(extraPatterns ...string) (*Gate, error) {
	all := make([]string, 0, len(denyPatterns)+len(extraPatterns))
	all = append(all, denyPatterns...)
	for _, p := range extraPatterns {
		if p = strings.TrimSpace(p); p != "" {
			all = append(all, p)
		}
	}

	compiled := make([]*regexp.Regexp, 0, len(all))
	for _, p := range all {
		re, err := regexp.Compile(`(?is)` + p)
		if err != nil {
			return nil, errors.Join(ErrInvalidPattern, err)
		}
		compiled = append(compiled, re)
	}
	return &Gate{patterns: compiled}, nil
}

// Validate rejects blank input, input over MaxInputLength characters, and
// input matching any denied pattern. The returned error never includes the
// input itself.
func (g *Gate) Validate(input string) error {
	if strings.TrimSpace(input) == "" {
		return ErrEmptyInput
	}
	if utf8.RuneCountInString(input) > MaxInputLength {
		return ErrInputTooLong
	}
	for _, re := range g.patterns {
		if re.MatchString(input) {
			return ErrDeniedPattern
		}
	}
	return nil
}

// Sanitize trims whitespace, truncates to MaxInputLength, HTML-entity-encodes
// characters significant in markup, and strips ASCII control characters. The
// result is safe to embed in an HTML text context; it is not a substitute
// for parameterized persistence.
func (g *Gate) Sanitize(input string) string {
	input = strings.TrimSpace(input)
	if utf8.RuneCountInString(input) > MaxInputLength {
		// Truncate on a rune boundary so the result stays valid UTF-8.
		input = string([]rune(input)[:MaxInputLength])
	}
	input = entityReplacer.Replace(input)
	return controlChars.ReplaceAllString(input, "")
}
