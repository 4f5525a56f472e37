package logging

import "regexp"

// DefaultPlaceholder replaces every redacted secret.
const DefaultPlaceholder = "[REDACTED]"

// Sanitizer redacts secrets from log text.
type Sanitizer struct {
	patterns []*regexp.Regexp
	redacted string
}

// NewSanitizer creates a sanitizer with the default patterns.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{
		patterns: defaultPatterns(),
		redacted: DefaultPlaceholder,
	}
}

func defaultPatterns() []*regexp.Regexp {
	patterns := []string{
		// Devin API keys
		`apk_(?:user_)?[A-Za-z0-9_-]{16,}`,
		// Bearer tokens
		`(?i)bearer\s+[A-Za-z0-9._~+/=-]{16,}`,
		// GitHub tokens
		`gh[pousr]_[A-Za-z0-9]{36}`,
		// Generic api keys
		`(?i)api[_-]?key["'\s:=]+[A-Za-z0-9_-]{16,}`,
		// Generic tokens
		`(?i)token["'\s:=]+[A-Za-z0-9_-]{20,}`,
		// Generic passwords
		`(?i)password["'\s:=]+[^\s"']{8,}`,
	}

	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(p))
	}
	return compiled
}

// Sanitize replaces every match of every pattern with the placeholder.
func (s *Sanitizer) Sanitize(input string) string {
	result := input
	for _, pattern := range s.patterns {
		result = pattern.ReplaceAllString(result, s.redacted)
	}
	return result
}

// addPattern adds a custom pattern.
func (s *Sanitizer) addPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	s.patterns = append(s.patterns, re)
	return nil
}

// MaskKey shortens a secret for display: the first 10 characters followed by
// "...". Keys of 10 characters or fewer are masked completely.
func MaskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 10 {
		return "***"
	}
	return key[:10] + "..."
}
