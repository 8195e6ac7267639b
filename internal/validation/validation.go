// Package validation provides centralized input validation for wavebuf.
package validation

import (
	"fmt"
	"strings"
	"unicode"
)

// =============================================================================
// Channel ID Validation
// =============================================================================

// ChannelRules defines the validation rules for channel identifiers.
type ChannelRules struct {
	MinLength    int
	MaxLength    int
	AllowDots    bool
	AllowHyphens bool
	AllowUnders  bool
}

// DefaultChannelRules returns the default rules for channel identifiers.
// Dotted identifiers in the NET.STA.LOC.CHA convention are accepted, as
// are plain alphanumeric names.
func DefaultChannelRules() ChannelRules {
	return ChannelRules{
		MinLength:    1,
		MaxLength:    64,
		AllowDots:    true,
		AllowHyphens: true,
		AllowUnders:  true,
	}
}

// ValidateChannelID validates a channel identifier according to the rules.
func ValidateChannelID(id string, rules ChannelRules) error {
	if len(id) < rules.MinLength {
		return fmt.Errorf("channel id too short: minimum %d characters required", rules.MinLength)
	}
	if len(id) > rules.MaxLength {
		return fmt.Errorf("channel id too long: maximum %d characters allowed", rules.MaxLength)
	}

	// Empty location codes make ".." legal mid-identifier (NET.STA..CHA),
	// but a leading dot is always malformed.
	if strings.HasPrefix(id, ".") {
		return fmt.Errorf("channel id cannot start with '.'")
	}

	for i, r := range id {
		if r < 32 || r == 127 {
			return fmt.Errorf("channel id cannot contain control characters at position %d", i)
		}
		if r == '/' || r == '\\' {
			return fmt.Errorf("channel id cannot contain path separators at position %d", i)
		}
		if !isAllowedChannelChar(r, rules) {
			return fmt.Errorf("invalid character '%c' at position %d", r, i)
		}
	}

	return nil
}

func isAllowedChannelChar(r rune, rules ChannelRules) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case '.':
		return rules.AllowDots
	case '-':
		return rules.AllowHyphens
	case '_':
		return rules.AllowUnders
	}
	return false
}

// ValidateChannel validates a channel identifier with default rules.
func ValidateChannel(id string) error {
	return ValidateChannelID(id, DefaultChannelRules())
}

// =============================================================================
// Sample Rate Validation
// =============================================================================

// MaxSampleRate is the highest accepted sampling rate in Hz. Rates above
// this are almost certainly unit confusion in upstream metadata.
const MaxSampleRate = 100000.0

// ValidateSampleRate validates a sampling rate in samples per second.
func ValidateSampleRate(rate float64) error {
	if rate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %g", rate)
	}
	if rate > MaxSampleRate {
		return fmt.Errorf("sample rate %g exceeds maximum %g Hz", rate, MaxSampleRate)
	}
	return nil
}
