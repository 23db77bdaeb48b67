package cache

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PreserveLiteral is the textual form of the Preserve policy
const PreserveLiteral = "preserve"

const day = 24 * time.Hour

// MaxAge is the freshness policy for cached entries. The zero value is Disabled.
//
//   - Disabled: every lookup is a miss, even right after a Put.
//   - Preserve: any existing entry is fresh regardless of its age.
//   - Days(n):  an entry is fresh while its age is at most n days.
type MaxAge struct {
	days     int
	preserve bool
}

// Disabled returns the policy that never reuses cached entries
func Disabled() MaxAge { return MaxAge{} }

// Preserve returns the policy that reuses any cached entry forever
func Preserve() MaxAge { return MaxAge{preserve: true} }

// Days returns an age-bounded policy. n <= 0 is Disabled.
func Days(n int) MaxAge {
	if n <= 0 {
		return Disabled()
	}
	return MaxAge{days: n}
}

// ParseMaxAge parses "preserve" or a non-negative number of days
func ParseMaxAge(s string) (MaxAge, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == PreserveLiteral {
		return Preserve(), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return MaxAge{}, fmt.Errorf("max age must be %q or a number of days, got %q", PreserveLiteral, s)
	}
	if n < 0 {
		return MaxAge{}, fmt.Errorf("max age must not be negative, got %d", n)
	}
	return Days(n), nil
}

// IsDisabled reports whether the policy always requires a refetch
func (m MaxAge) IsDisabled() bool { return !m.preserve && m.days == 0 }

// IsPreserve reports whether the policy ignores entry age
func (m MaxAge) IsPreserve() bool { return m.preserve }

// Duration returns the age bound. It is zero for Disabled and Preserve.
func (m MaxAge) Duration() time.Duration {
	return time.Duration(m.days) * day
}

// Fresh reports whether an entry of the given age may be reused
func (m MaxAge) Fresh(age time.Duration) bool {
	switch {
	case m.preserve:
		return true
	case m.days == 0:
		return false
	default:
		return age <= m.Duration()
	}
}

// String implements fmt.Stringer and pflag.Value
func (m MaxAge) String() string {
	if m.preserve {
		return PreserveLiteral
	}
	return strconv.Itoa(m.days)
}

// Set implements pflag.Value
func (m *MaxAge) Set(s string) error {
	parsed, err := ParseMaxAge(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Type implements pflag.Value
func (m *MaxAge) Type() string {
	return "maxAge"
}
