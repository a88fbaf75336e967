package validation

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	PasswordMinLen = 8
	PasswordMaxLen = 16
	passwordSpecial = `!@#$%^&*(),.?":{}|<>`
)

// PasswordViolations lists every password policy rule pw breaks.  An
// empty result means the password is acceptable.
func PasswordViolations(pw string) []string {
	var out []string
	if n := utf8.RuneCountInString(pw); n < PasswordMinLen || n > PasswordMaxLen {
		out = append(out, "must be between 8 and 16 characters")
	}
	var upper, lower, digit, special bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordSpecial, r):
			special = true
		}
	}
	if !upper {
		out = append(out, "must contain an uppercase letter")
	}
	if !lower {
		out = append(out, "must contain a lowercase letter")
	}
	if !digit {
		out = append(out, "must contain a digit")
	}
	if !special {
		out = append(out, "must contain a special character")
	}
	return out
}
