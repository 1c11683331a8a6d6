// Package validation holds the registration form predicates. They are
// evaluated on every keystroke and never fail: bad input is just false.
package validation

import "regexp"

// Indexes into the result of PasswordChecks.
const (
	CheckLength = iota
	CheckMixedCase
	CheckDigit
	CheckSymbol
)

// Symbols accepted by the symbol rule.
const Symbols = `-+_!@#$%^&*., ?`

var (
	phonePattern  = regexp.MustCompile(`^01[016789]-?[0-9]{3,4}-?[0-9]{4}$`)
	lengthPattern = regexp.MustCompile(`^.{8,20}$`)
	lowerPattern  = regexp.MustCompile(`[a-z]`)
	upperPattern  = regexp.MustCompile(`[A-Z]`)
	digitPattern  = regexp.MustCompile(`[0-9]`)
	symbolPattern = regexp.MustCompile(`[` + regexp.QuoteMeta(Symbols) + `]`)
)

// NameValid reports whether a name was entered.
func NameValid(s string) bool {
	return s != ""
}

// PhoneValid reports whether s is a Korean mobile number, with or without dashes.
func PhoneValid(s string) bool {
	return phonePattern.MatchString(s)
}

// PasswordChecks evaluates every password rule independently so the UI can
// show per-rule feedback.
func PasswordChecks(s string) [4]bool {
	var checks [4]bool
	checks[CheckLength] = lengthPattern.MatchString(s)
	checks[CheckMixedCase] = lowerPattern.MatchString(s) && upperPattern.MatchString(s)
	checks[CheckDigit] = digitPattern.MatchString(s)
	checks[CheckSymbol] = symbolPattern.MatchString(s)
	return checks
}

// AllPassed reports whether every password rule holds.
func AllPassed(checks [4]bool) bool {
	for _, ok := range checks {
		if !ok {
			return false
		}
	}
	return true
}

// ConfirmValid reports whether the confirmation matches the password exactly.
func ConfirmValid(password, confirm string) bool {
	return password == confirm
}
