package postcode

import (
	"regexp"
	"strings"
)

// Outward code is one or two letters, one or two digits and an optional letter;
// inward code is a digit and two letters. GIR 0AA is the one historic exception.
var ukPostcode = regexp.MustCompile(`^(?:[A-Z]{1,2}[0-9]{1,2}[A-Z]?[0-9][A-Z]{2}|GIR0AA)$`)

// IsValid reports whether text is lexically a UK postcode. It does not check the postcode exists.
func IsValid(text string) bool {
	return ukPostcode.MatchString(Normalize(text))
}

// Normalize upper-cases text and removes all whitespace.
func Normalize(text string) string {
	return strings.ToUpper(strings.Join(strings.Fields(text), ""))
}
