package auth

import (
	"regexp"
	"strings"
	"unicode"

	pkgerrors "github.com/laglue/storefront/pkg/errors"
)

const countryCode = "237"

var (
	internationalRe = regexp.MustCompile(`^237[6-9]\d{8}$`)
	localRe         = regexp.MustCompile(`^[6-9]\d{8}$`)
)

// ErrInvalidPhone is returned for numbers outside the accepted Cameroon shapes.
var ErrInvalidPhone = pkgerrors.New(pkgerrors.CodeValidation, "Numéro WhatsApp invalide")

// clean drops whitespace of any kind (pasted numbers carry no-break spaces
// and carriage returns) and the usual separators.
func clean(raw string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r), r == '\ufeff':
			return -1
		case r == '-', r == '+', r == '(', r == ')':
			return -1
		}
		return r
	}, raw)
}

// ValidPhone reports whether raw is a Cameroon mobile number in the
// international (with or without +) or local 9-digit form.
func ValidPhone(raw string) bool {
	cleaned := clean(raw)
	return internationalRe.MatchString(cleaned) || localRe.MatchString(cleaned)
}

// NormalizePhone strips separators and prefixes bare local numbers with the
// country code. It does not validate.
func NormalizePhone(raw string) string {
	cleaned := clean(raw)
	if len(cleaned) == 9 && localRe.MatchString(cleaned) {
		return countryCode + cleaned
	}
	return cleaned
}

// ParsePhone validates and normalizes raw in one step.
func ParsePhone(raw string) (string, error) {
	if !ValidPhone(raw) {
		return "", ErrInvalidPhone
	}
	return NormalizePhone(raw), nil
}
