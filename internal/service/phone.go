package service

import (
	"strings"

	appErrors "github.com/noah-isme/studygroup-api/pkg/errors"
)

const (
	minPhoneDigits = 10
	maxPhoneDigits = 15
)

// NormalizePhone reduces user input to "+<digits>" so that "+7 (999) 000-11-22"
// and "79990001122" identify the same user.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	b.Grow(len(raw) + 1)
	b.WriteByte('+')
	digits := 0
	for i, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
			digits++
		case r == '+' && i == 0:
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return "", appErrors.Clone(appErrors.ErrValidation, "phone number may contain only digits")
		}
	}
	if digits < minPhoneDigits || digits > maxPhoneDigits {
		return "", appErrors.Clone(appErrors.ErrValidation, "phone number must have 10 to 15 digits")
	}
	return b.String(), nil
}
