package money

import (
	"strings"

	"github.com/vasiliy-maslov/backoffice/internal/apperr"
)

// DefaultCurrency is used whenever the caller leaves the currency blank.
const DefaultCurrency = "ARS"

var ErrInvalidCurrency = apperr.Invalid("currency", "currency must be a three letter code")

// NormalizeCurrency uppercases a currency code and applies the default.
func NormalizeCurrency(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if code == "" {
		return DefaultCurrency, nil
	}
	if len(code) != 3 {
		return "", ErrInvalidCurrency
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "", ErrInvalidCurrency
		}
	}
	return code, nil
}
