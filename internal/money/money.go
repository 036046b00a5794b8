// Package money converts untrusted quantity and price text into decimals and
// integer cents. All persisted amounts are cents; floats never reach storage.
package money

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/backoffice/internal/apperr"
)

var (
	ErrInvalidNumber   = apperr.Invalid("number", "value is not a valid decimal number")
	ErrInvalidQuantity = apperr.Invalid("quantity", "quantity must be a positive number")
	ErrInvalidPrice    = apperr.Invalid("price", "price must be a positive number")
	ErrAmountTooLarge  = apperr.Invalid("price", "amount is too large")
)

// maxCents keeps amounts well inside int64 and NUMERIC column ranges.
const maxCents = 1_000_000_000_000_000

// QuantityScale is the number of decimals quantities are kept with, matching
// the stock ledger columns.
const QuantityScale = 3

var decimalPattern = regexp.MustCompile(`^[+-]?(\d+([.,]\d+)?|[.,]\d+)$`)

var hundred = decimal.NewFromInt(100)

// ParseDecimal parses user supplied numbers. Both "12,5" and "12.5" are
// accepted; thousands separators and exponents are not.
func ParseDecimal(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if !decimalPattern.MatchString(s) {
		return decimal.Zero, ErrInvalidNumber
	}
	s = strings.Replace(s, ",", ".", 1)

	sign := ""
	if s[0] == '-' || s[0] == '+' {
		sign, s = s[:1], s[1:]
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}

	d, err := decimal.NewFromString(sign + s)
	if err != nil {
		return decimal.Zero, ErrInvalidNumber
	}
	return d, nil
}

// ToCents converts a major-unit amount to cents, rounding half away from zero.
func ToCents(amount decimal.Decimal) (int64, error) {
	cents := amount.Mul(hundred).Round(0)
	if cents.Abs().GreaterThan(decimal.NewFromInt(maxCents)) {
		return 0, ErrAmountTooLarge
	}
	return cents.IntPart(), nil
}

// FromCents is the inverse of ToCents.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// Line is one priced line.
type Line struct {
	Unit           UnitKey
	Quantity       decimal.Decimal
	UnitPriceCents int64
	LineTotalCents int64
}

// ComputeLine prices a line. price is the total charged for quantity, not a
// per-unit rate; the unit price is derived from it for display only.
func ComputeLine(unit UnitKey, quantity, price decimal.Decimal) (Line, error) {
	if !quantity.IsPositive() {
		return Line{}, ErrInvalidQuantity
	}
	if !price.IsPositive() {
		return Line{}, ErrInvalidPrice
	}

	total, err := ToCents(price)
	if err != nil {
		return Line{}, err
	}
	if total <= 0 {
		return Line{}, ErrInvalidPrice
	}

	unitPrice := decimal.NewFromInt(total).Div(quantity).Round(0)
	if unitPrice.GreaterThan(decimal.NewFromInt(maxCents)) {
		return Line{}, ErrAmountTooLarge
	}

	return Line{
		Unit:           unit,
		Quantity:       quantity,
		UnitPriceCents: unitPrice.IntPart(),
		LineTotalCents: total,
	}, nil
}

// FixedQuantity renders a quantity the way invoice items store it.
func FixedQuantity(quantity decimal.Decimal) string {
	return quantity.StringFixed(QuantityScale)
}

// FormatCents renders cents for people, e.g. "ARS 1.234,50".
func FormatCents(cents int64, currency string) string {
	sign := ""
	abs := uint64(cents)
	if cents < 0 {
		sign = "-"
		abs = uint64(-(cents + 1)) + 1
	}

	whole := strconv.FormatUint(abs/100, 10)
	var grouped strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(r)
	}

	frac := abs % 100
	out := sign + grouped.String() + "," + strconv.FormatUint(frac/10, 10) + strconv.FormatUint(frac%10, 10)
	if currency = strings.TrimSpace(currency); currency != "" {
		out = strings.ToUpper(currency) + " " + out
	}
	return out
}
