package money

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// UnitKey is the canonical unit a quantity is measured in.
type UnitKey string

const (
	UnitPiece      UnitKey = "u"
	UnitGram       UnitKey = "g"
	UnitKilogram   UnitKey = "kg"
	UnitMilliliter UnitKey = "ml"
	UnitLiter      UnitKey = "l"
)

func (u UnitKey) String() string {
	return string(u)
}

var unitAliases = map[string]UnitKey{
	"u":           UnitPiece,
	"un":          UnitPiece,
	"uni":         UnitPiece,
	"unid":        UnitPiece,
	"unidad":      UnitPiece,
	"unidades":    UnitPiece,
	"unit":        UnitPiece,
	"units":       UnitPiece,
	"pcs":         UnitPiece,
	"g":           UnitGram,
	"gr":          UnitGram,
	"grs":         UnitGram,
	"gramo":       UnitGram,
	"gramos":      UnitGram,
	"gram":        UnitGram,
	"grams":       UnitGram,
	"kg":          UnitKilogram,
	"kgs":         UnitKilogram,
	"kilo":        UnitKilogram,
	"kilos":       UnitKilogram,
	"kilogramo":   UnitKilogram,
	"kilogramos":  UnitKilogram,
	"kilogram":    UnitKilogram,
	"kilograms":   UnitKilogram,
	"ml":          UnitMilliliter,
	"cc":          UnitMilliliter,
	"mililitro":   UnitMilliliter,
	"mililitros":  UnitMilliliter,
	"milliliter":  UnitMilliliter,
	"milliliters": UnitMilliliter,
	"l":           UnitLiter,
	"lt":          UnitLiter,
	"lts":         UnitLiter,
	"litro":       UnitLiter,
	"litros":      UnitLiter,
	"liter":       UnitLiter,
	"liters":      UnitLiter,
}

// NormalizeUnit maps free-form unit text onto a UnitKey. Anything it does
// not recognize, including the empty string, is treated as pieces.
func NormalizeUnit(raw string) UnitKey {
	if unit, ok := unitAliases[foldUnit(raw)]; ok {
		return unit
	}
	return UnitPiece
}

// foldUnit lowercases and strips accents and trailing dots ("Kg.", "líts").
func foldUnit(raw string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, raw)
	if err != nil {
		folded = raw
	}
	folded = strings.ToLower(strings.TrimSpace(folded))
	return strings.TrimRight(folded, ".")
}
