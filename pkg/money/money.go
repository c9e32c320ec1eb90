// Package money holds the decimal helpers used for FCFA prices.
package money

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

func init() {
	// The storefront blobs carry prices as bare JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// narrow no-break space, the fr-FR thousands separator
const groupSeparator = "\u202f"

// Coerce reads a loosely typed JSON value the way the storefront always has:
// numbers and numeric strings parse, everything else is zero.
func Coerce(raw json.RawMessage) decimal.Decimal {
	value, ok := Parse(raw)
	if !ok {
		return decimal.Zero
	}
	return value
}

// Parse accepts a JSON number or a quoted numeric string.
func Parse(raw json.RawMessage) (decimal.Decimal, bool) {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return decimal.Zero, false
	}
	if strings.HasPrefix(text, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero, false
		}
		text = strings.TrimSpace(s)
	}
	value, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, false
	}
	return value, true
}

// ParseNumber accepts only a bare JSON number.
func ParseNumber(raw json.RawMessage) (decimal.Decimal, bool) {
	text := strings.TrimSpace(string(raw))
	if text == "" || text[0] == '"' || text == "null" || text == "true" || text == "false" {
		return decimal.Zero, false
	}
	value, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, false
	}
	return value, true
}

// Format renders an amount with fr-FR grouping followed by the currency
// label, e.g. "1 500 FCFA". Up to three fraction digits are kept.
func Format(amount decimal.Decimal, currency string) string {
	rounded := amount.Round(3)
	negative := rounded.IsNegative()
	rounded = rounded.Abs()

	integer := rounded.Truncate(0).String()
	fraction := strings.TrimPrefix(rounded.Sub(rounded.Truncate(0)).String(), "0.")
	if fraction == "0" {
		fraction = ""
	}

	var b strings.Builder
	if negative {
		b.WriteString("-")
	}
	for i, r := range integer {
		if i > 0 && (len(integer)-i)%3 == 0 {
			b.WriteString(groupSeparator)
		}
		b.WriteRune(r)
	}
	if fraction != "" {
		b.WriteString(",")
		b.WriteString(fraction)
	}
	if currency != "" {
		b.WriteString(" ")
		b.WriteString(currency)
	}
	return b.String()
}
