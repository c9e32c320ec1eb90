package ordercode

import (
	"strconv"
	"strings"
	"time"
)

// Verification reasons.
const (
	ReasonInvalidPrefix = "invalid prefix"
	ReasonInvalidFormat = "invalid format"
	ReasonInvalidMonth  = "invalid month"
	ReasonInvalidDay    = "invalid day"
	ReasonFutureDate    = "future date"
)

const minBodyLength = 12

// Verification is the outcome of Verify. Only the embedded date is checked:
// the hash and checksum are not recomputed, so a well-dated forged code
// still verifies.
type Verification struct {
	Valid  bool   `json:"valid"`
	Date   string `json:"date,omitempty"`
	Year   int    `json:"year,omitempty"`
	Month  int    `json:"month,omitempty"`
	Day    int    `json:"day,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Verify checks the generator prefix and the embedded date against the
// generator clock.
func (g *Generator) Verify(code string) Verification {
	return Verify(g.prefix, code, g.now().In(g.loc))
}

// Verify sanity-checks code: prefix, length, calendar ranges, and that the
// date is not after now. The date is interpreted in now's location.
func Verify(prefix, code string, now time.Time) Verification {
	code = strings.TrimSpace(code)
	if !strings.HasPrefix(code, prefix) {
		return Verification{Reason: ReasonInvalidPrefix}
	}
	body := code[len(prefix):]
	if len(body) < minBodyLength {
		return Verification{Reason: ReasonInvalidFormat}
	}

	yy, errYear := digits(body[0:2])
	month, errMonth := digits(body[2:4])
	day, errDay := digits(body[4:6])
	if errYear != nil || errMonth != nil || errDay != nil {
		return Verification{Reason: ReasonInvalidFormat}
	}
	if month < 1 || month > 12 {
		return Verification{Reason: ReasonInvalidMonth}
	}
	if day < 1 || day > 31 {
		return Verification{Reason: ReasonInvalidDay}
	}

	year := 2000 + yy
	orderDate := time.Date(year, time.Month(month), day, 0, 0, 0, 0, now.Location())
	if orderDate.After(now) {
		return Verification{Reason: ReasonFutureDate}
	}
	return Verification{
		Valid: true,
		Date:  orderDate.Format("02/01/2006"),
		Year:  year,
		Month: month,
		Day:   day,
	}
}

func digits(s string) (int, error) {
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, strconv.ErrSyntax
		}
	}
	return strconv.Atoi(s)
}
