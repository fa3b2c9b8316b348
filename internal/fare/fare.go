package fare

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-date format used throughout: departure and
// return dates are civil dates without a time zone.
const DateLayout = "2006-01-02"

// Quote is one observed price for one route/date combination at one
// observation time. Price is decimal to keep fare comparisons exact.
type Quote struct {
	Origin        string          `json:"origin"`
	Destination   string          `json:"destination"`
	DepartureDate string          `json:"departure_date"`
	ReturnDate    string          `json:"return_date,omitempty"` // empty for one-way
	Price         decimal.Decimal `json:"price"`
	Currency      string          `json:"currency"`
	ObservedAt    time.Time       `json:"observed_at"`
	Airline       string          `json:"airline,omitempty"`
	FlightRef     string          `json:"flight_ref,omitempty"`
}

// RouteKey identifies a route/date combination. It is the dedup and
// min-price lookup identity; ObservedAt and Price deliberately excluded.
type RouteKey struct {
	Origin        string
	Destination   string
	DepartureDate string
	ReturnDate    string
}

func (k RouteKey) String() string {
	if k.ReturnDate == "" {
		return fmt.Sprintf("%s-%s@%s", k.Origin, k.Destination, k.DepartureDate)
	}
	return fmt.Sprintf("%s-%s@%s/%s", k.Origin, k.Destination, k.DepartureDate, k.ReturnDate)
}

// Key returns the route-date identity of the quote.
func (q Quote) Key() RouteKey {
	return RouteKey{
		Origin:        q.Origin,
		Destination:   q.Destination,
		DepartureDate: q.DepartureDate,
		ReturnDate:    q.ReturnDate,
	}
}

// ValidCode reports whether s looks like an IATA location code
// (three upper-case letters).
func ValidCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}

// ParseDate validates a YYYY-MM-DD calendar date and returns it in
// canonical form.
func ParseDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t.Format(DateLayout), nil
}

// ParsePrice parses a positive decimal fare amount.
func ParsePrice(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid price %q: %w", s, err)
	}
	if d.Sign() <= 0 {
		return decimal.Decimal{}, fmt.Errorf("invalid price %q: not positive", s)
	}
	return d, nil
}
