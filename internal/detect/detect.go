// Package detect decides which freshly observed fares set a new
// historical minimum for their route-date key.
package detect

import (
	"github.com/shopspring/decimal"

	"flightwatch/internal/fare"
)

// MinPricer is the read side of the history store.
type MinPricer interface {
	MinPrice(fare.RouteKey) (decimal.Decimal, bool)
}

// Notable is a fare observation that beats (or starts) the historical
// minimum for its route-date key. PriorMin and Drop are nil when the key
// had no history at all.
type Notable struct {
	Quote    fare.Quote       `json:"quote"`
	PriorMin *decimal.Decimal `json:"prior_min,omitempty"`
	Drop     *decimal.Decimal `json:"drop,omitempty"`
}

// Evaluate compares quotes against the store's pre-batch minimums and
// returns the notable ones in input order. The baseline per key is
// snapshotted once, so quotes within one batch never suppress each other;
// Evaluate performs no mutation and must run before the batch is appended.
func Evaluate(quotes []fare.Quote, store MinPricer) []Notable {
	baseline := make(map[fare.RouteKey]*decimal.Decimal, len(quotes))

	var out []Notable
	for _, q := range quotes {
		key := q.Key()
		prior, seen := baseline[key]
		if !seen {
			if min, ok := store.MinPrice(key); ok {
				m := min
				prior = &m
			}
			baseline[key] = prior
		}

		if prior == nil {
			// First ever price for this route-date.
			out = append(out, Notable{Quote: q})
			continue
		}
		if q.Price.LessThan(*prior) {
			drop := prior.Sub(q.Price)
			out = append(out, Notable{Quote: q, PriorMin: prior, Drop: &drop})
		}
		// Equal price is not notable: an unchanged minimum must not
		// re-alert on every run.
	}
	return out
}
