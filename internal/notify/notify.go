// Package notify hands notable quotes to an external delivery mechanism.
// Delivery runs only after the quotes are durably appended to the store.
package notify

import (
	"context"
	"log"

	"flightwatch/internal/detect"
)

type Notifier interface {
	Notify(ctx context.Context, notables []detect.Notable) error
}

// Log writes one line per notable quote to the process log. It is the
// fallback when no broker is configured.
type Log struct{}

func (Log) Notify(_ context.Context, notables []detect.Notable) error {
	for _, n := range notables {
		q := n.Quote
		if n.PriorMin == nil {
			log.Printf("new route %s: %s %s (first observation)", q.Key(), q.Price, q.Currency)
			continue
		}
		log.Printf("price drop %s: %s %s (was %s, -%s)", q.Key(), q.Price, q.Currency, n.PriorMin, n.Drop)
	}
	return nil
}
