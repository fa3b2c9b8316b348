package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"flightwatch/internal/detect"
)

// NATS publishes one JSON message per notable quote to a subject.
type NATS struct {
	nc      *nats.Conn
	subject string
}

// DialNATS connects to the broker. The caller owns Close.
func DialNATS(url, subject string) (*NATS, error) {
	if subject == "" {
		subject = "flightwatch.notable"
	}
	nc, err := nats.Connect(url, nats.Name("flightwatch"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &NATS{nc: nc, subject: subject}, nil
}

func (n *NATS) Notify(ctx context.Context, notables []detect.Notable) error {
	for _, nb := range notables {
		if err := ctx.Err(); err != nil {
			return err
		}
		b, err := json.Marshal(nb)
		if err != nil {
			return fmt.Errorf("encode notable: %w", err)
		}
		if err := n.nc.Publish(n.subject, b); err != nil {
			return fmt.Errorf("publish: %w", err)
		}
	}
	// Flush so a scheduled run exits only after the broker accepted the
	// messages.
	if err := n.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

func (n *NATS) Close() {
	n.nc.Close()
}
