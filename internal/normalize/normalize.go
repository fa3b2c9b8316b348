// Package normalize converts raw search offers into canonical fare
// quotes.
package normalize

import (
	"errors"
	"fmt"
	"time"

	"flightwatch/internal/amadeus"
	"flightwatch/internal/fare"
)

// ErrMalformedOffer marks a single offer that cannot be turned into a
// quote. It never fails a batch: Quotes skips the offer and counts it.
var ErrMalformedOffer = errors.New("normalize: malformed offer")

// Quotes converts offers into fare quotes. observed_at is stamped with
// now (the local run time, not the API's internal timestamps) so that all
// quotes of one run share a consistent observation time. Offers missing
// origin, destination, departure date or price are skipped individually;
// skipped reports how many.
func Quotes(offers []amadeus.Offer, currency string, now time.Time) (quotes []fare.Quote, skipped int) {
	quotes = make([]fare.Quote, 0, len(offers))
	for _, o := range offers {
		q, err := quoteFromOffer(o, currency, now)
		if err != nil {
			skipped++
			continue
		}
		quotes = append(quotes, q)
	}
	return quotes, skipped
}

func quoteFromOffer(o amadeus.Offer, currency string, now time.Time) (fare.Quote, error) {
	var q fare.Quote

	if !fare.ValidCode(o.Origin) {
		return q, fmt.Errorf("%w: origin %q", ErrMalformedOffer, o.Origin)
	}
	if !fare.ValidCode(o.Destination) {
		return q, fmt.Errorf("%w: destination %q", ErrMalformedOffer, o.Destination)
	}

	dep, err := fare.ParseDate(o.DepartureDate)
	if err != nil {
		return q, fmt.Errorf("%w: %v", ErrMalformedOffer, err)
	}
	ret := ""
	if o.ReturnDate != "" {
		// A present but unparseable return date makes the offer
		// ambiguous (one-way or round trip?); skip it.
		ret, err = fare.ParseDate(o.ReturnDate)
		if err != nil {
			return q, fmt.Errorf("%w: %v", ErrMalformedOffer, err)
		}
	}

	price, err := fare.ParsePrice(o.Price.Total)
	if err != nil {
		return q, fmt.Errorf("%w: %v", ErrMalformedOffer, err)
	}

	return fare.Quote{
		Origin:        o.Origin,
		Destination:   o.Destination,
		DepartureDate: dep,
		ReturnDate:    ret,
		Price:         price,
		Currency:      currency,
		ObservedAt:    now.UTC(),
		FlightRef:     o.Links.FlightOffers,
	}, nil
}
