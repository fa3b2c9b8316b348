package amadeus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Offer is one priced route/date combination as returned by the search
// endpoints. Fields are the raw API strings; normalization happens
// downstream.
type Offer struct {
	Type          string     `json:"type"`
	Origin        string     `json:"origin"`
	Destination   string     `json:"destination"`
	DepartureDate string     `json:"departureDate"`
	ReturnDate    string     `json:"returnDate"`
	Price         OfferPrice `json:"price"`
	Links         OfferLinks `json:"links"`
}

type OfferPrice struct {
	Total string `json:"total"`
}

type OfferLinks struct {
	FlightDates  string `json:"flightDates"`
	FlightOffers string `json:"flightOffers"`
}

type searchResponse struct {
	Data []Offer `json:"data"`
}

// DestinationsQuery parameterizes the flight inspiration search: cheapest
// destinations reachable from an origin.
type DestinationsQuery struct {
	Origin        string
	DepartureDate string // optional, YYYY-MM-DD
	MaxPrice      int    // optional, 0 means unset
	Duration      int    // optional trip length in days, 0 means unset
}

// FlightDestinations calls the flight inspiration search
// (GET /v1/shopping/flight-destinations) and returns the raw offers.
func (c *AmadeusAPIClient) FlightDestinations(ctx context.Context, q DestinationsQuery) ([]Offer, error) {
	if q.Origin == "" {
		return nil, fmt.Errorf("missing origin")
	}

	query := url.Values{}
	query.Set("origin", q.Origin)
	query.Set("viewBy", "DESTINATION")
	if q.DepartureDate != "" {
		query.Set("departureDate", q.DepartureDate)
	}
	if q.MaxPrice > 0 {
		query.Set("maxPrice", strconv.Itoa(q.MaxPrice))
	}
	if q.Duration > 0 {
		query.Set("duration", strconv.Itoa(q.Duration))
	}

	return c.search(ctx, "/v1/shopping/flight-destinations", query)
}

// DatesQuery parameterizes the cheapest-dates search for a fixed
// origin/destination pair.
type DatesQuery struct {
	Origin        string
	Destination   string
	DepartureDate string // optional, YYYY-MM-DD
}

// FlightDates calls the flight cheapest-date search
// (GET /v1/shopping/flight-dates) and returns the raw offers.
func (c *AmadeusAPIClient) FlightDates(ctx context.Context, q DatesQuery) ([]Offer, error) {
	if q.Origin == "" || q.Destination == "" {
		return nil, fmt.Errorf("missing origin or destination")
	}

	query := url.Values{}
	query.Set("origin", q.Origin)
	query.Set("destination", q.Destination)
	if q.DepartureDate != "" {
		query.Set("departureDate", q.DepartureDate)
	}

	return c.search(ctx, "/v1/shopping/flight-dates", query)
}

func (c *AmadeusAPIClient) search(ctx context.Context, path string, query url.Values) ([]Offer, error) {
	token, err := c.bearerToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("authenticating: %w", err)
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	endpoint := fmt.Sprintf("%s%s?%s", c.baseURL, path, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header = c.header.Clone()
	req.Header.Set("Authorization", "Bearer "+token)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		break

	case http.StatusBadRequest:
		return nil, fmt.Errorf("bad request for %s?%s", path, query.Encode())

	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("unauthorized")

	case http.StatusNotFound:
		// The test environment returns 404 for queries with no data;
		// treat like an empty result rather than a failure.
		return nil, nil

	case http.StatusTooManyRequests:
		return nil, fmt.Errorf("rate limited")

	default:
		return nil, fmt.Errorf("unexpected status code: %d", res.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}
	return body.Data, nil
}
