package amadeus

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"flightwatch/internal/ratelimit"
)

// baseURL is the Amadeus self-service test environment. Production use
// goes through WithBaseURL.
const baseURL = "https://test.api.amadeus.com"

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=amadeus_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// AmadeusAPIClient is a client for the Amadeus self-service APIs.
// Requests authenticate with an OAuth2 client-credentials token that is
// fetched lazily and cached until shortly before expiry.
type AmadeusAPIClient struct {
	// baseURL is the base URL for the API.
	baseURL string
	// httpClient performs the HTTP requests.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
	// clientID and clientSecret are the OAuth2 credentials.
	clientID     string
	clientSecret string
	// limiter gates outgoing requests when set (the test tier is
	// rate limited).
	limiter *ratelimit.TokenBucket

	// token cache, refreshes coalesced across concurrent callers.
	tokenMu      sync.RWMutex
	token        string
	tokenExpires time.Time
	tokenSF      singleflight.Group
}

// AmadeusAPIClientOption is a configuration option for the client.
type AmadeusAPIClientOption func(*AmadeusAPIClient)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) AmadeusAPIClientOption {
	return func(c *AmadeusAPIClient) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) AmadeusAPIClientOption {
	return func(c *AmadeusAPIClient) {
		c.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) AmadeusAPIClientOption {
	return func(c *AmadeusAPIClient) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// WithRateLimit gates every API request (token requests included)
// through the given bucket.
func WithRateLimit(tb *ratelimit.TokenBucket) AmadeusAPIClientOption {
	return func(c *AmadeusAPIClient) {
		c.limiter = tb
	}
}

// NewAmadeusAPIClient creates a new Amadeus API client with the given
// OAuth2 client credentials.
func NewAmadeusAPIClient(clientID, clientSecret string, options ...AmadeusAPIClientOption) (*AmadeusAPIClient, error) {
	var client = &AmadeusAPIClient{
		baseURL:      baseURL,
		httpClient:   http.DefaultClient,
		header:       http.Header{},
		clientID:     clientID,
		clientSecret: clientSecret,
	}
	for _, option := range options {
		option(client)
	}
	return client, nil
}
