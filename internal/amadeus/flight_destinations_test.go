package amadeus_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	amadeus "flightwatch/internal/amadeus"
)

const mockTokenBody = `{"access_token":"test-token","token_type":"Bearer","expires_in":1799,"state":"approved"}`

const mockDestinationsBody = `{
	"data": [
		{
			"type": "flight-destination",
			"origin": "HKG",
			"destination": "TYO",
			"departureDate": "2026-09-05",
			"returnDate": "2026-09-12",
			"price": {"total": "1543.00"},
			"links": {"flightOffers": "https://test.api.amadeus.com/v2/shopping/flight-offers?originLocationCode=HKG&destinationLocationCode=TYO"}
		},
		{
			"type": "flight-destination",
			"origin": "HKG",
			"destination": "BKK",
			"departureDate": "2026-09-05",
			"returnDate": "",
			"price": {"total": "980.00"},
			"links": {}
		}
	]
}`

// stubTokenThenSearch expects one token request followed by one search
// request answered with the given status and body.
func stubTokenThenSearch(t *testing.T, httpClient *MockHTTPClient, status int, body string, check func(*http.Request)) {
	t.Helper()

	first := httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, http.MethodPost, req.Method)
			require.Contains(t, req.URL.Path, "/v1/security/oauth2/token")
			b, err := io.ReadAll(req.Body)
			require.NoError(t, err)
			require.Contains(t, string(b), "grant_type=client_credentials")
			require.Contains(t, string(b), "client_id=test-key")
			require.Contains(t, string(b), "client_secret=test-secret")

			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader(mockTokenBody)),
			}, nil
		}).
		Times(1)

	httpClient.EXPECT().
		Do(gomock.Any()).
		After(first).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, http.MethodGet, req.Method)
			require.Equal(t, "Bearer test-token", req.Header.Get("Authorization"))
			if check != nil {
				check(req)
			}
			return &http.Response{
				StatusCode: status,
				Body:       io.NopCloser(bytes.NewReader([]byte(body))),
			}, nil
		}).
		Times(1)
}

func TestFlightDestinations(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock controller and HTTP client
	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)

	// Assert: token request first, then the search with our parameters
	stubTokenThenSearch(t, httpClient, http.StatusOK, mockDestinationsBody, func(req *http.Request) {
		require.Contains(t, req.URL.Path, "/v1/shopping/flight-destinations")
		require.Equal(t, "HKG", req.URL.Query().Get("origin"))
		require.Equal(t, "2026-09-05", req.URL.Query().Get("departureDate"))
		require.Equal(t, "3000", req.URL.Query().Get("maxPrice"))
		require.Equal(t, "DESTINATION", req.URL.Query().Get("viewBy"))
	})

	// Arrange: setup the client
	client, err := amadeus.NewAmadeusAPIClient("test-key", "test-secret", amadeus.WithHTTPClient(httpClient))
	require.NoError(t, err)
	require.NotNil(t, client)

	// Act: call FlightDestinations
	offers, err := client.FlightDestinations(context.Background(), amadeus.DestinationsQuery{
		Origin:        "HKG",
		DepartureDate: "2026-09-05",
		MaxPrice:      3000,
	})
	require.NoError(t, err)

	// Assert: offers decoded from the payload
	require.Len(t, offers, 2)
	require.Equal(t, "TYO", offers[0].Destination)
	require.Equal(t, "2026-09-05", offers[0].DepartureDate)
	require.Equal(t, "2026-09-12", offers[0].ReturnDate)
	require.Equal(t, "1543.00", offers[0].Price.Total)
	require.Contains(t, offers[0].Links.FlightOffers, "flight-offers")
	require.Equal(t, "BKK", offers[1].Destination)
	require.Empty(t, offers[1].ReturnDate)
}

func TestFlightDestinations_TokenReused(t *testing.T) {
	t.Parallel()

	// Arrange
	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)

	tokenCalls := 0
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			if strings.Contains(req.URL.Path, "oauth2/token") {
				tokenCalls++
				return &http.Response{
					StatusCode: http.StatusOK,
					Body:       io.NopCloser(strings.NewReader(mockTokenBody)),
				}, nil
			}
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader(`{"data":[]}`)),
			}, nil
		}).
		Times(3) // one token fetch plus two searches

	client, err := amadeus.NewAmadeusAPIClient("test-key", "test-secret", amadeus.WithHTTPClient(httpClient))
	require.NoError(t, err)

	// Act: two searches share one token
	_, err = client.FlightDestinations(context.Background(), amadeus.DestinationsQuery{Origin: "HKG"})
	require.NoError(t, err)
	_, err = client.FlightDates(context.Background(), amadeus.DatesQuery{Origin: "HKG", Destination: "TYO"})
	require.NoError(t, err)

	// Assert
	require.Equal(t, 1, tokenCalls)
}

func TestFlightDates(t *testing.T) {
	t.Parallel()

	// Arrange
	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	stubTokenThenSearch(t, httpClient, http.StatusOK,
		`{"data":[{"type":"flight-date","origin":"HKG","destination":"TYO","departureDate":"2026-09-05","returnDate":"2026-09-12","price":{"total":"1489.00"}}]}`,
		func(req *http.Request) {
			require.Contains(t, req.URL.Path, "/v1/shopping/flight-dates")
			require.Equal(t, "HKG", req.URL.Query().Get("origin"))
			require.Equal(t, "TYO", req.URL.Query().Get("destination"))
		})

	client, err := amadeus.NewAmadeusAPIClient("test-key", "test-secret", amadeus.WithHTTPClient(httpClient))
	require.NoError(t, err)

	// Act
	offers, err := client.FlightDates(context.Background(), amadeus.DatesQuery{Origin: "HKG", Destination: "TYO"})
	require.NoError(t, err)

	// Assert
	require.Len(t, offers, 1)
	require.Equal(t, "1489.00", offers[0].Price.Total)
}

func TestFlightDestinations_ErrMissingOrigin(t *testing.T) {
	t.Parallel()

	// Arrange: the HTTP client must never be called
	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().Do(gomock.Any()).Times(0)

	client, err := amadeus.NewAmadeusAPIClient("test-key", "test-secret", amadeus.WithHTTPClient(httpClient))
	require.NoError(t, err)

	// Act
	offers, err := client.FlightDestinations(context.Background(), amadeus.DestinationsQuery{})
	require.Error(t, err)
	require.Nil(t, offers)
}

func TestFlightDestinations_ErrPerformingRequest(t *testing.T) {
	t.Parallel()

	// Arrange: token request fails outright
	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			return nil, fmt.Errorf("error")
		}).
		Times(1)

	client, err := amadeus.NewAmadeusAPIClient("test-key", "test-secret", amadeus.WithHTTPClient(httpClient))
	require.NoError(t, err)

	// Act
	offers, err := client.FlightDestinations(context.Background(), amadeus.DestinationsQuery{Origin: "HKG"})
	require.Error(t, err)
	require.Nil(t, offers)
}

func TestFlightDestinations_ErrUnauthorized(t *testing.T) {
	t.Parallel()

	// Arrange
	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	stubTokenThenSearch(t, httpClient, http.StatusUnauthorized, `{}`, nil)

	client, err := amadeus.NewAmadeusAPIClient("test-key", "test-secret", amadeus.WithHTTPClient(httpClient))
	require.NoError(t, err)

	// Act
	offers, err := client.FlightDestinations(context.Background(), amadeus.DestinationsQuery{Origin: "HKG"})
	require.Error(t, err)
	require.Nil(t, offers)
	require.Contains(t, err.Error(), "unauthorized")
}

func TestFlightDestinations_NotFoundMeansNoResults(t *testing.T) {
	t.Parallel()

	// Arrange: the test environment answers 404 when it has no data
	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	stubTokenThenSearch(t, httpClient, http.StatusNotFound, `{"errors":[{"status":404}]}`, nil)

	client, err := amadeus.NewAmadeusAPIClient("test-key", "test-secret", amadeus.WithHTTPClient(httpClient))
	require.NoError(t, err)

	// Act
	offers, err := client.FlightDestinations(context.Background(), amadeus.DestinationsQuery{Origin: "HKG"})
	require.NoError(t, err)
	require.Empty(t, offers)
}

func TestFlightDestinations_ErrDecodingResponse(t *testing.T) {
	t.Parallel()

	// Arrange
	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	stubTokenThenSearch(t, httpClient, http.StatusOK, "invalid json", nil)

	client, err := amadeus.NewAmadeusAPIClient("test-key", "test-secret", amadeus.WithHTTPClient(httpClient))
	require.NoError(t, err)

	// Act
	offers, err := client.FlightDestinations(context.Background(), amadeus.DestinationsQuery{Origin: "HKG"})
	require.Error(t, err)
	require.Nil(t, offers)
}

func TestBearerToken_ErrMissingCredentials(t *testing.T) {
	t.Parallel()

	// Arrange
	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().Do(gomock.Any()).Times(0)

	client, err := amadeus.NewAmadeusAPIClient("", "", amadeus.WithHTTPClient(httpClient))
	require.NoError(t, err)

	// Act
	offers, err := client.FlightDestinations(context.Background(), amadeus.DestinationsQuery{Origin: "HKG"})
	require.Error(t, err)
	require.Nil(t, offers)
	require.Contains(t, err.Error(), "credentials")
}
