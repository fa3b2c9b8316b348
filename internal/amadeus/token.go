package amadeus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// tokenMargin is how long before the reported expiry a cached token is
// considered stale.
const tokenMargin = 30 * time.Second

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	State       string `json:"state"`
}

// bearerToken returns a valid access token, fetching a new one via the
// OAuth2 client-credentials grant when the cached one is missing or
// stale. Concurrent refreshes are coalesced.
func (c *AmadeusAPIClient) bearerToken(ctx context.Context) (string, error) {
	c.tokenMu.RLock()
	tok, exp := c.token, c.tokenExpires
	c.tokenMu.RUnlock()
	if tok != "" && time.Now().Before(exp) {
		return tok, nil
	}

	v, err, _ := c.tokenSF.Do("token", func() (any, error) {
		// Re-check under the singleflight: another caller may have
		// refreshed while this one queued.
		c.tokenMu.RLock()
		tok, exp := c.token, c.tokenExpires
		c.tokenMu.RUnlock()
		if tok != "" && time.Now().Before(exp) {
			return tok, nil
		}
		return c.fetchToken(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *AmadeusAPIClient) fetchToken(ctx context.Context) (string, error) {
	if c.clientID == "" || c.clientSecret == "" {
		return "", fmt.Errorf("missing API credentials")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	endpoint := fmt.Sprintf("%s/v1/security/oauth2/token", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("performing token request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request failed with status %d", res.StatusCode)
	}

	var body tokenResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}

	expires := time.Now().Add(time.Duration(body.ExpiresIn) * time.Second).Add(-tokenMargin)
	c.tokenMu.Lock()
	c.token = body.AccessToken
	c.tokenExpires = expires
	c.tokenMu.Unlock()
	return body.AccessToken, nil
}
