// Package auth acquires bearer credentials for outbound calls to the
// clinical-records API. Several mutually-exclusive authentication models are
// supported; the Resolver picks the first applicable one per call.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// tokenExpiryBuffer is subtracted from a token's advertised lifetime before
// it is cached, so a cached token is never handed out moments before expiry.
const tokenExpiryBuffer = 30 * time.Second

// TokenStrategy obtains a bearer credential for one authentication model.
//
// CanHandle must be a cheap, side-effect-free predicate over configuration
// and call context. Acquire performs the actual exchange; a strategy whose
// CanHandle returned false is never asked to Acquire.
//
// The time-based token caches used by the server-to-server strategies are
// not protected by a single-flight lock: concurrent callers hitting an
// expired cache entry may perform duplicate token exchanges. The upstream
// system tolerates this.
type TokenStrategy interface {
	Name() string
	CanHandle(ctx context.Context) bool
	Acquire(ctx context.Context) (*oauth2.Token, error)
}

// ErrNoStrategy is returned when no registered strategy can handle the call.
// This is a configuration error and is not retried.
var ErrNoStrategy = errors.New("no token strategy can handle the current call context")

// Resolver selects a token strategy by evaluating CanHandle in registration
// order and returning the first match.
type Resolver struct {
	strategies []TokenStrategy
}

func NewResolver(strategies ...TokenStrategy) *Resolver {
	return &Resolver{strategies: strategies}
}

func (r *Resolver) Resolve(ctx context.Context) (TokenStrategy, error) {
	for _, strategy := range r.strategies {
		if strategy.CanHandle(ctx) {
			return strategy, nil
		}
	}
	return nil, ErrNoStrategy
}

// tokenResponse is the relevant subset of an RFC 6749 token endpoint response.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// exchangeToken POSTs a form-encoded grant to tokenURL and parses the
// resulting bearer token.
func exchangeToken(ctx context.Context, httpClient *http.Client, tokenURL string, form url.Values) (*oauth2.Token, error) {
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	httpRequest.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpRequest.Header.Set("Accept", "application/json")

	httpResponse, err := httpClient.Do(httpRequest)
	if err != nil {
		return nil, fmt.Errorf("token request failed (%s): %w", tokenURL, err)
	}
	defer httpResponse.Body.Close()
	responseBody, err := io.ReadAll(io.LimitReader(httpResponse.Body, 1024*1024))
	if err != nil {
		return nil, fmt.Errorf("token response read failed (%s): %w", tokenURL, err)
	}
	if httpResponse.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token endpoint returned status %d (%s)", httpResponse.StatusCode, tokenURL)
	}
	var parsed tokenResponse
	if err := json.Unmarshal(responseBody, &parsed); err != nil {
		return nil, fmt.Errorf("token response unmarshal failed (%s): %w", tokenURL, err)
	}
	if parsed.AccessToken == "" {
		return nil, fmt.Errorf("token endpoint returned no access token (%s)", tokenURL)
	}
	token := &oauth2.Token{
		AccessToken: parsed.AccessToken,
		TokenType:   parsed.TokenType,
	}
	if parsed.ExpiresIn > 0 {
		token.Expiry = time.Now().Add(time.Duration(parsed.ExpiresIn) * time.Second)
	}
	return token, nil
}
