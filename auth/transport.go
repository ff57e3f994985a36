package auth

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

var _ http.RoundTripper = &Transport{}

// Transport decorates an http.RoundTripper so that every outbound request
// carries the bearer token of the strategy resolved for its context.
//
// A failed acquisition does not fail the request: it goes out without a
// credential and the upstream 401 makes the problem visible to the caller.
type Transport struct {
	Resolver *Resolver
	// Base is the wrapped RoundTripper, http.DefaultTransport if nil.
	Base http.RoundTripper
}

func (t *Transport) RoundTrip(httpRequest *http.Request) (*http.Response, error) {
	strategy, err := t.Resolver.Resolve(httpRequest.Context())
	if err != nil {
		// No applicable strategy is a configuration error, not a transient one.
		return nil, err
	}
	outRequest := httpRequest.Clone(httpRequest.Context())
	token, err := strategy.Acquire(httpRequest.Context())
	if err != nil {
		log.Ctx(httpRequest.Context()).Warn().Err(err).
			Msgf("Token acquisition failed (strategy=%s), proceeding without credential", strategy.Name())
	} else {
		outRequest.Header.Set("Authorization", "Bearer "+token.AccessToken)
	}
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(outRequest)
}

// NewHTTPClient returns an HTTP client that authenticates every request via
// the given resolver.
func NewHTTPClient(resolver *Resolver) *http.Client {
	return &http.Client{
		Transport: &Transport{Resolver: resolver},
	}
}
