package auth

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

type contextKey struct{}

var accessTokenKey contextKey

// WithAccessToken returns a context carrying a caller-supplied bearer token.
// Used when the caller is a trusted relay forwarding a user's token, e.g. the
// work-item rehydrate operation.
func WithAccessToken(ctx context.Context, accessToken string) context.Context {
	return context.WithValue(ctx, accessTokenKey, accessToken)
}

// AccessTokenFromContext returns the bearer token attached to the context,
// or the empty string if none is present.
func AccessTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(accessTokenKey).(string)
	return token
}

// BearerFromRequest extracts the bearer token from a request's Authorization
// header, or returns the empty string.
func BearerFromRequest(httpRequest *http.Request) string {
	header := httpRequest.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

var _ TokenStrategy = ContextTokenStrategy{}

// ContextTokenStrategy reuses a token already attached to the current call
// context instead of minting a new one.
type ContextTokenStrategy struct{}

func (ContextTokenStrategy) Name() string {
	return "context-token"
}

func (ContextTokenStrategy) CanHandle(ctx context.Context) bool {
	return AccessTokenFromContext(ctx) != ""
}

func (ContextTokenStrategy) Acquire(ctx context.Context) (*oauth2.Token, error) {
	return &oauth2.Token{
		AccessToken: AccessTokenFromContext(ctx),
		TokenType:   "Bearer",
	}, nil
}
