package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type failingStrategy struct{}

func (failingStrategy) Name() string                   { return "failing" }
func (failingStrategy) CanHandle(context.Context) bool { return true }
func (failingStrategy) Acquire(context.Context) (*oauth2.Token, error) {
	return nil, errors.New("token endpoint unreachable")
}

func TestTransport(t *testing.T) {
	var receivedAuthorization string
	upstream := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		receivedAuthorization = request.Header.Get("Authorization")
		writer.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	t.Run("attaches the resolved bearer token", func(t *testing.T) {
		httpClient := NewHTTPClient(NewResolver(ContextTokenStrategy{}))
		request, _ := http.NewRequestWithContext(WithAccessToken(context.Background(), "relayed"), http.MethodGet, upstream.URL, nil)

		response, err := httpClient.Do(request)
		require.NoError(t, err)
		response.Body.Close()

		assert.Equal(t, "Bearer relayed", receivedAuthorization)
	})
	t.Run("acquisition failure sends the request unauthenticated", func(t *testing.T) {
		httpClient := NewHTTPClient(NewResolver(failingStrategy{}))
		request, _ := http.NewRequest(http.MethodGet, upstream.URL, nil)

		response, err := httpClient.Do(request)
		require.NoError(t, err)
		response.Body.Close()

		assert.Empty(t, receivedAuthorization)
	})
	t.Run("no applicable strategy fails the call", func(t *testing.T) {
		httpClient := NewHTTPClient(NewResolver(ContextTokenStrategy{}))
		request, _ := http.NewRequest(http.MethodGet, upstream.URL, nil)

		_, err := httpClient.Do(request)
		require.ErrorIs(t, err, ErrNoStrategy)
	})
}
