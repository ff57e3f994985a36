package auth

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// ClientCredentialsConfig configures the OAuth2 client-credentials grant
// against the clinical-records API's token endpoint.
type ClientCredentialsConfig struct {
	// Provider names the upstream identity provider; it keys the token cache.
	Provider     string   `koanf:"provider"`
	ClientID     string   `koanf:"clientid"`
	ClientSecret string   `koanf:"clientsecret"`
	TokenURL     string   `koanf:"tokenurl"`
	Scopes       []string `koanf:"scopes"`
}

// Valid reports whether the configuration is structurally usable.
func (c ClientCredentialsConfig) Valid() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.TokenURL != ""
}

var _ TokenStrategy = &ClientCredentialsStrategy{}

// ClientCredentialsStrategy exchanges a client id/secret for a bearer token
// and caches it, keyed by provider, until expires_in minus a safety buffer
// elapses.
type ClientCredentialsStrategy struct {
	config     ClientCredentialsConfig
	httpClient *http.Client
	tokenCache *ttlcache.Cache[string, *oauth2.Token]
}

func NewClientCredentialsStrategy(config ClientCredentialsConfig, httpClient *http.Client) *ClientCredentialsStrategy {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &ClientCredentialsStrategy{
		config:     config,
		httpClient: httpClient,
		tokenCache: ttlcache.New[string, *oauth2.Token](),
	}
}

func (s *ClientCredentialsStrategy) Name() string {
	return "client-credentials"
}

func (s *ClientCredentialsStrategy) CanHandle(_ context.Context) bool {
	return s.config.Valid()
}

func (s *ClientCredentialsStrategy) Acquire(ctx context.Context) (*oauth2.Token, error) {
	if item := s.tokenCache.Get(s.config.Provider); item != nil {
		return item.Value(), nil
	}
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {s.config.ClientID},
		"client_secret": {s.config.ClientSecret},
	}
	if len(s.config.Scopes) > 0 {
		form.Set("scope", strings.Join(s.config.Scopes, " "))
	}
	token, err := exchangeToken(ctx, s.httpClient, s.config.TokenURL, form)
	if err != nil {
		return nil, err
	}
	if ttl := time.Until(token.Expiry) - tokenExpiryBuffer; ttl > 0 {
		s.tokenCache.Set(s.config.Provider, token, ttl)
	}
	log.Ctx(ctx).Debug().Msgf("Acquired client-credentials token for provider %s", s.config.Provider)
	return token, nil
}
