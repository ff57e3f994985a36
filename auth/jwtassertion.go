package auth

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const clientAssertionType = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

// assertionLifetime bounds the signed assertion itself, not the resulting
// access token.
const assertionLifetime = 4 * time.Minute

const backendTokenCacheKey = "backend-services"

// backendTokenCacheTTL must stay below the token lifetime issued by the
// clinical-records API (one hour), so a cached token is always still valid.
const backendTokenCacheTTL = 45 * time.Minute

// JWTAssertionConfig configures the signed-assertion (JWT bearer) grant used
// for system-to-system access without a client secret.
type JWTAssertionConfig struct {
	ClientID string `koanf:"clientid"`
	TokenURL string `koanf:"tokenurl"`
	// PrivateKeyFile points to a PEM-encoded RSA private key.
	PrivateKeyFile string   `koanf:"privatekeyfile"`
	Scopes         []string `koanf:"scopes"`
}

func (c JWTAssertionConfig) Valid() bool {
	return c.ClientID != "" && c.TokenURL != "" && c.PrivateKeyFile != ""
}

var _ TokenStrategy = &JWTAssertionStrategy{}

// JWTAssertionStrategy builds a short-lived signed assertion (issuer and
// subject both the client id, audience the token endpoint, fresh jti), POSTs
// it as a client_assertion grant and caches the resulting token under a
// fixed key.
//
// CanHandle always reports true, so this strategy must be registered last:
// it is the fallback when no more specific model applies.
type JWTAssertionStrategy struct {
	config     JWTAssertionConfig
	signingKey *rsa.PrivateKey
	httpClient *http.Client
	tokenCache *ttlcache.Cache[string, *oauth2.Token]
}

func NewJWTAssertionStrategy(config JWTAssertionConfig, httpClient *http.Client) (*JWTAssertionStrategy, error) {
	keyData, err := os.ReadFile(config.PrivateKeyFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read signing key %s: %w", config.PrivateKeyFile, err)
	}
	signingKey, err := parseRSAPrivateKey(keyData)
	if err != nil {
		return nil, fmt.Errorf("unable to parse signing key %s: %w", config.PrivateKeyFile, err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &JWTAssertionStrategy{
		config:     config,
		signingKey: signingKey,
		httpClient: httpClient,
		tokenCache: ttlcache.New[string, *oauth2.Token](
			ttlcache.WithTTL[string, *oauth2.Token](backendTokenCacheTTL),
		),
	}, nil
}

func (s *JWTAssertionStrategy) Name() string {
	return "jwt-assertion"
}

func (s *JWTAssertionStrategy) CanHandle(_ context.Context) bool {
	return true
}

func (s *JWTAssertionStrategy) Acquire(ctx context.Context) (*oauth2.Token, error) {
	if item := s.tokenCache.Get(backendTokenCacheKey); item != nil {
		return item.Value(), nil
	}
	assertion, err := s.signAssertion()
	if err != nil {
		return nil, err
	}
	form := url.Values{
		"grant_type":            {"client_credentials"},
		"client_assertion_type": {clientAssertionType},
		"client_assertion":      {assertion},
	}
	token, err := exchangeToken(ctx, s.httpClient, s.config.TokenURL, form)
	if err != nil {
		return nil, err
	}
	s.tokenCache.Set(backendTokenCacheKey, token, ttlcache.DefaultTTL)
	log.Ctx(ctx).Debug().Msgf("Acquired backend-services token for client %s", s.config.ClientID)
	return token, nil
}

func (s *JWTAssertionStrategy) signAssertion() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    s.config.ClientID,
		Subject:   s.config.ClientID,
		Audience:  jwt.ClaimStrings{s.config.TokenURL},
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(assertionLifetime)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS384, claims).SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("unable to sign client assertion: %w", err)
	}
	return signed, nil
}

func parseRSAPrivateKey(keyData []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(keyData)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	rsaKey, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA private key: %T", parsed)
	}
	return rsaKey, nil
}
