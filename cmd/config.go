package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/lumenhealth/priorauth/gateway/auth"
	"github.com/lumenhealth/priorauth/gateway/ehr"
	"github.com/lumenhealth/priorauth/gateway/intelligence"
	"github.com/lumenhealth/priorauth/gateway/tracking"
	"github.com/rs/zerolog"
)

type Config struct {
	// Public holds the configuration for the public interface.
	Public InterfaceConfig `koanf:"public"`
	// FHIR holds the configuration for the clinical-records API.
	FHIR ehr.Config `koanf:"fhir"`
	// Auth holds the token-acquisition configuration for outbound calls.
	Auth AuthConfig `koanf:"auth"`
	// Intelligence holds the configuration for the reasoning service.
	Intelligence intelligence.Config `koanf:"intelligence"`
	Poller       tracking.Config     `koanf:"poller"`
	Database     DatabaseConfig      `koanf:"database"`
	Demo         DemoConfig          `koanf:"demo"`
	LogLevel     zerolog.Level       `koanf:"loglevel"`
}

// AuthConfig configures the outbound token strategies. The signed-assertion
// strategy is the fallback; it is only registered when configured.
type AuthConfig struct {
	ClientCredentials auth.ClientCredentialsConfig `koanf:"clientcredentials"`
	JWTAssertion      auth.JWTAssertionConfig      `koanf:"jwtassertion"`
}

// DatabaseConfig selects the storage backend: a Postgres DSN, or in-memory
// stores when left empty.
type DatabaseConfig struct {
	DSN string `koanf:"dsn"`
}

// DemoConfig controls seeding of the fixed demo dataset on startup.
type DemoConfig struct {
	Enabled bool `koanf:"enabled"`
}

func (c Config) Validate() error {
	if c.Public.Address == "" {
		return errors.New("public listen address is not configured")
	}
	if err := c.FHIR.Validate(); err != nil {
		return fmt.Errorf("invalid FHIR configuration: %w", err)
	}
	if err := c.Intelligence.Validate(); err != nil {
		return fmt.Errorf("invalid reasoning service configuration: %w", err)
	}
	return nil
}

// InterfaceConfig holds the configuration for an HTTP interface.
type InterfaceConfig struct {
	// Address holds the address to listen on.
	Address string `koanf:"address"`
}

// LoadConfig loads the configuration from the environment.
func LoadConfig() (*Config, error) {
	result := DefaultConfig()
	err := loadConfigInto(&result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func loadConfigInto(target any) error {
	k := koanf.New(".")
	err := k.Load(env.ProviderWithValue("PAGW_", ".", func(key string, value string) (string, interface{}) {
		key = strings.Replace(strings.ToLower(strings.TrimPrefix(key, "PAGW_")), "_", ".", -1)
		if len(value) == 0 {
			return key, nil
		}
		sliceValues := splitWithEscaping(value, ",", "\\")
		for i, s := range sliceValues {
			sliceValues[i] = strings.TrimSpace(s)
		}
		var parsedValue any = sliceValues
		if len(sliceValues) == 1 {
			parsedValue = sliceValues[0]
		}
		return key, parsedValue
	}), nil)
	if err != nil {
		return err
	}
	return k.Unmarshal("", target)
}

func splitWithEscaping(s, separator, escape string) []string {
	s = strings.ReplaceAll(s, escape+separator, "\x00")
	tokens := strings.Split(s, separator)
	for i, token := range tokens {
		tokens[i] = strings.ReplaceAll(token, "\x00", separator)
	}
	return tokens
}

// DefaultConfig returns sensible, but not complete, default configuration values.
func DefaultConfig() Config {
	return Config{
		LogLevel: zerolog.InfoLevel,
		Public: InterfaceConfig{
			Address: ":8080",
		},
		FHIR: ehr.Config{
			Lookback: ehr.DefaultLookback(),
		},
		Intelligence: intelligence.DefaultConfig(),
		Poller:       tracking.DefaultConfig(),
	}
}
