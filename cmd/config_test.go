package cmd

import (
	"testing"
	"time"

	"github.com/lumenhealth/priorauth/gateway/ehr"
	"github.com/lumenhealth/priorauth/gateway/intelligence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	t.Run("FHIR base URL not configured", func(t *testing.T) {
		c := DefaultConfig()
		c.Intelligence.URL = "http://reasoning.internal"
		err := c.Validate()
		require.ErrorContains(t, err, "invalid FHIR configuration")
	})
	t.Run("reasoning service URL not configured", func(t *testing.T) {
		c := DefaultConfig()
		c.FHIR.BaseURL = "http://fhir.internal/r4"
		err := c.Validate()
		require.ErrorContains(t, err, "invalid reasoning service configuration")
	})
	t.Run("complete configuration", func(t *testing.T) {
		c := DefaultConfig()
		c.FHIR.BaseURL = "http://fhir.internal/r4"
		c.Intelligence.URL = "http://reasoning.internal"
		require.NoError(t, c.Validate())
	})
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("PAGW_FHIR_BASEURL", "http://fhir.internal/r4")
	t.Setenv("PAGW_FHIR_LOOKBACK_OBSERVATIONMONTHS", "3")
	t.Setenv("PAGW_INTELLIGENCE_URL", "http://reasoning.internal")
	t.Setenv("PAGW_AUTH_CLIENTCREDENTIALS_CLIENTID", "client-1")
	t.Setenv("PAGW_AUTH_CLIENTCREDENTIALS_SCOPES", "system/Patient.read, system/Encounter.read")
	t.Setenv("PAGW_DATABASE_DSN", "postgres://localhost/priorauth")
	t.Setenv("PAGW_DEMO_ENABLED", "true")

	config, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "http://fhir.internal/r4", config.FHIR.BaseURL)
	assert.Equal(t, 3, config.FHIR.Lookback.ObservationMonths)
	// Unset lookbacks keep their defaults.
	assert.Equal(t, ehr.DefaultLookback().ProcedureMonths, config.FHIR.Lookback.ProcedureMonths)
	assert.Equal(t, "http://reasoning.internal", config.Intelligence.URL)
	assert.Equal(t, "client-1", config.Auth.ClientCredentials.ClientID)
	assert.Equal(t, []string{"system/Patient.read", "system/Encounter.read"}, config.Auth.ClientCredentials.Scopes)
	assert.Equal(t, "postgres://localhost/priorauth", config.Database.DSN)
	assert.True(t, config.Demo.Enabled)
	assert.Equal(t, ":8080", config.Public.Address)
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	assert.Equal(t, intelligence.DefaultConfig(), config.Intelligence)
	assert.Equal(t, time.Minute, config.Poller.Interval)
}
