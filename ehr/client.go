// Package ehr talks to the external clinical-records API (a FHIR-style
// REST interface). It translates transport and status-code outcomes into
// the tagged error types of lib/outcome instead of surfacing raw HTTP
// failures, and assembles per-patient clinical snapshots.
package ehr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	fhirclient "github.com/SanteonNL/go-fhir-client"
	"github.com/lumenhealth/priorauth/gateway/lib/outcome"
	"github.com/rs/zerolog/log"
	"github.com/zorgbijjou/golang-fhir-models/fhir-models/fhir"
)

// Config holds the configuration for the clinical-records API connection.
type Config struct {
	// BaseURL is the FHIR base URL of the clinical-records API.
	BaseURL string `koanf:"baseurl"`
	// Lookback bounds the history fetched per resource kind, see Aggregator.
	Lookback LookbackConfig `koanf:"lookback"`
}

func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("clinical-records API base URL is not configured")
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return fmt.Errorf("invalid clinical-records API base URL: %w", err)
	}
	return nil
}

// ClientConfig returns the FHIR client configuration used for all
// clinical-records calls. Searches use plain GETs, which is what the
// upstream API supports.
func ClientConfig() *fhirclient.Config {
	config := fhirclient.DefaultConfig()
	config.UsePostSearch = false
	config.Non2xxStatusHandler = func(response *http.Response, responseBody []byte) {
		log.Debug().Msgf("Non-2xx status code from clinical-records API (%s %s, status=%d), content: %s",
			response.Request.Method, response.Request.URL, response.StatusCode, string(responseBody))
	}
	return &config
}

// Repository performs typed CRUD against the clinical-records API.
type Repository struct {
	client fhirclient.Client
}

// NewRepository creates a Repository for the given FHIR base URL. The HTTP
// client is expected to attach credentials itself (see the auth package).
func NewRepository(fhirBaseURL *url.URL, httpClient fhirclient.HttpRequestDoer) *Repository {
	return &Repository{client: fhirclient.New(fhirBaseURL, httpClient, ClientConfig())}
}

// NewRepositoryWithClient wraps an existing FHIR client, used in tests.
func NewRepositoryWithClient(client fhirclient.Client) *Repository {
	return &Repository{client: client}
}

// Read fetches a single resource by id.
func Read[T any](ctx context.Context, repo *Repository, resourceType string, id string) (*T, error) {
	var resource T
	var statusCode int
	err := repo.client.ReadWithContext(ctx, resourceType+"/"+id, &resource, fhirclient.ResponseStatusCode(&statusCode))
	if err != nil {
		return nil, classify(resourceType, id, statusCode, err)
	}
	return &resource, nil
}

// Search queries a resource collection and returns the entries that
// deserialize cleanly. Entries of another resource type or with malformed
// content are logged and skipped: partial results are preferred over total
// failure.
func Search[T any](ctx context.Context, repo *Repository, resourceType string, query url.Values) ([]T, error) {
	var bundle fhir.Bundle
	var statusCode int
	err := repo.client.SearchWithContext(ctx, resourceType, query, &bundle, fhirclient.ResponseStatusCode(&statusCode))
	if err != nil {
		return nil, classify(resourceType, "", statusCode, err)
	}
	results := make([]T, 0, len(bundle.Entry))
	for _, entry := range bundle.Entry {
		if len(entry.Resource) == 0 {
			continue
		}
		var desc struct {
			ResourceType string `json:"resourceType"`
		}
		if err := json.Unmarshal(entry.Resource, &desc); err != nil || desc.ResourceType != resourceType {
			continue
		}
		var resource T
		if err := json.Unmarshal(entry.Resource, &resource); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msgf("Skipping undecodable %s entry in search result", resourceType)
			continue
		}
		results = append(results, resource)
	}
	return results, nil
}

// Create stores a new resource and returns the server's representation.
func Create[T any](ctx context.Context, repo *Repository, resource T) (*T, error) {
	var created T
	var statusCode int
	desc, err := fhirclient.DescribeResource(resource)
	if err != nil {
		return nil, &outcome.ValidationError{Detail: "resource is not serializable", Cause: err}
	}
	err = repo.client.CreateWithContext(ctx, resource, &created, fhirclient.ResponseStatusCode(&statusCode))
	if err != nil {
		return nil, classify(desc.Type, "", statusCode, err)
	}
	return &created, nil
}

// ReadEncounter is the poller's view on the repository.
func (r *Repository) ReadEncounter(ctx context.Context, id string) (*fhir.Encounter, error) {
	return Read[fhir.Encounter](ctx, r, "Encounter", id)
}

// classify maps a failed call onto the outcome taxonomy. A status code of
// zero means the HTTP exchange itself never completed. A 2xx status with an
// error means the response body did not deserialize, which is treated as a
// validation failure rather than an exception.
func classify(resourceType string, id string, statusCode int, err error) error {
	switch {
	case statusCode == http.StatusNotFound:
		return &outcome.NotFoundError{ResourceType: resourceType, ID: id}
	case statusCode == http.StatusUnauthorized:
		return outcome.ErrUnauthorized
	case statusCode == http.StatusUnprocessableEntity:
		return &outcome.ValidationError{Detail: err.Error(), Cause: err}
	case statusCode >= 200 && statusCode < 300:
		return &outcome.ValidationError{Detail: "response did not deserialize", Cause: err}
	default:
		// Transport-level failures (no status) and 5xx responses.
		return &outcome.NetworkError{Cause: err}
	}
}
