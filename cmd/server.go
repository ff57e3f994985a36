package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lumenhealth/priorauth/gateway/auth"
	"github.com/lumenhealth/priorauth/gateway/ehr"
	"github.com/lumenhealth/priorauth/gateway/events"
	"github.com/lumenhealth/priorauth/gateway/healthcheck"
	"github.com/lumenhealth/priorauth/gateway/intelligence"
	"github.com/lumenhealth/priorauth/gateway/lib/must"
	"github.com/lumenhealth/priorauth/gateway/messaging"
	"github.com/lumenhealth/priorauth/gateway/migration"
	"github.com/lumenhealth/priorauth/gateway/parequest"
	"github.com/lumenhealth/priorauth/gateway/tracking"
	"github.com/lumenhealth/priorauth/gateway/workitem"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Start(config Config) error {
	zerolog.SetGlobalLevel(config.LogLevel)
	if err := config.Validate(); err != nil {
		return err
	}
	ctx := log.Logger.WithContext(context.Background())

	// Set up storage behind the migration gate
	gate := migration.NewGate()
	var workItemStore workitem.Store
	var requestStore parequest.Store
	if config.Database.DSN != "" {
		pool, err := pgxpool.New(ctx, config.Database.DSN)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := migration.RunPostgres(ctx, pool, gate); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		workItemStore = workitem.NewPostgresStore(pool)
		requestStore = parequest.NewPostgresStore(pool)
	} else {
		migration.RunMemory(gate)
		workItemStore = workitem.NewMemoryStore()
		requestStore = parequest.NewMemoryStore()
	}

	// Outbound authentication: context token first, then client
	// credentials, signed assertion last since it handles everything.
	strategies := []auth.TokenStrategy{auth.ContextTokenStrategy{}}
	if config.Auth.ClientCredentials.Valid() {
		strategies = append(strategies, auth.NewClientCredentialsStrategy(config.Auth.ClientCredentials, http.DefaultClient))
	}
	if config.Auth.JWTAssertion.Valid() {
		jwtStrategy, err := auth.NewJWTAssertionStrategy(config.Auth.JWTAssertion, http.DefaultClient)
		if err != nil {
			return fmt.Errorf("failed to set up signed-assertion strategy: %w", err)
		}
		strategies = append(strategies, jwtStrategy)
	}
	resolver := auth.NewResolver(strategies...)

	// Clinical-records repository and aggregator
	repository := ehr.NewRepository(must.ParseURL(config.FHIR.BaseURL), auth.NewHTTPClient(resolver))
	aggregator := ehr.NewAggregator(repository, config.FHIR.Lookback)
	reasoning := intelligence.New(must.ParseURL(config.Intelligence.URL), config.Intelligence.Timeout)

	// Poller signals encounter completion over the broker; the work-item
	// processor consumes it, so processing never delays polling.
	broker := messaging.NewMemoryBroker()
	eventManager := events.NewManager(broker)
	registry := tracking.NewRegistry()
	workItemProcessor := workitem.NewProcessor(workItemStore, registry, aggregator, reasoning)
	if err := workItemProcessor.Subscribe(eventManager); err != nil {
		return fmt.Errorf("failed to subscribe work item processor: %w", err)
	}
	requestProcessor := parequest.NewProcessor(requestStore, registry, aggregator, reasoning)

	if config.Demo.Enabled {
		if err := parequest.Seed(ctx, requestStore); err != nil {
			return fmt.Errorf("failed to seed demo data: %w", err)
		}
	}

	// Register services
	httpHandler := http.NewServeMux()
	services := []Service{
		healthcheck.New(),
		workitem.New(workItemStore, registry, workItemProcessor),
		parequest.New(requestStore, requestProcessor),
	}
	for _, service := range services {
		service.RegisterHandlers(httpHandler)
	}

	tracking.NewPoller(registry, repository, eventManager, config.Poller).Start(ctx)

	// Start HTTP server
	err := http.ListenAndServe(config.Public.Address, gate.Middleware(httpHandler))
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

type Service interface {
	RegisterHandlers(mux *http.ServeMux)
}
