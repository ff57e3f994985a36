package ehr

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zorgbijjou/golang-fhir-models/fhir-models/fhir"
	"golang.org/x/sync/errgroup"
)

// LookbackConfig bounds, in months, how far back each resource kind is
// fetched. Zero means no window. Conditions are always fetched unbounded:
// an old diagnosis can still justify a procedure.
type LookbackConfig struct {
	ObservationMonths int `koanf:"observationmonths"`
	ProcedureMonths   int `koanf:"proceduremonths"`
	DocumentMonths    int `koanf:"documentmonths"`
}

func DefaultLookback() LookbackConfig {
	return LookbackConfig{
		ObservationMonths: 6,
		ProcedureMonths:   12,
		DocumentMonths:    6,
	}
}

// Aggregator builds a Snapshot by fanning out one search per resource kind.
type Aggregator struct {
	repo     *Repository
	lookback LookbackConfig
	now      func() time.Time
}

func NewAggregator(repo *Repository, lookback LookbackConfig) *Aggregator {
	return &Aggregator{repo: repo, lookback: lookback, now: time.Now}
}

// Aggregate fetches the patient record and all clinical collections for the
// given patient id, concurrently. A failure on any one collection does not
// abort the others: it is logged and the corresponding sequence stays empty.
// A failure on the patient record itself is fatal, since a snapshot without
// a patient is meaningless. Nothing is persisted; cancelling the context
// leaves no partial state anywhere.
func (a *Aggregator) Aggregate(ctx context.Context, patientID string) (*Snapshot, error) {
	patient, err := Read[fhir.Patient](ctx, a.repo, "Patient", patientID)
	if err != nil {
		return nil, fmt.Errorf("patient lookup for snapshot failed: %w", err)
	}
	snapshot := &Snapshot{
		PatientID: patientID,
		Patient:   *patient,
	}

	var group errgroup.Group
	group.Go(func() error {
		snapshot.Conditions = collect(ctx, a.repo, "Condition", a.patientQuery(patientID, 0), conditionEntry)
		return nil
	})
	group.Go(func() error {
		snapshot.Observations = collect(ctx, a.repo, "Observation", a.patientQuery(patientID, a.lookback.ObservationMonths), observationEntry)
		return nil
	})
	group.Go(func() error {
		snapshot.Procedures = collect(ctx, a.repo, "Procedure", a.patientQuery(patientID, a.lookback.ProcedureMonths), procedureEntry)
		return nil
	})
	group.Go(func() error {
		snapshot.ServiceRequests = collect(ctx, a.repo, "ServiceRequest", a.patientQuery(patientID, 0), serviceRequestEntry)
		return nil
	})
	group.Go(func() error {
		snapshot.Documents = collect(ctx, a.repo, "DocumentReference", a.patientQuery(patientID, a.lookback.DocumentMonths), documentEntry)
		return nil
	})
	_ = group.Wait()
	return snapshot, nil
}

func (a *Aggregator) patientQuery(patientID string, lookbackMonths int) url.Values {
	query := url.Values{"patient": {patientID}}
	if lookbackMonths > 0 {
		since := a.now().AddDate(0, -lookbackMonths, 0)
		query.Set("date", "ge"+since.Format("2006-01-02"))
	}
	return query
}

// collect degrades a failed search to an empty sequence.
func collect[T any](ctx context.Context, repo *Repository, resourceType string, query url.Values, mapEntry func(T) Entry) []Entry {
	resources, err := Search[T](ctx, repo, resourceType, query)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msgf("Snapshot aggregation: %s search failed, continuing with empty result", resourceType)
		return []Entry{}
	}
	entries := make([]Entry, 0, len(resources))
	for _, resource := range resources {
		entries = append(entries, mapEntry(resource))
	}
	return entries
}
