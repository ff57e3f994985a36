package workitem

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lumenhealth/priorauth/gateway/ehr"
	"github.com/lumenhealth/priorauth/gateway/events"
	"github.com/lumenhealth/priorauth/gateway/intelligence"
	"github.com/lumenhealth/priorauth/gateway/lib/outcome"
	"github.com/lumenhealth/priorauth/gateway/messaging"
	"github.com/lumenhealth/priorauth/gateway/tracking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zorgbijjou/golang-fhir-models/fhir-models/fhir"
)

type stubSnapshotSource struct {
	snapshot  *ehr.Snapshot
	err       error
	patientID atomic.Value
}

func (s *stubSnapshotSource) Aggregate(_ context.Context, patientID string) (*ehr.Snapshot, error) {
	s.patientID.Store(patientID)
	if s.err != nil {
		return nil, s.err
	}
	return s.snapshot, nil
}

type stubAnalyzer struct {
	response *intelligence.AnalyzeResponse
	err      error
	request  atomic.Value
}

func (s *stubAnalyzer) Analyze(_ context.Context, request intelligence.AnalyzeRequest) (*intelligence.AnalyzeResponse, error) {
	s.request.Store(request)
	if s.err != nil {
		return nil, s.err
	}
	return s.response, nil
}

func TestProcessor_Process(t *testing.T) {
	ctx := context.Background()
	newFixture := func(t *testing.T) (Store, *tracking.Registry, *stubSnapshotSource, *stubAnalyzer, *WorkItem) {
		store := NewMemoryStore()
		item := &WorkItem{PatientID: "pat-1", EncounterID: "enc-1", ProcedureCode: "72148"}
		require.NoError(t, store.Create(ctx, item))
		registry := tracking.NewRegistry()
		registry.Register("pat-1", "enc-1", "prac-1", item.ID)
		snapshots := &stubSnapshotSource{snapshot: &ehr.Snapshot{
			PatientID: "pat-1",
			ServiceRequests: []ehr.Entry{
				{ID: "sr-other", Code: "70551"},
				{ID: "sr-match", Code: "72148"},
			},
		}}
		analyzer := &stubAnalyzer{response: &intelligence.AnalyzeResponse{
			Recommendation:  intelligence.RecommendationApprove,
			ConfidenceScore: 0.9,
		}}
		return store, registry, snapshots, analyzer, item
	}

	t.Run("approve lands on ready-for-review with discovered service request", func(t *testing.T) {
		store, registry, snapshots, analyzer, item := newFixture(t)
		processor := NewProcessor(store, registry, snapshots, analyzer)

		require.NoError(t, processor.Process(ctx, item.ID))

		updated, err := store.Get(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusReadyForReview, updated.Status)
		assert.Equal(t, "sr-match", updated.ServiceRequestID)
		assert.Equal(t, "72148", analyzer.request.Load().(intelligence.AnalyzeRequest).ProcedureCode)
	})
	t.Run("prefers resolved external patient id over the registered one", func(t *testing.T) {
		store, registry, snapshots, analyzer, item := newFixture(t)
		registry.RecordPoll("pat-1", time.Now(), fhir.EncounterStatusFinished, "fhir-pat-1")
		processor := NewProcessor(store, registry, snapshots, analyzer)

		require.NoError(t, processor.Process(ctx, item.ID))

		assert.Equal(t, "fhir-pat-1", snapshots.patientID.Load())
		assert.Equal(t, "fhir-pat-1", analyzer.request.Load().(intelligence.AnalyzeRequest).PatientID)
	})
	t.Run("recommendation mapping", func(t *testing.T) {
		testCases := []struct {
			recommendation intelligence.Recommendation
			expected       Status
		}{
			{intelligence.RecommendationApprove, StatusReadyForReview},
			{intelligence.RecommendationManualReview, StatusReadyForReview},
			{intelligence.RecommendationNeedInfo, StatusMissingData},
			{intelligence.RecommendationDeny, StatusPayerRequirementsNotMet},
			{intelligence.Recommendation("SOMETHING_ELSE"), StatusPayerRequirementsNotMet},
		}
		for _, testCase := range testCases {
			t.Run(string(testCase.recommendation), func(t *testing.T) {
				store, registry, snapshots, analyzer, item := newFixture(t)
				analyzer.response.Recommendation = testCase.recommendation
				processor := NewProcessor(store, registry, snapshots, analyzer)

				require.NoError(t, processor.Process(ctx, item.ID))

				updated, err := store.Get(ctx, item.ID)
				require.NoError(t, err)
				assert.Equal(t, testCase.expected, updated.Status)
			})
		}
	})
	t.Run("aggregation failure propagates, item unchanged", func(t *testing.T) {
		store, registry, snapshots, analyzer, item := newFixture(t)
		snapshots.err = &outcome.NetworkError{Cause: errors.New("upstream down")}
		processor := NewProcessor(store, registry, snapshots, analyzer)

		err := processor.Process(ctx, item.ID)
		require.Error(t, err)
		assert.True(t, outcome.IsUnavailable(err))

		unchanged, readErr := store.Get(ctx, item.ID)
		require.NoError(t, readErr)
		assert.Equal(t, StatusPending, unchanged.Status)
	})
	t.Run("analysis failure propagates, item unchanged", func(t *testing.T) {
		store, registry, snapshots, analyzer, item := newFixture(t)
		analyzer.err = &outcome.NetworkError{Cause: errors.New("reasoning down")}
		processor := NewProcessor(store, registry, snapshots, analyzer)

		require.Error(t, processor.Process(ctx, item.ID))

		unchanged, err := store.Get(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusPending, unchanged.Status)
	})
	t.Run("unknown work item", func(t *testing.T) {
		store, registry, snapshots, analyzer, _ := newFixture(t)
		processor := NewProcessor(store, registry, snapshots, analyzer)

		require.ErrorIs(t, processor.Process(ctx, "unknown"), ErrNotFound)
	})
}

func TestProcessor_Subscribe(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	item := &WorkItem{PatientID: "pat-1", EncounterID: "enc-1", ProcedureCode: "72148"}
	require.NoError(t, store.Create(ctx, item))
	registry := tracking.NewRegistry()
	registry.Register("pat-1", "enc-1", "prac-1", item.ID)
	snapshots := &stubSnapshotSource{snapshot: &ehr.Snapshot{PatientID: "pat-1"}}
	analyzer := &stubAnalyzer{response: &intelligence.AnalyzeResponse{Recommendation: intelligence.RecommendationApprove}}
	processor := NewProcessor(store, registry, snapshots, analyzer)
	broker := messaging.NewMemoryBroker()
	manager := events.NewManager(broker)
	require.NoError(t, processor.Subscribe(manager))

	require.NoError(t, manager.Notify(ctx, &tracking.EncounterCompletedEvent{
		PatientID:  "pat-1",
		WorkItemID: item.ID,
	}))
	require.NoError(t, broker.Close(ctx))

	updated, err := store.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusReadyForReview, updated.Status)
}
