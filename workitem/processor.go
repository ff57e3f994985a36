package workitem

import (
	"context"
	"fmt"

	"github.com/lumenhealth/priorauth/gateway/ehr"
	"github.com/lumenhealth/priorauth/gateway/events"
	"github.com/lumenhealth/priorauth/gateway/intelligence"
	"github.com/lumenhealth/priorauth/gateway/tracking"
	"github.com/rs/zerolog/log"
)

// SnapshotSource aggregates the clinical snapshot for a patient.
type SnapshotSource interface {
	Aggregate(ctx context.Context, patientID string) (*ehr.Snapshot, error)
}

// Analyzer runs the clinical reasoning call.
type Analyzer interface {
	Analyze(ctx context.Context, request intelligence.AnalyzeRequest) (*intelligence.AnalyzeResponse, error)
}

// Processor drives a work item from pending to a reviewed status once its
// encounter completes: aggregate the snapshot, run the analysis, map the
// recommendation. A transport or validation failure anywhere in that chain
// propagates and leaves the work item in its prior state, so processing can
// safely be triggered again.
type Processor struct {
	store     Store
	registry  *tracking.Registry
	snapshots SnapshotSource
	analyzer  Analyzer
}

func NewProcessor(store Store, registry *tracking.Registry, snapshots SnapshotSource, analyzer Analyzer) *Processor {
	return &Processor{
		store:     store,
		registry:  registry,
		snapshots: snapshots,
		analyzer:  analyzer,
	}
}

// Subscribe wires the processor to encounter-completion events.
func (p *Processor) Subscribe(manager events.Manager) error {
	return manager.Subscribe(&tracking.EncounterCompletedEvent{}, func(ctx context.Context, rawEvent events.Type) error {
		event := rawEvent.(*tracking.EncounterCompletedEvent)
		if err := p.Process(ctx, event.WorkItemID); err != nil {
			log.Ctx(ctx).Error().Err(err).Msgf("Work item processing failed, item left unchanged for retry (workItem=%s)", event.WorkItemID)
			return err
		}
		return nil
	})
}

// Process runs one analysis pass for the given work item.
func (p *Processor) Process(ctx context.Context, workItemID string) error {
	item, err := p.store.Get(ctx, workItemID)
	if err != nil {
		return err
	}
	patientID := item.PatientID
	if tracked, ok := p.registry.Get(item.PatientID); ok && tracked.FHIRPatientID != "" {
		// The poller may have resolved the definitive external patient id
		// from the encounter; prefer it over what the caller registered.
		patientID = tracked.FHIRPatientID
	}
	snapshot, err := p.snapshots.Aggregate(ctx, patientID)
	if err != nil {
		return fmt.Errorf("snapshot for work item %s: %w", workItemID, err)
	}
	analysis, err := p.analyzer.Analyze(ctx, intelligence.AnalyzeRequest{
		PatientID:     patientID,
		ProcedureCode: item.ProcedureCode,
		ClinicalData:  intelligence.FromSnapshot(snapshot),
	})
	if err != nil {
		return fmt.Errorf("analysis for work item %s: %w", workItemID, err)
	}
	status := statusForRecommendation(analysis.Recommendation)
	serviceRequestID := discoverServiceRequest(snapshot, item.ProcedureCode)
	if _, err := p.store.UpdateResult(ctx, workItemID, status, item.ProcedureCode, serviceRequestID); err != nil {
		return err
	}
	log.Ctx(ctx).Info().Msgf("Work item processed (id=%s, recommendation=%s, status=%s)", workItemID, analysis.Recommendation, status)
	return nil
}

// statusForRecommendation maps the reasoning verdict onto the workflow.
// Approvals and manual-review calls both land on a reviewer's desk; only a
// need-info verdict sends the item back for more data.
func statusForRecommendation(recommendation intelligence.Recommendation) Status {
	switch recommendation {
	case intelligence.RecommendationApprove, intelligence.RecommendationManualReview:
		return StatusReadyForReview
	case intelligence.RecommendationNeedInfo:
		return StatusMissingData
	default:
		return StatusPayerRequirementsNotMet
	}
}

// discoverServiceRequest picks the snapshot's service request matching the
// procedure code, falling back to the first one present.
func discoverServiceRequest(snapshot *ehr.Snapshot, procedureCode string) string {
	for _, entry := range snapshot.ServiceRequests {
		if procedureCode != "" && entry.Code == procedureCode {
			return entry.ID
		}
	}
	if len(snapshot.ServiceRequests) > 0 {
		return snapshot.ServiceRequests[0].ID
	}
	return ""
}
