package parequest

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/lumenhealth/priorauth/gateway/ehr"
	"github.com/lumenhealth/priorauth/gateway/intelligence"
	"github.com/lumenhealth/priorauth/gateway/lib/to"
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

// Processor runs the clinical analysis for a draft request and writes the
// outcome back: summary, scaled confidence and per-criterion verdicts.
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

// Process analyzes one request. An unknown id returns (nil, nil) without
// any outbound call. Transport failures from the snapshot or analysis call
// propagate and leave the request untouched, so processing can be retried.
func (p *Processor) Process(ctx context.Context, id string) (*Request, error) {
	request, err := p.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	patientID := request.Patient.MRN
	if tracked, ok := p.registry.Get(patientID); ok && tracked.FHIRPatientID != "" {
		patientID = tracked.FHIRPatientID
	}
	snapshot, err := p.snapshots.Aggregate(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("snapshot for request %s: %w", id, err)
	}
	analysis, err := p.analyzer.Analyze(ctx, intelligence.AnalyzeRequest{
		PatientID:     patientID,
		ProcedureCode: request.ProcedureCode,
		ClinicalData:  intelligence.FromSnapshot(snapshot),
	})
	if err != nil {
		return nil, fmt.Errorf("analysis for request %s: %w", id, err)
	}
	updated, err := p.store.ApplyAnalysis(ctx, id, AnalysisResult{
		ClinicalSummary: analysis.ClinicalSummary,
		Confidence:      scaleConfidence(analysis.ConfidenceScore),
		Criteria:        criteriaFromEvidence(analysis.SupportingEvidence),
	})
	if err != nil {
		return nil, err
	}
	log.Ctx(ctx).Info().Msgf("Authorization request processed (id=%s, confidence=%d)", id, updated.Confidence)
	return updated, nil
}

// scaleConfidence maps the reasoning score in [0, 1] to 0-100, rounding
// half away from zero: 0.855 becomes 86.
func scaleConfidence(score float64) int {
	return int(math.Round(score * 100))
}

// criteriaFromEvidence maps each evidence verdict to a tri-state criterion:
// MET is true, NOT_MET is false, UNCLEAR and anything unrecognized stay nil.
func criteriaFromEvidence(evidence []intelligence.EvidenceItem) []Criterion {
	criteria := make([]Criterion, 0, len(evidence))
	for _, item := range evidence {
		criterion := Criterion{
			Label:  item.CriterionID,
			Reason: item.Evidence,
		}
		switch item.Status {
		case intelligence.EvidenceMet:
			criterion.Met = to.Ptr(true)
		case intelligence.EvidenceNotMet:
			criterion.Met = to.Ptr(false)
		}
		criteria = append(criteria, criterion)
	}
	return criteria
}
