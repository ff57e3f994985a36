package tracking

import (
	"context"
	"strings"
	"time"

	"github.com/lumenhealth/priorauth/gateway/events"
	"github.com/rs/zerolog/log"
	"github.com/zorgbijjou/golang-fhir-models/fhir-models/fhir"
)

// Config holds the configuration for the encounter poll loop.
type Config struct {
	// Interval between poll rounds.
	Interval time.Duration `koanf:"interval"`
}

func DefaultConfig() Config {
	return Config{Interval: time.Minute}
}

// EncounterReader is the poller's view on the clinical-records repository.
type EncounterReader interface {
	ReadEncounter(ctx context.Context, id string) (*fhir.Encounter, error)
}

// Poller re-checks the encounter status of every active tracked patient on a
// fixed interval, independent of request handling. Completion is signalled
// through the event manager rather than handled in-loop, so a slow processor
// never delays the next poll round.
type Poller struct {
	registry     *Registry
	encounters   EncounterReader
	eventManager events.Manager
	interval     time.Duration
}

func NewPoller(registry *Registry, encounters EncounterReader, eventManager events.Manager, config Config) *Poller {
	return &Poller{
		registry:     registry,
		encounters:   encounters,
		eventManager: eventManager,
		interval:     config.Interval,
	}
}

// Start runs the poll loop until the context is cancelled.
func (p *Poller) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		log.Ctx(ctx).Info().Msgf("Encounter poller started (interval=%s)", p.interval)
		for {
			select {
			case <-ctx.Done():
				log.Ctx(ctx).Info().Msg("Encounter poller stopped")
				return
			case <-ticker.C:
				p.pollOnce(ctx)
			}
		}
	}()
}

func (p *Poller) pollOnce(ctx context.Context) {
	for _, tracked := range p.registry.ListActive() {
		// A patient whose encounter already finished is done; the completion
		// signal must fire on the edge only.
		if tracked.LastStatus != nil && *tracked.LastStatus == fhir.EncounterStatusFinished {
			continue
		}
		encounter, err := p.encounters.ReadEncounter(ctx, tracked.EncounterID)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Msgf("Encounter poll failed (patient=%s, encounter=%s)", tracked.PatientID, tracked.EncounterID)
			continue
		}
		resolvedPatientID := subjectPatientID(encounter)
		p.registry.RecordPoll(tracked.PatientID, time.Now(), encounter.Status, resolvedPatientID)

		if encounter.Status == fhir.EncounterStatusFinished {
			event := &EncounterCompletedEvent{
				PatientID:     tracked.PatientID,
				EncounterID:   tracked.EncounterID,
				WorkItemID:    tracked.WorkItemID,
				FHIRPatientID: resolvedPatientID,
			}
			if event.FHIRPatientID == "" {
				event.FHIRPatientID = tracked.FHIRPatientID
			}
			if err := p.eventManager.Notify(ctx, event); err != nil {
				log.Ctx(ctx).Error().Err(err).Msgf("Unable to signal encounter completion (patient=%s)", tracked.PatientID)
			} else {
				log.Ctx(ctx).Info().Msgf("Encounter completed (patient=%s, encounter=%s, workItem=%s)", tracked.PatientID, tracked.EncounterID, tracked.WorkItemID)
			}
		}
	}
}

func subjectPatientID(encounter *fhir.Encounter) string {
	if encounter.Subject == nil || encounter.Subject.Reference == nil {
		return ""
	}
	reference := *encounter.Subject.Reference
	if id, found := strings.CutPrefix(reference, "Patient/"); found {
		return id
	}
	return ""
}
