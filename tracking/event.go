package tracking

import (
	"github.com/lumenhealth/priorauth/gateway/events"
	"github.com/lumenhealth/priorauth/gateway/messaging"
)

var _ events.Type = &EncounterCompletedEvent{}

// EncounterCompletedEvent is emitted exactly once per tracked patient when
// the poller observes the encounter transitioning into "finished".
type EncounterCompletedEvent struct {
	PatientID   string `json:"patientId"`
	EncounterID string `json:"encounterId"`
	WorkItemID  string `json:"workItemId"`
	// FHIRPatientID is the resolved external patient id, empty if the
	// encounter carried no subject reference.
	FHIRPatientID string `json:"fhirPatientId,omitempty"`
}

func (e *EncounterCompletedEvent) Topic() messaging.Topic {
	return messaging.Topic{Name: "encounter-completed"}
}

func (e *EncounterCompletedEvent) Instance() events.Type {
	return &EncounterCompletedEvent{}
}
