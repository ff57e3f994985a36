// Package tracking keeps the set of patients under active observation and
// polls the clinical-records API for their encounter status. It is
// process-local state: running multiple gateway instances would split the
// registry, a deliberate scale limitation.
package tracking

import (
	"sync"
	"time"

	"github.com/zorgbijjou/golang-fhir-models/fhir-models/fhir"
)

// ActiveHorizon bounds how long a registration stays a poll target.
// Inactive entries are excluded from polling but not eagerly deleted.
const ActiveHorizon = 12 * time.Hour

// TrackedPatient is one patient under observation. PatientID is the key;
// it always maps to exactly one work item.
type TrackedPatient struct {
	PatientID   string
	EncounterID string
	PracticeID  string
	WorkItemID  string
	// FHIRPatientID is the pre-resolved external patient id, populated by the
	// poller from the encounter's subject. When present it is preferred over
	// the raw PatientID for clinical-data lookups.
	FHIRPatientID string
	RegisteredAt  time.Time
	LastPolledAt  *time.Time
	// LastStatus is the last encounter status the poller observed, used to
	// detect the edge into "finished" rather than its level.
	LastStatus *fhir.EncounterStatus
}

// Registry is an in-memory keyed store of tracked patients.
type Registry struct {
	mux      sync.RWMutex
	patients map[string]*TrackedPatient
	now      func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		patients: map[string]*TrackedPatient{},
		now:      time.Now,
	}
}

// Register starts observing a patient. Registering an already-tracked
// patient overwrites the prior registration entirely.
func (r *Registry) Register(patientID, encounterID, practiceID, workItemID string) TrackedPatient {
	r.mux.Lock()
	defer r.mux.Unlock()
	tracked := &TrackedPatient{
		PatientID:    patientID,
		EncounterID:  encounterID,
		PracticeID:   practiceID,
		WorkItemID:   workItemID,
		RegisteredAt: r.now(),
	}
	r.patients[patientID] = tracked
	return *tracked
}

func (r *Registry) Get(patientID string) (TrackedPatient, bool) {
	r.mux.RLock()
	defer r.mux.RUnlock()
	tracked, ok := r.patients[patientID]
	if !ok {
		return TrackedPatient{}, false
	}
	return *tracked, true
}

func (r *Registry) Unregister(patientID string) bool {
	r.mux.Lock()
	defer r.mux.Unlock()
	_, ok := r.patients[patientID]
	delete(r.patients, patientID)
	return ok
}

// ListActive returns the patients registered within the active horizon.
func (r *Registry) ListActive() []TrackedPatient {
	r.mux.RLock()
	defer r.mux.RUnlock()
	cutoff := r.now().Add(-ActiveHorizon)
	var active []TrackedPatient
	for _, tracked := range r.patients {
		if tracked.RegisteredAt.After(cutoff) {
			active = append(active, *tracked)
		}
	}
	return active
}

// RecordPoll stores the outcome of one poll. The resolved FHIR patient id is
// only set once non-empty and is never cleared by later polls.
func (r *Registry) RecordPoll(patientID string, polledAt time.Time, status fhir.EncounterStatus, fhirPatientID string) {
	r.mux.Lock()
	defer r.mux.Unlock()
	tracked, ok := r.patients[patientID]
	if !ok {
		return
	}
	tracked.LastPolledAt = &polledAt
	tracked.LastStatus = &status
	if fhirPatientID != "" {
		tracked.FHIRPatientID = fhirPatientID
	}
}
