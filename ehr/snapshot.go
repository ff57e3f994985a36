package ehr

import (
	"time"

	"github.com/lumenhealth/priorauth/gateway/lib/to"
	"github.com/zorgbijjou/golang-fhir-models/fhir-models/fhir"
)

// Entry is one coded clinical fact (a condition, observation, procedure,
// service request or document) reduced to what the reasoning service needs.
type Entry struct {
	ID      string     `json:"id,omitempty"`
	Code    string     `json:"code"`
	System  string     `json:"system,omitempty"`
	Display string     `json:"display,omitempty"`
	Date    *time.Time `json:"date,omitempty"`
}

// Snapshot is the aggregated clinical state of one patient at one point in
// time. It is immutable once built and identified by the patient id used to
// build it.
type Snapshot struct {
	PatientID       string
	Patient         fhir.Patient
	Conditions      []Entry
	Observations    []Entry
	Procedures      []Entry
	ServiceRequests []Entry
	Documents       []Entry
}

// PatientName returns the patient's display name, preferring the name's
// text over a composed family/given rendering.
func (s *Snapshot) PatientName() string {
	for _, name := range s.Patient.Name {
		if name.Text != nil {
			return *name.Text
		}
		var parts []string
		parts = append(parts, name.Given...)
		if name.Family != nil {
			parts = append(parts, *name.Family)
		}
		if len(parts) > 0 {
			return joinNonEmpty(parts)
		}
	}
	return "Unknown"
}

// PatientBirthDate returns the birth date as YYYY-MM-DD, or "".
func (s *Snapshot) PatientBirthDate() string {
	return to.EmptyString(s.Patient.BirthDate)
}

// PatientGender returns the administrative gender code, or "".
func (s *Snapshot) PatientGender() string {
	if s.Patient.Gender == nil {
		return ""
	}
	return s.Patient.Gender.Code()
}

// PatientMemberID returns the first identifier value, which the upstream
// system populates with the insurance member id.
func (s *Snapshot) PatientMemberID() string {
	for _, identifier := range s.Patient.Identifier {
		if identifier.Value != nil {
			return *identifier.Value
		}
	}
	return ""
}

func joinNonEmpty(parts []string) string {
	result := ""
	for _, part := range parts {
		if part == "" {
			continue
		}
		if result != "" {
			result += " "
		}
		result += part
	}
	return result
}

func codingEntry(id *string, concept *fhir.CodeableConcept, date *string) Entry {
	entry := Entry{ID: to.EmptyString(id), Date: parseFHIRDate(date)}
	if concept == nil {
		return entry
	}
	if len(concept.Coding) > 0 {
		coding := concept.Coding[0]
		entry.Code = to.EmptyString(coding.Code)
		entry.System = to.EmptyString(coding.System)
		entry.Display = to.EmptyString(coding.Display)
	}
	if entry.Display == "" && concept.Text != nil {
		entry.Display = *concept.Text
	}
	return entry
}

func conditionEntry(condition fhir.Condition) Entry {
	return codingEntry(condition.Id, condition.Code, condition.RecordedDate)
}

func observationEntry(observation fhir.Observation) Entry {
	return codingEntry(observation.Id, &observation.Code, observation.EffectiveDateTime)
}

func procedureEntry(procedure fhir.Procedure) Entry {
	return codingEntry(procedure.Id, procedure.Code, procedure.PerformedDateTime)
}

func serviceRequestEntry(serviceRequest fhir.ServiceRequest) Entry {
	return codingEntry(serviceRequest.Id, serviceRequest.Code, serviceRequest.AuthoredOn)
}

func documentEntry(document fhir.DocumentReference) Entry {
	return codingEntry(document.Id, document.Type, document.Date)
}

// parseFHIRDate accepts the date and dateTime forms the upstream system
// emits; anything else yields nil rather than an error.
func parseFHIRDate(value *string) *time.Time {
	if value == nil || *value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if parsed, err := time.Parse(layout, *value); err == nil {
			return &parsed
		}
	}
	return nil
}
