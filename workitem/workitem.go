// Package workitem tracks the prior-authorization work generated for a
// patient's encounter, from registration through analysis to a terminal
// review status.
package workitem

import (
	"fmt"
	"time"
)

// Status is the work item's position in the review workflow. Items start
// pending and move to exactly one of the other statuses once the encounter
// completes and the clinical analysis has run.
type Status string

const (
	StatusPending                 Status = "pending"
	StatusMissingData             Status = "missing-data"
	StatusReadyForReview          Status = "ready-for-review"
	StatusPayerRequirementsNotMet Status = "payer-requirements-not-met"
	StatusNoPaRequired            Status = "no-pa-required"
	StatusSubmitted               Status = "submitted"
)

// ParseStatus validates a caller-supplied status string.
func ParseStatus(value string) (Status, error) {
	switch Status(value) {
	case StatusPending, StatusMissingData, StatusReadyForReview,
		StatusPayerRequirementsNotMet, StatusNoPaRequired, StatusSubmitted:
		return Status(value), nil
	}
	return "", fmt.Errorf("unknown work item status: %s", value)
}

// WorkItem is one unit of prior-authorization work for a patient encounter.
type WorkItem struct {
	ID          string `json:"id"`
	PatientID   string `json:"patientId"`
	EncounterID string `json:"encounterId"`
	PracticeID  string `json:"practiceId,omitempty"`
	// ServiceRequestID is discovered from the clinical snapshot during
	// processing; empty until then unless supplied at creation.
	ServiceRequestID string    `json:"serviceRequestId,omitempty"`
	ProcedureCode    string    `json:"procedureCode,omitempty"`
	Status           Status    `json:"status"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}
