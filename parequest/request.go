// Package parequest holds the prior-authorization requests themselves: the
// payer-facing records that collect patient demographics, the requested
// procedure, the clinical analysis outcome and the submission lifecycle.
package parequest

import (
	"time"
)

// Status is the request's position in the submission lifecycle:
// draft → ready → waiting_for_insurance → submitted/approved/denied.
type Status string

const (
	StatusDraft               Status = "draft"
	StatusReady               Status = "ready"
	StatusWaitingForInsurance Status = "waiting_for_insurance"
	StatusSubmitted           Status = "submitted"
	StatusApproved            Status = "approved"
	StatusDenied              Status = "denied"
)

// Criterion is one payer policy criterion with the analysis verdict.
// Met is tri-state: nil means the evidence was inconclusive.
type Criterion struct {
	Label  string `json:"label"`
	Met    *bool  `json:"met"`
	Reason string `json:"reason,omitempty"`
}

// PatientSnapshot is the demographic block captured on the request form.
type PatientSnapshot struct {
	Name     string `json:"name"`
	MRN      string `json:"mrn,omitempty"`
	DOB      string `json:"dob,omitempty"`
	MemberID string `json:"memberId,omitempty"`
	Payer    string `json:"payer,omitempty"`
	Address  string `json:"address,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// Request is one prior-authorization request.
type Request struct {
	ID            string          `json:"id"`
	Patient       PatientSnapshot `json:"patient"`
	ProcedureCode string          `json:"procedureCode"`
	ProcedureName string          `json:"procedureName"`
	DiagnosisCode string          `json:"diagnosisCode"`
	DiagnosisName string          `json:"diagnosisName"`
	ProviderID    string          `json:"providerId,omitempty"`
	Status        Status          `json:"status"`
	// ClinicalSummary, Confidence and Criteria are filled by processing.
	// Confidence is the reasoning score scaled to 0-100.
	ClinicalSummary   string      `json:"clinicalSummary,omitempty"`
	Confidence        int         `json:"confidence"`
	Criteria          []Criterion `json:"criteria,omitempty"`
	ReviewTimeSeconds int         `json:"reviewTimeSeconds"`
	CreatedAt         time.Time   `json:"createdAt"`
	UpdatedAt         time.Time   `json:"updatedAt"`
	ReadyAt           *time.Time  `json:"readyAt,omitempty"`
	SubmittedAt       *time.Time  `json:"submittedAt,omitempty"`
}

// AnalysisResult is what processing writes back onto a request.
type AnalysisResult struct {
	ClinicalSummary string
	Confidence      int
	Criteria        []Criterion
}

// UpdateFields is a partial update: only non-nil fields overwrite.
type UpdateFields struct {
	Patient         *PatientSnapshot `json:"patient,omitempty"`
	DiagnosisCode   *string          `json:"diagnosisCode,omitempty"`
	DiagnosisName   *string          `json:"diagnosisName,omitempty"`
	ProviderID      *string          `json:"providerId,omitempty"`
	Status          *Status          `json:"status,omitempty"`
	ClinicalSummary *string          `json:"clinicalSummary,omitempty"`
}

// Stats is the per-status request count.
type Stats struct {
	Total               int `json:"total"`
	Draft               int `json:"draft"`
	Ready               int `json:"ready"`
	WaitingForInsurance int `json:"waitingForInsurance"`
	Submitted           int `json:"submitted"`
	Approved            int `json:"approved"`
	Denied              int `json:"denied"`
}

// Activity is one entry in the recent-activity feed.
type Activity struct {
	RequestID   string    `json:"requestId"`
	PatientName string    `json:"patientName"`
	Action      string    `json:"action"`
	Label       string    `json:"label"`
	At          time.Time `json:"at"`
}

// activityForStatus renders a status as a feed action/label pair.
func activityForStatus(status Status) (string, string) {
	switch status {
	case StatusDraft:
		return "created", "Draft created"
	case StatusReady:
		return "analyzed", "Ready for review"
	case StatusWaitingForInsurance:
		return "submitted", "Waiting for insurance"
	case StatusSubmitted:
		return "submitted", "Submitted to payer"
	case StatusApproved:
		return "decided", "Approved"
	case StatusDenied:
		return "decided", "Denied"
	default:
		return "updated", "Updated"
	}
}
