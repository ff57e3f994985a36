// Package intelligence calls the external clinical-reasoning service, which
// turns a clinical snapshot plus a target procedure code into a
// recommendation, a confidence score and an evidence list. The contract is
// fixed and opaque; this package only does the orchestration around it.
package intelligence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/lumenhealth/priorauth/gateway/ehr"
	"github.com/lumenhealth/priorauth/gateway/lib/outcome"
	"github.com/rs/zerolog/log"
)

// Config holds the configuration for the reasoning service connection.
type Config struct {
	// URL is the base URL of the reasoning service.
	URL string `koanf:"url"`
	// Timeout bounds a single analysis call.
	Timeout time.Duration `koanf:"timeout"`
}

func DefaultConfig() Config {
	return Config{Timeout: 60 * time.Second}
}

func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("reasoning service URL is not configured")
	}
	return nil
}

// EvidenceStatus is the reasoning service's verdict on one policy criterion.
type EvidenceStatus string

const (
	EvidenceMet     EvidenceStatus = "MET"
	EvidenceNotMet  EvidenceStatus = "NOT_MET"
	EvidenceUnclear EvidenceStatus = "UNCLEAR"
)

// Recommendation is the reasoning service's overall verdict.
type Recommendation string

const (
	RecommendationApprove      Recommendation = "APPROVE"
	RecommendationNeedInfo     Recommendation = "NEED_INFO"
	RecommendationManualReview Recommendation = "MANUAL_REVIEW"
	RecommendationDeny         Recommendation = "DENY"
)

// PatientInfo is the demographic slice of the analysis payload.
type PatientInfo struct {
	Name      string `json:"name"`
	BirthDate string `json:"birth_date,omitempty"`
	Gender    string `json:"gender,omitempty"`
	MemberID  string `json:"member_id,omitempty"`
}

// CodedItem is one coded clinical fact in the analysis payload.
type CodedItem struct {
	Code    string `json:"code"`
	System  string `json:"system,omitempty"`
	Display string `json:"display,omitempty"`
}

// ClinicalData is the reasoning service's view of a clinical snapshot.
type ClinicalData struct {
	Patient      *PatientInfo `json:"patient,omitempty"`
	Conditions   []CodedItem  `json:"conditions"`
	Observations []CodedItem  `json:"observations"`
	Procedures   []CodedItem  `json:"procedures"`
}

// AnalyzeRequest is the analysis call payload.
type AnalyzeRequest struct {
	PatientID     string       `json:"patient_id"`
	ProcedureCode string       `json:"procedure_code"`
	ClinicalData  ClinicalData `json:"clinical_data"`
}

// EvidenceItem is one criterion verdict in the analysis response.
type EvidenceItem struct {
	CriterionID string         `json:"criterion_id"`
	Status      EvidenceStatus `json:"status"`
	Evidence    string         `json:"evidence"`
	Source      string         `json:"source"`
	Confidence  float64        `json:"confidence"`
}

// AnalyzeResponse is the reasoning service's answer. ConfidenceScore is in
// [0, 1].
type AnalyzeResponse struct {
	PatientName        string            `json:"patient_name"`
	PatientDOB         string            `json:"patient_dob"`
	MemberID           string            `json:"member_id"`
	DiagnosisCodes     []string          `json:"diagnosis_codes"`
	ProcedureCode      string            `json:"procedure_code"`
	ClinicalSummary    string            `json:"clinical_summary"`
	SupportingEvidence []EvidenceItem    `json:"supporting_evidence"`
	Recommendation     Recommendation    `json:"recommendation"`
	ConfidenceScore    float64           `json:"confidence_score"`
	FieldMappings      map[string]string `json:"field_mappings"`
	PolicyID           *string           `json:"policy_id,omitempty"`
	LCDReference       *string           `json:"lcd_reference,omitempty"`
}

// FromSnapshot maps an aggregated snapshot onto the analysis payload shape.
func FromSnapshot(snapshot *ehr.Snapshot) ClinicalData {
	return ClinicalData{
		Patient: &PatientInfo{
			Name:      snapshot.PatientName(),
			BirthDate: snapshot.PatientBirthDate(),
			Gender:    snapshot.PatientGender(),
			MemberID:  snapshot.PatientMemberID(),
		},
		Conditions:   codedItems(snapshot.Conditions),
		Observations: codedItems(snapshot.Observations),
		Procedures:   codedItems(snapshot.Procedures),
	}
}

func codedItems(entries []ehr.Entry) []CodedItem {
	items := make([]CodedItem, 0, len(entries))
	for _, entry := range entries {
		items = append(items, CodedItem{Code: entry.Code, System: entry.System, Display: entry.Display})
	}
	return items
}

// Client calls the reasoning service over HTTP.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

func New(baseURL *url.URL, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Analyze performs one analysis call. A 4xx answer is a validation failure,
// a transport failure or 5xx answer a network failure; both are tagged so
// callers can decide whether to surface or retry.
func (c *Client) Analyze(ctx context.Context, request AnalyzeRequest) (*AnalyzeResponse, error) {
	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, &outcome.ValidationError{Detail: "analysis request is not serializable", Cause: err}
	}
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL.JoinPath("api", "analyze").String(), bytes.NewReader(requestBody))
	if err != nil {
		return nil, err
	}
	httpRequest.Header.Set("Content-Type", "application/json")

	httpResponse, err := c.httpClient.Do(httpRequest)
	if err != nil {
		return nil, &outcome.NetworkError{Cause: err}
	}
	defer httpResponse.Body.Close()
	responseBody, err := io.ReadAll(io.LimitReader(httpResponse.Body, 10*1024*1024))
	if err != nil {
		return nil, &outcome.NetworkError{Cause: err}
	}
	switch {
	case httpResponse.StatusCode >= 200 && httpResponse.StatusCode < 300:
		// fall through to deserialization
	case httpResponse.StatusCode >= 400 && httpResponse.StatusCode < 500:
		log.Ctx(ctx).Warn().Msgf("Reasoning service rejected analysis request (status=%d): %s", httpResponse.StatusCode, string(responseBody))
		return nil, &outcome.ValidationError{Detail: fmt.Sprintf("reasoning service rejected the request (status %d)", httpResponse.StatusCode)}
	default:
		return nil, &outcome.NetworkError{Cause: fmt.Errorf("reasoning service returned status %d", httpResponse.StatusCode)}
	}
	var parsed AnalyzeResponse
	if err := json.Unmarshal(responseBody, &parsed); err != nil {
		return nil, &outcome.ValidationError{Detail: "analysis response did not deserialize", Cause: err}
	}
	return &parsed, nil
}
