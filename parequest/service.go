package parequest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/lumenhealth/priorauth/gateway/lib/outcome"
	"github.com/rs/zerolog/log"
)

// Placeholder diagnosis stored when a request is created without one; the
// real diagnosis is filled in later by the reviewer or the analysis.
const (
	diagnosisPendingName = "Pending"
	diagnosisPendingCode = "PENDING"
)

const defaultActivityLimit = 10

// Service exposes the authorization-request surface.
type Service struct {
	store     Store
	processor *Processor
}

func New(store Store, processor *Processor) *Service {
	return &Service{
		store:     store,
		processor: processor,
	}
}

func (s *Service) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/requests", s.handleCreate)
	mux.HandleFunc("GET /api/requests", s.handleList)
	mux.HandleFunc("GET /api/requests/{id}", s.handleGet)
	mux.HandleFunc("PATCH /api/requests/{id}", s.handleUpdate)
	mux.HandleFunc("DELETE /api/requests/{id}", s.handleDelete)
	mux.HandleFunc("POST /api/requests/{id}/process", s.handleProcess)
	mux.HandleFunc("POST /api/requests/{id}/submit", s.handleSubmit)
	mux.HandleFunc("POST /api/requests/{id}/review-time", s.handleAddReviewTime)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/activity", s.handleActivity)
	mux.HandleFunc("GET /api/reference/procedures", referenceHandler(Procedures))
	mux.HandleFunc("GET /api/reference/medications", referenceHandler(Medications))
	mux.HandleFunc("GET /api/reference/diagnoses", referenceHandler(Diagnoses))
	mux.HandleFunc("GET /api/reference/providers", referenceHandler(Providers))
	mux.HandleFunc("GET /api/reference/payers", referenceHandler(Payers))
}

type createRequest struct {
	Patient       PatientSnapshot `json:"patient"`
	ProcedureCode string          `json:"procedureCode"`
	DiagnosisCode string          `json:"diagnosisCode"`
	DiagnosisName string          `json:"diagnosisName"`
	ProviderID    string          `json:"providerId"`
}

func (s *Service) handleCreate(writer http.ResponseWriter, request *http.Request) {
	var payload createRequest
	if err := json.NewDecoder(request.Body).Decode(&payload); err != nil {
		http.Error(writer, "invalid request body", http.StatusBadRequest)
		return
	}
	procedureName, known := ProcedureName(payload.ProcedureCode)
	if !known {
		http.Error(writer, "unknown procedure or medication code: "+payload.ProcedureCode, http.StatusBadRequest)
		return
	}
	paRequest := &Request{
		Patient:       payload.Patient,
		ProcedureCode: payload.ProcedureCode,
		ProcedureName: procedureName,
		DiagnosisCode: payload.DiagnosisCode,
		DiagnosisName: payload.DiagnosisName,
		ProviderID:    payload.ProviderID,
	}
	if paRequest.DiagnosisCode == "" {
		paRequest.DiagnosisCode = diagnosisPendingCode
		paRequest.DiagnosisName = diagnosisPendingName
	}
	if err := s.store.Create(request.Context(), paRequest); err != nil {
		log.Ctx(request.Context()).Error().Err(err).Msg("Unable to create authorization request")
		http.Error(writer, "unable to create request", http.StatusInternalServerError)
		return
	}
	writeJSON(writer, http.StatusCreated, paRequest)
}

func (s *Service) handleList(writer http.ResponseWriter, request *http.Request) {
	requests, err := s.store.List(request.Context())
	if err != nil {
		log.Ctx(request.Context()).Error().Err(err).Msg("Unable to list authorization requests")
		http.Error(writer, "unable to list requests", http.StatusInternalServerError)
		return
	}
	if requests == nil {
		requests = []Request{}
	}
	writeJSON(writer, http.StatusOK, requests)
}

func (s *Service) handleGet(writer http.ResponseWriter, request *http.Request) {
	paRequest, err := s.store.Get(request.Context(), request.PathValue("id"))
	if s.writeStoreError(writer, request, err) {
		return
	}
	writeJSON(writer, http.StatusOK, paRequest)
}

func (s *Service) handleUpdate(writer http.ResponseWriter, request *http.Request) {
	var fields UpdateFields
	if err := json.NewDecoder(request.Body).Decode(&fields); err != nil {
		http.Error(writer, "invalid request body", http.StatusBadRequest)
		return
	}
	paRequest, err := s.store.Update(request.Context(), request.PathValue("id"), fields)
	if s.writeStoreError(writer, request, err) {
		return
	}
	writeJSON(writer, http.StatusOK, paRequest)
}

func (s *Service) handleDelete(writer http.ResponseWriter, request *http.Request) {
	deleted, err := s.store.Delete(request.Context(), request.PathValue("id"))
	if err != nil {
		log.Ctx(request.Context()).Error().Err(err).Msg("Unable to delete authorization request")
		http.Error(writer, "unable to delete request", http.StatusInternalServerError)
		return
	}
	if !deleted {
		http.Error(writer, "request not found", http.StatusNotFound)
		return
	}
	writer.WriteHeader(http.StatusNoContent)
}

// handleProcess runs the clinical analysis for a draft. Transport failures
// towards the clinical-records API or the reasoning service surface as a
// generic unavailable response, without internal detail; the request keeps
// its prior state and can be processed again.
func (s *Service) handleProcess(writer http.ResponseWriter, request *http.Request) {
	paRequest, err := s.processor.Process(request.Context(), request.PathValue("id"))
	if err != nil {
		if outcome.IsUnavailable(err) {
			http.Error(writer, "external service unavailable", http.StatusServiceUnavailable)
			return
		}
		log.Ctx(request.Context()).Error().Err(err).Msg("Unable to process authorization request")
		http.Error(writer, "unable to process request", http.StatusInternalServerError)
		return
	}
	if paRequest == nil {
		http.Error(writer, "request not found", http.StatusNotFound)
		return
	}
	writeJSON(writer, http.StatusOK, paRequest)
}

func (s *Service) handleSubmit(writer http.ResponseWriter, request *http.Request) {
	var payload struct {
		ReviewTimeSeconds int `json:"reviewTimeSeconds"`
	}
	if request.Body != nil {
		// Body is optional; submission without review time is fine.
		_ = json.NewDecoder(request.Body).Decode(&payload)
	}
	paRequest, err := s.store.Submit(request.Context(), request.PathValue("id"), payload.ReviewTimeSeconds)
	if s.writeStoreError(writer, request, err) {
		return
	}
	writeJSON(writer, http.StatusOK, paRequest)
}

func (s *Service) handleAddReviewTime(writer http.ResponseWriter, request *http.Request) {
	var payload struct {
		Seconds int `json:"seconds"`
	}
	if err := json.NewDecoder(request.Body).Decode(&payload); err != nil {
		http.Error(writer, "invalid request body", http.StatusBadRequest)
		return
	}
	paRequest, err := s.store.AddReviewTime(request.Context(), request.PathValue("id"), payload.Seconds)
	if s.writeStoreError(writer, request, err) {
		return
	}
	writeJSON(writer, http.StatusOK, paRequest)
}

func (s *Service) handleStats(writer http.ResponseWriter, request *http.Request) {
	stats, err := s.store.Stats(request.Context())
	if err != nil {
		log.Ctx(request.Context()).Error().Err(err).Msg("Unable to compute request stats")
		http.Error(writer, "unable to compute stats", http.StatusInternalServerError)
		return
	}
	writeJSON(writer, http.StatusOK, stats)
}

func (s *Service) handleActivity(writer http.ResponseWriter, request *http.Request) {
	limit := defaultActivityLimit
	if rawLimit := request.URL.Query().Get("limit"); rawLimit != "" {
		parsed, err := strconv.Atoi(rawLimit)
		if err != nil || parsed < 1 {
			http.Error(writer, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	activity, err := s.store.RecentActivity(request.Context(), limit)
	if err != nil {
		log.Ctx(request.Context()).Error().Err(err).Msg("Unable to read recent activity")
		http.Error(writer, "unable to read activity", http.StatusInternalServerError)
		return
	}
	if activity == nil {
		activity = []Activity{}
	}
	writeJSON(writer, http.StatusOK, activity)
}

// writeStoreError writes the HTTP failure for a store error and reports
// whether one was written.
func (s *Service) writeStoreError(writer http.ResponseWriter, request *http.Request, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) {
		http.Error(writer, "request not found", http.StatusNotFound)
		return true
	}
	log.Ctx(request.Context()).Error().Err(err).Msg("Authorization request store failure")
	http.Error(writer, "internal error", http.StatusInternalServerError)
	return true
}

func referenceHandler[T any](table []T) http.HandlerFunc {
	return func(writer http.ResponseWriter, _ *http.Request) {
		writeJSON(writer, http.StatusOK, table)
	}
}

func writeJSON(writer http.ResponseWriter, statusCode int, body any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(statusCode)
	_ = json.NewEncoder(writer).Encode(body)
}
