package workitem

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lumenhealth/priorauth/gateway/auth"
	"github.com/lumenhealth/priorauth/gateway/lib/outcome"
	"github.com/lumenhealth/priorauth/gateway/tracking"
	"github.com/rs/zerolog/log"
)

// Service exposes the work-item and patient-registration surfaces.
type Service struct {
	store     Store
	registry  *tracking.Registry
	processor *Processor
}

func New(store Store, registry *tracking.Registry, processor *Processor) *Service {
	return &Service{
		store:     store,
		registry:  registry,
		processor: processor,
	}
}

func (s *Service) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("POST /workitems", s.handleCreate)
	mux.HandleFunc("GET /workitems", s.handleList)
	mux.HandleFunc("GET /workitems/{id}", s.handleGet)
	mux.HandleFunc("PUT /workitems/{id}/status", s.handleUpdateStatus)
	mux.HandleFunc("POST /workitems/{id}/rehydrate", s.handleRehydrate)
	mux.HandleFunc("POST /patients", s.handleRegisterPatient)
	mux.HandleFunc("GET /patients/{patientId}", s.handleGetPatient)
	mux.HandleFunc("DELETE /patients/{patientId}", s.handleUnregisterPatient)
}

type createRequest struct {
	PatientID        string `json:"patientId"`
	EncounterID      string `json:"encounterId"`
	PracticeID       string `json:"practiceId"`
	ServiceRequestID string `json:"serviceRequestId"`
	ProcedureCode    string `json:"procedureCode"`
	Status           string `json:"status"`
}

func (s *Service) handleCreate(writer http.ResponseWriter, request *http.Request) {
	var payload createRequest
	if err := json.NewDecoder(request.Body).Decode(&payload); err != nil {
		http.Error(writer, "invalid request body", http.StatusBadRequest)
		return
	}
	if payload.PatientID == "" || payload.EncounterID == "" {
		http.Error(writer, "patientId and encounterId are required", http.StatusBadRequest)
		return
	}
	item := &WorkItem{
		PatientID:        payload.PatientID,
		EncounterID:      payload.EncounterID,
		PracticeID:       payload.PracticeID,
		ServiceRequestID: payload.ServiceRequestID,
		ProcedureCode:    payload.ProcedureCode,
	}
	if payload.Status != "" {
		status, err := ParseStatus(payload.Status)
		if err != nil {
			http.Error(writer, err.Error(), http.StatusBadRequest)
			return
		}
		item.Status = status
	}
	if err := s.store.Create(request.Context(), item); err != nil {
		log.Ctx(request.Context()).Error().Err(err).Msg("Unable to create work item")
		http.Error(writer, "unable to create work item", http.StatusInternalServerError)
		return
	}
	writeJSON(writer, http.StatusCreated, item)
}

func (s *Service) handleList(writer http.ResponseWriter, request *http.Request) {
	var statusFilter *Status
	if rawStatus := request.URL.Query().Get("status"); rawStatus != "" {
		status, err := ParseStatus(rawStatus)
		if err != nil {
			http.Error(writer, err.Error(), http.StatusBadRequest)
			return
		}
		statusFilter = &status
	}
	items, err := s.store.List(request.Context(), statusFilter)
	if err != nil {
		log.Ctx(request.Context()).Error().Err(err).Msg("Unable to list work items")
		http.Error(writer, "unable to list work items", http.StatusInternalServerError)
		return
	}
	writeJSON(writer, http.StatusOK, items)
}

func (s *Service) handleGet(writer http.ResponseWriter, request *http.Request) {
	item, err := s.store.Get(request.Context(), request.PathValue("id"))
	if errors.Is(err, ErrNotFound) {
		http.Error(writer, "work item not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Ctx(request.Context()).Error().Err(err).Msg("Unable to read work item")
		http.Error(writer, "unable to read work item", http.StatusInternalServerError)
		return
	}
	writeJSON(writer, http.StatusOK, item)
}

func (s *Service) handleUpdateStatus(writer http.ResponseWriter, request *http.Request) {
	var payload struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(request.Body).Decode(&payload); err != nil {
		http.Error(writer, "invalid request body", http.StatusBadRequest)
		return
	}
	status, err := ParseStatus(payload.Status)
	if err != nil {
		http.Error(writer, err.Error(), http.StatusBadRequest)
		return
	}
	item, err := s.store.UpdateStatus(request.Context(), request.PathValue("id"), status)
	if errors.Is(err, ErrNotFound) {
		http.Error(writer, "work item not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Ctx(request.Context()).Error().Err(err).Msg("Unable to update work item status")
		http.Error(writer, "unable to update work item", http.StatusInternalServerError)
		return
	}
	writeJSON(writer, http.StatusOK, item)
}

// handleRehydrate re-runs processing for a work item using the caller's own
// bearer token against the clinical-records API.
func (s *Service) handleRehydrate(writer http.ResponseWriter, request *http.Request) {
	id := request.PathValue("id")
	if _, err := s.store.Get(request.Context(), id); errors.Is(err, ErrNotFound) {
		http.Error(writer, "work item not found", http.StatusNotFound)
		return
	} else if err != nil {
		log.Ctx(request.Context()).Error().Err(err).Msg("Unable to read work item")
		http.Error(writer, "unable to read work item", http.StatusInternalServerError)
		return
	}
	ctx := request.Context()
	if bearer := auth.BearerFromRequest(request); bearer != "" {
		ctx = auth.WithAccessToken(ctx, bearer)
	}
	if err := s.processor.Process(ctx, id); err != nil {
		if outcome.IsUnavailable(err) {
			http.Error(writer, "external service unavailable", http.StatusServiceUnavailable)
			return
		}
		log.Ctx(ctx).Error().Err(err).Msgf("Rehydration failed (workItem=%s)", id)
		http.Error(writer, "unable to process work item", http.StatusInternalServerError)
		return
	}
	writeJSON(writer, http.StatusOK, map[string]string{
		"message": "work item " + id + " rehydrated",
	})
}

type registerPatientRequest struct {
	PatientID   string `json:"patientId"`
	EncounterID string `json:"encounterId"`
	PracticeID  string `json:"practiceId"`
}

// handleRegisterPatient starts tracking a patient: it creates the pending
// work item and registers the patient as a poll target in one call.
func (s *Service) handleRegisterPatient(writer http.ResponseWriter, request *http.Request) {
	var payload registerPatientRequest
	if err := json.NewDecoder(request.Body).Decode(&payload); err != nil {
		http.Error(writer, "invalid request body", http.StatusBadRequest)
		return
	}
	if payload.PatientID == "" || payload.EncounterID == "" {
		http.Error(writer, "patientId and encounterId are required", http.StatusBadRequest)
		return
	}
	item := &WorkItem{
		PatientID:   payload.PatientID,
		EncounterID: payload.EncounterID,
		PracticeID:  payload.PracticeID,
	}
	if err := s.store.Create(request.Context(), item); err != nil {
		log.Ctx(request.Context()).Error().Err(err).Msg("Unable to create work item for registration")
		http.Error(writer, "unable to register patient", http.StatusInternalServerError)
		return
	}
	s.registry.Register(payload.PatientID, payload.EncounterID, payload.PracticeID, item.ID)
	log.Ctx(request.Context()).Info().Msgf("Patient registered for tracking (patient=%s, workItem=%s)", payload.PatientID, item.ID)
	writeJSON(writer, http.StatusCreated, map[string]string{
		"workItemId": item.ID,
	})
}

func (s *Service) handleGetPatient(writer http.ResponseWriter, request *http.Request) {
	tracked, ok := s.registry.Get(request.PathValue("patientId"))
	if !ok {
		http.Error(writer, "patient not tracked", http.StatusNotFound)
		return
	}
	writeJSON(writer, http.StatusOK, trackedPatientResponse(tracked))
}

func (s *Service) handleUnregisterPatient(writer http.ResponseWriter, request *http.Request) {
	if !s.registry.Unregister(request.PathValue("patientId")) {
		http.Error(writer, "patient not tracked", http.StatusNotFound)
		return
	}
	writer.WriteHeader(http.StatusNoContent)
}

func trackedPatientResponse(tracked tracking.TrackedPatient) map[string]any {
	response := map[string]any{
		"patientId":    tracked.PatientID,
		"encounterId":  tracked.EncounterID,
		"practiceId":   tracked.PracticeID,
		"workItemId":   tracked.WorkItemID,
		"registeredAt": tracked.RegisteredAt,
	}
	if tracked.FHIRPatientID != "" {
		response["fhirPatientId"] = tracked.FHIRPatientID
	}
	if tracked.LastPolledAt != nil {
		response["lastPolledAt"] = tracked.LastPolledAt
	}
	if tracked.LastStatus != nil {
		response["lastStatus"] = tracked.LastStatus.Code()
	}
	return response
}

func writeJSON(writer http.ResponseWriter, statusCode int, body any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(statusCode)
	_ = json.NewEncoder(writer).Encode(body)
}
