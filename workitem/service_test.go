package workitem

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lumenhealth/priorauth/gateway/ehr"
	"github.com/lumenhealth/priorauth/gateway/intelligence"
	"github.com/lumenhealth/priorauth/gateway/lib/outcome"
	"github.com/lumenhealth/priorauth/gateway/tracking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, snapshots *stubSnapshotSource, analyzer *stubAnalyzer) (*Service, Store, *tracking.Registry, *httptest.Server) {
	store := NewMemoryStore()
	registry := tracking.NewRegistry()
	if snapshots == nil {
		snapshots = &stubSnapshotSource{snapshot: &ehr.Snapshot{}}
	}
	if analyzer == nil {
		analyzer = &stubAnalyzer{response: &intelligence.AnalyzeResponse{Recommendation: intelligence.RecommendationApprove}}
	}
	service := New(store, registry, NewProcessor(store, registry, snapshots, analyzer))
	mux := http.NewServeMux()
	service.RegisterHandlers(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return service, store, registry, server
}

func TestService_WorkItems(t *testing.T) {
	t.Run("create and get", func(t *testing.T) {
		_, _, _, server := newTestService(t, nil, nil)

		httpResponse, err := http.Post(server.URL+"/workitems", "application/json",
			strings.NewReader(`{"patientId":"pat-1","encounterId":"enc-1","procedureCode":"72148"}`))
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, httpResponse.StatusCode)
		var created WorkItem
		require.NoError(t, json.NewDecoder(httpResponse.Body).Decode(&created))
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, StatusPending, created.Status)

		httpResponse, err = http.Get(server.URL + "/workitems/" + created.ID)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, httpResponse.StatusCode)
	})
	t.Run("create with invalid status", func(t *testing.T) {
		_, _, _, server := newTestService(t, nil, nil)

		httpResponse, err := http.Post(server.URL+"/workitems", "application/json",
			strings.NewReader(`{"patientId":"pat-1","encounterId":"enc-1","status":"bogus"}`))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, httpResponse.StatusCode)
	})
	t.Run("create without patient", func(t *testing.T) {
		_, _, _, server := newTestService(t, nil, nil)

		httpResponse, err := http.Post(server.URL+"/workitems", "application/json", strings.NewReader(`{}`))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, httpResponse.StatusCode)
	})
	t.Run("get unknown id", func(t *testing.T) {
		_, _, _, server := newTestService(t, nil, nil)

		httpResponse, err := http.Get(server.URL + "/workitems/unknown")
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, httpResponse.StatusCode)
	})
	t.Run("list with status filter", func(t *testing.T) {
		_, store, _, server := newTestService(t, nil, nil)
		ctx := context.Background()
		require.NoError(t, store.Create(ctx, &WorkItem{PatientID: "pat-1", EncounterID: "enc-1"}))
		require.NoError(t, store.Create(ctx, &WorkItem{PatientID: "pat-2", EncounterID: "enc-2", Status: StatusSubmitted}))

		httpResponse, err := http.Get(server.URL + "/workitems?status=submitted")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, httpResponse.StatusCode)
		var items []WorkItem
		require.NoError(t, json.NewDecoder(httpResponse.Body).Decode(&items))
		require.Len(t, items, 1)
		assert.Equal(t, "pat-2", items[0].PatientID)
	})
	t.Run("update status", func(t *testing.T) {
		_, store, _, server := newTestService(t, nil, nil)
		item := &WorkItem{PatientID: "pat-1", EncounterID: "enc-1"}
		require.NoError(t, store.Create(context.Background(), item))

		httpRequest, _ := http.NewRequest(http.MethodPut, server.URL+"/workitems/"+item.ID+"/status",
			bytes.NewReader([]byte(`{"status":"no-pa-required"}`)))
		httpResponse, err := http.DefaultClient.Do(httpRequest)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, httpResponse.StatusCode)
		var updated WorkItem
		require.NoError(t, json.NewDecoder(httpResponse.Body).Decode(&updated))
		assert.Equal(t, StatusNoPaRequired, updated.Status)
	})
	t.Run("update status of unknown id", func(t *testing.T) {
		_, _, _, server := newTestService(t, nil, nil)

		httpRequest, _ := http.NewRequest(http.MethodPut, server.URL+"/workitems/unknown/status",
			bytes.NewReader([]byte(`{"status":"submitted"}`)))
		httpResponse, err := http.DefaultClient.Do(httpRequest)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, httpResponse.StatusCode)
	})
}

func TestService_Rehydrate(t *testing.T) {
	t.Run("reprocesses with the caller's token", func(t *testing.T) {
		_, store, registry, server := newTestService(t, nil, nil)
		item := &WorkItem{PatientID: "pat-1", EncounterID: "enc-1", ProcedureCode: "72148"}
		require.NoError(t, store.Create(context.Background(), item))
		registry.Register("pat-1", "enc-1", "prac-1", item.ID)

		httpRequest, _ := http.NewRequest(http.MethodPost, server.URL+"/workitems/"+item.ID+"/rehydrate", nil)
		httpRequest.Header.Set("Authorization", "Bearer user-token")
		httpResponse, err := http.DefaultClient.Do(httpRequest)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, httpResponse.StatusCode)
		var body map[string]string
		require.NoError(t, json.NewDecoder(httpResponse.Body).Decode(&body))
		assert.Contains(t, body["message"], item.ID)

		updated, err := store.Get(context.Background(), item.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusReadyForReview, updated.Status)
	})
	t.Run("unknown work item", func(t *testing.T) {
		_, _, _, server := newTestService(t, nil, nil)

		httpResponse, err := http.Post(server.URL+"/workitems/unknown/rehydrate", "application/json", nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, httpResponse.StatusCode)
	})
	t.Run("external failure surfaces as service unavailable", func(t *testing.T) {
		snapshots := &stubSnapshotSource{err: &outcome.NetworkError{Cause: errors.New("upstream down")}}
		_, store, registry, server := newTestService(t, snapshots, nil)
		item := &WorkItem{PatientID: "pat-1", EncounterID: "enc-1"}
		require.NoError(t, store.Create(context.Background(), item))
		registry.Register("pat-1", "enc-1", "prac-1", item.ID)

		httpResponse, err := http.Post(server.URL+"/workitems/"+item.ID+"/rehydrate", "application/json", nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, httpResponse.StatusCode)

		unchanged, err := store.Get(context.Background(), item.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusPending, unchanged.Status)
	})
}

func TestService_PatientRegistration(t *testing.T) {
	t.Run("register creates a work item and a poll target", func(t *testing.T) {
		_, store, registry, server := newTestService(t, nil, nil)

		httpResponse, err := http.Post(server.URL+"/patients", "application/json",
			strings.NewReader(`{"patientId":"pat-1","encounterId":"enc-1","practiceId":"prac-1"}`))
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, httpResponse.StatusCode)
		var body map[string]string
		require.NoError(t, json.NewDecoder(httpResponse.Body).Decode(&body))
		require.NotEmpty(t, body["workItemId"])

		item, err := store.Get(context.Background(), body["workItemId"])
		require.NoError(t, err)
		assert.Equal(t, StatusPending, item.Status)

		tracked, ok := registry.Get("pat-1")
		require.True(t, ok)
		assert.Equal(t, body["workItemId"], tracked.WorkItemID)
	})
	t.Run("get and unregister", func(t *testing.T) {
		_, _, registry, server := newTestService(t, nil, nil)
		registry.Register("pat-1", "enc-1", "prac-1", "wi-1")

		httpResponse, err := http.Get(server.URL + "/patients/pat-1")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, httpResponse.StatusCode)

		httpRequest, _ := http.NewRequest(http.MethodDelete, server.URL+"/patients/pat-1", nil)
		httpResponse, err = http.DefaultClient.Do(httpRequest)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, httpResponse.StatusCode)

		httpResponse, err = http.Get(server.URL + "/patients/pat-1")
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, httpResponse.StatusCode)
	})
}
