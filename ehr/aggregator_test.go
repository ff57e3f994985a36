package ehr

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/lumenhealth/priorauth/gateway/lib/outcome"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregator_Aggregate(t *testing.T) {
	var observationDateFilter string
	repo := newTestRepository(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		switch request.URL.Path {
		case "/Patient/p-1":
			writer.Write([]byte(`{"resourceType":"Patient","id":"p-1","name":[{"family":"Doe","given":["Jane"]}],"birthDate":"1980-01-01","gender":"female","identifier":[{"value":"M-123"}]}`))
		case "/Condition":
			writer.Write([]byte(`{"resourceType":"Bundle","type":"searchset","entry":[
				{"resource":{"resourceType":"Condition","id":"c-1","subject":{},"code":{"coding":[{"code":"M54.5","system":"icd-10","display":"Low back pain"}]},"recordedDate":"2025-01-15"}}]}`))
		case "/Observation":
			observationDateFilter = request.URL.Query().Get("date")
			// This collection is down; the snapshot must still be built.
			writer.WriteHeader(http.StatusInternalServerError)
		case "/Procedure", "/DocumentReference":
			writer.Write([]byte(`{"resourceType":"Bundle","type":"searchset"}`))
		case "/ServiceRequest":
			writer.Write([]byte(`{"resourceType":"Bundle","type":"searchset","entry":[
				{"resource":{"resourceType":"ServiceRequest","id":"sr-1","status":"active","intent":"order","subject":{},"code":{"coding":[{"code":"72148"}]}}}]}`))
		default:
			writer.WriteHeader(http.StatusNotFound)
		}
	}))
	aggregator := NewAggregator(repo, DefaultLookback())

	snapshot, err := aggregator.Aggregate(context.Background(), "p-1")

	require.NoError(t, err)
	assert.Equal(t, "p-1", snapshot.PatientID)
	assert.Equal(t, "Jane Doe", snapshot.PatientName())
	assert.Equal(t, "1980-01-01", snapshot.PatientBirthDate())
	assert.Equal(t, "female", snapshot.PatientGender())
	assert.Equal(t, "M-123", snapshot.PatientMemberID())

	require.Len(t, snapshot.Conditions, 1)
	assert.Equal(t, "M54.5", snapshot.Conditions[0].Code)
	assert.Equal(t, "Low back pain", snapshot.Conditions[0].Display)
	require.NotNil(t, snapshot.Conditions[0].Date)
	assert.Equal(t, 2025, snapshot.Conditions[0].Date.Year())

	assert.Empty(t, snapshot.Observations, "a failed collection degrades to an empty sequence")
	require.Len(t, snapshot.ServiceRequests, 1)
	assert.Equal(t, "sr-1", snapshot.ServiceRequests[0].ID)

	// Observations carry the configured lookback window.
	require.NotEmpty(t, observationDateFilter)
	assert.Equal(t, "ge", observationDateFilter[:2])
	since, parseErr := time.Parse("2006-01-02", observationDateFilter[2:])
	require.NoError(t, parseErr)
	assert.WithinDuration(t, time.Now().AddDate(0, -DefaultLookback().ObservationMonths, 0), since, 48*time.Hour)
}

func TestAggregator_PatientLookupIsFatal(t *testing.T) {
	repo := newTestRepository(t, http.NotFoundHandler())
	aggregator := NewAggregator(repo, DefaultLookback())

	_, err := aggregator.Aggregate(context.Background(), "absent")

	var notFound *outcome.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "Patient", notFound.ResourceType)
}
