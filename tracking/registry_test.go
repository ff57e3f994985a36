package tracking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zorgbijjou/golang-fhir-models/fhir-models/fhir"
)

func TestRegistry_Register(t *testing.T) {
	t.Run("re-registering overwrites the prior registration", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register("pat-1", "enc-1", "prac-1", "wi-1")
		registry.RecordPoll("pat-1", time.Now(), fhir.EncounterStatusInProgress, "fhir-1")

		registry.Register("pat-1", "enc-2", "prac-1", "wi-2")

		tracked, ok := registry.Get("pat-1")
		require.True(t, ok)
		assert.Equal(t, "enc-2", tracked.EncounterID)
		assert.Equal(t, "wi-2", tracked.WorkItemID)
		assert.Empty(t, tracked.FHIRPatientID)
		assert.Nil(t, tracked.LastPolledAt)
		assert.Nil(t, tracked.LastStatus)
	})
}

func TestRegistry_Unregister(t *testing.T) {
	registry := NewRegistry()
	registry.Register("pat-1", "enc-1", "prac-1", "wi-1")

	assert.True(t, registry.Unregister("pat-1"))
	assert.False(t, registry.Unregister("pat-1"))
	_, ok := registry.Get("pat-1")
	assert.False(t, ok)
}

func TestRegistry_ListActive(t *testing.T) {
	registry := NewRegistry()
	registeredAt := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	registry.now = func() time.Time { return registeredAt }
	registry.Register("pat-1", "enc-1", "prac-1", "wi-1")

	t.Run("within horizon", func(t *testing.T) {
		registry.now = func() time.Time { return registeredAt.Add(ActiveHorizon - time.Minute) }
		assert.Len(t, registry.ListActive(), 1)
	})
	t.Run("past horizon", func(t *testing.T) {
		registry.now = func() time.Time { return registeredAt.Add(ActiveHorizon + time.Minute) }
		assert.Empty(t, registry.ListActive())
		// Expired entries are only excluded from polling, not removed.
		_, ok := registry.Get("pat-1")
		assert.True(t, ok)
	})
}

func TestRegistry_RecordPoll(t *testing.T) {
	registry := NewRegistry()
	registry.Register("pat-1", "enc-1", "prac-1", "wi-1")
	polledAt := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	registry.RecordPoll("pat-1", polledAt, fhir.EncounterStatusInProgress, "fhir-1")

	tracked, ok := registry.Get("pat-1")
	require.True(t, ok)
	require.NotNil(t, tracked.LastPolledAt)
	assert.Equal(t, polledAt, *tracked.LastPolledAt)
	require.NotNil(t, tracked.LastStatus)
	assert.Equal(t, fhir.EncounterStatusInProgress, *tracked.LastStatus)
	assert.Equal(t, "fhir-1", tracked.FHIRPatientID)

	t.Run("empty patient id does not clear a resolved one", func(t *testing.T) {
		registry.RecordPoll("pat-1", polledAt.Add(time.Minute), fhir.EncounterStatusFinished, "")

		tracked, _ := registry.Get("pat-1")
		assert.Equal(t, "fhir-1", tracked.FHIRPatientID)
		assert.Equal(t, fhir.EncounterStatusFinished, *tracked.LastStatus)
	})
	t.Run("unknown patient is a no-op", func(t *testing.T) {
		registry.RecordPoll("unknown", polledAt, fhir.EncounterStatusFinished, "x")
	})
}
