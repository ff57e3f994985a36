package migration

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_IsReady(t *testing.T) {
	t.Run("zero expected contexts is never ready", func(t *testing.T) {
		gate := NewGate()
		assert.False(t, gate.IsReady())
	})
	t.Run("ready once all expected contexts complete", func(t *testing.T) {
		gate := NewGate()
		gate.RegisterExpected("workitems")
		gate.RegisterExpected("parequests")
		assert.False(t, gate.IsReady())

		gate.MarkComplete("workitems")
		assert.False(t, gate.IsReady())

		gate.MarkComplete("parequests")
		assert.True(t, gate.IsReady())
	})
	t.Run("re-registering a completed context keeps it complete", func(t *testing.T) {
		gate := NewGate()
		gate.RegisterExpected("workitems")
		gate.MarkComplete("workitems")
		gate.RegisterExpected("workitems")
		assert.True(t, gate.IsReady())
	})
}

func TestGate_Middleware(t *testing.T) {
	newServer := func(gate *Gate) *httptest.Server {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /health", func(writer http.ResponseWriter, _ *http.Request) {
			writer.WriteHeader(http.StatusOK)
		})
		mux.HandleFunc("GET /alive", func(writer http.ResponseWriter, _ *http.Request) {
			writer.WriteHeader(http.StatusOK)
		})
		mux.HandleFunc("GET /api/requests", func(writer http.ResponseWriter, _ *http.Request) {
			writer.WriteHeader(http.StatusOK)
		})
		return httptest.NewServer(gate.Middleware(mux))
	}

	t.Run("rejects non-health paths until ready", func(t *testing.T) {
		gate := NewGate()
		gate.RegisterExpected("workitems")
		server := newServer(gate)
		defer server.Close()

		httpResponse, err := http.Get(server.URL + "/api/requests")
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, httpResponse.StatusCode)
		assert.Equal(t, "5", httpResponse.Header.Get("Retry-After"))
	})
	t.Run("health probes always pass", func(t *testing.T) {
		gate := NewGate()
		gate.RegisterExpected("workitems")
		server := newServer(gate)
		defer server.Close()

		for _, path := range []string{"/health", "/alive"} {
			httpResponse, err := http.Get(server.URL + path)
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, httpResponse.StatusCode, path)
		}
	})
	t.Run("all paths pass once ready", func(t *testing.T) {
		gate := NewGate()
		gate.RegisterExpected("workitems")
		gate.MarkComplete("workitems")
		server := newServer(gate)
		defer server.Close()

		httpResponse, err := http.Get(server.URL + "/api/requests")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, httpResponse.StatusCode)
	})
}
