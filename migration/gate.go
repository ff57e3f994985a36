// Package migration gates inbound traffic until every storage schema
// context reports that its migrations completed.
package migration

import (
	"net/http"
	"sync"

	"github.com/rs/zerolog/log"
)

// retryAfterSeconds is the hint sent with rejected requests.
const retryAfterSeconds = "5"

// Gate is a shared readiness registry. It only becomes ready once at least
// one schema context is expected and all expected contexts have completed;
// a gate with nothing expected is never ready.
type Gate struct {
	mux      sync.RWMutex
	expected map[string]bool
}

func NewGate() *Gate {
	return &Gate{expected: map[string]bool{}}
}

// RegisterExpected adds a schema context that must complete before the gate
// opens.
func (g *Gate) RegisterExpected(name string) {
	g.mux.Lock()
	defer g.mux.Unlock()
	if _, known := g.expected[name]; !known {
		g.expected[name] = false
	}
}

// MarkComplete marks a schema context's migrations as done.
func (g *Gate) MarkComplete(name string) {
	g.mux.Lock()
	defer g.mux.Unlock()
	g.expected[name] = true
	log.Debug().Msgf("Schema context migrated (%s)", name)
}

// IsReady reports whether every expected schema context has completed.
func (g *Gate) IsReady() bool {
	g.mux.RLock()
	defer g.mux.RUnlock()
	if len(g.expected) == 0 {
		return false
	}
	for _, complete := range g.expected {
		if !complete {
			return false
		}
	}
	return true
}

// Middleware rejects all requests except health probes until the gate is
// ready.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path == "/health" || request.URL.Path == "/alive" {
			next.ServeHTTP(writer, request)
			return
		}
		if !g.IsReady() {
			writer.Header().Set("Retry-After", retryAfterSeconds)
			http.Error(writer, "service is starting, migrations in progress", http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(writer, request)
	})
}
