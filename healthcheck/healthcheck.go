package healthcheck

import (
	"encoding/json"
	"net/http"
)

func New() *Service {
	return &Service{}
}

type Service struct{}

func (s Service) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealthCheck)
	mux.HandleFunc("GET /alive", s.handleAlive)
}

func (s Service) handleHealthCheck(writer http.ResponseWriter, request *http.Request) {
	writer.Header().Set("Content-Type", "application/json")
	json.NewEncoder(writer).Encode(map[string]string{"status": "up"})
}

func (s Service) handleAlive(writer http.ResponseWriter, request *http.Request) {
	writer.WriteHeader(http.StatusOK)
}
