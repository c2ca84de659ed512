package httpapi

import (
	"net/http"
	"time"
)

// HealthResponse is the JSON body of the /health endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Sections  int    `json:"sections"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Sections:  s.corpus.RowCount(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
