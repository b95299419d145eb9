package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/buemura/surface/pkg/types"
)

// ErrorResponse is the standard error JSON body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// ScanSummary is one row of GET /api/v1/scans.
type ScanSummary struct {
	ID           string           `json:"id"`
	Target       string           `json:"target"`
	Status       types.ScanStatus `json:"status"`
	Progress     int              `json:"progress"`
	CreatedAt    time.Time        `json:"created_at"`
	Probes       []string         `json:"probes"`
	FindingCount int              `json:"finding_count"`
	Cancelled    bool             `json:"cancelled,omitempty"`
}

// ScanDetail is the body of GET /api/v1/scans/{id}.
type ScanDetail struct {
	types.ScanRun
	Summary types.RunSummary `json:"summary"`
}

// ProbeInfo describes a registered probe.
type ProbeInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func summarize(run types.ScanRun) ScanSummary {
	return ScanSummary{
		ID:           run.ID,
		Target:       run.Target.URL,
		Status:       run.Status,
		Progress:     run.Progress,
		CreatedAt:    run.CreatedAt,
		Probes:       run.Probes,
		FindingCount: len(run.Findings),
		Cancelled:    run.Cancelled,
	}
}

// writeJSON encodes data as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Code: status})
}
