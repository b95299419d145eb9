package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// maxBodyBytes bounds the JSON body of POST /scans.
const maxBodyBytes = 1 << 20

// CreateScanRequest is the JSON body for POST /api/v1/scans.
type CreateScanRequest struct {
	Target  string            `json:"target"`
	Probes  []string          `json:"probes"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
}

// decodeCreateScanRequest reads and validates the request body.
func decodeCreateScanRequest(w http.ResponseWriter, r *http.Request) (*CreateScanRequest, error) {
	var req CreateScanRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	req.Target = strings.TrimSpace(req.Target)
	if req.Target == "" {
		return nil, fmt.Errorf("target is required")
	}

	req.Method = strings.ToUpper(strings.TrimSpace(req.Method))
	switch req.Method {
	case "", "GET", "POST", "PUT", "PATCH", "DELETE":
	default:
		return nil, fmt.Errorf("unsupported method %q", req.Method)
	}

	for i, p := range req.Probes {
		req.Probes[i] = strings.TrimSpace(p)
	}

	return &req, nil
}
