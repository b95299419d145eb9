// Package api implements the REST and websocket handlers under /api/v1.
package api

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/buemura/surface/internal/orchestrator"
	"github.com/buemura/surface/internal/output"
	"github.com/buemura/surface/internal/scanner"
	"github.com/buemura/surface/pkg/types"
)

// Handlers holds dependencies for the REST API handlers.
type Handlers struct {
	Manager *orchestrator.Manager
	Logger  *slog.Logger
}

// NewHandlers creates API handlers backed by manager.
func NewHandlers(manager *orchestrator.Manager, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{Manager: manager, Logger: logger.With("component", "api")}
}

// CreateScan handles POST /api/v1/scans.
func (h *Handlers) CreateScan(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCreateScanRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	target, err := types.ParseTarget(req.Target)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid target: "+err.Error())
		return
	}
	if req.Method != "" {
		target.Method = req.Method
	}
	target.Headers = req.Headers
	target.Body = req.Body

	id, err := h.Manager.StartScan(r.Context(), orchestrator.ScanRequest{Target: target, Probes: req.Probes})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, scanner.ErrProbeNotFound) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":     id,
		"status": types.StatusPending,
	})
}

// ListScans handles GET /api/v1/scans.
func (h *Handlers) ListScans(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Manager.List()
	if err != nil {
		h.Logger.Error("listing scans failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list scans")
		return
	}

	summaries := make([]ScanSummary, len(runs))
	for i, run := range runs {
		summaries[i] = summarize(run)
	}
	writeJSON(w, http.StatusOK, summaries)
}

// GetScan handles GET /api/v1/scans/{id}.
func (h *Handlers) GetScan(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ScanDetail{ScanRun: run, Summary: run.Summary()})
}

// CancelScan handles POST /api/v1/scans/{id}/cancel.
func (h *Handlers) CancelScan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Manager.Cancel(id); err != nil {
		h.writeManagerError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": "cancelling"})
}

// GetScanReport handles GET /api/v1/scans/{id}/report.
func (h *Handlers) GetScanReport(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if !run.Status.Terminal() {
		writeError(w, http.StatusConflict, "scan has not finished")
		return
	}

	var buf bytes.Buffer
	if err := (&output.HTMLFormatter{}).Format(&buf, run); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to render report: "+err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// DeleteScan handles DELETE /api/v1/scans/{id}.
func (h *Handlers) DeleteScan(w http.ResponseWriter, r *http.Request) {
	if err := h.Manager.Delete(chi.URLParam(r, "id")); err != nil {
		h.writeManagerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListProbes handles GET /api/v1/probes.
func (h *Handlers) ListProbes(w http.ResponseWriter, r *http.Request) {
	probes := h.Manager.Probes()
	info := make([]ProbeInfo, len(probes))
	for i, p := range probes {
		info[i] = ProbeInfo{Name: p.Name(), Description: p.Description()}
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *Handlers) lookup(w http.ResponseWriter, r *http.Request) (types.ScanRun, bool) {
	run, err := h.Manager.GetScanRun(chi.URLParam(r, "id"))
	if err != nil {
		h.writeManagerError(w, err)
		return types.ScanRun{}, false
	}
	return run, true
}

func (h *Handlers) writeManagerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orchestrator.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, orchestrator.ErrNotTerminal):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.Logger.Error("scan request failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
