package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"TransportBench/internal/export"
	"TransportBench/internal/model"
	"TransportBench/internal/storage"
)

// APIHandler holds the dependencies for API handlers.
type APIHandler struct {
	querier storage.Querier
}

func newRouter(h *APIHandler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/v1/runs", h.listRunsHandler).Methods("GET")
	r.HandleFunc("/api/v1/runs/{id}/windows", h.runWindowsHandler).Methods("GET")
	return r
}

// listRunsHandler lists stored runs. Query parameters: protocol,
// congestion_control, label, since (RFC 3339) and limit.
func (h *APIHandler) listRunsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.RunFilter{
		Protocol:          q.Get("protocol"),
		CongestionControl: q.Get("congestion_control"),
		Label:             q.Get("label"),
	}
	if s := q.Get("since"); s != "" {
		since, err := time.Parse(time.RFC3339, s)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid since: %v", err), http.StatusBadRequest)
			return
		}
		filter.Since = since
	}
	if s := q.Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit <= 0 {
			http.Error(w, fmt.Sprintf("invalid limit: %q", s), http.StatusBadRequest)
			return
		}
		filter.Limit = limit
	}

	reports, err := h.querier.ListRuns(r.Context(), filter)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to query runs: %v", err), http.StatusInternalServerError)
		return
	}

	docs := make([]*export.Document, 0, len(reports))
	for _, report := range reports {
		doc := export.NewDocument(report)
		doc.MetricsPerSecond = nil
		docs = append(docs, doc)
	}
	writeJSON(w, docs)
}

// runWindowsHandler returns the per-second timeline of one run.
func (h *APIHandler) runWindowsHandler(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]
	windows, err := h.querier.RunWindows(r.Context(), runID)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to query windows: %v", err), http.StatusInternalServerError)
		return
	}
	if len(windows) == 0 {
		http.Error(w, fmt.Sprintf("run '%s' not found", runID), http.StatusNotFound)
		return
	}
	writeJSON(w, export.NewDocument(&model.Report{Windows: windows}).MetricsPerSecond)
}

func writeJSON(w http.ResponseWriter, v any) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to marshal response: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(jsonBytes); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}
