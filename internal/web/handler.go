// Package web exposes run history and run triggers over HTTP.
package web

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/cexll/issuebot/internal/dispatcher"
	"github.com/cexll/issuebot/internal/runstore"
)

// Trigger starts a background run.
type Trigger interface {
	Trigger(source string) (string, error)
}

// RunLister is the read side of the run history.
type RunLister interface {
	Get(id string) (*runstore.Run, bool)
	List() []*runstore.Run
}

// Handler serves the run API.
type Handler struct {
	runs     RunLister
	trigger  Trigger
	webhook  http.HandlerFunc
	runToken string
}

// NewHandler creates a new web handler. webhook may be nil when no secret is configured.
// POST /runs is only served when runToken is set, and callers must present it as a bearer token.
func NewHandler(runs RunLister, trigger Trigger, webhook http.HandlerFunc, runToken string) *Handler {
	return &Handler{runs: runs, trigger: trigger, webhook: webhook, runToken: runToken}
}

// RegisterRoutes registers the API routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/runs", h.handleRunList).Methods(http.MethodGet)
	if h.runToken != "" {
		r.HandleFunc("/runs", h.handleStartRun).Methods(http.MethodPost)
	}
	r.HandleFunc("/runs/{id}", h.handleRunDetail).Methods(http.MethodGet)
	if h.webhook != nil {
		r.HandleFunc("/webhook", h.webhook).Methods(http.MethodPost)
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleRunList(w http.ResponseWriter, r *http.Request) {
	runs := h.runs.List()
	// keep the list light; full reports are served per run
	summaries := make([]runstore.Run, 0, len(runs))
	for _, run := range runs {
		s := *run
		s.Report = nil
		summaries = append(summaries, s)
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (h *Handler) handleRunDetail(w http.ResponseWriter, r *http.Request) {
	run, ok := h.runs.Get(mux.Vars(r)["id"])
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// authorized compares the bearer token in constant time.
func (h *Handler) authorized(r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.runToken)) == 1
}

func (h *Handler) handleStartRun(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid or missing bearer token"})
		return
	}
	id, err := h.trigger.Trigger("http")
	switch {
	case errors.Is(err, dispatcher.ErrBusy):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case err != nil:
		log.Printf("[Web] Failed to start run: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	default:
		w.Header().Set("Location", "/runs/"+id)
		writeJSON(w, http.StatusAccepted, map[string]string{"run_id": id})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[Web] Failed to encode response: %v", err)
	}
}
