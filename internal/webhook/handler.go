// Package webhook turns GitHub "issues" events into orchestration runs.
package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/cexll/issuebot/internal/dispatcher"
)

// Trigger starts a run and returns its ID.
type Trigger interface {
	Trigger(source string) (string, error)
}

// maxPayloadBytes matches GitHub's webhook payload cap.
const maxPayloadBytes = 25 << 20

// actions that can change what the bot would generate for an issue
var triggeringActions = map[string]bool{
	"opened":   true,
	"reopened": true,
	"edited":   true,
	"labeled":  true,
}

// Handler handles GitHub webhook events
type Handler struct {
	webhookSecret string
	repo          string
	trigger       Trigger
	deliveries    *deliveryDeduper
	maxBody       int64
}

// NewHandler creates a handler that only reacts to events for repo ("owner/name").
func NewHandler(webhookSecret, repo string, trigger Trigger) *Handler {
	return &Handler{
		webhookSecret: webhookSecret,
		repo:          repo,
		trigger:       trigger,
		deliveries:    newDeliveryDeduper(12 * time.Hour),
		maxBody:       maxPayloadBytes,
	}
}

// Handle verifies and dispatches one webhook delivery.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.Printf("[Webhook] Payload exceeds %d bytes", tooLarge.Limit)
			http.Error(w, "Payload too large", http.StatusRequestEntityTooLarge)
			return
		}
		log.Printf("[Webhook] Error reading payload: %v", err)
		http.Error(w, "Error reading payload", http.StatusBadRequest)
		return
	}

	if err := CheckSignature(payload, r.Header.Get("X-Hub-Signature-256"), h.webhookSecret); err != nil {
		log.Printf("[Webhook] Signature verification failed: %v", err)
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	switch eventType := r.Header.Get("X-GitHub-Event"); eventType {
	case "ping":
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	case "issues":
		h.handleIssues(w, r.Header.Get("X-GitHub-Delivery"), payload)
	default:
		log.Printf("[Webhook] Ignoring unsupported event type: %s", eventType)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Event ignored"))
	}
}

func (h *Handler) handleIssues(w http.ResponseWriter, delivery string, payload []byte) {
	var event IssuesEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		log.Printf("[Webhook] Error parsing issues event: %v", err)
		http.Error(w, "Error parsing event", http.StatusBadRequest)
		return
	}

	if !strings.EqualFold(event.Repository.FullName, h.repo) {
		log.Printf("[Webhook] Ignoring event for %s (configured for %s)", event.Repository.FullName, h.repo)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Repository ignored"))
		return
	}
	if !triggeringActions[event.Action] || event.Issue.PullRequest != nil {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Action ignored"))
		return
	}
	if !h.deliveries.markIfNew(delivery) {
		log.Printf("[Webhook] Duplicate delivery %s ignored", delivery)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Duplicate delivery"))
		return
	}

	source := fmt.Sprintf("webhook:issues.%s#%d", event.Action, event.Issue.Number)
	id, err := h.trigger.Trigger(source)
	if err != nil {
		h.deliveries.forget(delivery)
		if errors.Is(err, dispatcher.ErrBusy) {
			log.Printf("[Webhook] Run already in progress, rejecting %s", source)
			http.Error(w, "A run is already in progress", http.StatusConflict)
			return
		}
		log.Printf("[Webhook] Failed to start run for %s: %v", source, err)
		http.Error(w, "Failed to start run", http.StatusServiceUnavailable)
		return
	}

	log.Printf("[Webhook] Run %s started for %s", id, source)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"run_id": id})
}
