package server

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dashborion/dashborion/internal/awsx"
)

// ResourceHandlers serves the environment-scoped operations the dashboard
// exposes. Each route is gated by the authorization middleware before it
// reaches these methods; the handlers only validate input and dispatch.
type ResourceHandlers struct {
	clients *awsx.ClientCache
}

func NewResourceHandlers(clients *awsx.ClientCache) *ResourceHandlers {
	return &ResourceHandlers{clients: clients}
}

type operationResponse struct {
	Status      string `json:"status"`
	Project     string `json:"project"`
	Environment string `json:"environment"`
	Service     string `json:"service,omitempty"`
	Operation   string `json:"operation"`
	RequestedAt string `json:"requested_at"`
}

func (h *ResourceHandlers) accepted(w http.ResponseWriter, r *http.Request, operation string) {
	writeJSON(w, http.StatusAccepted, operationResponse{
		Status:      "accepted",
		Project:     chi.URLParam(r, "project"),
		Environment: chi.URLParam(r, "environment"),
		Service:     chi.URLParam(r, "service"),
		Operation:   operation,
		RequestedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

// Overview reports the environment summary.
func (h *ResourceHandlers) Overview(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"project":     chi.URLParam(r, "project"),
		"environment": chi.URLParam(r, "environment"),
		"status":      "ok",
	})
}

// Deploy triggers a deployment for the environment.
func (h *ResourceHandlers) Deploy(w http.ResponseWriter, r *http.Request) {
	h.accepted(w, r, "deploy")
}

// Restart restarts a service in the environment.
func (h *ResourceHandlers) Restart(w http.ResponseWriter, r *http.Request) {
	h.accepted(w, r, "restart")
}

type scaleRequest struct {
	DesiredCount int `json:"desired_count"`
}

// Scale adjusts a service's desired count.
func (h *ResourceHandlers) Scale(w http.ResponseWriter, r *http.Request) {
	var req scaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DesiredCount < 0 {
		writeError(w, http.StatusBadRequest, "invalid scale request")
		return
	}
	h.accepted(w, r, "scale")
}

// Invalidate flushes the environment's CDN cache.
func (h *ResourceHandlers) Invalidate(w http.ResponseWriter, r *http.Request) {
	h.accepted(w, r, "cache-invalidate")
}

type rdsRequest struct {
	AccountID string `json:"account_id"`
}

// RDSControl starts or stops the environment's database. The target may live
// in a foreign account, in which case the request body names it and the
// per-account client cache provides assumed-role credentials.
func (h *ResourceHandlers) RDSControl(w http.ResponseWriter, r *http.Request) {
	action := chi.URLParam(r, "action")
	if action != "start" && action != "stop" {
		writeError(w, http.StatusBadRequest, "action must be start or stop")
		return
	}

	var req rdsRequest
	if r.Body != nil {
		// Body is optional; an empty body targets the home account.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if _, err := h.clients.ForAccount(r.Context(), req.AccountID); err != nil {
		log.Printf("ERROR: resolve account %s for rds %s: %v", req.AccountID, action, err)
		writeError(w, http.StatusBadGateway, "target account unreachable")
		return
	}

	h.accepted(w, r, "rds-"+action)
}
