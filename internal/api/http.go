// Package api exposes the dispatch service over HTTP (chi) and MCP
// (stdio), sharing one deps bundle.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/luna-svc/luna/internal/analytics"
	"github.com/luna-svc/luna/internal/dispatch"
	"github.com/luna-svc/luna/internal/mcp"
	"github.com/luna-svc/luna/internal/storage"
)

const maxRequestBodySize = 10 << 20 // 10MB, requests may carry base64 audio or images

// HTTPDeps holds dependencies for the REST handler.
type HTTPDeps struct {
	Service   *dispatch.Service
	Store     *storage.Store // optional; automations and interactions 404 without it
	JWTSecret string
}

// NewHTTPHandler builds the REST router. Health and token issuance are
// open; everything else requires a bearer JWT.
func NewHTTPHandler(deps HTTPDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth(deps))
	r.Post("/auth/token", handleIssueToken(deps))

	r.Group(func(r chi.Router) {
		r.Use(JWTAuth(deps.JWTSecret))

		r.Post("/mcp/process", handleProcess(deps))
		r.Get("/mcp/capabilities", handleCapabilities(deps))

		r.Post("/sessions", handleCreateSession(deps))
		r.Get("/sessions/{id}", handleGetSession(deps))
		r.Post("/sessions/{id}/continue", handleContinueSession(deps))
		r.Delete("/sessions/{id}", handleDeleteSession(deps))

		r.Get("/analytics", handleAnalytics(deps))
		r.Get("/interactions", handleListInteractions(deps))

		r.Get("/automations", handleListAutomations(deps))
		r.Post("/automations", handleCreateAutomation(deps))
		r.Get("/automations/{id}", handleGetAutomation(deps))
		r.Put("/automations/{id}", handleUpdateAutomation(deps))
		r.Delete("/automations/{id}", handleDeleteAutomation(deps))
	})

	return r
}

func handleHealth(deps HTTPDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := deps.Service.HealthCheck(r.Context())
		writeJSON(w, http.StatusOK, health)
	}
}

// handleIssueToken exchanges the shared JWT secret for a signed token.
// The caller presents the secret itself as the bearer credential.
func handleIssueToken(deps HTTPDeps) http.HandlerFunc {
	type tokenRequest struct {
		UserID string `json:"user_id"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if len(auth) <= len(prefix) || !secretsEqual(auth[len(prefix):], deps.JWTSecret) {
			httpError(w, http.StatusUnauthorized, "authentication_error", "invalid or missing credentials")
			return
		}

		var req tokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id is required")
			return
		}

		token, err := IssueToken(deps.JWTSecret, req.UserID, 0)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to issue token: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": token})
	}
}

func handleProcess(deps HTTPDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req mcp.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.UserID == "" {
			req.UserID = AuthenticatedUser(r.Context())
		}

		resp := deps.Service.Process(r.Context(), req)
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleCapabilities(deps HTTPDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"task_types": mcp.TaskTypes(),
			"health":     deps.Service.HealthCheck(r.Context()),
		})
	}
}

func handleCreateSession(deps HTTPDeps) http.HandlerFunc {
	type createRequest struct {
		UserID    string `json:"user_id"`
		ProjectID string `json:"project_id"`
		Name      string `json:"session_name"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.UserID == "" {
			req.UserID = AuthenticatedUser(r.Context())
		}

		sess, err := deps.Service.CreateSession(req.UserID, req.ProjectID, req.Name)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		writeJSON(w, http.StatusCreated, sess)
	}
}

func handleGetSession(deps HTTPDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := deps.Service.GetSession(chi.URLParam(r, "id"))
		if !ok {
			httpError(w, http.StatusNotFound, "not_found", "session not found")
			return
		}
		writeJSON(w, http.StatusOK, sess)
	}
}

func handleContinueSession(deps HTTPDeps) http.HandlerFunc {
	type continueRequest struct {
		Message string `json:"message"`
	}
	type continueResponse struct {
		SessionID string `json:"session_id"`
		Response  string `json:"response"`
		Timestamp string `json:"timestamp"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req continueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "message is required")
			return
		}

		reply, err := deps.Service.ContinueConversation(r.Context(), id, req.Message)
		if errors.Is(err, mcp.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "session not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "failed to continue conversation: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, continueResponse{
			SessionID: id,
			Response:  reply,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func handleDeleteSession(deps HTTPDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps.Service.ClearSession(chi.URLParam(r, "id"))
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func handleAnalytics(deps HTTPDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := analytics.Filter{
			SessionID:  r.URL.Query().Get("session_id"),
			UserID:     r.URL.Query().Get("user_id"),
			WindowDays: parseIntParam(r, "window_days", 0, 365),
		}
		if filter.SessionID == "" && filter.UserID == "" {
			filter.UserID = AuthenticatedUser(r.Context())
		}
		writeJSON(w, http.StatusOK, deps.Service.Analytics(filter))
	}
}

func handleListInteractions(deps HTTPDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Store == nil {
			httpError(w, http.StatusNotFound, "not_found", "interaction log not configured")
			return
		}
		limit := parseIntParam(r, "limit", 20, 100)

		interactions, err := deps.Store.RecentInteractions(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list interactions: %v", err)
			return
		}
		if interactions == nil {
			interactions = []storage.Interaction{}
		}
		writeJSON(w, http.StatusOK, interactions)
	}
}

type automationRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Type        string          `json:"type"`
	Status      string          `json:"status"`
	Config      json.RawMessage `json:"config"`
}

func handleListAutomations(deps HTTPDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Store == nil {
			httpError(w, http.StatusNotFound, "not_found", "automation store not configured")
			return
		}
		jobs, err := deps.Store.ListAutomationJobs()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list automations: %v", err)
			return
		}
		if jobs == nil {
			jobs = []storage.AutomationJob{}
		}
		writeJSON(w, http.StatusOK, jobs)
	}
}

func handleCreateAutomation(deps HTTPDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Store == nil {
			httpError(w, http.StatusNotFound, "not_found", "automation store not configured")
			return
		}
		var req automationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Name == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "name is required")
			return
		}
		if req.Type == "" {
			req.Type = "manual"
		}

		job, err := deps.Store.CreateAutomationJob(storage.AutomationJob{
			Name:        req.Name,
			Description: req.Description,
			Type:        req.Type,
			Status:      req.Status,
			ConfigJSON:  configJSON(req.Config),
		})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to create automation: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, job)
	}
}

func handleGetAutomation(deps HTTPDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Store == nil {
			httpError(w, http.StatusNotFound, "not_found", "automation store not configured")
			return
		}
		job, err := deps.Store.GetAutomationJob(chi.URLParam(r, "id"))
		if errors.Is(err, mcp.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "automation not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get automation: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, job)
	}
}

func handleUpdateAutomation(deps HTTPDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Store == nil {
			httpError(w, http.StatusNotFound, "not_found", "automation store not configured")
			return
		}
		id := chi.URLParam(r, "id")

		job, err := deps.Store.GetAutomationJob(id)
		if errors.Is(err, mcp.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "automation not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get automation: %v", err)
			return
		}

		var req automationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Name != "" {
			job.Name = req.Name
		}
		if req.Description != "" {
			job.Description = req.Description
		}
		if req.Type != "" {
			job.Type = req.Type
		}
		if req.Status != "" {
			job.Status = req.Status
		}
		if len(req.Config) > 0 {
			job.ConfigJSON = configJSON(req.Config)
		}

		if err := deps.Store.UpdateAutomationJob(job); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to update automation: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, job)
	}
}

func handleDeleteAutomation(deps HTTPDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Store == nil {
			httpError(w, http.StatusNotFound, "not_found", "automation store not configured")
			return
		}
		err := deps.Store.DeleteAutomationJob(chi.URLParam(r, "id"))
		if errors.Is(err, mcp.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "automation not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete automation: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func configJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	return string(raw)
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
