package events

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"mlforge/pkg/logx"
	"mlforge/pkg/persistence"
)

// Enhancer rewrites a terse prompt into a detailed task description.
// *workflow.Driver satisfies it.
type Enhancer interface {
	Enhance(ctx context.Context, prompt string) (string, error)
}

// Server exposes the HTTP intake API.
type Server struct {
	dispatcher *Dispatcher
	enhancer   Enhancer
	store      *persistence.DatabaseOperations
	logger     *logx.Logger
	started    time.Time
}

// NewServer creates an intake server.
func NewServer(dispatcher *Dispatcher, enhancer Enhancer, store *persistence.DatabaseOperations) *Server {
	return &Server{
		dispatcher: dispatcher,
		enhancer:   enhancer,
		store:      store,
		logger:     logx.NewLogger("http"),
		started:    time.Now(),
	}
}

// RegisterRoutes sets up HTTP routes for the API.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/events", s.handleEvent)
	mux.HandleFunc("/api/enhance", s.handleEnhance)
	mux.HandleFunc("/api/messages", s.handleMessages)
	mux.HandleFunc("/api/healthz", s.handleHealth)
}

// handleEvent implements POST /api/events. Accepted events are queued and
// processed asynchronously; the response carries the run id for polling.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var evt Event
	if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
		http.Error(w, "Invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := evt.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if evt.ID == "" {
		evt.ID = uuid.New().String()
	}

	if err := s.dispatcher.Dispatch(evt); err != nil {
		s.logger.Warn("⚠️ event %s rejected: %v", evt.ID, err)
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	s.logger.Info("📦 event %s queued (project %s)", evt.ID, evt.Data.ProjectID)
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "run_id": evt.ID})
}

// handleEnhance implements POST /api/enhance, a synchronous prompt rewrite.
func (s *Server) handleEnhance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Prompt == "" {
		http.Error(w, "prompt is required", http.StatusBadRequest)
		return
	}

	enhanced, err := s.enhancer.Enhance(r.Context(), req.Prompt)
	if err != nil {
		s.logger.Error("❌ enhance failed: %v", err)
		http.Error(w, "Enhancement failed", http.StatusBadGateway)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"prompt": enhanced})
}

// handleMessages implements GET /api/messages?project_id=X&limit=N, the most
// recent messages in chronological order.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	projectID := r.URL.Query().Get("project_id")
	if projectID == "" {
		http.Error(w, "project_id is required", http.StatusBadRequest)
		return
	}
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			http.Error(w, "limit must be between 1 and 100", http.StatusBadRequest)
			return
		}
		limit = n
	}

	msgs, err := s.store.GetRecentMessages(projectID, limit)
	if err != nil {
		s.logger.Error("❌ load messages for %s: %v", projectID, err)
		http.Error(w, "Failed to load messages", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, msgs)
}

// handleHealth implements GET /api/healthz with recent warning/error log
// entries for quick triage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"uptime":      time.Since(s.started).Round(time.Second).String(),
		"recent_logs": logx.RecentEntries("", time.Now().Add(-5*time.Minute)),
	})
}

// writeJSON sets the content type before the status line goes out; headers
// written after WriteHeader are dropped.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("❌ encode response: %v", err)
	}
}
