package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ecowise-backend/internal/domain"
	"github.com/ecowise-backend/internal/service"
	"github.com/ecowise-backend/internal/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handler provides HTTP handlers for the EcoWise API
type Handler struct {
	submissions *service.SubmissionService
	leaderboard *service.LeaderboardService
	hub         *websocket.Hub
	logger      *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	submissions *service.SubmissionService,
	leaderboard *service.LeaderboardService,
	hub *websocket.Hub,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		submissions: submissions,
		leaderboard: leaderboard,
		hub:         hub,
		logger:      logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// DetectedObject is the caller-facing view of one detection.
type DetectedObject struct {
	Name       string  `json:"name"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// DetectResponse is the caller-facing result of one submission.
type DetectResponse struct {
	DetectedObjects []DetectedObject `json:"detected_objects"`
	EcoPoints       int              `json:"eco_points"`
	CarbonSavedKg   float64          `json:"carbon_saved_kg"`
	ObjectsDetected int              `json:"objects_detected"`
	Recommendations []string         `json:"recommendations"`
	Filename        string           `json:"filename"`
	StatsRecorded   bool             `json:"stats_recorded"`
	User            *domain.UserAccount `json:"user,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// WebSocket endpoint
	r.Get("/ws", h.HandleWebSocket)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/detect", h.Detect)

		r.Get("/leaderboard", h.GetLeaderboard)
		r.Get("/stats", h.GetStats)

		r.Route("/users/{username}", func(r chi.Router) {
			r.Get("/", h.GetUser)
			r.Get("/history", h.GetHistory)
		})

		r.Route("/centers", func(r chi.Router) {
			r.Get("/", h.ListCenters)
			r.Get("/{centerID}/directions", h.GetDirections)
		})

		// WebSocket info endpoint
		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]interface{}{
		"total_connections": h.hub.GetTotalConnections(),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck returns service readiness status
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "ready"})
}

// Detect handles a multipart image submission: the uploaded file is
// detected, scored and accumulated into the caller's account. A failed
// ledger write still returns the computed reward, flagged as unrecorded.
func (h *Handler) Detect(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("image")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidInput)
		return
	}
	defer file.Close()

	username := r.FormValue("username")

	outcome, err := h.submissions.ProcessUpload(r.Context(), username, header.Filename, file)
	if err != nil && outcome == nil {
		if domain.IsInputError(err) {
			h.writeError(w, http.StatusBadRequest, err)
			return
		}
		h.logger.Error("failed to process submission", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	resp := DetectResponse{
		DetectedObjects: make([]DetectedObject, 0, len(outcome.Result.Detections)),
		EcoPoints:       outcome.Result.TotalPoints,
		CarbonSavedKg:   outcome.Result.TotalCarbonSavedKg,
		ObjectsDetected: outcome.Result.ObjectsDetected(),
		Recommendations: outcome.Result.Recommendations,
		Filename:        outcome.Filename,
		StatsRecorded:   outcome.StatsRecorded,
		User:            outcome.Account,
	}
	for _, det := range outcome.Result.Detections {
		resp.DetectedObjects = append(resp.DetectedObjects, DetectedObject{
			Name:       det.Name,
			Category:   det.Category,
			Confidence: det.Confidence,
		})
	}

	h.writeSuccess(w, resp)
}

// GetLeaderboard returns the top N users
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			limit = l
		}
	}

	entries, err := h.leaderboard.TopN(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to get leaderboard", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, entries)
}

// GetUser returns a user's profile, creating the account on first lookup
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if username == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	profile, err := h.leaderboard.GetUser(r.Context(), username)
	if err != nil {
		h.logger.Error("failed to get user", "username", username, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, profile)
}

// GetHistory returns a user's submission history
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if username == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			limit = l
		}
	}

	records, err := h.leaderboard.GetHistory(r.Context(), username, limit)
	if err != nil {
		h.logger.Error("failed to get history", "username", username, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, map[string]interface{}{"history": records})
}

// ListCenters returns all recycling centers
func (h *Handler) ListCenters(w http.ResponseWriter, r *http.Request) {
	centers, err := h.leaderboard.ListCenters(r.Context())
	if err != nil {
		h.logger.Error("failed to list centers", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, map[string]interface{}{"centers": centers})
}

// GetDirections returns directions to a recycling center
func (h *Handler) GetDirections(w http.ResponseWriter, r *http.Request) {
	centerID, err := strconv.Atoi(chi.URLParam(r, "centerID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	directions, err := h.leaderboard.GetDirections(r.Context(), centerID)
	if err != nil {
		if errors.Is(err, domain.ErrCenterNotFound) {
			h.writeError(w, http.StatusNotFound, err)
			return
		}
		h.logger.Error("failed to get directions", "center_id", centerID, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, directions)
}

// GetStats returns aggregate system statistics
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.leaderboard.Stats(r.Context())
	if err != nil {
		h.logger.Error("failed to get stats", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, stats)
}
