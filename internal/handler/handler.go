package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	httpSwagger "github.com/swaggo/http-swagger"
	_ "github.com/taskboard/taskboard/docs" // Import generated docs
	"github.com/taskboard/taskboard/internal/automation"
	"github.com/taskboard/taskboard/internal/handler/dto"
	"github.com/taskboard/taskboard/internal/middleware"
	"github.com/taskboard/taskboard/internal/notify"
	"github.com/taskboard/taskboard/internal/repository"
	"github.com/taskboard/taskboard/internal/service"
	"github.com/taskboard/taskboard/internal/static"
)

// Config carries the tunable pieces of the HTTP layer.
type Config struct {
	NotifyWebhookURL string
	NotifyTimeout    time.Duration
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	pool           *pgxpool.Pool
	taskService    *service.TaskService
	ruleService    *service.RuleService
	taskRepo       *repository.TaskRepository
	projectRepo    *repository.ProjectRepository
	activityRepo   *repository.ActivityRepository
	authMiddleware *middleware.AuthMiddleware
}

// New creates a new Handler instance with all dependencies.
func New(pool *pgxpool.Pool, cfg Config) *Handler {
	// Create repositories
	taskRepo := repository.NewTaskRepository(pool)
	ruleRepo := repository.NewRuleRepository(pool)
	projectRepo := repository.NewProjectRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	activityRepo := repository.NewActivityRepository(pool)

	// Create the automation engine
	var notifier notify.Sender = notify.LogSender{}
	if cfg.NotifyWebhookURL != "" {
		notifier = notify.NewWebhookSender(cfg.NotifyWebhookURL, cfg.NotifyTimeout)
	}
	executor := automation.NewExecutor(notifier, cfg.NotifyTimeout)
	engine := automation.NewEngine(taskRepo, ruleRepo, activityRepo, executor)

	// Create services
	taskService := service.NewTaskService(pool, taskRepo, projectRepo, userRepo, activityRepo, engine)
	ruleService := service.NewRuleService(pool, ruleRepo, taskRepo, projectRepo, activityRepo, executor)

	// Create middleware
	authMiddleware := middleware.NewAuthMiddleware(userRepo)

	return &Handler{
		pool:           pool,
		taskService:    taskService,
		ruleService:    ruleService,
		taskRepo:       taskRepo,
		projectRepo:    projectRepo,
		activityRepo:   activityRepo,
		authMiddleware: authMiddleware,
	}
}

// TaskService exposes the task service for maintenance commands.
func (h *Handler) TaskService() *service.TaskService {
	return h.taskService
}

// RegisterRoutes registers all HTTP routes.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Health check
	mux.HandleFunc("GET /healthz", h.handleHealthz)

	// Landing page
	mux.HandleFunc("GET /{$}", h.handleIndex)

	// Swagger UI
	mux.HandleFunc("GET /swagger/", httpSwagger.Handler())

	// Projects
	mux.Handle("GET /api/v1/projects", h.auth(h.handleListProjects))
	mux.Handle("POST /api/v1/projects", h.auth(h.handleCreateProject))
	mux.Handle("GET /api/v1/projects/{id}", h.auth(h.handleGetProject))
	mux.Handle("POST /api/v1/projects/{id}/members", h.auth(h.handleAddMember))
	mux.Handle("GET /api/v1/projects/{id}/activity", h.auth(h.handleListActivity))

	// Tasks
	mux.Handle("GET /api/v1/projects/{id}/tasks", h.auth(h.handleListTasks))
	mux.Handle("POST /api/v1/projects/{id}/tasks", h.auth(h.handleCreateTask))
	mux.Handle("GET /api/v1/tasks/{id}", h.auth(h.handleGetTask))
	mux.Handle("PATCH /api/v1/tasks/{id}", h.auth(h.handleUpdateTask))
	mux.Handle("PATCH /api/v1/tasks/{id}/status", h.auth(h.handleUpdateTaskStatus))
	mux.Handle("PATCH /api/v1/tasks/{id}/assignee", h.auth(h.handleAssignTask))
	mux.Handle("POST /api/v1/tasks/{id}/comments", h.auth(h.handleCommentTask))

	// Automation rules
	mux.Handle("GET /api/v1/projects/{id}/automations", h.auth(h.handleListRules))
	mux.Handle("POST /api/v1/projects/{id}/automations", h.auth(h.handleCreateRule))
	mux.Handle("GET /api/v1/automations/{id}", h.auth(h.handleGetRule))
	mux.Handle("PATCH /api/v1/automations/{id}", h.auth(h.handleUpdateRule))
	mux.Handle("DELETE /api/v1/automations/{id}", h.auth(h.handleDeleteRule))
	mux.Handle("POST /api/v1/automations/{id}/test", h.auth(h.handleTestRule))
}

func (h *Handler) auth(next http.HandlerFunc) http.Handler {
	return h.authMiddleware.Authenticate(next)
}

// handleHealthz returns 200 OK if the database is reachable.
func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.pool.Ping(ctx); err != nil {
		slog.Error("database health check failed", "error", err)
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// handleIndex serves the embedded landing page.
func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(static.IndexHTML))
}

// Ping checks if the database is reachable (used for testing).
func (h *Handler) Ping(ctx context.Context) error {
	return h.pool.Ping(ctx)
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// respondError writes a standard error response.
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, dto.NewErrorResponse(code, message))
}

// respondDomainError maps a domain error and writes it.
func respondDomainError(w http.ResponseWriter, err error) {
	status, code, message := dto.MapDomainError(err)
	respondError(w, status, code, message)
}

// extractID extracts and validates a UUID path parameter.
// Returns (id, true) if valid, ("", false) if invalid (error already sent to client).
func extractID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "id is required")
		return "", false
	}

	if _, err := uuid.Parse(id); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "id must be a valid UUID")
		return "", false
	}

	return id, true
}
