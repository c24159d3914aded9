package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/taskboard/taskboard/internal/domain"
	"github.com/taskboard/taskboard/internal/handler/dto"
	"github.com/taskboard/taskboard/internal/middleware"
)

// handleCreateProject creates a project with the default board columns.
// @Summary Create a project
// @Tags projects
// @Accept json
// @Produce json
// @Param request body dto.CreateProjectRequest true "Project creation request"
// @Success 201 {object} dto.ProjectResponse
// @Failure 422 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /projects [post]
func (h *Handler) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := middleware.GetUserFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Authentication required")
		return
	}

	var req dto.CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required")
		return
	}

	project := &domain.Project{
		Name:        req.Name,
		Description: req.Description,
		OwnerID:     user.ID,
	}

	tx, err := h.pool.Begin(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		return
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && err.Error() != "tx is closed" {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}()

	if _, err := h.projectRepo.Create(ctx, tx, project); err != nil {
		respondDomainError(w, err)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		return
	}

	slog.Info("project created", "project_id", project.ID, "owner_id", user.ID)

	respondJSON(w, http.StatusCreated, dto.ToProjectResponse(project))
}

// handleGetProject retrieves a project.
// @Summary Get project details
// @Tags projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} dto.ProjectResponse
// @Failure 404 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /projects/{id} [get]
func (h *Handler) handleGetProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := middleware.GetUserFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Authentication required")
		return
	}

	projectID, ok := extractID(w, r)
	if !ok {
		return
	}

	project, err := h.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if !project.IsMember(user.ID) {
		respondDomainError(w, domain.ErrPermissionDenied)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToProjectResponse(project))
}

// handleListProjects lists the projects the user belongs to.
// @Summary List my projects
// @Tags projects
// @Produce json
// @Success 200 {object} dto.ProjectsListResponse
// @Security BearerAuth
// @Router /projects [get]
func (h *Handler) handleListProjects(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := middleware.GetUserFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Authentication required")
		return
	}

	projects, err := h.projectRepo.ListByMember(ctx, user.ID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	response := dto.ProjectsListResponse{
		Projects: make([]dto.ProjectResponse, len(projects)),
		Total:    len(projects),
	}
	for i, project := range projects {
		response.Projects[i] = dto.ToProjectResponse(project)
	}

	respondJSON(w, http.StatusOK, response)
}

// handleAddMember adds a user to a project. Project owner only.
// @Summary Add a project member
// @Tags projects
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param request body dto.AddMemberRequest true "Membership request"
// @Success 200 {object} dto.ProjectResponse
// @Failure 403 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /projects/{id}/members [post]
func (h *Handler) handleAddMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := middleware.GetUserFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Authentication required")
		return
	}

	projectID, ok := extractID(w, r)
	if !ok {
		return
	}

	var req dto.AddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if req.UserID == "" {
		respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "user_id is required")
		return
	}

	role := domain.MemberRoleMember
	if req.Role != "" {
		role = domain.MemberRole(req.Role)
		if role != domain.MemberRoleOwner && role != domain.MemberRoleMember {
			respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR",
				fmt.Sprintf("role must be %q or %q", domain.MemberRoleOwner, domain.MemberRoleMember))
			return
		}
	}

	project, err := h.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if !project.IsOwner(user.ID) {
		respondDomainError(w, domain.ErrNotProjectOwner)
		return
	}

	if err := h.projectRepo.AddMember(ctx, projectID, req.UserID, role); err != nil {
		respondDomainError(w, err)
		return
	}

	project, err = h.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToProjectResponse(project))
}

// handleListActivity retrieves a project's feed, newest first.
// @Summary List project activity
// @Tags projects
// @Produce json
// @Param id path string true "Project ID"
// @Param limit query int false "Maximum entries to return (default 50)"
// @Success 200 {object} dto.ActivityListResponse
// @Security BearerAuth
// @Router /projects/{id}/activity [get]
func (h *Handler) handleListActivity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := middleware.GetUserFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Authentication required")
		return
	}

	projectID, ok := extractID(w, r)
	if !ok {
		return
	}

	if err := h.requireMember(ctx, projectID, user.ID); err != nil {
		respondDomainError(w, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a non-negative integer")
			return
		}
	}

	activities, err := h.activityRepo.ListByProject(ctx, projectID, limit)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	response := dto.ActivityListResponse{
		Activities: make([]dto.ActivityInfo, len(activities)),
		Total:      len(activities),
	}
	for i, activity := range activities {
		response.Activities[i] = dto.ToActivityInfo(activity)
	}

	respondJSON(w, http.StatusOK, response)
}
