package handler

import (
	"encoding/json"
	"net/http"

	"github.com/taskboard/taskboard/internal/domain"
	"github.com/taskboard/taskboard/internal/handler/dto"
	"github.com/taskboard/taskboard/internal/middleware"
	"github.com/taskboard/taskboard/internal/service"
)

// handleCreateRule creates an automation rule. Project owner only.
// @Summary Create an automation rule
// @Description Validates and persists a trigger/action rule on the project. Only the project owner may manage automations.
// @Tags automations
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param request body dto.CreateRuleRequest true "Rule definition"
// @Success 201 {object} dto.RuleResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /projects/{id}/automations [post]
func (h *Handler) handleCreateRule(w http.ResponseWriter, r *http.Request) {
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

	var req dto.CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	rule := &domain.AutomationRule{
		ProjectID:   projectID,
		Name:        req.Name,
		Description: req.Description,
		Trigger:     req.Trigger,
		Actions:     req.Actions,
		IsActive:    isActive,
	}

	created, err := h.ruleService.CreateRule(ctx, rule, user.ID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, dto.ToRuleResponse(created))
}

// handleGetRule retrieves an automation rule.
// @Summary Get an automation rule
// @Tags automations
// @Produce json
// @Param id path string true "Automation ID"
// @Success 200 {object} dto.RuleResponse
// @Failure 404 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /automations/{id} [get]
func (h *Handler) handleGetRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := middleware.GetUserFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Authentication required")
		return
	}

	ruleID, ok := extractID(w, r)
	if !ok {
		return
	}

	rule, err := h.ruleService.GetRule(ctx, ruleID, user.ID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToRuleResponse(rule))
}

// handleListRules lists a project's automation rules.
// @Summary List project automations
// @Description Lists every rule of the project with firing statistics, active or not.
// @Tags automations
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} dto.RulesListResponse
// @Security BearerAuth
// @Router /projects/{id}/automations [get]
func (h *Handler) handleListRules(w http.ResponseWriter, r *http.Request) {
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

	rules, err := h.ruleService.ListRules(ctx, projectID, user.ID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	response := dto.RulesListResponse{
		Automations: make([]dto.RuleResponse, len(rules)),
		Total:       len(rules),
	}
	for i, rule := range rules {
		response.Automations[i] = dto.ToRuleResponse(rule)
	}

	respondJSON(w, http.StatusOK, response)
}

// handleUpdateRule edits an automation rule. Project owner only.
// @Summary Update an automation rule
// @Description Applies partial updates and re-validates the merged definition before writing.
// @Tags automations
// @Accept json
// @Produce json
// @Param id path string true "Automation ID"
// @Param request body dto.UpdateRuleRequest true "Rule update"
// @Success 200 {object} dto.RuleResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /automations/{id} [patch]
func (h *Handler) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := middleware.GetUserFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Authentication required")
		return
	}

	ruleID, ok := extractID(w, r)
	if !ok {
		return
	}

	var req dto.UpdateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	rule, err := h.ruleService.UpdateRule(ctx, ruleID, user.ID, service.UpdateRuleInput{
		Name:        req.Name,
		Description: req.Description,
		Trigger:     req.Trigger,
		Actions:     req.Actions,
		IsActive:    req.IsActive,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToRuleResponse(rule))
}

// handleDeleteRule removes an automation rule. Project owner only.
// @Summary Delete an automation rule
// @Tags automations
// @Param id path string true "Automation ID"
// @Success 204
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /automations/{id} [delete]
func (h *Handler) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := middleware.GetUserFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Authentication required")
		return
	}

	ruleID, ok := extractID(w, r)
	if !ok {
		return
	}

	if err := h.ruleService.DeleteRule(ctx, ruleID, user.ID); err != nil {
		respondDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleTestRule fires a rule's actions against a task. Project owner only.
// @Summary Test-fire an automation rule
// @Description Runs the rule's actions against the given task, persists the result, and records the firing.
// @Tags automations
// @Accept json
// @Produce json
// @Param id path string true "Automation ID"
// @Param request body dto.TestRuleRequest true "Test request"
// @Success 200 {object} dto.TaskResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /automations/{id}/test [post]
func (h *Handler) handleTestRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := middleware.GetUserFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Authentication required")
		return
	}

	ruleID, ok := extractID(w, r)
	if !ok {
		return
	}

	var req dto.TestRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if req.TaskID == "" {
		respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "task_id is required")
		return
	}

	task, err := h.ruleService.TestRule(ctx, ruleID, req.TaskID, user.ID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToTaskResponse(task))
}
