package domain

import "errors"

// Domain-specific errors for business logic validation.
var (
	// Entity lookups
	ErrTaskNotFound    = errors.New("task not found")
	ErrProjectNotFound = errors.New("project not found")
	ErrRuleNotFound    = errors.New("automation rule not found")
	ErrUserNotFound    = errors.New("user not found")

	// Automation rule errors
	ErrInvalidRuleDefinition = errors.New("invalid automation rule definition")
	ErrUnknownTriggerType    = errors.New("unknown trigger type")
	ErrUnknownActionType     = errors.New("unknown action type")

	// Write conflicts
	ErrConcurrentModification = errors.New("task modified concurrently")

	// Side effects
	ErrNotificationDeliveryFailed = errors.New("notification delivery failed")

	// Permission errors
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotProjectOwner  = errors.New("not project owner")

	// Auth errors
	ErrInvalidToken = errors.New("invalid authentication token")
	ErrUserInactive = errors.New("user is inactive")

	// Validation errors
	ErrInvalidStatus   = errors.New("status not defined on project board")
	ErrInvalidPriority = errors.New("invalid task priority")
	ErrEmptyComment    = errors.New("comment text is required")
	ErrEmptyTitle      = errors.New("task title is required")
)
