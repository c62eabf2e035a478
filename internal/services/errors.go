package services

import "errors"

// Error taxonomy surfaced by the engine. Handlers map these onto HTTP
// statuses: not-found to 404 (existence never leaks across tenants),
// validation to 400, state violations to 409.
var (
	// Not-found
	ErrCampaignNotFound  = errors.New("campaign not found")
	ErrExecutionNotFound = errors.New("execution not found")

	// Validation
	ErrCampaignNoActions = errors.New("campaign must define at least one action")
	ErrUnknownActionKind = errors.New("campaign references an unknown action kind")
	ErrNegativeDelay     = errors.New("action delay must not be negative")
	ErrInvalidAmount     = errors.New("payment amount must be positive")

	// State violations
	ErrCampaignInactive            = errors.New("campaign is not active")
	ErrActiveExecutionExists       = errors.New("an active execution already exists for this subscription")
	ErrExecutionTerminal           = errors.New("execution is in a terminal state")
	ErrCampaignHasActiveExecutions = errors.New("campaign has pending or in-progress executions")
)
