package actions

import (
	"context"
	"fmt"

	"github.com/recouphq/collections-service-backend/internal/models"
)

// Result statuses reported by action handlers
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Result is the outcome of one handler dispatch. A failed Result with a nil
// error is an application-level failure and is never retried; a non-nil error
// from Execute is a transport-level failure the executor may retry.
type Result struct {
	Status     string
	Details    string
	ExternalID string
	Payload    map[string]interface{}
}

// ExecutionContext is the read-only execution snapshot handed to handlers
type ExecutionContext struct {
	ExecutionID       string
	TenantID          string
	CampaignID        string
	SubscriptionID    string
	CustomerID        string
	InvoiceID         *string
	Step              int
	OutstandingAmount int64
	RecoveredAmount   int64
	WebhookSecret     string
}

// Handler executes one kind of campaign action against an external
// collaborator
type Handler interface {
	Kind() models.ActionKind
	Execute(ctx context.Context, exec ExecutionContext, config models.JSON) (*Result, error)
}

// Registry maps action kinds to their handlers. The handler set is closed at
// wiring time; an unknown kind is a configuration error, not a panic.
type Registry struct {
	handlers map[models.ActionKind]Handler
}

// NewRegistry creates an empty handler registry
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[models.ActionKind]Handler)}
}

// Register adds a handler for its kind, replacing any previous registration
func (r *Registry) Register(h Handler) {
	r.handlers[h.Kind()] = h
}

// Resolve returns the handler for a kind
func (r *Registry) Resolve(kind models.ActionKind) (Handler, error) {
	h, ok := r.handlers[kind]
	if !ok {
		return nil, fmt.Errorf("no handler registered for action kind %q", kind)
	}
	return h, nil
}

// Kinds returns the registered action kinds
func (r *Registry) Kinds() []models.ActionKind {
	kinds := make([]models.ActionKind, 0, len(r.handlers))
	for k := range r.handlers {
		kinds = append(kinds, k)
	}
	return kinds
}

// configString reads a string field from handler config
func configString(config models.JSON, key string) string {
	if config == nil {
		return ""
	}
	if v, ok := config[key].(string); ok {
		return v
	}
	return ""
}
