package actions

import (
	"context"
	"fmt"

	"github.com/recouphq/collections-service-backend/internal/models"
)

// CustomFunc is an operator-registered action implementation
type CustomFunc func(ctx context.Context, exec ExecutionContext, config models.JSON) (*Result, error)

// CustomHandler dispatches "custom" actions to named functions registered at
// wiring time. The function table is closed before the engine starts; an
// unresolved name is a configuration error recorded on the step, never a
// panic or a retry.
type CustomHandler struct {
	funcs map[string]CustomFunc
}

// NewCustomHandler creates the custom action handler with an empty table
func NewCustomHandler() *CustomHandler {
	return &CustomHandler{funcs: make(map[string]CustomFunc)}
}

// RegisterFunc adds a named custom action implementation
func (h *CustomHandler) RegisterFunc(name string, fn CustomFunc) {
	h.funcs[name] = fn
}

func (h *CustomHandler) Kind() models.ActionKind {
	return models.ActionCustom
}

func (h *CustomHandler) Execute(ctx context.Context, exec ExecutionContext, config models.JSON) (*Result, error) {
	name := configString(config, "handler")
	if name == "" {
		return &Result{
			Status:  StatusFailed,
			Details: "custom action has no handler name configured",
		}, nil
	}

	fn, ok := h.funcs[name]
	if !ok {
		return &Result{
			Status:  StatusFailed,
			Details: fmt.Sprintf("unknown custom handler %q", name),
		}, nil
	}

	return fn(ctx, exec, config)
}
