package queue

import (
	"context"
	"encoding/json"
)

type (
	Handler interface {
		Name() string
		Handle(ctx context.Context, payload json.RawMessage) error
	}

	JobHandlerFunc[T any] func(ctx context.Context, payload T) error
)

// NewJobHandler wraps a typed handler function. The handler name defaults to
// the qualified payload struct name, matching the default naming on enqueue so
// producers and consumers agree without extra configuration.
func NewJobHandler[T any](handler JobHandlerFunc[T]) Handler {
	var payload T
	return &jobHandler[T]{
		name:    qualifiedStructName(payload),
		handler: handler,
	}
}

// NewNamedJobHandler wraps a typed handler function under an explicit name.
func NewNamedJobHandler[T any](name string, handler JobHandlerFunc[T]) Handler {
	return &jobHandler[T]{
		name:    name,
		handler: handler,
	}
}

type jobHandler[T any] struct {
	name    string
	handler JobHandlerFunc[T]
}

func (h *jobHandler[T]) Name() string {
	return h.name
}

func (h *jobHandler[T]) Handle(ctx context.Context, payload json.RawMessage) error {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return err
	}
	return h.handler(ctx, t)
}
