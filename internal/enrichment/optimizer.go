package enrichment

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ScriptOptimizer turns a call purpose and optional script template into a
// narrative insight attached to the session.
//
// Rules:
// - Best-effort collaborator: callers must treat any error as a degraded
//   result, never as a pipeline failure.
// - Implementations must respect ctx cancellation.
type ScriptOptimizer interface {
	Optimize(ctx context.Context, purpose, template string) (string, error)
}

// OptimizerFunc adapts a function to the ScriptOptimizer interface.
type OptimizerFunc func(ctx context.Context, purpose, template string) (string, error)

func (f OptimizerFunc) Optimize(ctx context.Context, purpose, template string) (string, error) {
	return f(ctx, purpose, template)
}

var ErrNoPurpose = errors.New("enrichment: purpose is required")

// NarrativeOptimizer is the built-in optimizer. It derives a deterministic
// talking-track from the purpose and template, without external services.
type NarrativeOptimizer struct{}

func NewNarrativeOptimizer() *NarrativeOptimizer { return &NarrativeOptimizer{} }

func (o *NarrativeOptimizer) Optimize(ctx context.Context, purpose, template string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	purpose = strings.TrimSpace(purpose)
	if purpose == "" {
		return "", ErrNoPurpose
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Open with the reason for the call: %s.", purpose)
	if t := strings.TrimSpace(template); t != "" {
		fmt.Fprintf(&b, " Follow the prepared script: %s", t)
		if !strings.HasSuffix(t, ".") {
			b.WriteString(".")
		}
	}
	b.WriteString(" Confirm next steps before closing and log the outcome.")
	return b.String(), nil
}
