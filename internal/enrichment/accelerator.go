package enrichment

import "context"

// Acceleration describes the compute-acceleration capability reported by a
// ComputeAccelerator probe.
type Acceleration struct {
	Available     bool    `json:"available"`
	Backend       string  `json:"backend,omitempty"`
	SpeedupFactor float64 `json:"speedup_factor,omitempty"`
}

// ComputeAccelerator reports whether hardware acceleration is available for
// call processing.
//
// Best-effort collaborator: a probe failure means "not available", never a
// pipeline failure.
type ComputeAccelerator interface {
	Probe(ctx context.Context) (Acceleration, error)
}

// AcceleratorFunc adapts a function to the ComputeAccelerator interface.
type AcceleratorFunc func(ctx context.Context) (Acceleration, error)

func (f AcceleratorFunc) Probe(ctx context.Context) (Acceleration, error) {
	return f(ctx)
}

// StaticAccelerator reports a fixed capability descriptor. The default value
// reports no acceleration; deployments with accelerated back-ends configure
// the descriptor at wiring time.
type StaticAccelerator struct {
	Info Acceleration
}

func NewStaticAccelerator(info Acceleration) *StaticAccelerator {
	return &StaticAccelerator{Info: info}
}

func (a *StaticAccelerator) Probe(ctx context.Context) (Acceleration, error) {
	if err := ctx.Err(); err != nil {
		return Acceleration{}, err
	}
	return a.Info, nil
}
