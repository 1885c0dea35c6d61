package ports

import "context"

// HealthChecker probes one backing dependency for the /health endpoint.
type HealthChecker interface {
	Name() string
	Ping(ctx context.Context) error
}

// Probe adapts a plain function into a HealthChecker.
type Probe struct {
	Dependency string
	Check      func(ctx context.Context) error
}

func (p Probe) Name() string { return p.Dependency }

func (p Probe) Ping(ctx context.Context) error { return p.Check(ctx) }
