package compute

import (
	"fmt"

	"growcut/pkg/config"
)

// New builds the backend selected by the compute section of cfg
func New(cfg *config.Config) (Backend, error) {
	switch cfg.Compute.Backend {
	case config.BackendParallel:
		return NewParallel(cfg.Compute.Workers, cfg.Compute.MaxVoxels), nil
	case config.BackendSequential:
		return NewSequential(cfg.Compute.MaxVoxels), nil
	default:
		return nil, fmt.Errorf("%w: unknown compute backend %q", config.ErrInvalidConfig, cfg.Compute.Backend)
	}
}
