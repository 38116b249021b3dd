package compute

import (
	"context"

	"growcut/internal/models"
)

// Sequential runs every dispatch on the calling goroutine
type Sequential struct {
	budget
}

// NewSequential creates a single-threaded backend holding at most maxVoxels voxels
func NewSequential(maxVoxels int) *Sequential {
	s := &Sequential{}
	s.initBudget(maxVoxels)
	return s
}

// Dispatch implements Backend
func (s *Sequential) Dispatch(ctx context.Context, k Kernel, inputs, outputs []*models.Volume) error {
	dims, err := checkBuffers(inputs, outputs)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	runRows(k, dims, inputs, outputs, 0, dims.Y*dims.Z)
	s.dispatches.Add(1)
	return nil
}
