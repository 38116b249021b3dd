package compute

import (
	"context"

	"golang.org/x/sync/errgroup"

	"growcut/internal/models"
)

// Parallel splits each dispatch into slabs of grid rows and runs them on a
// bounded pool of goroutines. Wait on the group is the inter-dispatch barrier.
type Parallel struct {
	budget
	workers int
}

// NewParallel creates a backend using up to workers goroutines per dispatch
func NewParallel(workers, maxVoxels int) *Parallel {
	if workers < 1 {
		workers = 1
	}
	p := &Parallel{workers: workers}
	p.initBudget(maxVoxels)
	return p
}

// Workers returns the size of the goroutine pool
func (p *Parallel) Workers() int {
	return p.workers
}

// Dispatch implements Backend
func (p *Parallel) Dispatch(ctx context.Context, k Kernel, inputs, outputs []*models.Volume) error {
	dims, err := checkBuffers(inputs, outputs)
	if err != nil {
		return err
	}

	rows := dims.Y * dims.Z
	// Oversplit so slabs of uneven cost still balance across workers.
	slabs := p.workers * 4
	if slabs > rows {
		slabs = rows
	}
	rowsPerSlab := (rows + slabs - 1) / slabs

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for from := 0; from < rows; from += rowsPerSlab {
		to := from + rowsPerSlab
		if to > rows {
			to = rows
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			runRows(k, dims, inputs, outputs, from, to)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	p.dispatches.Add(1)
	return nil
}
