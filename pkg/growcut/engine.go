// Package growcut implements iterative grow-cut label propagation over a 3D
// intensity volume.
//
// A run seeds a label and strength for every voxel, then repeatedly lets each
// voxel adopt the label of a diagonal neighbor whose strength, reduced by the
// intensity difference between the two voxels, beats its own. Every iteration
// reads only the previous iteration's buffers and writes the other pair of a
// ping-pong arena, so results do not depend on the order voxels are visited.
package growcut

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"growcut/internal/logging"
	"growcut/internal/models"
	"growcut/pkg/compute"
	"growcut/pkg/config"
	"growcut/pkg/filter"
)

var (
	// ErrNotConfigured is returned by Run before a successful Configure
	ErrNotConfigured = errors.New("engine is not configured")

	// ErrDimensionMismatch is returned when seed volumes differ from the intensity grid
	ErrDimensionMismatch = errors.New("volume dimension mismatch")

	// ErrStrengthRange is returned when a seed strength is outside [0, MaxStrength]
	ErrStrengthRange = errors.New("seed strength out of range")
)

// Inputs are the volumes a run consumes. Label and Strength are optional
// seeds; when both are nil the seeds are derived from Intensity.
type Inputs struct {
	Intensity *models.Volume
	Label     *models.Volume
	Strength  *models.Volume
}

// Outputs are owned by the caller once Run returns
type Outputs struct {
	Label    *models.Volume
	Strength *models.Volume

	// Config is the filter configuration the run used, passed through unchanged
	Config config.Filter

	// Dispatches is the number of kernel dispatches the run issued
	Dispatches int
}

// Observer is notified after the barrier that ends each iteration. changed is
// the number of voxels whose label differs from the previous iteration; it is
// -1 for the initialization pass.
type Observer func(iteration, changed int)

var _ filter.Filter[Inputs, *Outputs] = (*Engine)(nil)

// Engine runs grow-cut propagation on a compute backend
type Engine struct {
	backend    compute.Backend
	logger     *zap.Logger
	observer   Observer
	cfg        config.Filter
	configured bool
}

// NewEngine creates an engine dispatching on backend. A nil logger disables logging.
func NewEngine(backend compute.Backend, logger *zap.Logger) *Engine {
	return &Engine{
		backend: backend,
		logger:  logging.OrNop(logger),
	}
}

// SetObserver installs fn to be called after every iteration
func (e *Engine) SetObserver(fn Observer) {
	e.observer = fn
}

// Configure validates cfg and keeps it for subsequent runs
func (e *Engine) Configure(cfg config.Filter) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.cfg = cfg
	e.configured = true
	return nil
}

// Config returns the active configuration
func (e *Engine) Config() config.Filter {
	return e.cfg
}

// Run executes the initialization pass followed by IterationCount-1
// propagation passes. Validation happens before the first dispatch.
func (e *Engine) Run(ctx context.Context, in Inputs) (*Outputs, error) {
	if !e.configured {
		return nil, ErrNotConfigured
	}
	if err := validateInputs(in); err != nil {
		return nil, err
	}

	dims := in.Intensity.Dims
	passes := e.cfg.IterationCount - 1
	if passes < 0 {
		passes = 0
	}
	seeded := in.Label != nil

	e.logger.Info("starting grow-cut run",
		zap.Stringer("dims", dims),
		zap.Int("iterations", e.cfg.IterationCount),
		zap.Bool("seeded", seeded))
	start := time.Now()

	a, err := newArena(e.backend, dims)
	if err != nil {
		return nil, err
	}
	ok := false
	defer func() {
		if !ok {
			a.release()
		}
	}()

	dispatches := 0
	if seeded {
		err = e.backend.Dispatch(ctx, copyKernel, []*models.Volume{in.Label, in.Strength}, a.current().outputs())
	} else {
		err = e.backend.Dispatch(ctx, initKernel, []*models.Volume{in.Intensity}, a.current().outputs())
	}
	if err != nil {
		return nil, fmt.Errorf("initialization dispatch: %w", err)
	}
	dispatches++
	e.notify(0, nil, a.current())

	for it := 1; it <= passes; it++ {
		src, dst := a.current(), a.next()
		inputs := []*models.Volume{in.Intensity, src.label, src.strength}
		if err := e.backend.Dispatch(ctx, propagateKernel, inputs, dst.outputs()); err != nil {
			return nil, fmt.Errorf("propagation dispatch %d: %w", it, err)
		}
		dispatches++
		a.swap()
		e.notify(it, &src, dst)
	}

	result := a.detach()
	ok = true

	e.logger.Info("grow-cut run complete",
		zap.Int("dispatches", dispatches),
		zap.Duration("elapsed", time.Since(start)))

	return &Outputs{
		Label:      result.label,
		Strength:   result.strength,
		Config:     e.cfg,
		Dispatches: dispatches,
	}, nil
}

// notify reports a finished iteration. Label changes are only counted when
// someone is listening.
func (e *Engine) notify(iteration int, prev *pair, cur pair) {
	debug := e.logger.Core().Enabled(zap.DebugLevel)
	if e.observer == nil && !debug {
		return
	}

	changed := -1
	if prev != nil {
		changed = 0
		for i, l := range cur.label.Data {
			if l != prev.label.Data[i] {
				changed++
			}
		}
	}

	if debug {
		e.logger.Debug("iteration done", zap.Int("iteration", iteration), zap.Int("changed", changed))
	}
	if e.observer != nil {
		e.observer(iteration, changed)
	}
}

func validateInputs(in Inputs) error {
	if in.Intensity == nil {
		return errors.New("intensity volume is required")
	}
	if err := in.Intensity.Validate(); err != nil {
		return fmt.Errorf("intensity: %w", err)
	}

	if (in.Label == nil) != (in.Strength == nil) {
		return errors.New("seed label and strength volumes must be supplied together")
	}
	if in.Label == nil {
		return nil
	}

	dims := in.Intensity.Dims
	for _, seed := range []struct {
		name string
		v    *models.Volume
	}{{"label", in.Label}, {"strength", in.Strength}} {
		name, v := seed.name, seed.v
		if v.Dims != dims {
			return fmt.Errorf("%w: %s volume is %s, intensity is %s", ErrDimensionMismatch, name, v.Dims, dims)
		}
		if err := v.Validate(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	for i, s := range in.Strength.Data {
		if math.IsNaN(s) || s < 0 || s > MaxStrength {
			return fmt.Errorf("%w: voxel %d has strength %g, want [0, %g]", ErrStrengthRange, i, s, MaxStrength)
		}
	}
	return nil
}
