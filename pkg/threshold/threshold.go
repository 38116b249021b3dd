// Package threshold computes fractional occupancy of an intensity band.
//
// Every voxel is supersampled on a regular OversamplingFactor³ sub-grid
// centred on the voxel. Samples are trilinearly interpolated with
// clamp-to-edge addressing and the output is the fraction of samples that
// fall inside [MinThreshold, MaxThreshold].
package threshold

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"growcut/internal/logging"
	"growcut/internal/models"
	"growcut/pkg/compute"
	"growcut/pkg/config"
	"growcut/pkg/filter"
)

// Fractional labelmap scalar range
const (
	FractionalMin = -108.0
	FractionalMax = 108.0
)

// ErrNotConfigured is returned by Run before a successful Configure
var ErrNotConfigured = errors.New("threshold filter is not configured")

var _ filter.Filter[*models.Volume, *models.Volume] = (*Filter)(nil)

// Filter is the supersampling threshold filter
type Filter struct {
	backend    compute.Backend
	logger     *zap.Logger
	cfg        config.Filter
	configured bool
}

// New creates a threshold filter dispatching on backend
func New(backend compute.Backend, logger *zap.Logger) *Filter {
	return &Filter{backend: backend, logger: logging.OrNop(logger)}
}

// Configure validates and stores cfg. IterationCount is not used.
func (f *Filter) Configure(cfg config.Filter) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	f.cfg = cfg
	f.configured = true
	return nil
}

// Run computes the occupancy volume in a single dispatch
func (f *Filter) Run(ctx context.Context, intensity *models.Volume) (*models.Volume, error) {
	if !f.configured {
		return nil, ErrNotConfigured
	}
	if intensity == nil {
		return nil, errors.New("intensity volume is required")
	}
	if err := intensity.Validate(); err != nil {
		return nil, fmt.Errorf("intensity: %w", err)
	}

	out, err := f.backend.Allocate(intensity.Dims)
	if err != nil {
		return nil, fmt.Errorf("allocating occupancy buffer: %w", err)
	}
	defer f.backend.Release(out)

	kernel := occupancyKernel(f.cfg.OversamplingFactor, f.cfg.MinThreshold, f.cfg.MaxThreshold)
	if err := f.backend.Dispatch(ctx, kernel, []*models.Volume{intensity}, []*models.Volume{out}); err != nil {
		return nil, fmt.Errorf("threshold dispatch: %w", err)
	}

	f.logger.Debug("threshold done",
		zap.Stringer("dims", intensity.Dims),
		zap.Int("oversampling", f.cfg.OversamplingFactor))
	return out, nil
}

// occupancyKernel returns the per-voxel supersampling kernel
func occupancyKernel(n int, lo, hi float64) compute.Kernel {
	start := -float64(n-1) / float64(2*n)
	step := 1.0 / float64(n)
	total := float64(n * n * n)

	return func(idx models.Index, in []*models.Volume, out []float64) {
		v := in[0]
		inside := 0
		for k := 0; k < n; k++ {
			z := float64(idx.Z) + start + step*float64(k)
			for j := 0; j < n; j++ {
				y := float64(idx.Y) + start + step*float64(j)
				for i := 0; i < n; i++ {
					x := float64(idx.X) + start + step*float64(i)
					s := Sample(v, x, y, z)
					if s >= lo && s <= hi {
						inside++
					}
				}
			}
		}
		out[0] = float64(inside) / total
	}
}

// Sample trilinearly interpolates v at a continuous voxel coordinate.
// Integer coordinates are voxel centres; positions outside the grid are
// clamped to the nearest edge voxel.
func Sample(v *models.Volume, x, y, z float64) float64 {
	x0, x1, tx := axisWeights(x, v.Dims.X)
	y0, y1, ty := axisWeights(y, v.Dims.Y)
	z0, z1, tz := axisWeights(z, v.Dims.Z)

	lerp := func(a, b, t float64) float64 { return a + (b-a)*t }

	c00 := lerp(v.At(x0, y0, z0), v.At(x1, y0, z0), tx)
	c10 := lerp(v.At(x0, y1, z0), v.At(x1, y1, z0), tx)
	c01 := lerp(v.At(x0, y0, z1), v.At(x1, y0, z1), tx)
	c11 := lerp(v.At(x0, y1, z1), v.At(x1, y1, z1), tx)

	return lerp(lerp(c00, c10, ty), lerp(c01, c11, ty), tz)
}

func axisWeights(u float64, size int) (int, int, float64) {
	maxIdx := float64(size - 1)
	u = math.Max(0, math.Min(maxIdx, u))
	i0 := int(math.Floor(u))
	i1 := i0 + 1
	if i1 > size-1 {
		i1 = size - 1
	}
	return i0, i1, u - float64(i0)
}

// ScaleFractional maps occupancy in [0, 1] onto the fractional labelmap range
func ScaleFractional(occupancy *models.Volume) *models.Volume {
	out := models.NewVolume(occupancy.Dims)
	for i, f := range occupancy.Data {
		out.Data[i] = FractionalMin + f*(FractionalMax-FractionalMin)
	}
	return out
}
