package compute

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"growcut/internal/models"
	"growcut/pkg/config"
)

func backends() map[string]Backend {
	return map[string]Backend{
		"sequential": NewSequential(1 << 20),
		"parallel":   NewParallel(4, 1<<20),
		"parallel-1": NewParallel(1, 1<<20),
	}
}

// sumNeighborsX writes the sum of the voxel and its x neighbors, skipping those outside the grid
func sumNeighborsX(idx models.Index, in []*models.Volume, out []float64) {
	src := in[0]
	total := 0.0
	for dx := -1; dx <= 1; dx++ {
		if src.Dims.Contains(idx.X+dx, idx.Y, idx.Z) {
			total += src.At(idx.X+dx, idx.Y, idx.Z)
		}
	}
	out[0] = total
	out[1] = float64(idx.Offset)
}

func TestDispatchCoversGrid(t *testing.T) {
	dims := models.Dims{X: 5, Y: 3, Z: 4}
	src := models.NewVolumeFromFunc(dims, func(x, y, z int) float64 { return float64(x) })

	var want []float64
	for name, b := range backends() {
		t.Run(name, func(t *testing.T) {
			sum, err := b.Allocate(dims)
			if err != nil {
				t.Fatalf("Allocate failed: %v", err)
			}
			offsets, err := b.Allocate(dims)
			if err != nil {
				t.Fatalf("Allocate failed: %v", err)
			}

			if err := b.Dispatch(context.Background(), sumNeighborsX, []*models.Volume{src}, []*models.Volume{sum, offsets}); err != nil {
				t.Fatalf("Dispatch failed: %v", err)
			}
			if b.Dispatches() != 1 {
				t.Errorf("Expected 1 dispatch, got %d", b.Dispatches())
			}

			for i, v := range offsets.Data {
				if v != float64(i) {
					t.Fatalf("Voxel %d wrote offset %f", i, v)
				}
			}
			if got := sum.At(0, 1, 2); got != 1 {
				t.Errorf("Expected edge sum 1 at x=0, got %f", got)
			}
			if got := sum.At(2, 0, 0); got != 6 {
				t.Errorf("Expected interior sum 6 at x=2, got %f", got)
			}
			if got := sum.At(4, 2, 3); got != 7 {
				t.Errorf("Expected edge sum 7 at x=4, got %f", got)
			}

			if want == nil {
				want = append([]float64(nil), sum.Data...)
			} else if diff := cmp.Diff(want, sum.Data); diff != "" {
				t.Errorf("Backend result differs (-first +%s):\n%s", name, diff)
			}
		})
	}
}

func TestDispatchValidation(t *testing.T) {
	dims := models.Dims{X: 2, Y: 2, Z: 2}
	for name, b := range backends() {
		t.Run(name, func(t *testing.T) {
			a := models.NewVolume(dims)
			c := models.NewVolume(dims)
			small := models.NewVolume(models.Dims{X: 1, Y: 2, Z: 2})
			noop := func(idx models.Index, in []*models.Volume, out []float64) {}

			err := b.Dispatch(context.Background(), noop, []*models.Volume{small}, []*models.Volume{a})
			if !errors.Is(err, ErrDimensionMismatch) {
				t.Errorf("Expected ErrDimensionMismatch for input, got %v", err)
			}

			err = b.Dispatch(context.Background(), noop, nil, []*models.Volume{a, small})
			if !errors.Is(err, ErrDimensionMismatch) {
				t.Errorf("Expected ErrDimensionMismatch for output, got %v", err)
			}

			err = b.Dispatch(context.Background(), noop, []*models.Volume{a}, []*models.Volume{c, a})
			if !errors.Is(err, ErrAliasedBuffer) {
				t.Errorf("Expected ErrAliasedBuffer, got %v", err)
			}

			err = b.Dispatch(context.Background(), noop, nil, []*models.Volume{c, c})
			if !errors.Is(err, ErrAliasedBuffer) {
				t.Errorf("Expected ErrAliasedBuffer for duplicate outputs, got %v", err)
			}

			if err := b.Dispatch(context.Background(), noop, nil, nil); err == nil {
				t.Errorf("Expected error for dispatch without outputs")
			}

			if b.Dispatches() != 0 {
				t.Errorf("Rejected dispatches must not be counted, got %d", b.Dispatches())
			}
		})
	}
}

// TestDispatchRejectsOverlappingViews builds buffers as views into one backing
// array that start at different elements
func TestDispatchRejectsOverlappingViews(t *testing.T) {
	dims := models.Dims{X: 2, Y: 2, Z: 2}
	backing := make([]float64, 3*dims.Len())
	view := func(from int) *models.Volume {
		return &models.Volume{Data: backing[from : from+dims.Len()], Dims: dims}
	}
	noop := func(idx models.Index, in []*models.Volume, out []float64) {}

	for name, b := range backends() {
		t.Run(name, func(t *testing.T) {
			err := b.Dispatch(context.Background(), noop, []*models.Volume{view(0)}, []*models.Volume{view(3)})
			if !errors.Is(err, ErrAliasedBuffer) {
				t.Errorf("Expected ErrAliasedBuffer for overlapping input and output, got %v", err)
			}

			err = b.Dispatch(context.Background(), noop, nil, []*models.Volume{view(8), view(15)})
			if !errors.Is(err, ErrAliasedBuffer) {
				t.Errorf("Expected ErrAliasedBuffer for outputs sharing one element, got %v", err)
			}

			err = b.Dispatch(context.Background(), noop, []*models.Volume{view(0)}, []*models.Volume{view(8), view(16)})
			if err != nil {
				t.Errorf("Adjacent views must not be treated as aliased, got %v", err)
			}
		})
	}
}

func TestOverlaps(t *testing.T) {
	backing := make([]float64, 10)
	tests := []struct {
		name string
		a, b []float64
		want bool
	}{
		{"same slice", backing[:4], backing[:4], true},
		{"contained", backing[:8], backing[2:5], true},
		{"partial", backing[:5], backing[4:9], true},
		{"adjacent", backing[:5], backing[5:], false},
		{"separate arrays", backing, make([]float64, 10), false},
		{"empty", backing[:0], backing, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := overlaps(tt.a, tt.b); got != tt.want {
				t.Errorf("overlaps = %v, want %v", got, tt.want)
			}
			if got := overlaps(tt.b, tt.a); got != tt.want {
				t.Errorf("overlaps reversed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDispatchCancelled(t *testing.T) {
	dims := models.Dims{X: 4, Y: 4, Z: 4}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for name, b := range backends() {
		t.Run(name, func(t *testing.T) {
			out := models.NewVolume(dims)
			err := b.Dispatch(ctx, func(idx models.Index, in []*models.Volume, o []float64) { o[0] = 1 }, nil, []*models.Volume{out})
			if !errors.Is(err, context.Canceled) {
				t.Errorf("Expected context.Canceled, got %v", err)
			}
			if b.Dispatches() != 0 {
				t.Errorf("Cancelled dispatch must not be counted")
			}
		})
	}
}

func TestAllocateBudget(t *testing.T) {
	b := NewSequential(16)
	dims := models.Dims{X: 2, Y: 2, Z: 2}

	first, err := b.Allocate(dims)
	if err != nil {
		t.Fatalf("First allocation failed: %v", err)
	}
	second, err := b.Allocate(dims)
	if err != nil {
		t.Fatalf("Second allocation failed: %v", err)
	}
	if _, err := b.Allocate(dims); !errors.Is(err, ErrResourceExhausted) {
		t.Fatalf("Expected ErrResourceExhausted, got %v", err)
	}

	b.Release(first)
	b.Release(first)
	if b.InUse() != 8 {
		t.Errorf("Expected 8 voxels in use after release, got %d", b.InUse())
	}
	if _, err := b.Allocate(dims); err != nil {
		t.Errorf("Allocation after release failed: %v", err)
	}
	b.Release(second)
	b.Release(nil)

	if _, err := b.Allocate(models.Dims{}); err == nil {
		t.Errorf("Expected error allocating empty grid")
	}
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Compute.Workers = 3

	b, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	p, ok := b.(*Parallel)
	if !ok {
		t.Fatalf("Expected *Parallel, got %T", b)
	}
	if p.Workers() != 3 {
		t.Errorf("Expected 3 workers, got %d", p.Workers())
	}

	cfg.Compute.Backend = config.BackendSequential
	if b, _ := New(cfg); b == nil {
		t.Errorf("Expected sequential backend")
	} else if _, ok := b.(*Sequential); !ok {
		t.Errorf("Expected *Sequential, got %T", b)
	}

	cfg.Compute.Backend = "vulkan"
	if _, err := New(cfg); !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}
