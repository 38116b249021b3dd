// Package compute provides the grid compute facility the filters dispatch
// their per-voxel kernels on. A Backend owns buffer allocation against a voxel
// budget and runs one kernel over a whole grid per Dispatch call, returning
// only after every voxel has been written.
package compute

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"growcut/internal/models"
)

var (
	// ErrResourceExhausted is returned when an allocation would exceed the voxel budget
	ErrResourceExhausted = errors.New("compute resources exhausted")

	// ErrDimensionMismatch is returned when dispatch buffers disagree on their dimensions
	ErrDimensionMismatch = errors.New("buffer dimension mismatch")

	// ErrAliasedBuffer is returned when a buffer is both read and written by one dispatch
	ErrAliasedBuffer = errors.New("buffer is both input and output of a dispatch")
)

// Kernel computes one voxel. It may read any voxel of the inputs and must
// write exactly one value per output buffer into out, in output order.
type Kernel func(idx models.Index, in []*models.Volume, out []float64)

// Backend is a parallel grid processor.
type Backend interface {
	// Allocate returns a zeroed buffer counted against the backend budget
	Allocate(dims models.Dims) (*models.Volume, error)

	// Release returns a buffer obtained from Allocate to the budget
	Release(v *models.Volume)

	// Dispatch runs k over every voxel of the output grid. All writes are
	// visible once Dispatch returns.
	Dispatch(ctx context.Context, k Kernel, inputs, outputs []*models.Volume) error

	// Dispatches is the number of dispatches completed so far
	Dispatches() int
}

// budget tracks allocations shared by every backend implementation
type budget struct {
	mu        sync.Mutex
	maxVoxels int
	inUse     int
	owned     map[*models.Volume]int

	dispatches atomic.Int64
}

func (b *budget) initBudget(maxVoxels int) {
	b.maxVoxels = maxVoxels
	b.owned = make(map[*models.Volume]int)
}

func (b *budget) Allocate(dims models.Dims) (*models.Volume, error) {
	if !dims.Valid() {
		return nil, fmt.Errorf("cannot allocate buffer with dimensions %s", dims)
	}

	n := dims.Len()
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.inUse+n > b.maxVoxels {
		return nil, fmt.Errorf("%w: need %d voxels, %d of %d in use", ErrResourceExhausted, n, b.inUse, b.maxVoxels)
	}
	v := models.NewVolume(dims)
	b.inUse += n
	b.owned[v] = n
	return v, nil
}

func (b *budget) Release(v *models.Volume) {
	if v == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if n, ok := b.owned[v]; ok {
		b.inUse -= n
		delete(b.owned, v)
	}
}

// InUse returns the number of voxels currently allocated
func (b *budget) InUse() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inUse
}

func (b *budget) Dispatches() int {
	return int(b.dispatches.Load())
}

// checkBuffers validates a dispatch and returns the grid it covers
func checkBuffers(inputs, outputs []*models.Volume) (models.Dims, error) {
	if len(outputs) == 0 {
		return models.Dims{}, errors.New("dispatch needs at least one output buffer")
	}
	dims := outputs[0].Dims
	for i, v := range outputs {
		if err := v.Validate(); err != nil {
			return dims, fmt.Errorf("output %d: %w", i, err)
		}
		if v.Dims != dims {
			return dims, fmt.Errorf("%w: output %d is %s, want %s", ErrDimensionMismatch, i, v.Dims, dims)
		}
	}
	for i, v := range inputs {
		if err := v.Validate(); err != nil {
			return dims, fmt.Errorf("input %d: %w", i, err)
		}
		if v.Dims != dims {
			return dims, fmt.Errorf("%w: input %d is %s, want %s", ErrDimensionMismatch, i, v.Dims, dims)
		}
		for j, o := range outputs {
			if overlaps(v.Data, o.Data) {
				return dims, fmt.Errorf("%w: input %d and output %d", ErrAliasedBuffer, i, j)
			}
		}
	}
	for i := range outputs {
		for j := i + 1; j < len(outputs); j++ {
			if overlaps(outputs[i].Data, outputs[j].Data) {
				return dims, fmt.Errorf("%w: outputs %d and %d", ErrAliasedBuffer, i, j)
			}
		}
	}
	return dims, nil
}

// overlaps reports whether a and b share any element of memory. Views into
// one backing array are caught even when they start at different elements.
func overlaps(a, b []float64) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	const size = unsafe.Sizeof(float64(0))
	aStart := uintptr(unsafe.Pointer(&a[0]))
	bStart := uintptr(unsafe.Pointer(&b[0]))
	aEnd := aStart + uintptr(len(a))*size
	bEnd := bStart + uintptr(len(b))*size
	return aStart < bEnd && bStart < aEnd
}

// runRows applies k to rows [from, to) of the grid, where row r is (y, z) = (r % Y, r / Y)
func runRows(k Kernel, dims models.Dims, inputs, outputs []*models.Volume, from, to int) {
	out := make([]float64, len(outputs))
	for r := from; r < to; r++ {
		y := r % dims.Y
		z := r / dims.Y
		base := dims.Offset(0, y, z)
		for x := 0; x < dims.X; x++ {
			idx := models.Index{X: x, Y: y, Z: z, Offset: base + x}
			k(idx, inputs, out)
			for o, v := range outputs {
				v.Data[idx.Offset] = out[o]
			}
		}
	}
}
