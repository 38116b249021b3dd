package models

import "fmt"

// Dims holds the extent of a voxel grid along each axis
type Dims struct {
	X, Y, Z int
}

// Len returns the number of voxels in the grid
func (d Dims) Len() int {
	return d.X * d.Y * d.Z
}

// Valid reports whether every axis is at least one voxel long
func (d Dims) Valid() bool {
	return d.X > 0 && d.Y > 0 && d.Z > 0
}

// Contains reports whether (x, y, z) lies inside the grid
func (d Dims) Contains(x, y, z int) bool {
	return x >= 0 && x < d.X && y >= 0 && y < d.Y && z >= 0 && z < d.Z
}

// Offset returns the linear index of (x, y, z) in row-major order
func (d Dims) Offset(x, y, z int) int {
	return z*d.X*d.Y + y*d.X + x
}

func (d Dims) String() string {
	return fmt.Sprintf("%dx%dx%d", d.X, d.Y, d.Z)
}

// Index addresses one voxel. Offset is the precomputed linear position of (X, Y, Z).
type Index struct {
	X, Y, Z int
	Offset  int
}

// Volume represents a scalar 3D volume
type Volume struct {
	// Data is the volume as a 1D array in row-major order (z*X*Y + y*X + x)
	Data []float64

	// Dims are the dimensions of the volume in voxels
	Dims Dims
}

// NewVolume allocates a zero-filled volume
func NewVolume(dims Dims) *Volume {
	return &Volume{
		Data: make([]float64, dims.Len()),
		Dims: dims,
	}
}

// NewVolumeFromFunc allocates a volume and fills every voxel from fn
func NewVolumeFromFunc(dims Dims, fn func(x, y, z int) float64) *Volume {
	v := NewVolume(dims)
	for z := 0; z < dims.Z; z++ {
		for y := 0; y < dims.Y; y++ {
			for x := 0; x < dims.X; x++ {
				v.Data[dims.Offset(x, y, z)] = fn(x, y, z)
			}
		}
	}
	return v
}

// At returns the value at (x, y, z). The coordinates must be inside the grid.
func (v *Volume) At(x, y, z int) float64 {
	return v.Data[v.Dims.Offset(x, y, z)]
}

// Set stores value at (x, y, z)
func (v *Volume) Set(x, y, z int, value float64) {
	v.Data[v.Dims.Offset(x, y, z)] = value
}

// Validate checks that the backing slice matches the dimensions
func (v *Volume) Validate() error {
	if !v.Dims.Valid() {
		return fmt.Errorf("invalid volume dimensions %s", v.Dims)
	}
	if len(v.Data) != v.Dims.Len() {
		return fmt.Errorf("volume data has %d values, dimensions %s need %d", len(v.Data), v.Dims, v.Dims.Len())
	}
	return nil
}
