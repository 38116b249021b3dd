package growcut

import (
	"math"

	"growcut/internal/models"
)

// MaxStrength is the strength given to anchor voxels. No takeover can exceed
// it: a neighbor offers at most its own strength minus a non-negative cost.
const MaxStrength = 10000.0

// Seed labels and the intensity band that separates them
const (
	LabelUnlabeled  = 0.0
	LabelBackground = 30.0
	LabelForeground = 100.0

	BackgroundBelow = 10.0
	ForegroundAbove = 100.0
)

// Offset is a neighbor displacement in voxels
type Offset struct {
	DX, DY, DZ int
}

// neighborOffsets lists the strictly diagonal neighbors: every axis moves by
// exactly one voxel, so face and edge neighbors are not visited.
var neighborOffsets = buildNeighborOffsets()

func buildNeighborOffsets() []Offset {
	var offsets []Offset
	for k := -1; k <= 1; k++ {
		for j := -1; j <= 1; j++ {
			for i := -1; i <= 1; i++ {
				if i != 0 && j != 0 && k != 0 {
					offsets = append(offsets, Offset{DX: i, DY: j, DZ: k})
				}
			}
		}
	}
	return offsets
}

// NeighborOffsets returns a copy of the propagation neighborhood
func NeighborOffsets() []Offset {
	out := make([]Offset, len(neighborOffsets))
	copy(out, neighborOffsets)
	return out
}

// visitNeighbors calls fn with the linear offset of every in-grid neighbor of idx.
// Neighbors outside the grid are skipped.
func visitNeighbors(dims models.Dims, idx models.Index, fn func(offset int)) {
	for _, o := range neighborOffsets {
		x, y, z := idx.X+o.DX, idx.Y+o.DY, idx.Z+o.DZ
		if !dims.Contains(x, y, z) {
			continue
		}
		fn(dims.Offset(x, y, z))
	}
}

// seedFromIntensity applies the iteration 0 rule to a single intensity value
func seedFromIntensity(background float64) (label, strength float64) {
	switch {
	case background < BackgroundBelow:
		return LabelBackground, MaxStrength
	case background > ForegroundAbove:
		return LabelForeground, MaxStrength
	default:
		return LabelUnlabeled, 0
	}
}

// initKernel seeds labels from intensity extremes.
// Inputs: intensity. Outputs: label, strength.
func initKernel(idx models.Index, in []*models.Volume, out []float64) {
	out[0], out[1] = seedFromIntensity(in[0].Data[idx.Offset])
}

// copyKernel starts the run from caller supplied seeds.
// Inputs: label, strength. Outputs: label, strength.
func copyKernel(idx models.Index, in []*models.Volume, out []float64) {
	out[0] = in[0].Data[idx.Offset]
	out[1] = in[1].Data[idx.Offset]
}

// propagateKernel runs one grow-cut step for a voxel reading only the
// previous iteration. Inputs: intensity, label, strength. Outputs: label, strength.
func propagateKernel(idx models.Index, in []*models.Volume, out []float64) {
	intensity, labels, strengths := in[0], in[1], in[2]

	background := intensity.Data[idx.Offset]
	label := labels.Data[idx.Offset]
	strength := strengths.Data[idx.Offset]

	visitNeighbors(intensity.Dims, idx, func(n int) {
		cost := math.Abs(intensity.Data[n] - background)
		takeover := strengths.Data[n] - cost
		if takeover > strength {
			strength = takeover
			label = labels.Data[n]
		}
	})

	out[0] = label
	out[1] = strength
}
