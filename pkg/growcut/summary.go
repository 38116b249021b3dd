package growcut

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// LabelCount is the number of voxels carrying one label
type LabelCount struct {
	Label float64
	Count int
}

// Summary describes the outputs of a run
type Summary struct {
	Voxels  int
	Anchors int

	// Labels is sorted by label value
	Labels []LabelCount

	StrengthMean   float64
	StrengthStdDev float64
	StrengthMin    float64
	StrengthMax    float64
}

// Summarize computes label and strength statistics over the outputs
func Summarize(out *Outputs) Summary {
	strength := out.Strength.Data
	s := Summary{Voxels: len(strength)}
	if len(strength) == 0 {
		return s
	}

	counts := make(map[float64]int)
	for i, l := range out.Label.Data {
		counts[l]++
		if strength[i] == MaxStrength {
			s.Anchors++
		}
	}
	for l, c := range counts {
		s.Labels = append(s.Labels, LabelCount{Label: l, Count: c})
	}
	sort.Slice(s.Labels, func(i, j int) bool { return s.Labels[i].Label < s.Labels[j].Label })

	if len(strength) > 1 {
		s.StrengthMean, s.StrengthStdDev = stat.MeanStdDev(strength, nil)
	} else {
		s.StrengthMean = strength[0]
	}
	s.StrengthMin = floats.Min(strength)
	s.StrengthMax = floats.Max(strength)
	return s
}

// Fraction returns the share of voxels carrying label
func (s Summary) Fraction(label float64) float64 {
	if s.Voxels == 0 {
		return 0
	}
	for _, lc := range s.Labels {
		if lc.Label == label {
			return float64(lc.Count) / float64(s.Voxels)
		}
	}
	return 0
}

func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "voxels: %d, anchors: %d\n", s.Voxels, s.Anchors)
	for _, lc := range s.Labels {
		fmt.Fprintf(&b, "label %g: %d voxels (%.1f%%)\n", lc.Label, lc.Count, 100*float64(lc.Count)/float64(s.Voxels))
	}
	fmt.Fprintf(&b, "strength: mean %.2f, stddev %.2f, min %.2f, max %.2f",
		s.StrengthMean, s.StrengthStdDev, s.StrengthMin, s.StrengthMax)
	return b.String()
}
