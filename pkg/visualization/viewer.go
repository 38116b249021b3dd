package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"growcut/internal/models"
)

// Viewer renders axis-aligned slices of a scalar volume as grayscale images.
// Values are mapped linearly from [low, high] onto 0-255 and clamped.
type Viewer struct {
	volume    *models.Volume
	low, high float64
}

// NewViewer creates a viewer with the given display window
func NewViewer(volume *models.Volume, low, high float64) *Viewer {
	return &Viewer{volume: volume, low: low, high: high}
}

// NewAutoViewer creates a viewer whose window spans the volume's value range
func NewAutoViewer(volume *models.Volume) *Viewer {
	low, high := math.Inf(1), math.Inf(-1)
	for _, v := range volume.Data {
		low = math.Min(low, v)
		high = math.Max(high, v)
	}
	if len(volume.Data) == 0 {
		low, high = 0, 1
	}
	return NewViewer(volume, low, high)
}

func (v *Viewer) gray(value float64) color.Gray {
	if v.high <= v.low {
		if value >= v.high {
			return color.Gray{Y: 255}
		}
		return color.Gray{Y: 0}
	}
	t := (value - v.low) / (v.high - v.low)
	return color.Gray{Y: uint8(math.Round(math.Max(0, math.Min(1, t)) * 255))}
}

// sliceCount returns how many slices the volume has along axis
func (v *Viewer) sliceCount(axis string) (int, error) {
	d := v.volume.Dims
	switch axis {
	case "x", "X":
		return d.X, nil
	case "y", "Y":
		return d.Y, nil
	case "z", "Z":
		return d.Z, nil
	}
	return 0, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
}

// ExtractSlice renders the slice at position along axis. X slices are laid out
// with z across and y down, Y slices with x across and z down, and Z slices
// with x across and y down.
func (v *Viewer) ExtractSlice(axis string, position int) (*image.Gray, error) {
	n, err := v.sliceCount(axis)
	if err != nil {
		return nil, err
	}
	if position < 0 || position >= n {
		return nil, fmt.Errorf("position %d outside [0, %d) along %s", position, n, axis)
	}

	d := v.volume.Dims
	var (
		img *image.Gray
		at  func(col, row int) float64
	)
	switch axis {
	case "x", "X":
		img = image.NewGray(image.Rect(0, 0, d.Z, d.Y))
		at = func(col, row int) float64 { return v.volume.At(position, row, col) }
	case "y", "Y":
		img = image.NewGray(image.Rect(0, 0, d.X, d.Z))
		at = func(col, row int) float64 { return v.volume.At(col, position, row) }
	default:
		img = image.NewGray(image.Rect(0, 0, d.X, d.Y))
		at = func(col, row int) float64 { return v.volume.At(col, row, position) }
	}

	b := img.Bounds()
	for row := 0; row < b.Dy(); row++ {
		for col := 0; col < b.Dx(); col++ {
			img.SetGray(col, row, v.gray(at(col, row)))
		}
	}
	return img, nil
}

// SaveSliceSequence renders every slice along axis into outputDir as
// <prefix>_<axis>_NNN.png and returns the number of files written
func (v *Viewer) SaveSliceSequence(axis, outputDir, prefix string) (int, error) {
	n, err := v.sliceCount(axis)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return 0, err
	}

	for pos := 0; pos < n; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return pos, err
		}
		filename := filepath.Join(outputDir, fmt.Sprintf("%s_%s_%03d.png", prefix, axis, pos))
		if err := writePNG(filename, img); err != nil {
			return pos, fmt.Errorf("slice %d: %w", pos, err)
		}
	}
	return n, nil
}

func writePNG(filename string, img image.Image) (err error) {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()
	return png.Encode(file, img)
}
