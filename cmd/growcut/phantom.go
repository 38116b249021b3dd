package main

import (
	"fmt"
	"math"

	"growcut/internal/models"
)

// phantom builds a bright sphere inside a dark box, separated by a shell of
// mid-range intensities that grow-cut has to assign.
func phantom(size int) (*models.Volume, error) {
	if size < 2 {
		return nil, fmt.Errorf("phantom size %d must be at least 2", size)
	}

	c := float64(size-1) / 2
	inner := float64(size) / 4
	outer := float64(size) / 3
	return models.NewVolumeFromFunc(models.Dims{X: size, Y: size, Z: size}, func(x, y, z int) float64 {
		r := math.Sqrt((float64(x)-c)*(float64(x)-c) + (float64(y)-c)*(float64(y)-c) + (float64(z)-c)*(float64(z)-c))
		switch {
		case r < inner:
			return 180
		case r < outer:
			// ramp from the sphere towards the background
			t := (r - inner) / (outer - inner)
			return 90 - 70*t
		default:
			return 4
		}
	}), nil
}
