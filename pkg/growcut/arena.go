package growcut

import (
	"fmt"

	"growcut/internal/models"
	"growcut/pkg/compute"
)

// pair is one label/strength buffer set
type pair struct {
	label    *models.Volume
	strength *models.Volume
}

func (p pair) outputs() []*models.Volume {
	return []*models.Volume{p.label, p.strength}
}

// arena holds the two ping-pong pairs of a run. active is the pair holding
// the most recently completed iteration.
type arena struct {
	backend compute.Backend
	pairs   [2]pair
	active  int
}

// newArena allocates both pairs up front; nothing is allocated per iteration
func newArena(backend compute.Backend, dims models.Dims) (*arena, error) {
	a := &arena{backend: backend}
	for i := range a.pairs {
		label, err := backend.Allocate(dims)
		if err != nil {
			a.release()
			return nil, fmt.Errorf("allocating label buffer %d: %w", i, err)
		}
		a.pairs[i].label = label

		strength, err := backend.Allocate(dims)
		if err != nil {
			a.release()
			return nil, fmt.Errorf("allocating strength buffer %d: %w", i, err)
		}
		a.pairs[i].strength = strength
	}
	return a, nil
}

func (a *arena) current() pair { return a.pairs[a.active] }

func (a *arena) next() pair { return a.pairs[1-a.active] }

func (a *arena) swap() { a.active = 1 - a.active }

// detach hands the current pair to the caller and releases the other one.
// The arena must not be used afterwards.
func (a *arena) detach() pair {
	cur := a.current()
	a.backend.Release(cur.label)
	a.backend.Release(cur.strength)
	a.pairs[a.active] = pair{}
	a.release()
	return cur
}

func (a *arena) release() {
	for i := range a.pairs {
		a.backend.Release(a.pairs[i].label)
		a.backend.Release(a.pairs[i].strength)
		a.pairs[i] = pair{}
	}
}
