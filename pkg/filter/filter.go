// Package filter defines the capability shared by the volume filters.
package filter

import (
	"context"
	"fmt"

	"growcut/pkg/config"
)

// Filter is a configurable volume filter. Configure validates and stores
// the parameters for subsequent runs; Run never mutates them.
type Filter[In, Out any] interface {
	Configure(cfg config.Filter) error
	Run(ctx context.Context, in In) (Out, error)
}

// Apply configures f with cfg and runs it once on in
func Apply[In, Out any](ctx context.Context, f Filter[In, Out], cfg config.Filter, in In) (Out, error) {
	if err := f.Configure(cfg); err != nil {
		var zero Out
		return zero, fmt.Errorf("configure: %w", err)
	}
	return f.Run(ctx, in)
}
