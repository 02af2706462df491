// Package location samples the device position on a fixed interval and publishes it.
package location

import (
	"context"
	"errors"
	"time"

	"github.com/vedran77/orbit/internal/domain"
)

var (
	ErrUnsupported      = errors.New("location is not supported on this device")
	ErrPermissionDenied = errors.New("location permission denied")
	ErrTimeout          = errors.New("timed out waiting for a position fix")
	ErrPublishFailed    = errors.New("publishing location failed")
	ErrInvalidFix       = errors.New("position fix is not a valid location")
)

// Positioner acquires one position fix. Implementations should honor ctx.
type Positioner interface {
	Position(ctx context.Context) (domain.Location, error)
}

type PositionerFunc func(ctx context.Context) (domain.Location, error)

func (f PositionerFunc) Position(ctx context.Context) (domain.Location, error) {
	return f(ctx)
}

// Static reports fixed coordinates stamped with the current time.
type Static struct {
	Latitude  float64
	Longitude float64
	Accuracy  *float64
}

func (s Static) Position(ctx context.Context) (domain.Location, error) {
	if err := ctx.Err(); err != nil {
		return domain.Location{}, err
	}
	return domain.Location{
		Latitude:  s.Latitude,
		Longitude: s.Longitude,
		Accuracy:  s.Accuracy,
		Timestamp: time.Now().UTC(),
	}, nil
}
