package domain

import (
	"math"
	"time"
)

// Location is the last known position of a profile. It is overwritten on every sample.
type Location struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
	Accuracy  *float64  `json:"accuracy,omitempty"`
}

// Valid reports whether the coordinates are on the globe and the accuracy, when
// given, is finite and not negative.
func (l Location) Valid() bool {
	if !finite(l.Latitude) || !finite(l.Longitude) {
		return false
	}
	if l.Latitude < -90 || l.Latitude > 90 || l.Longitude < -180 || l.Longitude > 180 {
		return false
	}
	return l.Accuracy == nil || (finite(*l.Accuracy) && *l.Accuracy >= 0)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
