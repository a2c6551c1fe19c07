// Package location holds the value types of the proximity discovery and
// live-location subsystem: positions, discovery filters and results, consent
// state, and the subscription mode enum.
package location

import (
	"time"

	"github.com/Vishal01x/reflekt-proximity/internal/domain/geo"
)

// LatLng is a WGS84 coordinate pair in degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinates are within WGS84 bounds.
func (l LatLng) Valid() bool {
	return geo.ValidateCoordinates(l.Lat, l.Lng)
}

// DistanceMeters returns the great-circle distance to another point.
func (l LatLng) DistanceMeters(o LatLng) float64 {
	return geo.Haversine(l.Lat, l.Lng, o.Lat, o.Lng)
}

// PositionRecord is the single current position of a user. One record per
// user; overwritten on every publish, no history retained.
type PositionRecord struct {
	UserID    string    `json:"user_id"`
	Position  LatLng    `json:"position"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TrackedPosition is a live position emission for a targeted-watch member.
type TrackedPosition struct {
	UserID    string    `json:"user_id"`
	Position  LatLng    `json:"position"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DiscoveryResult is one entry of a proximity query result set: a nearby
// user's position joined with their profile summary. Derived, never persisted.
type DiscoveryResult struct {
	UserID    string         `json:"user_id"`
	Position  LatLng         `json:"position"`
	UpdatedAt time.Time      `json:"updated_at"`
	Profile   ProfileSummary `json:"profile"`
}
