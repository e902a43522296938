package domain

import (
	"fmt"

	"github.com/paulmach/orb"

	dErrors "seedtrace/pkg/domain-errors"
)

// Location names a place and optionally pins it with WGS84 coordinates.
type Location struct {
	Name      string   `json:"name"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// NewLocation builds a Location with coordinates.
func NewLocation(name string, lat, lon float64) Location {
	return Location{Name: name, Latitude: &lat, Longitude: &lon}
}

// HasCoordinates reports whether both latitude and longitude are set.
func (l Location) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}

// Point returns the coordinates as an orb point (longitude first).
func (l Location) Point() (orb.Point, bool) {
	if !l.HasCoordinates() {
		return orb.Point{}, false
	}
	return orb.Point{*l.Longitude, *l.Latitude}, true
}

// Validate checks that the name is present and coordinates are either both
// absent or both in range.
func (l Location) Validate() error {
	if l.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "location name is required")
	}
	if (l.Latitude == nil) != (l.Longitude == nil) {
		return dErrors.New(dErrors.CodeValidation, "latitude and longitude must be set together")
	}
	if l.Latitude != nil && (*l.Latitude < -90 || *l.Latitude > 90) {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("latitude out of range: %v", *l.Latitude))
	}
	if l.Longitude != nil && (*l.Longitude < -180 || *l.Longitude > 180) {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("longitude out of range: %v", *l.Longitude))
	}
	return nil
}

func (l Location) String() string {
	if !l.HasCoordinates() {
		return l.Name
	}
	return fmt.Sprintf("%s (%.5f, %.5f)", l.Name, *l.Latitude, *l.Longitude)
}
