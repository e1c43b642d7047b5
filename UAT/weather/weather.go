// Package weather reports readings from a remote station. Its package variables are
// registered with mokit by mokitgen so tests can replace them.
package weather

//go:generate mokitgen

import (
	"errors"
	"fmt"
)

// Exported variables.
var (
	// Fetch retrieves the current temperature for a city.
	Fetch = func(city string) (float64, error) {
		return 0, fmt.Errorf("%w: %s", ErrOffline, city)
	}
	// Units labels every reading.
	Units = "celsius"
	// ErrOffline is returned when the station cannot be reached.
	ErrOffline = errors.New("station offline")
)

// Report formats the current reading for city.
func Report(city string) (string, error) {
	temp, err := Fetch(city)
	if err != nil {
		return "", fmt.Errorf("report for %s: %w", city, err)
	}

	return fmt.Sprintf("%s: %.1f %s", city, temp, Units), nil
}
