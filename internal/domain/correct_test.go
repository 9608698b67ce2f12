package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrector_IdempotentOnValidPoints(t *testing.T) {
	c := NewCorrector(HemisphereNorthWest)
	points := []GeoPoint{
		{Latitude: 0, Longitude: 0},
		{Latitude: 51.18, Longitude: -115.57},
		{Latitude: 90, Longitude: -180},
		{Latitude: 49.0, Longitude: -0.5},
		{Latitude: 89.999, Longitude: -123.0},
	}
	for _, p := range points {
		got, err := c.Correct(p)
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
}

func TestCorrector_SwapProperty(t *testing.T) {
	got, err := NewCorrector(HemisphereNorthWest).Correct(GeoPoint{Latitude: 150.0, Longitude: -45.0})
	require.NoError(t, err)
	assert.Equal(t, GeoPoint{Latitude: 45.0, Longitude: -150.0}, got)
}

func TestCorrector_Signs(t *testing.T) {
	tests := []struct {
		name string
		in   GeoPoint
		want GeoPoint
	}{
		{"positive longitude", GeoPoint{Latitude: 51.2, Longitude: 115.6}, GeoPoint{Latitude: 51.2, Longitude: -115.6}},
		{"negative latitude", GeoPoint{Latitude: -51.2, Longitude: -115.6}, GeoPoint{Latitude: 51.2, Longitude: -115.6}},
		{"both wrong", GeoPoint{Latitude: -51.2, Longitude: 115.6}, GeoPoint{Latitude: 51.2, Longitude: -115.6}},
		{"reversed pair output", GeoPoint{Latitude: -120.0, Longitude: 45.0}, GeoPoint{Latitude: 45.0, Longitude: -120.0}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NewCorrector(HemisphereNorthWest).Correct(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCorrector_SwapAppliedOnce(t *testing.T) {
	// Both axes beyond 90: one swap cannot fix it and no second pass runs.
	_, err := NewCorrector(HemisphereNorthWest).Correct(GeoPoint{Latitude: 150, Longitude: 200})
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestCorrector_NonFinite(t *testing.T) {
	c := NewCorrector(HemisphereNorthWest)
	_, err := c.Correct(GeoPoint{Latitude: math.NaN(), Longitude: -115})
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = c.Correct(GeoPoint{Latitude: 51, Longitude: math.Inf(-1)})
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestCorrector_Hemispheres(t *testing.T) {
	in := GeoPoint{Latitude: -33.9, Longitude: 151.2}
	tests := []struct {
		h    Hemisphere
		want GeoPoint
	}{
		{HemisphereNorthWest, GeoPoint{Latitude: 33.9, Longitude: -151.2}},
		{HemisphereNorthEast, GeoPoint{Latitude: 33.9, Longitude: 151.2}},
		{HemisphereSouthWest, GeoPoint{Latitude: -33.9, Longitude: -151.2}},
		{HemisphereSouthEast, GeoPoint{Latitude: -33.9, Longitude: 151.2}},
	}
	for _, tc := range tests {
		t.Run(tc.h.String(), func(t *testing.T) {
			got, err := NewCorrector(tc.h).Correct(in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseHemisphere(t *testing.T) {
	tests := map[string]Hemisphere{
		"NW":   HemisphereNorthWest,
		"nw":   HemisphereNorthWest,
		" NE ": HemisphereNorthEast,
		"SW":   HemisphereSouthWest,
		"se":   HemisphereSouthEast,
	}
	for in, want := range tests {
		got, err := ParseHemisphere(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseHemisphere("north")
	assert.Error(t, err)
}
