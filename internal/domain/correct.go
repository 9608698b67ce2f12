package domain

import (
	"fmt"
	"math"
	"strings"
)

// Hemisphere fixes the sign of corrected coordinates. Source reports drop or
// flip signs freely, so the corrector forces them into one quadrant. The zero
// value is north-west, where every Canadian incident lies.
type Hemisphere struct {
	South bool
	East  bool
}

var (
	HemisphereNorthWest = Hemisphere{}
	HemisphereNorthEast = Hemisphere{East: true}
	HemisphereSouthWest = Hemisphere{South: true}
	HemisphereSouthEast = Hemisphere{South: true, East: true}
)

// ParseHemisphere reads "NW", "NE", "SW" or "SE" (case-insensitive).
func ParseHemisphere(s string) (Hemisphere, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "NW":
		return HemisphereNorthWest, nil
	case "NE":
		return HemisphereNorthEast, nil
	case "SW":
		return HemisphereSouthWest, nil
	case "SE":
		return HemisphereSouthEast, nil
	default:
		return Hemisphere{}, fmt.Errorf("invalid hemisphere %q: want NW, NE, SW or SE", s)
	}
}

func (h Hemisphere) String() string {
	ns, ew := "N", "W"
	if h.South {
		ns = "S"
	}
	if h.East {
		ew = "E"
	}
	return ns + ew
}

// Corrector repairs sign and axis-order mistakes in a point.
type Corrector struct {
	Hemisphere Hemisphere
}

// NewCorrector returns a Corrector for the given hemisphere.
func NewCorrector(h Hemisphere) Corrector {
	return Corrector{Hemisphere: h}
}

// Correct applies, in order:
//  1. latitude = |latitude|
//  2. if latitude > 90, swap latitude and longitude (once)
//  3. force both signs into the corrector's hemisphere
//
// Step 2 needs the magnitude from step 1, before any sign forcing. The swap is
// not repeated: a point whose latitude is still beyond 90 afterwards returns
// ErrOutOfRange, as does any non-finite component.
func (c Corrector) Correct(p GeoPoint) (GeoPoint, error) {
	if !finite(p.Latitude) || !finite(p.Longitude) {
		return GeoPoint{}, fmt.Errorf("%w: non-finite point (%v, %v)", ErrOutOfRange, p.Latitude, p.Longitude)
	}

	lat := math.Abs(p.Latitude)
	lon := p.Longitude

	if lat > 90 {
		lat, lon = lon, lat
	}

	lat = math.Abs(lat)
	lon = math.Abs(lon)
	if c.Hemisphere.South {
		lat = -lat
	}
	if !c.Hemisphere.East {
		lon = -lon
	}

	if math.Abs(lat) > 90 {
		return GeoPoint{}, fmt.Errorf("%w: latitude %v", ErrOutOfRange, lat)
	}
	return GeoPoint{Latitude: lat, Longitude: lon}, nil
}
