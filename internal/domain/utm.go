package domain

import (
	"fmt"
	"math"
	"strings"
)

// UnknownDatum is the label reporters use when the datum was not recorded.
const UnknownDatum = "Unknown"

// UTM grid constants.
const (
	utmScaleFactor   = 0.9996
	utmFalseEasting  = 500000.0
	utmFalseNorthing = 0.0 // northern hemisphere only
)

// Projector converts a UTM reference into a WGS-84 point.
type Projector interface {
	Project(ref UTMReference) (GeoPoint, error)
}

type ellipsoid struct {
	a float64 // semi-major axis, metres
	f float64 // flattening
}

func (e ellipsoid) eccSquared() float64 { return e.f * (2 - e.f) }

var (
	wgs84Ellipsoid      = ellipsoid{a: 6378137.0, f: 1 / 298.257223563}
	grs80Ellipsoid      = ellipsoid{a: 6378137.0, f: 1 / 298.257222101}
	clarke1866Ellipsoid = ellipsoid{a: 6378206.4, f: 1 / 294.978698214}
)

// datum pairs an ellipsoid with the geocentric translation (metres) that
// takes it to WGS-84.
type datum struct {
	name       string
	ellipsoid  ellipsoid
	dx, dy, dz float64
}

func (d datum) shifted() bool {
	return d.dx != 0 || d.dy != 0 || d.dz != 0 || d.ellipsoid != wgs84Ellipsoid
}

// datums is keyed by the canonical form produced by datumKey.
// NAD27 uses the NIMA mean translation for Canada.
var datums = map[string]datum{
	"WGS84": {name: "WGS84", ellipsoid: wgs84Ellipsoid},
	"NAD83": {name: "NAD83", ellipsoid: grs80Ellipsoid},
	"NAD27": {name: "NAD27", ellipsoid: clarke1866Ellipsoid, dx: -10, dy: 158, dz: 187},
}

var datumKeyReplacer = strings.NewReplacer(" ", "", "-", "", "_", "")

func datumKey(name string) string {
	return strings.ToUpper(datumKeyReplacer.Replace(name))
}

// UTMProjector inverts the UTM projection for the datums in the datum table.
// It holds no state, so one value can serve any number of goroutines.
type UTMProjector struct{}

// Project converts ref to latitude/longitude on WGS-84. It returns
// ErrUnknownDatum for the "Unknown" datum and ErrUnsupportedDatum for datums
// outside the table.
func (UTMProjector) Project(ref UTMReference) (GeoPoint, error) {
	if ref.Datum == UnknownDatum {
		return GeoPoint{}, ErrUnknownDatum
	}
	d, ok := datums[datumKey(ref.Datum)]
	if !ok {
		return GeoPoint{}, fmt.Errorf("%w: %q", ErrUnsupportedDatum, ref.Datum)
	}
	if ref.Zone < 1 || ref.Zone > 60 {
		return GeoPoint{}, fmt.Errorf("%w: zone %d", errInvalidProjection, ref.Zone)
	}
	if !finite(ref.Easting) || !finite(ref.Northing) {
		return GeoPoint{}, fmt.Errorf("%w: non-finite easting/northing", errInvalidProjection)
	}

	phi, lambda := inverseTransverseMercator(d.ellipsoid, centralMeridian(ref.Zone),
		ref.Easting-utmFalseEasting, ref.Northing-utmFalseNorthing)

	if d.shifted() {
		phi, lambda = helmertToWGS84(d, phi, lambda)
	}

	return GeoPoint{Latitude: degrees(phi), Longitude: degrees(lambda)}, nil
}

// centralMeridian returns the zone's central meridian in radians.
func centralMeridian(zone int) float64 {
	return radians(float64(zone*6 - 183))
}

// inverseTransverseMercator uses the Krüger series to third order in n, which
// is accurate to well under a millimetre inside a UTM zone. x and y are metres
// from the false origin.
func inverseTransverseMercator(e ellipsoid, lambda0, x, y float64) (phi, lambda float64) {
	n := e.f / (2 - e.f)
	n2, n3, n4 := n*n, n*n*n, n*n*n*n

	// Radius of the rectifying sphere.
	A := e.a / (1 + n) * (1 + n2/4 + n4/64)

	beta := [3]float64{
		n/2 - 2*n2/3 + 37*n3/96,
		n2/48 + n3/15,
		17 * n3 / 480,
	}
	delta := [3]float64{
		2*n - 2*n2/3 - 2*n3,
		7*n2/3 - 8*n3/5,
		56 * n3 / 15,
	}

	xi := y / (utmScaleFactor * A)
	eta := x / (utmScaleFactor * A)

	xiP, etaP := xi, eta
	for j := 1; j <= 3; j++ {
		k := 2 * float64(j)
		xiP -= beta[j-1] * math.Sin(k*xi) * math.Cosh(k*eta)
		etaP -= beta[j-1] * math.Cos(k*xi) * math.Sinh(k*eta)
	}

	chi := math.Asin(math.Sin(xiP) / math.Cosh(etaP))

	phi = chi
	for j := 1; j <= 3; j++ {
		phi += delta[j-1] * math.Sin(2*float64(j)*chi)
	}
	lambda = lambda0 + math.Atan2(math.Sinh(etaP), math.Cos(xiP))
	return phi, lambda
}

// helmertToWGS84 moves a geodetic position on d's ellipsoid to WGS-84 through
// earth-centred coordinates and a three-parameter translation.
func helmertToWGS84(d datum, phi, lambda float64) (float64, float64) {
	src := d.ellipsoid
	e2 := src.eccSquared()
	sinPhi := math.Sin(phi)
	nu := src.a / math.Sqrt(1-e2*sinPhi*sinPhi)

	x := nu*math.Cos(phi)*math.Cos(lambda) + d.dx
	y := nu*math.Cos(phi)*math.Sin(lambda) + d.dy
	z := nu*(1-e2)*sinPhi + d.dz

	dst := wgs84Ellipsoid
	e2 = dst.eccSquared()
	p := math.Hypot(x, y)
	lambda = math.Atan2(y, x)
	phi = math.Atan2(z, p*(1-e2))
	for range 6 {
		s := math.Sin(phi)
		nu = dst.a / math.Sqrt(1-e2*s*s)
		h := p/math.Cos(phi) - nu
		phi = math.Atan2(z, p*(1-e2*nu/(nu+h)))
	}
	return phi, lambda
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
func degrees(rad float64) float64 { return rad * 180 / math.Pi }

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
