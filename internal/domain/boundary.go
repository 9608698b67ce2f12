package domain

import (
	"errors"
	"fmt"
	"math"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

var errEmptyBoundary = errors.New("boundary has no polygons")

// Boundary is an immutable region used to keep only points inside a country.
// It is safe for concurrent use.
//
// Membership uses the even-odd rule over each polygon's rings, so holes and
// shapefile records with several parts work regardless of ring orientation.
// Each polygon keeps its bounding box, which serves as a coarse spatial index.
type Boundary struct {
	name      string
	polygons  []boundaryPolygon
	extent    bbox
	tolerance float64
}

type boundaryPolygon struct {
	rings  [][]float64 // flat XY coordinates, lon/lat order
	extent bbox
}

type bbox struct {
	minX, minY, maxX, maxY float64
}

func emptyBBox() bbox {
	return bbox{minX: math.Inf(1), minY: math.Inf(1), maxX: math.Inf(-1), maxY: math.Inf(-1)}
}

func (b *bbox) extend(x, y float64) {
	b.minX = math.Min(b.minX, x)
	b.minY = math.Min(b.minY, y)
	b.maxX = math.Max(b.maxX, x)
	b.maxY = math.Max(b.maxY, y)
}

func (b *bbox) merge(o bbox) {
	b.extend(o.minX, o.minY)
	b.extend(o.maxX, o.maxY)
}

func (b bbox) covers(x, y, pad float64) bool {
	return x >= b.minX-pad && x <= b.maxX+pad && y >= b.minY-pad && y <= b.maxY+pad
}

// NewBoundary builds a Boundary from a polygon, multi-polygon or a geometry
// collection of those. Coordinates must be lon/lat; extra dimensions are dropped.
func NewBoundary(name string, g geom.T) (*Boundary, error) {
	b := &Boundary{name: name, extent: emptyBBox()}
	if err := b.add(g); err != nil {
		return nil, err
	}
	if len(b.polygons) == 0 {
		return nil, fmt.Errorf("boundary %q: %w", name, errEmptyBoundary)
	}
	return b, nil
}

func (b *Boundary) add(g geom.T) error {
	switch g := g.(type) {
	case *geom.Polygon:
		b.addPolygon(g)
	case *geom.MultiPolygon:
		for i := 0; i < g.NumPolygons(); i++ {
			b.addPolygon(g.Polygon(i))
		}
	case *geom.GeometryCollection:
		for _, child := range g.Geoms() {
			if err := b.add(child); err != nil {
				return err
			}
		}
	case nil:
		return fmt.Errorf("boundary %q: nil geometry", b.name)
	default:
		return fmt.Errorf("boundary %q: unsupported geometry %T", b.name, g)
	}
	return nil
}

func (b *Boundary) addPolygon(p *geom.Polygon) {
	poly := boundaryPolygon{extent: emptyBBox()}
	for i := 0; i < p.NumLinearRings(); i++ {
		ring := p.LinearRing(i)
		flat, stride := ring.FlatCoords(), ring.Stride()
		if len(flat) < 4*stride {
			continue
		}
		xyRing := make([]float64, 0, len(flat)/stride*2)
		for j := 0; j+1 < len(flat); j += stride {
			xyRing = append(xyRing, flat[j], flat[j+1])
			poly.extent.extend(flat[j], flat[j+1])
		}
		poly.rings = append(poly.rings, xyRing)
	}
	if len(poly.rings) == 0 {
		return
	}
	b.polygons = append(b.polygons, poly)
	b.extent.merge(poly.extent)
}

// WithTolerance returns a copy of b that also accepts points within deg
// degrees of any ring, for boundary datasets with gaps along coastlines.
func (b *Boundary) WithTolerance(deg float64) *Boundary {
	c := *b
	c.tolerance = math.Max(deg, 0)
	return &c
}

// Name returns the region name the boundary was loaded for.
func (b *Boundary) Name() string { return b.name }

// NumPolygons returns the number of polygons making up the boundary.
func (b *Boundary) NumPolygons() int { return len(b.polygons) }

// Tolerance returns the buffer distance in degrees.
func (b *Boundary) Tolerance() float64 { return b.tolerance }

// Contains reports whether p lies inside the boundary (or within its tolerance).
func (b *Boundary) Contains(p GeoPoint) bool {
	x, y := p.Longitude, p.Latitude
	if !b.extent.covers(x, y, b.tolerance) {
		return false
	}
	coord := geom.Coord{x, y}

	for i := range b.polygons {
		poly := &b.polygons[i]
		if !poly.extent.covers(x, y, 0) {
			continue
		}
		inside := 0
		for _, ring := range poly.rings {
			if xy.IsPointInRing(geom.XY, coord, ring) {
				inside++
			}
		}
		if inside%2 == 1 {
			return true
		}
	}

	if b.tolerance == 0 {
		return false
	}
	for i := range b.polygons {
		poly := &b.polygons[i]
		if !poly.extent.covers(x, y, b.tolerance) {
			continue
		}
		for _, ring := range poly.rings {
			if xy.DistanceFromPointToLineString(geom.XY, coord, ring) <= b.tolerance {
				return true
			}
		}
	}
	return false
}

// FilterWithinBoundary keeps the records whose point lies inside b, marking
// them InBoundary. It returns the kept records and the number dropped.
func FilterWithinBoundary(records []NormalizedLocationRecord, b *Boundary) ([]NormalizedLocationRecord, int) {
	kept := make([]NormalizedLocationRecord, 0, len(records))
	for _, rec := range records {
		if !b.Contains(rec.GeoPoint) {
			continue
		}
		rec.InBoundary = true
		kept = append(kept, rec)
	}
	return kept, len(records) - len(kept)
}
