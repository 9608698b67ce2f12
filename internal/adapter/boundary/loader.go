// Package boundary loads country polygons from GeoJSON or ESRI shapefiles
// into a domain.Boundary.
package boundary

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/couchcryptid/avalanche-location-etl/internal/domain"
)

// ErrNoMatch is returned when no feature carries the requested name.
var ErrNoMatch = errors.New("no boundary feature matches name")

// Options selects which features form the boundary. An empty Name keeps every
// feature in the file.
type Options struct {
	Name      string
	NameField string
	Tolerance float64
}

// Load reads the file at path, choosing the decoder from its extension.
func Load(path string, opts Options) (*domain.Boundary, error) {
	var (
		polygons *geom.MultiPolygon
		err      error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".geojson", ".json":
		polygons, err = readGeoJSON(path, opts)
	case ".shp":
		polygons, err = readShapefile(path, opts)
	default:
		return nil, fmt.Errorf("boundary: unsupported file type %q", ext)
	}
	if err != nil {
		return nil, err
	}

	name := opts.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	b, err := domain.NewBoundary(name, polygons)
	if err != nil {
		return nil, fmt.Errorf("boundary: %w", err)
	}
	if opts.Tolerance > 0 {
		b = b.WithTolerance(opts.Tolerance)
	}
	return b, nil
}

func (o Options) matches(value string) bool {
	if o.Name == "" {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(value), o.Name)
}

// readGeoJSON accepts a FeatureCollection, a single Feature, or a bare geometry.
func readGeoJSON(path string, opts Options) (*geom.MultiPolygon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("boundary: read %s: %w", path, err)
	}

	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("boundary: decode %s: %w", path, err)
	}

	var features []*geojson.Feature
	switch head.Type {
	case "FeatureCollection":
		var fc geojson.FeatureCollection
		if err := json.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("boundary: decode %s: %w", path, err)
		}
		features = fc.Features
	case "Feature":
		var f geojson.Feature
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("boundary: decode %s: %w", path, err)
		}
		features = []*geojson.Feature{&f}
	default:
		var g geom.T
		if err := geojson.Unmarshal(data, &g); err != nil {
			return nil, fmt.Errorf("boundary: decode %s: %w", path, err)
		}
		// A bare geometry has no properties to filter on.
		features = []*geojson.Feature{{Geometry: g}}
		opts.Name = ""
	}

	out := geom.NewMultiPolygon(geom.XY)
	for _, f := range features {
		if f == nil || f.Geometry == nil {
			continue
		}
		if !opts.matches(propertyString(f.Properties, opts.NameField)) {
			continue
		}
		if err := appendGeometry(out, f.Geometry); err != nil {
			return nil, fmt.Errorf("boundary: feature %q: %w", f.ID, err)
		}
	}
	if out.NumPolygons() == 0 {
		return nil, fmt.Errorf("boundary: %s: %w %q", path, ErrNoMatch, opts.Name)
	}
	return out, nil
}

func propertyString(props map[string]any, field string) string {
	if field == "" || props == nil {
		return ""
	}
	v, ok := props[field]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// appendGeometry adds the areal parts of g to dst. Points and lines carry no
// area and are skipped.
func appendGeometry(dst *geom.MultiPolygon, g geom.T) error {
	switch g := g.(type) {
	case *geom.Polygon:
		return dst.Push(flattenXY(g))
	case *geom.MultiPolygon:
		for i := 0; i < g.NumPolygons(); i++ {
			if err := dst.Push(flattenXY(g.Polygon(i))); err != nil {
				return err
			}
		}
		return nil
	case *geom.GeometryCollection:
		for _, child := range g.Geoms() {
			if err := appendGeometry(dst, child); err != nil {
				return err
			}
		}
		return nil
	default:
		return nil
	}
}

// flattenXY drops any Z or M ordinates so every polygon shares one layout.
func flattenXY(p *geom.Polygon) *geom.Polygon {
	if p.Layout() == geom.XY {
		return p
	}
	var (
		flat []float64
		ends []int
	)
	for i := 0; i < p.NumLinearRings(); i++ {
		ring := p.LinearRing(i)
		coords, stride := ring.FlatCoords(), ring.Stride()
		for j := 0; j+1 < len(coords); j += stride {
			flat = append(flat, coords[j], coords[j+1])
		}
		ends = append(ends, len(flat))
	}
	return geom.NewPolygonFlat(geom.XY, flat, ends)
}
