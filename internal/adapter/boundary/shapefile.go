package boundary

import (
	"fmt"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/twpayne/go-geom"
)

// readShapefile collects the polygon records whose nameField attribute equals
// opts.Name. Every part of a record becomes a ring of one polygon, so islands
// and holes resolve under the even-odd rule without relying on ring order.
func readShapefile(path string, opts Options) (*geom.MultiPolygon, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("boundary: open shapefile %s: %w", path, err)
	}
	defer func() { _ = reader.Close() }()

	nameIdx := -1
	if opts.Name != "" {
		nameIdx = fieldIndex(reader, opts.NameField)
		if nameIdx < 0 {
			return nil, fmt.Errorf("boundary: shapefile %s has no field %q", path, opts.NameField)
		}
	}

	out := geom.NewMultiPolygon(geom.XY)
	for reader.Next() {
		_, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok || poly == nil {
			continue
		}
		if nameIdx >= 0 && !opts.matches(strings.TrimSpace(strings.TrimRight(reader.Attribute(nameIdx), "\x00"))) {
			continue
		}
		g := shpPolygonToGeom(poly)
		if g == nil {
			continue
		}
		if err := out.Push(g); err != nil {
			return nil, fmt.Errorf("boundary: shapefile %s: %w", path, err)
		}
	}
	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("boundary: read shapefile %s: %w", path, err)
	}
	if out.NumPolygons() == 0 {
		return nil, fmt.Errorf("boundary: %s: %w %q", path, ErrNoMatch, opts.Name)
	}
	return out, nil
}

// fieldIndex returns the index of a named field in the shapefile, or -1 if not found.
func fieldIndex(reader *shp.Reader, name string) int {
	for i, f := range reader.Fields() {
		if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), name) {
			return i
		}
	}
	return -1
}

func shpPolygonToGeom(p *shp.Polygon) *geom.Polygon {
	if p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	flat := make([]float64, 0, len(p.Points)*2)
	ends := make([]int, 0, p.NumParts)
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}
		ends = append(ends, len(flat))
	}
	return geom.NewPolygonFlat(geom.XY, flat, ends)
}
