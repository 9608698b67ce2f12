// Command normalize runs a file of raw avalanche incident reports through the
// location engine and writes the surviving records. Input is either a CSV with
// ob_date, location_coords, location_coords_type and optional id columns or a
// JSON array of the same records.
//
// Usage:
//
//	go run ./cmd/normalize \
//	  -in data/mock/avalanche_incidents.json \
//	  -out out/normalized.json \
//	  -boundary data/boundaries/canada.geojson -boundary-name Canada
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/avalanche-location-etl/internal/adapter/boundary"
	"github.com/couchcryptid/avalanche-location-etl/internal/domain"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// csvColumns are the columns every input CSV must carry. An "id" column is
// optional; records without one get a generated id.
var csvColumns = []string{"ob_date", "location_coords", "location_coords_type"}

var errUnbalanced = errors.New("accounting does not balance")

type options struct {
	in           string
	out          string
	format       string
	boundaryPath string
	boundaryName string
	nameField    string
	tolerance    float64
	hemisphere   string
	partitions   int
}

func main() {
	var opts options
	flag.StringVar(&opts.in, "in", "", "raw incident file (.csv or .json)")
	flag.StringVar(&opts.out, "out", "", "output path for normalized records")
	flag.StringVar(&opts.format, "format", "json", "output format: json or geojson")
	flag.StringVar(&opts.boundaryPath, "boundary", "data/boundaries/canada.geojson", "boundary file (.geojson or .shp); empty disables the filter")
	flag.StringVar(&opts.boundaryName, "boundary-name", "Canada", "feature to select from the boundary file")
	flag.StringVar(&opts.nameField, "name-field", "name", "attribute holding the feature name")
	flag.Float64Var(&opts.tolerance, "tolerance", 0, "boundary buffer in degrees")
	flag.StringVar(&opts.hemisphere, "hemisphere", "NW", "hemisphere to force signs into: NW, NE, SW or SE")
	flag.IntVar(&opts.partitions, "partitions", 1, "number of concurrent partitions")
	flag.Parse()

	if opts.in == "" || opts.out == "" {
		flag.Usage()
		log.Fatal("missing required flags: -in, -out")
	}

	counts, err := run(context.Background(), opts)
	printSummary(os.Stdout, counts)
	if err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, opts options) (domain.Counts, error) {
	h, err := domain.ParseHemisphere(opts.hemisphere)
	if err != nil {
		return domain.Counts{}, err
	}

	var region *domain.Boundary
	if opts.boundaryPath != "" {
		region, err = boundary.Load(opts.boundaryPath, boundary.Options{
			Name:      opts.boundaryName,
			NameField: opts.nameField,
			Tolerance: opts.tolerance,
		})
		if err != nil {
			return domain.Counts{}, fmt.Errorf("load boundary: %w", err)
		}
		log.Printf("boundary %s: %d polygons", region.Name(), region.NumPolygons())
	}

	records, err := readRecords(opts.in)
	if err != nil {
		return domain.Counts{}, fmt.Errorf("read %s: %w", opts.in, err)
	}
	log.Printf("read %d records from %s", len(records), opts.in)

	engine := domain.NewEngine(region, h)
	res, err := engine.NormalizeParallel(ctx, records, opts.partitions)
	if err != nil {
		return domain.Counts{}, fmt.Errorf("normalize: %w", err)
	}

	var out any = res.Records
	if opts.format == "geojson" {
		out = toFeatureCollection(res.Records)
	}
	if err := writeJSON(opts.out, out); err != nil {
		return res.Counts, fmt.Errorf("write %s: %w", opts.out, err)
	}
	log.Printf("wrote %d records to %s", len(res.Records), opts.out)

	if !res.Counts.Balanced() {
		return res.Counts, errUnbalanced
	}
	return res.Counts, nil
}

func readRecords(path string) ([]domain.RawLocationRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readCSV(f)
	case ".json":
		return readJSON(f)
	default:
		return nil, fmt.Errorf("unsupported input extension %q", filepath.Ext(path))
	}
}

func readCSV(r io.Reader) ([]domain.RawLocationRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("missing header row")
	}

	colIdx := map[string]int{}
	for i, h := range rows[0] {
		colIdx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range csvColumns {
		if _, ok := colIdx[c]; !ok {
			return nil, fmt.Errorf("missing column %q", c)
		}
	}

	recs := make([]domain.RawLocationRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		recs = append(recs, domain.RawLocationRecord{
			ID:              get(row, colIdx, "id"),
			ObservationDate: get(row, colIdx, "ob_date"),
			CoordText:       get(row, colIdx, "location_coords"),
			CoordType:       get(row, colIdx, "location_coords_type"),
		})
	}
	return recs, nil
}

func readJSON(r io.Reader) ([]domain.RawLocationRecord, error) {
	var recs []domain.RawLocationRecord
	if err := json.NewDecoder(r).Decode(&recs); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return recs, nil
}

// get returns the trimmed cell, or "" for short rows.
func get(row []string, idx map[string]int, col string) string {
	i, ok := idx[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func toFeatureCollection(records []domain.NormalizedLocationRecord) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(records))}
	for _, rec := range records {
		props := map[string]any{
			"ob_date":              rec.ObservationDate,
			"location_coords":      rec.CoordText,
			"location_coords_type": rec.CoordType,
			"variant":              rec.Variant.String(),
			"in_boundary":          rec.InBoundary,
		}
		if rec.PlaceName != "" {
			props["place_name"] = rec.PlaceName
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         rec.ID,
			Geometry:   geom.NewPointFlat(geom.XY, []float64{rec.Longitude, rec.Latitude}),
			Properties: props,
		})
	}
	return fc
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printSummary(w io.Writer, c domain.Counts) {
	fmt.Fprintln(w, "\n=== Normalization summary ===")
	fmt.Fprintf(w, "Input:             %d\n", c.Input)
	fmt.Fprintf(w, "Output:            %d\n", c.Output)
	fmt.Fprintf(w, "Unclassified:      %d\n", c.Unclassified)
	fmt.Fprintf(w, "Parse failure:     %d\n", c.ParseFailure)
	fmt.Fprintf(w, "Unsupported datum: %d\n", c.UnsupportedDatum)
	fmt.Fprintf(w, "Out of bounds:     %d\n", c.OutOfBounds)
	fmt.Fprintf(w, "Outside boundary:  %d\n", c.OutsideBoundary)
	fmt.Fprintf(w, "Balanced:          %t\n", c.Balanced())
}
