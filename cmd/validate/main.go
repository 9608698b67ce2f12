// Command validate re-checks a normalized location file written by
// cmd/normalize (or captured from the sink topic). Each record is checked for
// schema, hemisphere and range, and boundary membership. When the raw input is
// supplied the file is also compared against a fresh engine run.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -normalized out/normalized.json \
//	  -raw data/mock/avalanche_incidents.json \
//	  -boundary data/boundaries/canada.geojson -boundary-name Canada
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/couchcryptid/avalanche-location-etl/internal/adapter/boundary"
	"github.com/couchcryptid/avalanche-location-etl/internal/domain"
)

// pointTolerance is the allowed drift, in degrees, between a stored point and
// a recomputed one. Roughly a centimetre.
const pointTolerance = 1e-7

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

type options struct {
	normalized   string
	raw          string
	boundaryPath string
	boundaryName string
	nameField    string
	tolerance    float64
	hemisphere   string
}

func main() {
	var opts options
	flag.StringVar(&opts.normalized, "normalized", "", "normalized JSON file to validate")
	flag.StringVar(&opts.raw, "raw", "", "raw incident JSON the file was produced from (optional)")
	flag.StringVar(&opts.boundaryPath, "boundary", "data/boundaries/canada.geojson", "boundary file (.geojson or .shp)")
	flag.StringVar(&opts.boundaryName, "boundary-name", "Canada", "feature to select from the boundary file")
	flag.StringVar(&opts.nameField, "name-field", "name", "attribute holding the feature name")
	flag.Float64Var(&opts.tolerance, "tolerance", 0, "boundary buffer in degrees")
	flag.StringVar(&opts.hemisphere, "hemisphere", "NW", "expected hemisphere: NW, NE, SW or SE")
	flag.Parse()

	if opts.normalized == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(opts); code != 0 {
		os.Exit(code)
	}
}

func run(opts options) int {
	fmt.Println("=== Normalized Location Validation ===")
	fmt.Println()

	h, err := domain.ParseHemisphere(opts.hemisphere)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	region, err := boundary.Load(opts.boundaryPath, boundary.Options{
		Name:      opts.boundaryName,
		NameField: opts.nameField,
		Tolerance: opts.tolerance,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load boundary: %v\n", err)
		return 1
	}

	records, err := loadJSON[domain.NormalizedLocationRecord](opts.normalized)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load normalized JSON: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateSchema(records),
		validateGeoPoints(records, h),
		validateBoundary(records, region),
	}

	var raw []domain.RawLocationRecord
	if opts.raw != "" {
		raw, err = loadJSON[domain.RawLocationRecord](opts.raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load raw JSON: %v\n", err)
			return 1
		}
		phases = append(phases, validateReplay(records, raw, domain.NewEngine(region, h)))
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d normalized, %d raw\n", len(records), len(raw))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func loadJSON[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// ── Phase 1: Schema ──

func validateSchema(records []domain.NormalizedLocationRecord) *phase {
	p := &phase{name: "Phase 1: Schema"}
	seen := make(map[string]int, len(records))
	for i := range records {
		r := &records[i]
		if r.ID == "" {
			p.errorf("record %d: empty id", i)
		} else if prev, dup := seen[r.ID]; dup {
			p.errorf("record %d: id %q duplicates record %d", i, r.ID, prev)
		} else {
			seen[r.ID] = i
		}
		if v, ok := domain.Classify(r.CoordType); !ok {
			p.errorf("record %s: unclassifiable type %q", r.ID, r.CoordType)
		} else if v != r.Variant {
			p.errorf("record %s: variant %s does not match type %q", r.ID, r.Variant, r.CoordType)
		}
		if r.ProcessedAt.IsZero() {
			p.errorf("record %s: missing processed_at", r.ID)
		}
	}
	return p
}

// ── Phase 2: GeoPoint range and hemisphere ──

func validateGeoPoints(records []domain.NormalizedLocationRecord, h domain.Hemisphere) *phase {
	p := &phase{name: fmt.Sprintf("Phase 2: GeoPoint range (%s)", h)}
	for i := range records {
		r := &records[i]
		lat, lon := r.Latitude, r.Longitude
		if !isFinite(lat) || !isFinite(lon) {
			p.errorf("record %s: non-finite point (%v, %v)", r.ID, lat, lon)
			continue
		}
		if math.Abs(lat) > 90 {
			p.errorf("record %s: latitude %v beyond 90", r.ID, lat)
		}
		if math.Abs(lon) > 180 {
			p.errorf("record %s: longitude %v beyond 180", r.ID, lon)
		}
		if h.South != (lat < 0) && lat != 0 {
			p.errorf("record %s: latitude %v outside hemisphere %s", r.ID, lat, h)
		}
		if h.East != (lon > 0) && lon != 0 {
			p.errorf("record %s: longitude %v outside hemisphere %s", r.ID, lon, h)
		}
	}
	return p
}

// ── Phase 3: Boundary membership ──

func validateBoundary(records []domain.NormalizedLocationRecord, region *domain.Boundary) *phase {
	p := &phase{name: fmt.Sprintf("Phase 3: Boundary (%s)", region.Name())}
	for i := range records {
		r := &records[i]
		if !r.InBoundary {
			p.errorf("record %s: in_boundary is false", r.ID)
		}
		if !region.Contains(r.GeoPoint) {
			p.errorf("record %s: (%.5f, %.5f) not in %s", r.ID, r.Latitude, r.Longitude, region.Name())
		}
	}
	return p
}

// ── Phase 4: Replay ──
// Re-runs the engine over the raw input and compares survivors and points.

func validateReplay(records []domain.NormalizedLocationRecord, raw []domain.RawLocationRecord, engine *domain.Engine) *phase {
	p := &phase{name: "Phase 4: Replay against raw input"}

	res := engine.Normalize(raw)
	if !res.Counts.Balanced() {
		p.errorf("replay accounting does not balance: %+v", res.Counts)
	}

	want := make(map[string]domain.NormalizedLocationRecord, len(res.Records))
	for _, r := range res.Records {
		want[r.ID] = r
	}
	if len(records) != len(want) {
		p.errorf("record count: got %d, replay produced %d", len(records), len(want))
	}

	got := make(map[string]bool, len(records))
	for i := range records {
		r := &records[i]
		got[r.ID] = true
		w, ok := want[r.ID]
		if !ok {
			p.errorf("record %s: not produced by replay", r.ID)
			continue
		}
		if !floatEq(r.Latitude, w.Latitude) || !floatEq(r.Longitude, w.Longitude) {
			p.errorf("record %s: point (%v, %v), replay (%v, %v)", r.ID, r.Latitude, r.Longitude, w.Latitude, w.Longitude)
		}
		if r.Variant != w.Variant {
			p.errorf("record %s: variant %s, replay %s", r.ID, r.Variant, w.Variant)
		}
	}
	for id := range want {
		if !got[id] {
			p.errorf("record %s: produced by replay but missing", id)
		}
	}
	return p
}

func floatEq(a, b float64) bool {
	return math.Abs(a-b) <= pointTolerance
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
