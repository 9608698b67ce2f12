package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Counts is the engine's accounting for one batch. Every input record ends up
// either in Output or in exactly one drop counter.
type Counts struct {
	Input            int `json:"input"`
	Output           int `json:"output"`
	Unclassified     int `json:"unclassified"`
	ParseFailure     int `json:"parse_failure"`
	UnsupportedDatum int `json:"unsupported_datum"`
	OutOfBounds      int `json:"out_of_bounds"`
	OutsideBoundary  int `json:"outside_boundary"`
}

// Record adds one drop under reason.
func (c *Counts) Record(reason DropReason) {
	switch reason {
	case ReasonUnclassified:
		c.Unclassified++
	case ReasonParseFailure:
		c.ParseFailure++
	case ReasonUnsupportedDatum:
		c.UnsupportedDatum++
	case ReasonOutOfBounds:
		c.OutOfBounds++
	case ReasonOutsideBoundary:
		c.OutsideBoundary++
	}
}

// Dropped returns the sum of all drop counters.
func (c Counts) Dropped() int {
	return c.Unclassified + c.ParseFailure + c.UnsupportedDatum + c.OutOfBounds + c.OutsideBoundary
}

// Balanced reports whether Output plus every drop equals Input.
func (c Counts) Balanced() bool {
	return c.Output+c.Dropped() == c.Input
}

// ByReason returns the drop counters keyed by reason.
func (c Counts) ByReason() map[DropReason]int {
	return map[DropReason]int{
		ReasonUnclassified:     c.Unclassified,
		ReasonParseFailure:     c.ParseFailure,
		ReasonUnsupportedDatum: c.UnsupportedDatum,
		ReasonOutOfBounds:      c.OutOfBounds,
		ReasonOutsideBoundary:  c.OutsideBoundary,
	}
}

// Merge returns the field-wise sum of c and o.
func (c Counts) Merge(o Counts) Counts {
	return Counts{
		Input:            c.Input + o.Input,
		Output:           c.Output + o.Output,
		Unclassified:     c.Unclassified + o.Unclassified,
		ParseFailure:     c.ParseFailure + o.ParseFailure,
		UnsupportedDatum: c.UnsupportedDatum + o.UnsupportedDatum,
		OutOfBounds:      c.OutOfBounds + o.OutOfBounds,
		OutsideBoundary:  c.OutsideBoundary + o.OutsideBoundary,
	}
}

// Result is the output of a batch run.
type Result struct {
	Records []NormalizedLocationRecord
	Counts  Counts
}

// Engine classifies, parses, projects, corrects and filters location records.
// A nil Boundary disables the boundary stage. Engine holds no mutable state and
// may be shared across goroutines.
type Engine struct {
	Projector Projector
	Corrector Corrector
	Boundary  *Boundary
}

// NewEngine returns an Engine using the UTM projector, a corrector for h, and
// the given boundary (which may be nil).
func NewEngine(boundary *Boundary, h Hemisphere) *Engine {
	return &Engine{
		Projector: UTMProjector{},
		Corrector: NewCorrector(h),
		Boundary:  boundary,
	}
}

func (e *Engine) projector() Projector {
	if e.Projector == nil {
		return UTMProjector{}
	}
	return e.Projector
}

// NormalizeRecord runs one record through every stage. A rejected record
// returns a *DropError naming the stage that rejected it.
func (e *Engine) NormalizeRecord(rec RawLocationRecord) (NormalizedLocationRecord, error) {
	out, err := e.correctRecord(rec)
	if err != nil {
		return NormalizedLocationRecord{}, err
	}
	if e.Boundary == nil {
		return out, nil
	}
	kept, _ := FilterWithinBoundary([]NormalizedLocationRecord{out}, e.Boundary)
	if len(kept) == 0 {
		return NormalizedLocationRecord{}, drop(out.ID, ReasonOutsideBoundary,
			fmt.Errorf("%w: (%.5f, %.5f) not in %s", ErrOutsideBoundary, out.Latitude, out.Longitude, e.Boundary.Name()))
	}
	return kept[0], nil
}

// correctRecord runs every stage up to and including the corrector.
func (e *Engine) correctRecord(rec RawLocationRecord) (NormalizedLocationRecord, error) {
	id := rec.ID
	if id == "" {
		id = generateID(rec)
	}

	variant, ok := Classify(rec.CoordType)
	if !ok {
		return NormalizedLocationRecord{}, drop(id, ReasonUnclassified, fmt.Errorf("%w: %q", ErrUnclassified, rec.CoordType))
	}

	parsed, err := ParseCoordinates(rec, variant)
	if err != nil {
		return NormalizedLocationRecord{}, drop(id, ReasonParseFailure, err)
	}

	point := parsed.Point
	if variant == VariantUTM {
		if parsed.UTM.Datum == UnknownDatum {
			return NormalizedLocationRecord{}, drop(id, ReasonUnsupportedDatum, ErrUnknownDatum)
		}
		point, err = e.projector().Project(parsed.UTM)
		if err != nil {
			return NormalizedLocationRecord{}, drop(id, ReasonUnsupportedDatum, err)
		}
	}

	point, err = e.Corrector.Correct(point)
	if err != nil {
		return NormalizedLocationRecord{}, drop(id, ReasonOutOfBounds, err)
	}

	return NormalizedLocationRecord{
		ID:              id,
		ObservationDate: rec.ObservationDate,
		CoordText:       rec.CoordText,
		CoordType:       rec.CoordType,
		Variant:         variant,
		GeoPoint:        point,
		ProcessedAt:     clock.Now().UTC(),
	}, nil
}

// Normalize runs a batch sequentially, preserving input order. The boundary
// stage runs once over every corrected record.
func (e *Engine) Normalize(records []RawLocationRecord) Result {
	res := Result{
		Records: make([]NormalizedLocationRecord, 0, len(records)),
		Counts:  Counts{Input: len(records)},
	}
	for _, rec := range records {
		out, err := e.correctRecord(rec)
		if err != nil {
			reason, _ := ReasonOf(err)
			res.Counts.Record(reason)
			continue
		}
		res.Records = append(res.Records, out)
	}
	if e.Boundary != nil {
		var outside int
		res.Records, outside = FilterWithinBoundary(res.Records, e.Boundary)
		res.Counts.OutsideBoundary += outside
	}
	res.Counts.Output = len(res.Records)
	return res
}

// NormalizeParallel splits records into contiguous partitions and normalizes
// them concurrently. Per-record failures stay local to the record; only
// cancellation of ctx aborts the batch. Callers must not rely on output order.
func (e *Engine) NormalizeParallel(ctx context.Context, records []RawLocationRecord, partitions int) (Result, error) {
	if partitions <= 1 || len(records) < 2 {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		return e.Normalize(records), nil
	}
	if partitions > len(records) {
		partitions = len(records)
	}

	size := (len(records) + partitions - 1) / partitions
	parts := make([]Result, partitions)

	g, ctx := errgroup.WithContext(ctx)
	for i := range partitions {
		lo := i * size
		hi := min(lo+size, len(records))
		if lo >= hi {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			parts[i] = e.Normalize(records[lo:hi])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	merged := Result{Records: make([]NormalizedLocationRecord, 0, len(records))}
	for _, p := range parts {
		merged.Records = append(merged.Records, p.Records...)
		merged.Counts = merged.Counts.Merge(p.Counts)
	}
	return merged, nil
}

// generateID derives a stable id for records that arrive without one, so
// replays of the same report key to the same sink message.
func generateID(rec RawLocationRecord) string {
	input := fmt.Sprintf("%s|%s|%s", rec.ObservationDate, rec.CoordType, rec.CoordText)
	hash := sha256.Sum256([]byte(input))
	return "incident-" + hex.EncodeToString(hash[:8])
}
