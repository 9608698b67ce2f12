package domain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type spyProjector struct {
	calls int
	point GeoPoint
	err   error
}

func (s *spyProjector) Project(UTMReference) (GeoPoint, error) {
	s.calls++
	return s.point, s.err
}

// mixedBatch covers every variant and every drop channel.
func mixedBatch() []RawLocationRecord {
	return []RawLocationRecord{
		{ID: "1", CoordType: "Lat/lng", CoordText: "[51.18, -115.57]"},
		{ID: "2", CoordType: "Lat/Long Decimal Degrees", CoordText: "[50.1, 122.9]"},
		{ID: "3", CoordType: "LatLon", CoordText: "[-117.2, 49.5]"},
		{ID: "4", CoordType: "UTM 11U NAD83", CoordText: "[592000, 5671000]"},
		{ID: "5", CoordType: "UTM 11U Unknown", CoordText: "[592000, 5671000]"},
		{ID: "6", CoordType: "UTM 10U ED50", CoordText: "[592000, 5671000]"},
		{ID: "7", CoordType: "Lat/lng", CoordText: "[abc, -115]"},
		{ID: "8", CoordType: "Lat/lng", CoordText: "[51.1]"},
		{ID: "9", CoordType: "GPS", CoordText: "[51.1, -115]"},
		{ID: "10", CoordType: "lat/lng", CoordText: "[51.1, -115]"},
		{ID: "11", CoordType: "Lat/lng", CoordText: "[150, 200]"},
		{ID: "12", CoordType: "Lat/lng", CoordText: "[-115.57, 51.18]"},
		{ID: "13", CoordType: "Lat/lng", CoordText: "[39.74, -104.99]"},
		{ID: "14", CoordType: "Lat/lng", CoordText: "[45.0, -140.0]"},
		{ID: "15", CoordType: "UTM 11U WGS84 (assumed)", CoordText: "[592000, 5671000]"},
	}
}

func TestEngine_AccountingClosure(t *testing.T) {
	e := NewEngine(testBoundary(t), HemisphereNorthWest)
	batch := mixedBatch()

	res := e.Normalize(batch)

	assert.Equal(t, Counts{
		Input:            15,
		Output:           6,
		Unclassified:     2,
		ParseFailure:     2,
		UnsupportedDatum: 2,
		OutOfBounds:      1,
		OutsideBoundary:  2,
	}, res.Counts)
	assert.True(t, res.Counts.Balanced())
	assert.Equal(t, len(batch), res.Counts.Output+res.Counts.Dropped())

	ids := make([]string, 0, len(res.Records))
	for _, r := range res.Records {
		ids = append(ids, r.ID)
		assert.True(t, r.InBoundary)
		assert.GreaterOrEqual(t, r.Latitude, 0.0)
		assert.LessOrEqual(t, r.Latitude, 90.0)
		assert.LessOrEqual(t, r.Longitude, 0.0)
	}
	assert.Equal(t, []string{"1", "2", "3", "4", "12", "15"}, ids)
}

func TestEngine_NormalizeRecord(t *testing.T) {
	fixed := time.Date(2024, time.January, 15, 9, 30, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(fixed))
	t.Cleanup(func() { SetClock(nil) })

	e := NewEngine(testBoundary(t), HemisphereNorthWest)
	rec := RawLocationRecord{
		ID:              "abc",
		ObservationDate: "2024-01-14",
		CoordType:       "LatLon",
		CoordText:       "[-117.2, 49.5]",
	}

	got, err := e.NormalizeRecord(rec)
	require.NoError(t, err)

	assert.Equal(t, NormalizedLocationRecord{
		ID:              "abc",
		ObservationDate: "2024-01-14",
		CoordText:       "[-117.2, 49.5]",
		CoordType:       "LatLon",
		Variant:         VariantReversedPair,
		GeoPoint:        GeoPoint{Latitude: 49.5, Longitude: -117.2},
		InBoundary:      true,
		ProcessedAt:     fixed,
	}, got)
}

func TestEngine_UTMRecord(t *testing.T) {
	e := NewEngine(testBoundary(t), HemisphereNorthWest)
	got, err := e.NormalizeRecord(RawLocationRecord{ID: "utm", CoordType: "UTM 11U NAD83", CoordText: "[592000, 5671000]"})
	require.NoError(t, err)

	assert.Equal(t, VariantUTM, got.Variant)
	assert.InDelta(t, 51.183009, got.Latitude, projectionTolerance)
	assert.InDelta(t, -115.683681, got.Longitude, projectionTolerance)
}

func TestEngine_UnknownDatumSkipsProjector(t *testing.T) {
	spy := &spyProjector{point: banff}
	e := &Engine{Projector: spy}

	res := e.Normalize([]RawLocationRecord{
		{ID: "u", CoordType: "UTM 11U Unknown", CoordText: "[592000, 5671000]"},
	})

	assert.Equal(t, 0, spy.calls)
	assert.Empty(t, res.Records)
	assert.Equal(t, 1, res.Counts.UnsupportedDatum)
	assert.True(t, res.Counts.Balanced())
}

func TestEngine_ProjectorErrorIsRecordLocal(t *testing.T) {
	spy := &spyProjector{err: errors.New("boom")}
	e := &Engine{Projector: spy}

	res := e.Normalize([]RawLocationRecord{
		{ID: "a", CoordType: "UTM 11U NAD83", CoordText: "[592000, 5671000]"},
		{ID: "b", CoordType: "Lat/lng", CoordText: "[51.18, -115.57]"},
	})

	assert.Equal(t, 1, spy.calls)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "b", res.Records[0].ID)
	assert.Equal(t, 1, res.Counts.UnsupportedDatum)
}

func TestEngine_DropErrors(t *testing.T) {
	e := NewEngine(testBoundary(t), HemisphereNorthWest)

	tests := []struct {
		rec    RawLocationRecord
		reason DropReason
		target error
	}{
		{RawLocationRecord{CoordType: "GPS"}, ReasonUnclassified, ErrUnclassified},
		{RawLocationRecord{CoordType: "Lat/lng", CoordText: "[x, y]"}, ReasonParseFailure, ErrParse},
		{RawLocationRecord{CoordType: "UTM 11U Unknown", CoordText: "[1, 2]"}, ReasonUnsupportedDatum, ErrUnknownDatum},
		{RawLocationRecord{CoordType: "UTM 11U ED50", CoordText: "[1, 2]"}, ReasonUnsupportedDatum, ErrUnsupportedDatum},
		{RawLocationRecord{CoordType: "Lat/lng", CoordText: "[150, 200]"}, ReasonOutOfBounds, ErrOutOfRange},
		{RawLocationRecord{CoordType: "Lat/lng", CoordText: "[39.74, -104.99]"}, ReasonOutsideBoundary, ErrOutsideBoundary},
	}
	for _, tc := range tests {
		t.Run(string(tc.reason), func(t *testing.T) {
			_, err := e.NormalizeRecord(tc.rec)
			require.Error(t, err)

			reason, ok := ReasonOf(err)
			require.True(t, ok)
			assert.Equal(t, tc.reason, reason)
			assert.ErrorIs(t, err, tc.target)

			var de *DropError
			require.ErrorAs(t, err, &de)
			assert.NotEmpty(t, de.RecordID, "generated id expected for records without one")
		})
	}
}

func TestEngine_NoBoundary(t *testing.T) {
	e := NewEngine(nil, HemisphereNorthWest)
	got, err := e.NormalizeRecord(RawLocationRecord{ID: "x", CoordType: "Lat/lng", CoordText: "[39.74, -104.99]"})
	require.NoError(t, err)
	assert.False(t, got.InBoundary)
}

func TestEngine_NormalizeAgreesWithNormalizeRecord(t *testing.T) {
	e := NewEngine(testBoundary(t), HemisphereNorthWest)
	batch := mixedBatch()

	res := e.Normalize(batch)

	var want []string
	var outside int
	for _, rec := range batch {
		out, err := e.NormalizeRecord(rec)
		if err != nil {
			if reason, _ := ReasonOf(err); reason == ReasonOutsideBoundary {
				outside++
			}
			continue
		}
		assert.True(t, out.InBoundary, rec.ID)
		want = append(want, out.ID)
	}

	got := make([]string, 0, len(res.Records))
	for _, r := range res.Records {
		got = append(got, r.ID)
	}
	assert.Equal(t, want, got)
	assert.Equal(t, outside, res.Counts.OutsideBoundary)
}

func TestEngine_NormalizeParallel(t *testing.T) {
	e := NewEngine(testBoundary(t), HemisphereNorthWest)

	var batch []RawLocationRecord
	for range 20 {
		batch = append(batch, mixedBatch()...)
	}

	seq := e.Normalize(batch)
	par, err := e.NormalizeParallel(context.Background(), batch, 7)
	require.NoError(t, err)

	assert.Equal(t, seq.Counts, par.Counts)
	assert.True(t, par.Counts.Balanced())
	assert.ElementsMatch(t, recordIDs(seq.Records), recordIDs(par.Records))
}

func TestEngine_NormalizeParallel_Cancelled(t *testing.T) {
	e := NewEngine(nil, HemisphereNorthWest)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.NormalizeParallel(ctx, mixedBatch(), 4)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerateID_Deterministic(t *testing.T) {
	rec := RawLocationRecord{ObservationDate: "2024-01-14", CoordType: "Lat/lng", CoordText: "[51, -115]"}
	assert.Equal(t, generateID(rec), generateID(rec))
	assert.Regexp(t, `^incident-[0-9a-f]{16}$`, generateID(rec))

	other := rec
	other.CoordText = "[52, -115]"
	assert.NotEqual(t, generateID(rec), generateID(other))
}

func TestCounts_ByReason(t *testing.T) {
	var c Counts
	for _, r := range DropReasons {
		c.Record(r)
	}
	c.Input = len(DropReasons)

	assert.True(t, c.Balanced())
	for _, r := range DropReasons {
		assert.Equal(t, 1, c.ByReason()[r], r)
	}
}

func recordIDs(recs []NormalizedLocationRecord) []string {
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	return ids
}
