package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/avalanche-location-etl/internal/domain"
)

// LocationTransformer implements Transformer by decoding a raw incident,
// running it through the normalization engine and, when a geocoder is
// configured, attaching place details.
type LocationTransformer struct {
	engine   *domain.Engine
	geocoder domain.Geocoder
	logger   *slog.Logger
}

// NewTransformer creates a LocationTransformer. Pass a nil geocoder to disable
// geocoding enrichment.
func NewTransformer(engine *domain.Engine, geocoder domain.Geocoder, logger *slog.Logger) *LocationTransformer {
	return &LocationTransformer{
		engine:   engine,
		geocoder: geocoder,
		logger:   logger,
	}
}

// Transform returns the normalized record, or an error. Engine rejections are
// returned as *domain.DropError; any other error means the payload could not
// be decoded.
func (t *LocationTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.NormalizedLocationRecord, error) {
	rec, err := domain.ParseRawEvent(raw)
	if err != nil {
		return domain.NormalizedLocationRecord{}, err
	}

	out, err := t.engine.NormalizeRecord(rec)
	if err != nil {
		return domain.NormalizedLocationRecord{}, err
	}

	return domain.EnrichWithGeocoding(ctx, out, t.geocoder, t.logger), nil
}
