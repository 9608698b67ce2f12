package domain

import (
	"context"
	"log/slog"
)

// Geo sources recorded on enriched records.
const (
	GeoSourceReverse  = "reverse"
	GeoSourceOriginal = "original"
	GeoSourceFailed   = "failed"
)

// EnrichWithGeocoding returns a copy of rec with place name and country from a
// reverse lookup. The coordinates are never changed and the record is never
// dropped: when geocoder is nil or the lookup fails, GeoSource says so.
func EnrichWithGeocoding(ctx context.Context, rec NormalizedLocationRecord, geocoder Geocoder, logger *slog.Logger) NormalizedLocationRecord {
	if geocoder == nil {
		return rec
	}

	result, err := geocoder.ReverseGeocode(ctx, rec.Latitude, rec.Longitude)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"record_id", rec.ID,
			"lat", rec.Latitude,
			"lon", rec.Longitude,
			"error", err,
		)
		rec.GeoSource = GeoSourceFailed
		return rec
	}
	if result.PlaceName == "" && result.Country == "" {
		rec.GeoSource = GeoSourceOriginal
		return rec
	}

	rec.PlaceName = result.PlaceName
	rec.Country = result.Country
	rec.GeoSource = GeoSourceReverse
	return rec
}
