package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Topic     string
	Partition int
	Offset    int64
	Commit    func(ctx context.Context) error
}

// RawLocationRecord is the slice of an incident report the engine needs.
// CoordText is free-form; its grammar depends on CoordType.
type RawLocationRecord struct {
	ID              string `json:"id"`
	ObservationDate string `json:"ob_date"`
	CoordText       string `json:"location_coords"`
	CoordType       string `json:"location_coords_type"`
}

// UnmarshalJSON accepts "location_coords" either as text ("[51.2, -115.6]")
// or as a JSON array of two numbers, which is how the incident API serves it.
func (r *RawLocationRecord) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID              json.RawMessage `json:"id"`
		ObservationDate string          `json:"ob_date"`
		CoordText       json.RawMessage `json:"location_coords"`
		CoordType       string          `json:"location_coords_type"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	id, err := decodeLoose(aux.ID)
	if err != nil {
		return fmt.Errorf("decode id: %w", err)
	}
	coords, err := decodeLoose(aux.CoordText)
	if err != nil {
		return fmt.Errorf("decode location_coords: %w", err)
	}

	*r = RawLocationRecord{
		ID:              id,
		ObservationDate: aux.ObservationDate,
		CoordText:       coords,
		CoordType:       aux.CoordType,
	}
	return nil
}

// decodeLoose renders a string, number, null or array of scalars as text.
// Arrays become the bracketed "[a, b]" form the parser understands.
func decodeLoose(raw json.RawMessage) (string, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return "", nil
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return "", err
		}
		parts := make([]string, 0, len(items))
		for _, item := range items {
			s, err := decodeLoose(item)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return "[" + strings.Join(parts, ", ") + "]", nil
	default:
		return trimmed, nil
	}
}

// GeoPoint is a WGS-84 latitude/longitude pair in decimal degrees.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// UTMReference is a projected position parsed from a UTM-labelled record.
type UTMReference struct {
	Zone     int
	Datum    string
	Easting  float64
	Northing float64
}

// NormalizedLocationRecord is an incident that survived every engine stage.
type NormalizedLocationRecord struct {
	ID              string            `json:"id"`
	ObservationDate string            `json:"ob_date"`
	CoordText       string            `json:"location_coords"`
	CoordType       string            `json:"location_coords_type"`
	Variant         CoordinateVariant `json:"variant"`
	GeoPoint
	InBoundary bool `json:"in_boundary"`

	// Geocoding enrichment fields.
	PlaceName string `json:"place_name,omitempty"`
	Country   string `json:"country,omitempty"`
	GeoSource string `json:"geo_source,omitempty"` // "reverse", "original", "failed"

	ProcessedAt time.Time `json:"processed_at"`
}
