package domain

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// assumedMarker trails UTM labels whose datum the reporter guessed.
const assumedMarker = "(assumed)"

// utmZoneRe captures the leading digits of a zone token such as "11U".
var utmZoneRe = regexp.MustCompile(`^(\d+)`)

// ParsedCoordinates is the output of the parser stage. Point holds the
// uncorrected pair for the pair variants; UTM is set only for VariantUTM.
type ParsedCoordinates struct {
	Variant CoordinateVariant
	Point   GeoPoint
	UTM     UTMReference
}

// ParseCoordinates extracts coordinates from a record according to its variant.
// Errors wrap ErrParse.
func ParseCoordinates(rec RawLocationRecord, variant CoordinateVariant) (ParsedCoordinates, error) {
	switch variant {
	case VariantStandardPair, VariantStandardDecimalDegrees:
		first, second, err := parsePair(rec.CoordText)
		if err != nil {
			return ParsedCoordinates{}, err
		}
		return ParsedCoordinates{Variant: variant, Point: GeoPoint{Latitude: first, Longitude: second}}, nil

	case VariantReversedPair:
		first, second, err := parsePair(rec.CoordText)
		if err != nil {
			return ParsedCoordinates{}, err
		}
		return ParsedCoordinates{Variant: variant, Point: GeoPoint{Latitude: second, Longitude: first}}, nil

	case VariantUTM:
		ref, err := parseUTM(rec.CoordType, rec.CoordText)
		if err != nil {
			return ParsedCoordinates{}, err
		}
		return ParsedCoordinates{Variant: variant, UTM: ref}, nil

	default:
		return ParsedCoordinates{}, fmt.Errorf("%w: no parser for %s", ErrParse, variant)
	}
}

// splitPair strips the surrounding brackets from "[A, B]" and returns A and B
// in the order they appear.
func splitPair(text string) (string, string, error) {
	body := strings.TrimSpace(text)
	body = strings.TrimPrefix(body, "[")
	body = strings.TrimSuffix(body, "]")

	tokens := strings.Split(body, ",")
	if len(tokens) != 2 {
		return "", "", fmt.Errorf("%w: want 2 values in %q, got %d", ErrParse, text, len(tokens))
	}

	first := strings.TrimSpace(tokens[0])
	second := strings.TrimSpace(tokens[1])
	if first == "" || second == "" {
		return "", "", fmt.Errorf("%w: empty value in %q", ErrParse, text)
	}
	return first, second, nil
}

func parsePair(text string) (float64, float64, error) {
	a, b, err := splitPair(text)
	if err != nil {
		return 0, 0, err
	}
	first, err := parseNumber(a)
	if err != nil {
		return 0, 0, err
	}
	second, err := parseNumber(b)
	if err != nil {
		return 0, 0, err
	}
	return first, second, nil
}

// parseNumber parses a finite decimal. strconv accepts "NaN" and "Inf", which
// are never valid coordinates.
func parseNumber(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not numeric", ErrParse, s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q is not finite", ErrParse, s)
	}
	return v, nil
}

// parseUTM reads zone and datum from a label like "UTM 11U NAD83 (assumed)"
// and easting/northing from the coordinate text.
func parseUTM(coordType, coordText string) (UTMReference, error) {
	label := strings.TrimSpace(coordType)
	label = strings.TrimSpace(strings.TrimSuffix(label, assumedMarker))

	fields := strings.Fields(label)
	if len(fields) < 3 {
		return UTMReference{}, fmt.Errorf("%w: UTM label %q needs qualifier, zone and datum", ErrParse, coordType)
	}

	m := utmZoneRe.FindStringSubmatch(fields[1])
	if m == nil {
		return UTMReference{}, fmt.Errorf("%w: zone %q has no digits", ErrParse, fields[1])
	}
	zone, err := strconv.Atoi(m[1])
	if err != nil || zone < 1 || zone > 60 {
		return UTMReference{}, fmt.Errorf("%w: zone %q out of range 1-60", ErrParse, fields[1])
	}

	easting, northing, err := parsePair(coordText)
	if err != nil {
		return UTMReference{}, err
	}

	return UTMReference{
		Zone:     zone,
		Datum:    fields[2],
		Easting:  easting,
		Northing: northing,
	}, nil
}
