package domain

import (
	"fmt"
	"strings"
)

// CoordinateVariant tags the encoding of a record's coordinate text.
type CoordinateVariant int

const (
	VariantUnknown CoordinateVariant = iota
	VariantReversedPair
	VariantStandardPair
	VariantStandardDecimalDegrees
	VariantUTM
)

// Source labels as they appear in "location_coords_type".
const (
	LabelReversedPair           = "LatLon"
	LabelStandardPair           = "Lat/lng"
	LabelStandardDecimalDegrees = "Lat/Long Decimal Degrees"
	LabelUTMPrefix              = "UTM"
)

var variantNames = map[CoordinateVariant]string{
	VariantUnknown:                "unknown",
	VariantReversedPair:           "reversed_pair",
	VariantStandardPair:           "standard_pair",
	VariantStandardDecimalDegrees: "standard_decimal_degrees",
	VariantUTM:                    "utm",
}

// Variants lists every classifiable variant in declaration order.
var Variants = []CoordinateVariant{
	VariantReversedPair,
	VariantStandardPair,
	VariantStandardDecimalDegrees,
	VariantUTM,
}

func (v CoordinateVariant) String() string {
	if name, ok := variantNames[v]; ok {
		return name
	}
	return fmt.Sprintf("variant(%d)", int(v))
}

// MarshalText implements encoding.TextMarshaler.
func (v CoordinateVariant) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *CoordinateVariant) UnmarshalText(text []byte) error {
	for variant, name := range variantNames {
		if name == string(text) {
			*v = variant
			return nil
		}
	}
	return fmt.Errorf("unknown coordinate variant %q", text)
}

// Classify maps a coordinate type label to its variant. The three pair labels
// must match exactly; UTM labels only need the "UTM" prefix because they carry
// the zone and datum. The boolean is false for unrecognized labels.
func Classify(coordType string) (CoordinateVariant, bool) {
	switch coordType {
	case LabelReversedPair:
		return VariantReversedPair, true
	case LabelStandardPair:
		return VariantStandardPair, true
	case LabelStandardDecimalDegrees:
		return VariantStandardDecimalDegrees, true
	}
	if strings.HasPrefix(coordType, LabelUTMPrefix) {
		return VariantUTM, true
	}
	return VariantUnknown, false
}
