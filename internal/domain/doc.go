// Package domain models avalanche incident location data and the engine that
// normalizes it into validated geographic points.
//
// # Data Source
//
// Incident reports originate from the Avalanche Canada public incident API
// (https://incidents.avalanche.ca/public/incidents/). An upstream collector
// pages through the API, fetches each incident and publishes it as flat JSON
// to the Kafka source topic. Only four fields matter here: the incident id,
// the observation date and the pair "location_coords" / "location_coords_type".
//
// # Location Conventions
//
// The coordinate type label decides how the coordinate text is read:
//
//	"LatLon"                    "[-115.57, 51.18]"   longitude first (reversed)
//	"Lat/lng"                   "[51.18, -115.57]"   latitude first
//	"Lat/Long Decimal Degrees"  "[51.18, -115.57]"   latitude first
//	"UTM 11U NAD83"             "[592000, 5671000]"  easting, northing
//	"UTM 11U NAD27 (assumed)"   "[592000, 5671000]"  easting, northing
//
// UTM labels carry a qualifier, a zone with an optional latitude band letter
// and a datum. The band letter is ignored and every zone is treated as
// northern. A datum of "Unknown" marks coordinates that cannot be converted.
//
// Reporters make mistakes the labels do not capture: longitudes are entered
// without a sign, or latitude and longitude are swapped. Every incident is in
// Canada, so the corrector folds values into the north-west quadrant and swaps
// the axes once when the latitude is impossible (greater than 90).
//
// # Pipeline
//
// [Engine] runs each record through five stages, leaf-first:
//
//	Classify → ParseCoordinates → (UTMProjector for UTM) → Corrector → Boundary
//
// A record that fails a stage is dropped with a [DropReason] and counted in
// [Counts]. Nothing is mutated in place and no stage does I/O; the boundary is
// loaded by the caller and shared read-only.
package domain
