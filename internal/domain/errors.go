package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnclassified      = errors.New("unrecognized coordinate type")
	ErrParse             = errors.New("malformed coordinate text")
	ErrUnknownDatum      = errors.New("datum is unknown")
	ErrUnsupportedDatum  = errors.New("unsupported datum")
	ErrOutOfRange        = errors.New("latitude out of range after correction")
	ErrOutsideBoundary   = errors.New("point outside boundary")
	errInvalidProjection = errors.New("invalid projection input")
)

// DropReason names the channel a rejected record is counted under.
type DropReason string

const (
	ReasonUnclassified     DropReason = "unclassified"
	ReasonParseFailure     DropReason = "parse_failure"
	ReasonUnsupportedDatum DropReason = "unsupported_datum"
	ReasonOutOfBounds      DropReason = "out_of_bounds"
	ReasonOutsideBoundary  DropReason = "outside_boundary"
)

// DropReasons lists every reason in pipeline stage order.
var DropReasons = []DropReason{
	ReasonUnclassified,
	ReasonParseFailure,
	ReasonUnsupportedDatum,
	ReasonOutOfBounds,
	ReasonOutsideBoundary,
}

// DropError reports why a single record was discarded.
type DropError struct {
	RecordID string
	Reason   DropReason
	Err      error
}

func (e *DropError) Error() string {
	return fmt.Sprintf("drop record %q (%s): %v", e.RecordID, e.Reason, e.Err)
}

func (e *DropError) Unwrap() error { return e.Err }

func drop(id string, reason DropReason, err error) *DropError {
	return &DropError{RecordID: id, Reason: reason, Err: err}
}

// ReasonOf returns the drop reason carried by err, if any.
func ReasonOf(err error) (DropReason, bool) {
	var de *DropError
	if errors.As(err, &de) {
		return de.Reason, true
	}
	return "", false
}
