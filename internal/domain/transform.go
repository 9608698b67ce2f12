package domain

import (
	"encoding/json"
	"fmt"
)

// ParseRawEvent deserializes a RawEvent's value into a RawLocationRecord.
// Incidents without an id in the payload fall back to the message key.
func ParseRawEvent(raw RawEvent) (RawLocationRecord, error) {
	var rec RawLocationRecord
	if err := json.Unmarshal(raw.Value, &rec); err != nil {
		return RawLocationRecord{}, fmt.Errorf("parse raw event: %w", err)
	}
	if rec.ID == "" && len(raw.Key) > 0 {
		rec.ID = string(raw.Key)
	}
	return rec, nil
}
