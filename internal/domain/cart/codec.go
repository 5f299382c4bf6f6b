// internal/domain/cart/codec.go
package cart

import (
	"encoding/json"
	"errors"
	"fmt"
)

// recordVersion is bumped when the persisted shape changes.
const recordVersion = 1

var ErrUnsupportedRecord = errors.New("cart: unsupported record version")

// record is the persisted shape for key-value stores.
type record struct {
	Version int    `json:"version"`
	Lines   []Line `json:"lines"`
}

// EncodeLines serializes lines into the versioned record format.
func EncodeLines(lines []Line) ([]byte, error) {
	if lines == nil {
		lines = []Line{}
	}
	return json.Marshal(record{Version: recordVersion, Lines: lines})
}

// DecodeLines parses a record written by EncodeLines.
// Malformed lines are dropped and duplicates merged, so the result always
// satisfies the cart invariants.
func DecodeLines(b []byte) ([]Line, error) {
	if len(b) == 0 {
		return nil, nil
	}

	var rec record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("cart: decode record: %w", err)
	}
	if rec.Version > recordVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedRecord, rec.Version)
	}
	return normalizeAndMerge(rec.Lines), nil
}
