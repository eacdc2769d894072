// internal/data/parser.go
package data

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedState is returned when a gateway reading cannot be used.
var ErrMalformedState = errors.New("malformed sensor state")

// EntityState is the subset of a Home Assistant state object the sign uses.
type EntityState struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	LastUpdated time.Time      `json:"last_updated"`
	Attributes  map[string]any `json:"attributes"`
}

// ParseEntityState decodes a state object. Home Assistant reports the state
// as a string, but numbers are accepted as well.
func ParseEntityState(raw []byte) (*EntityState, error) {
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedState, err)
	}

	st := &EntityState{}
	if id, ok := generic["entity_id"].(string); ok {
		st.EntityID = id
	}
	switch v := generic["state"].(type) {
	case string:
		st.State = v
	case float64:
		st.State = strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return nil, fmt.Errorf("%w: entity %q has no state", ErrMalformedState, st.EntityID)
	default:
		return nil, fmt.Errorf("%w: entity %q state has type %T", ErrMalformedState, st.EntityID, v)
	}
	if ts, ok := generic["last_updated"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			st.LastUpdated = t
		}
	}
	if attrs, ok := generic["attributes"].(map[string]any); ok {
		st.Attributes = attrs
	}
	return st, nil
}

// ParseReading converts a raw state string to a number. Home Assistant
// uses "unavailable" and "unknown" for sensors that are offline.
func ParseReading(state string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(state), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not numeric", ErrMalformedState, state)
	}
	return v, nil
}

// Float returns metric from the snapshot as a number.
func (s SensorSnapshot) Float(metric Metric) (float64, error) {
	return ParseReading(s.Get(metric))
}
