// Package anchors provides the sources the circadian agent reads its day
// anchors from: a sun topic on MQTT, a Redis hash, or a local solar
// calculation, optionally chained as fallbacks
package anchors

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/saaga0h/jeeves-circadian/internal/dayschedule"
)

// Field names shared by the MQTT payload and the Redis hash
const (
	FieldNextDawn = "next_dawn"
	FieldNextNoon = "next_noon"
	FieldNextDusk = "next_dusk"
)

// Payload is the wire form of a set of anchors
type Payload struct {
	NextDawn string `json:"next_dawn"`
	NextNoon string `json:"next_noon"`
	NextDusk string `json:"next_dusk"`
}

// ParsePayload decodes a JSON sun payload
func ParsePayload(data []byte, loc *time.Location) (dayschedule.Anchors, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return dayschedule.Anchors{}, fmt.Errorf("failed to parse sun payload: %w", err)
	}
	return p.Anchors(loc)
}

// ParseFields decodes anchors from a field map such as a Redis hash
func ParseFields(fields map[string]string, loc *time.Location) (dayschedule.Anchors, error) {
	p := Payload{
		NextDawn: fields[FieldNextDawn],
		NextNoon: fields[FieldNextNoon],
		NextDusk: fields[FieldNextDusk],
	}
	return p.Anchors(loc)
}

// Anchors parses the three timestamps and converts them to loc
func (p Payload) Anchors(loc *time.Location) (dayschedule.Anchors, error) {
	if loc == nil {
		loc = time.Local
	}

	dawn, err := parseTime(FieldNextDawn, p.NextDawn)
	if err != nil {
		return dayschedule.Anchors{}, err
	}
	noon, err := parseTime(FieldNextNoon, p.NextNoon)
	if err != nil {
		return dayschedule.Anchors{}, err
	}
	dusk, err := parseTime(FieldNextDusk, p.NextDusk)
	if err != nil {
		return dayschedule.Anchors{}, err
	}

	return dayschedule.Anchors{
		DayStart:  dawn.In(loc),
		DayMiddle: noon.In(loc),
		DayEnd:    dusk.In(loc),
	}, nil
}

func parseTime(field, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, fmt.Errorf("missing %s", field)
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s %q: %w", field, v, err)
	}
	return t, nil
}
