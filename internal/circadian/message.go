package circadian

import (
	"strconv"
	"time"

	"github.com/saaga0h/jeeves-circadian/internal/curve"
	"github.com/saaga0h/jeeves-circadian/internal/dayschedule"
)

// UnitKelvin is the unit published with every reading
const UnitKelvin = "K"

// StateMessage is the retained context message for one sensor
type StateMessage struct {
	State          int       `json:"state"`
	Unit           string    `json:"unit"`
	TimeOfDay      string    `json:"time_of_day"`
	Available      bool      `json:"available"`
	Progress       float64   `json:"progress"`
	DayStart       string    `json:"day_start,omitempty"`
	DayMiddle      string    `json:"day_middle,omitempty"`
	DayEnd         string    `json:"day_end,omitempty"`
	Min            int       `json:"min"`
	Mid            int       `json:"mid"`
	Max            int       `json:"max"`
	Overnight      int       `json:"overnight"`
	TopExponent    float64   `json:"top_exponent"`
	BottomExponent float64   `json:"bottom_exponent"`
	SnapshotID     string    `json:"snapshot_id,omitempty"`
	NextRefresh    string    `json:"next_refresh,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewStateMessage combines a reading with the model and the snapshot it
// came from. snap may be nil
func NewStateMessage(r dayschedule.Reading, m *curve.Model, snap *dayschedule.Snapshot) StateMessage {
	levels := m.Levels()
	exps := m.Exponents()

	msg := StateMessage{
		State:          r.Kelvin,
		Unit:           UnitKelvin,
		TimeOfDay:      string(r.Phase),
		Available:      r.Available,
		Progress:       r.Progress,
		Min:            levels.Minimum,
		Mid:            levels.Middle,
		Max:            levels.Maximum,
		Overnight:      m.NightLevel(),
		TopExponent:    exps.Top,
		BottomExponent: exps.Bottom,
		Timestamp:      r.At.UTC(),
	}

	if snap != nil {
		msg.DayStart = snap.Anchors.DayStart.Format(time.RFC3339)
		msg.DayMiddle = snap.Anchors.DayMiddle.Format(time.RFC3339)
		msg.DayEnd = snap.Anchors.DayEnd.Format(time.RFC3339)
		msg.SnapshotID = snap.ID.String()
		msg.NextRefresh = snap.NextRefresh.Format(time.RFC3339)
	}

	return msg
}

// Redis hash fields beyond the published message, used to restore the
// snapshot after a restart
const (
	fieldRawDayStart  = "raw_day_start"
	fieldRawDayMiddle = "raw_day_middle"
	fieldRawDayEnd    = "raw_day_end"
	fieldLastUpdate   = "last_update"
)

// stateFields flattens the message into a Redis hash
func stateFields(msg StateMessage, snap *dayschedule.Snapshot) map[string]interface{} {
	fields := map[string]interface{}{
		"state":           msg.State,
		"unit":            msg.Unit,
		"time_of_day":     msg.TimeOfDay,
		"available":       strconv.FormatBool(msg.Available),
		"progress":        msg.Progress,
		"min":             msg.Min,
		"mid":             msg.Mid,
		"max":             msg.Max,
		"overnight":       msg.Overnight,
		"top_exponent":    msg.TopExponent,
		"bottom_exponent": msg.BottomExponent,
		"timestamp":       msg.Timestamp.Format(time.RFC3339Nano),
	}

	if snap != nil {
		fields["day_start"] = msg.DayStart
		fields["day_middle"] = msg.DayMiddle
		fields["day_end"] = msg.DayEnd
		fields["snapshot_id"] = msg.SnapshotID
		fields["next_refresh"] = msg.NextRefresh
		fields[fieldRawDayStart] = snap.Raw.DayStart.Format(time.RFC3339)
		fields[fieldRawDayMiddle] = snap.Raw.DayMiddle.Format(time.RFC3339)
		fields[fieldRawDayEnd] = snap.Raw.DayEnd.Format(time.RFC3339)
		fields[fieldLastUpdate] = snap.UpdatedAt.Format(time.RFC3339Nano)
	}

	return fields
}
