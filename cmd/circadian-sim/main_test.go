package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/jeeves-circadian/internal/curve"
)

func testOptions() options {
	return options{
		date:     "2024-06-03",
		dawn:     "06:00",
		noon:     "12:00",
		dusk:     "17:30",
		step:     time.Hour,
		timeZone: "UTC",
		levels: curve.Levels{
			Overnight: 1500,
			Minimum:   2500,
			Middle:    4500,
			Maximum:   6500,
		},
		exponents:  curve.Exponents{Top: 2, Bottom: 2.2},
		phaseModel: "extended",
		policy:     "today",
	}
}

func TestRun_PrintsBoundariesAndTable(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), testOptions(), &out))

	text := out.String()
	assert.Contains(t, text, "pre_dawn       2024-06-03 05:00:00")
	assert.Contains(t, text, "day_middle     2024-06-03 12:00:00")
	assert.Contains(t, text, "late_evening   2024-06-03 22:00:00")
	assert.Contains(t, text, "note")

	lines := strings.Split(strings.TrimSpace(text), "\n")
	var rows []string
	for _, l := range lines {
		if len(l) >= 5 && l[2] == ':' {
			rows = append(rows, l)
		}
	}
	require.Len(t, rows, 24)
	assert.True(t, strings.HasPrefix(rows[0], "00:00"))
	assert.Contains(t, rows[0], "Night")
	assert.Contains(t, rows[12], "6500")
}

func TestRun_HalfHourStep(t *testing.T) {
	opts := testOptions()
	opts.step = 30 * time.Minute

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), opts, &out))
	assert.Contains(t, out.String(), "05:30")
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*options)
	}{
		{"zero step", func(o *options) { o.step = 0 }},
		{"bad date", func(o *options) { o.date = "03/06/2024" }},
		{"bad dawn", func(o *options) { o.dawn = "sunrise" }},
		{"bad levels", func(o *options) { o.levels.Middle = 7000 }},
		{"bad model", func(o *options) { o.phaseModel = "stepped" }},
		{"bad policy", func(o *options) { o.policy = "yesterday" }},
		{"anchors out of order", func(o *options) { o.noon = "19:00" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions()
			tt.modify(&opts)
			assert.Error(t, run(context.Background(), opts, &bytes.Buffer{}))
		})
	}
}

func TestParseClock(t *testing.T) {
	midnight := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	fallback := midnight.Add(5 * time.Hour)

	got, err := parseClock("", midnight, fallback)
	require.NoError(t, err)
	assert.Equal(t, fallback, got)

	got, err = parseClock("07:15:30", midnight, fallback)
	require.NoError(t, err)
	assert.Equal(t, midnight.Add(7*time.Hour+15*time.Minute+30*time.Second), got)

	got, err = parseClock("2024-06-03T09:00:00+02:00", midnight, fallback)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Hour())
}
