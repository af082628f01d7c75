// Command circadian-sim prints the boundaries and the colour temperature
// table for one day without connecting to MQTT or Redis
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/saaga0h/jeeves-circadian/internal/anchors"
	"github.com/saaga0h/jeeves-circadian/internal/curve"
	"github.com/saaga0h/jeeves-circadian/internal/dayschedule"
	"github.com/saaga0h/jeeves-circadian/pkg/config"
)

type options struct {
	date     string
	dawn     string
	noon     string
	dusk     string
	step     time.Duration
	timeZone string

	latitude  float64
	longitude float64

	levels     curve.Levels
	exponents  curve.Exponents
	phaseModel string
	policy     string
}

func main() {
	config.LoadDotEnv()
	cfg := config.NewConfig()
	cfg.LoadFromEnv()

	opts := options{
		timeZone:  cfg.TimeZone,
		latitude:  cfg.Latitude,
		longitude: cfg.Longitude,
		levels: curve.Levels{
			Overnight: cfg.OvernightKelvin,
			Minimum:   cfg.MinKelvin,
			Middle:    cfg.MidKelvin,
			Maximum:   cfg.MaxKelvin,
		},
		exponents: curve.Exponents{
			Top:     cfg.TopExponent,
			Bottom:  cfg.BottomExponent,
			Predawn: cfg.PredawnExponent,
			Evening: cfg.EveningExponent,
		},
		phaseModel: cfg.PhaseModel,
		policy:     cfg.CoercionPolicy,
	}

	pflag.StringVar(&opts.date, "date", "", "Day to simulate (YYYY-MM-DD, default today)")
	pflag.StringVar(&opts.dawn, "dawn", "", "Dawn as HH:MM or RFC3339 (default: computed)")
	pflag.StringVar(&opts.noon, "noon", "", "Solar noon as HH:MM or RFC3339 (default: computed)")
	pflag.StringVar(&opts.dusk, "dusk", "", "Dusk as HH:MM or RFC3339 (default: computed)")
	pflag.DurationVar(&opts.step, "step", time.Hour, "Table resolution")
	pflag.StringVar(&opts.timeZone, "time-zone", opts.timeZone, "IANA time zone")
	pflag.Float64Var(&opts.latitude, "latitude", opts.latitude, "Latitude used when anchors are computed")
	pflag.Float64Var(&opts.longitude, "longitude", opts.longitude, "Longitude used when anchors are computed")
	pflag.IntVar(&opts.levels.Minimum, "min", opts.levels.Minimum, "Minimum color temperature in kelvins")
	pflag.IntVar(&opts.levels.Middle, "mid", opts.levels.Middle, "Middle color temperature in kelvins")
	pflag.IntVar(&opts.levels.Maximum, "max", opts.levels.Maximum, "Maximum color temperature in kelvins")
	pflag.IntVar(&opts.levels.Overnight, "overnight", opts.levels.Overnight, "Overnight floor in kelvins")
	pflag.Float64Var(&opts.exponents.Top, "top-exponent", opts.exponents.Top, "Curve exponent around solar noon")
	pflag.Float64Var(&opts.exponents.Bottom, "bottom-exponent", opts.exponents.Bottom, "Curve exponent around dawn and dusk")
	pflag.Float64Var(&opts.exponents.Predawn, "predawn-exponent", opts.exponents.Predawn, "Curve exponent before dawn")
	pflag.Float64Var(&opts.exponents.Evening, "evening-exponent", opts.exponents.Evening, "Curve exponent after dusk")
	pflag.StringVar(&opts.phaseModel, "phase-model", opts.phaseModel, "Phase model (plateau, continuous, extended)")
	pflag.StringVar(&opts.policy, "coercion-policy", opts.policy, "Anchor date coercion (today, shift-back)")
	pflag.Parse()

	if err := run(context.Background(), opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, w io.Writer) error {
	if opts.step <= 0 {
		return fmt.Errorf("step must be positive")
	}

	cfg := config.Config{TimeZone: opts.timeZone}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	day := time.Now().In(loc)
	if opts.date != "" {
		day, err = time.ParseInLocation("2006-01-02", opts.date, loc)
		if err != nil {
			return fmt.Errorf("invalid date %q: %w", opts.date, err)
		}
	}
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)

	raw, err := resolveAnchors(ctx, opts, midnight, loc)
	if err != nil {
		return err
	}

	model, err := curve.New(opts.levels, opts.exponents)
	if err != nil {
		return err
	}
	phases, err := dayschedule.ParsePhaseModel(opts.phaseModel)
	if err != nil {
		return err
	}
	policy, err := dayschedule.ParseCoercionPolicy(opts.policy)
	if err != nil {
		return err
	}

	snap, err := dayschedule.BuildSnapshot(midnight, raw, model, phases, policy)
	if err != nil {
		return err
	}

	printBoundaries(w, snap)
	fmt.Fprintln(w)
	return printTable(w, snap, midnight, opts.step)
}

// resolveAnchors uses the given times, falling back to a solar calculation
// for any that are missing
func resolveAnchors(ctx context.Context, opts options, midnight time.Time, loc *time.Location) (dayschedule.Anchors, error) {
	var computed dayschedule.Anchors
	if opts.dawn == "" || opts.noon == "" || opts.dusk == "" {
		src := anchors.NewSunCalcSource(opts.latitude, opts.longitude, loc).
			WithClock(func() time.Time { return midnight })
		var err error
		computed, err = src.NextAnchors(ctx)
		if err != nil {
			return dayschedule.Anchors{}, err
		}
	}

	var a dayschedule.Anchors
	var err error
	if a.DayStart, err = parseClock(opts.dawn, midnight, computed.DayStart); err != nil {
		return a, fmt.Errorf("invalid dawn: %w", err)
	}
	if a.DayMiddle, err = parseClock(opts.noon, midnight, computed.DayMiddle); err != nil {
		return a, fmt.Errorf("invalid noon: %w", err)
	}
	if a.DayEnd, err = parseClock(opts.dusk, midnight, computed.DayEnd); err != nil {
		return a, fmt.Errorf("invalid dusk: %w", err)
	}
	return a, nil
}

func parseClock(v string, midnight, fallback time.Time) (time.Time, error) {
	if v == "" {
		return fallback, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.In(midnight.Location()), nil
	}
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, v); err == nil {
			return midnight.Add(time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second), nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is neither HH:MM nor RFC3339", v)
}

func printBoundaries(w io.Writer, snap *dayschedule.Snapshot) {
	b := snap.Boundaries
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	rows := []struct {
		name string
		at   time.Time
	}{
		{"pre_dawn", b.PreDawn},
		{"day_start", b.DayStart},
		{"mid_morning", b.MidMorning},
		{"day_middle", b.DayMiddle},
		{"mid_afternoon", b.MidAfternoon},
		{"dusk", b.Dusk},
		{"day_end", b.DayEnd},
		{"late_evening", b.LateEvening},
		{"night", b.Night},
	}

	fmt.Fprintf(tw, "BOUNDARY\tTIME\n")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\n", r.name, r.at.Format("2006-01-02 15:04:05"))
	}
	if b.DuskCorrected {
		fmt.Fprintf(tw, "%s\t%s\n", "note", "day end moved 30m after dusk")
	}
	fmt.Fprintf(tw, "%s\t%s\n", "phase_model", snap.Plan.Model)
}

func printTable(w io.Writer, snap *dayschedule.Snapshot, midnight time.Time, step time.Duration) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "TIME\tPHASE\tKELVIN\tPROGRESS\t\n")
	end := midnight.Add(24 * time.Hour)
	for t := midnight; t.Before(end); t = t.Add(step) {
		r := snap.Classify(t)
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.3f\t%s\n",
			t.Format("15:04"), r.Phase, r.Kelvin, r.Progress, bar(r.Kelvin, snap.Curve))
	}

	return tw.Flush()
}

// bar draws a rough gauge of kelvin between the night level and the maximum
func bar(kelvin int, m *curve.Model) string {
	const width = 30
	lo := m.NightLevel()
	hi := m.Levels().Maximum
	if hi <= lo {
		return ""
	}
	n := (kelvin - lo) * width / (hi - lo)
	n = max(0, min(width, n))
	return strings.Repeat("#", n)
}
