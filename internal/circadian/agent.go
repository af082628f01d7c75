package circadian

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/saaga0h/jeeves-circadian/internal/anchors"
	"github.com/saaga0h/jeeves-circadian/internal/dayschedule"
	"github.com/saaga0h/jeeves-circadian/pkg/config"
	"github.com/saaga0h/jeeves-circadian/pkg/mqtt"
	"github.com/saaga0h/jeeves-circadian/pkg/redis"
)

// Agent publishes the circadian colour temperature for one sensor
type Agent struct {
	mqtt      mqtt.Client
	redis     redis.Client
	cfg       *config.Config
	logger    *slog.Logger
	evaluator *dayschedule.Evaluator
	loc       *time.Location

	source    dayschedule.Source
	mqttSrc   *anchors.MQTTSource
	sourceIDs []string

	now func() time.Time

	// Refresh scheduling
	limiter      *refreshLimiter
	refreshMux   sync.Mutex
	refreshTimer *time.Timer
	runCtx       context.Context

	// Periodic evaluation loop
	ticker   *time.Ticker
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewAgent creates a new circadian agent. The anchor sources are built from
// cfg.AnchorSources in order
func NewAgent(mqttClient mqtt.Client, redisClient redis.Client, cfg *config.Config, evaluator *dayschedule.Evaluator, logger *slog.Logger) *Agent {
	loc, err := cfg.Location()
	if err != nil {
		logger.Warn("Falling back to local time zone", "error", err)
		loc = time.Local
	}

	a := &Agent{
		mqtt:      mqttClient,
		redis:     redisClient,
		cfg:       cfg,
		logger:    logger,
		evaluator: evaluator,
		loc:       loc,
		now:       time.Now,
		limiter:   newRefreshLimiter(cfg.RefreshCooldown()),
		runCtx:    context.Background(),
		stopChan:  make(chan struct{}),
	}
	a.source = a.buildSources()
	return a
}

func (a *Agent) buildSources() dayschedule.Source {
	loc := a.loc
	var chain []anchors.Named

	for _, name := range a.cfg.AnchorSources {
		switch name {
		case config.SourceMQTT:
			a.mqttSrc = anchors.NewMQTTSource(a.mqtt, a.cfg.SunTopic, loc, a.logger)
			chain = append(chain, anchors.Named{Name: name, Source: a.mqttSrc})
		case config.SourceRedis:
			chain = append(chain, anchors.Named{Name: name, Source: anchors.NewRedisSource(a.redis, redis.SunAnchorsKey, loc)})
		case config.SourceSunCalc:
			chain = append(chain, anchors.Named{Name: name, Source: anchors.NewSunCalcSource(a.cfg.Latitude, a.cfg.Longitude, loc)})
		default:
			a.logger.Warn("Ignoring unknown anchor source", "source", name)
			continue
		}
		a.sourceIDs = append(a.sourceIDs, name)
	}

	if len(chain) == 1 {
		return chain[0].Source
	}
	return anchors.NewFallbackSource(a.logger, chain...)
}

// Start connects, loads the first anchors and runs until ctx is cancelled
func (a *Agent) Start(ctx context.Context) error {
	a.logger.Info("Starting circadian agent",
		"service_name", a.cfg.ServiceName,
		"sensor", a.cfg.SensorName,
		"anchor_sources", a.sourceIDs,
		"phase_model", a.cfg.PhaseModel,
		"coercion_policy", a.cfg.CoercionPolicy,
		"evaluation_interval_sec", a.cfg.EvaluationIntervalSec)

	// Connect to MQTT broker
	if err := a.mqtt.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to MQTT: %w", err)
	}

	// Verify Redis connection
	if err := a.redis.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}

	a.refreshMux.Lock()
	a.runCtx = ctx
	a.refreshMux.Unlock()

	if a.mqttSrc != nil {
		a.mqttSrc.OnUpdate(a.handleAnchorUpdate)
		if err := a.mqttSrc.Start(); err != nil {
			return err
		}
	}

	refreshTopic := mqtt.RefreshTopic(a.cfg.SensorName)
	if err := a.mqtt.Subscribe(refreshTopic, 0, a.handleRefreshMessage); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", refreshTopic, err)
	}
	a.logger.Info("Subscribed to refresh commands", "topic", refreshTopic)

	if a.restoreState(ctx) {
		a.scheduleRefresh(a.evaluator.Snapshot().NextRefresh.Sub(a.now()))
	} else {
		a.refresh(ctx)
	}

	a.publishState(ctx)
	a.startPeriodicEvaluationLoop()

	a.logger.Info("Circadian agent started and ready")

	// Block until context is cancelled
	<-ctx.Done()
	a.logger.Info("Circadian agent stopping")

	return nil
}

// Stop gracefully stops the circadian agent
func (a *Agent) Stop() error {
	a.logger.Info("Stopping circadian agent")

	a.stopOnce.Do(func() {
		if a.ticker != nil {
			a.ticker.Stop()
		}
		close(a.stopChan)

		a.refreshMux.Lock()
		if a.refreshTimer != nil {
			a.refreshTimer.Stop()
			a.refreshTimer = nil
		}
		a.refreshMux.Unlock()
	})

	// Disconnect from MQTT
	a.mqtt.Disconnect()

	// Close Redis connection
	if err := a.redis.Close(); err != nil {
		a.logger.Error("Error closing Redis connection", "error", err)
		return err
	}

	a.logger.Info("Circadian agent stopped")
	return nil
}

// RefreshNow loads anchors immediately and publishes the resulting state
// A failed refresh keeps the previous snapshot and schedules a retry
func (a *Agent) RefreshNow(ctx context.Context) (*dayschedule.Snapshot, error) {
	snap, err := a.refresh(ctx)
	a.publishState(ctx)
	return snap, err
}

// Evaluator returns the evaluator driven by the agent
func (a *Agent) Evaluator() *dayschedule.Evaluator {
	return a.evaluator
}

// SensorAvailable reports whether a fresh snapshot is loaded
func (a *Agent) SensorAvailable() bool {
	snap := a.evaluator.Snapshot()
	return snap != nil && !snap.Stale(a.now())
}

// refresh asks the sources for anchors and schedules the next attempt
func (a *Agent) refresh(ctx context.Context) (*dayschedule.Snapshot, error) {
	now := a.now()
	snap, err := a.evaluator.Refresh(ctx, now, a.source)
	if err != nil {
		wait := dayschedule.RetryAfter
		var retry *dayschedule.RetryError
		if errors.As(err, &retry) {
			wait = retry.RetryAfter
		}
		a.scheduleRefresh(wait)
		return nil, err
	}

	a.scheduleRefresh(snap.NextRefresh.Sub(now))
	return snap, nil
}

// scheduleRefresh replaces any pending refresh with one after d
func (a *Agent) scheduleRefresh(d time.Duration) {
	if d < 0 {
		d = 0
	}

	a.refreshMux.Lock()
	defer a.refreshMux.Unlock()

	select {
	case <-a.stopChan:
		return
	default:
	}

	if a.refreshTimer != nil {
		a.refreshTimer.Stop()
	}

	ctx := a.runCtx
	a.refreshTimer = time.AfterFunc(d, func() {
		if ctx.Err() != nil {
			return
		}
		a.RefreshNow(ctx)
	})

	a.logger.Debug("Next anchor refresh scheduled",
		"in", d.Round(time.Second),
		"at", a.now().Add(d).Format(time.RFC3339))
}

// handleAnchorUpdate refreshes straight away while the sensor is still
// waiting for usable anchors
func (a *Agent) handleAnchorUpdate() {
	snap := a.evaluator.Snapshot()
	if snap != nil && !snap.Stale(a.now()) {
		return
	}
	a.logger.Info("Sun anchors arrived, refreshing")
	a.scheduleRefresh(0)
}

func (a *Agent) handleRefreshMessage(msg mqtt.Message) {
	if !a.limiter.Allow(requesterMQTT, a.now()) {
		a.logger.Debug("Refresh request rate limited", "topic", msg.Topic())
		return
	}
	a.logger.Info("Refresh requested", "topic", msg.Topic())
	a.scheduleRefresh(0)
}

// startPeriodicEvaluationLoop re-evaluates and publishes on every tick
func (a *Agent) startPeriodicEvaluationLoop() {
	interval := a.cfg.EvaluationInterval()
	a.ticker = time.NewTicker(interval)

	go func() {
		a.logger.Info("Starting periodic evaluation loop", "interval_sec", a.cfg.EvaluationIntervalSec)
		for {
			select {
			case <-a.ticker.C:
				a.publishState(a.runContext())
			case <-a.stopChan:
				return
			}
		}
	}()
}

func (a *Agent) runContext() context.Context {
	a.refreshMux.Lock()
	defer a.refreshMux.Unlock()
	return a.runCtx
}

// publishState evaluates now and publishes the reading to MQTT and Redis
func (a *Agent) publishState(ctx context.Context) {
	reading := a.evaluator.Evaluate(a.now())
	snap := a.evaluator.Snapshot()
	msg := NewStateMessage(reading, a.evaluator.Model(), snap)

	payload, err := json.Marshal(msg)
	if err != nil {
		a.logger.Error("Failed to marshal circadian state", "error", err)
		return
	}

	topic := mqtt.CircadianTopic(a.cfg.SensorName)
	if err := a.mqtt.Publish(topic, 0, true, payload); err != nil {
		a.logger.Error("Failed to publish circadian state",
			"topic", topic,
			"error", err)
	}

	key := redis.CircadianStateKey(a.cfg.SensorName)
	if err := a.redis.HSetAll(ctx, key, stateFields(msg, snap)); err != nil {
		a.logger.Error("Failed to store circadian state",
			"key", key,
			"error", err)
		return
	}
	if err := a.redis.Expire(ctx, key, a.cfg.StateTTL()); err != nil {
		a.logger.Warn("Failed to set state TTL", "key", key, "error", err)
	}

	a.logger.Debug("Published circadian state",
		"topic", topic,
		"kelvin", msg.State,
		"time_of_day", msg.TimeOfDay,
		"available", msg.Available)
}

// restoreState rebuilds the snapshot stored before a restart, if it is
// still fresh
func (a *Agent) restoreState(ctx context.Context) bool {
	key := redis.CircadianStateKey(a.cfg.SensorName)
	fields, err := a.redis.HGetAll(ctx, key)
	if err != nil {
		a.logger.Warn("Failed to read stored circadian state", "key", key, "error", err)
		return false
	}
	if len(fields) == 0 || fields[fieldLastUpdate] == "" {
		return false
	}

	updated, err := time.Parse(time.RFC3339Nano, fields[fieldLastUpdate])
	if err != nil {
		a.logger.Warn("Ignoring stored circadian state", "key", key, "error", err)
		return false
	}
	if a.now().Sub(updated) >= dayschedule.StaleAfter {
		a.logger.Debug("Stored circadian state is stale", "last_update", updated.Format(time.RFC3339))
		return false
	}

	raw, err := anchors.Payload{
		NextDawn: fields[fieldRawDayStart],
		NextNoon: fields[fieldRawDayMiddle],
		NextDusk: fields[fieldRawDayEnd],
	}.Anchors(a.loc)
	if err != nil {
		a.logger.Warn("Ignoring stored circadian state", "key", key, "error", err)
		return false
	}

	if _, err := a.evaluator.Apply(updated.In(a.loc), raw); err != nil {
		a.logger.Warn("Ignoring stored circadian state", "key", key, "error", err)
		return false
	}

	a.logger.Info("Restored day anchors from Redis", "key", key, "last_update", updated.Format(time.RFC3339))
	return true
}
