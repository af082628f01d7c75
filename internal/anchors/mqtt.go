package anchors

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/saaga0h/jeeves-circadian/internal/dayschedule"
	"github.com/saaga0h/jeeves-circadian/pkg/mqtt"
)

// MQTTSource caches the latest anchors published on the sun topic
type MQTTSource struct {
	mqtt   mqtt.Client
	topic  string
	loc    *time.Location
	logger *slog.Logger

	mu         sync.RWMutex
	latest     *dayschedule.Anchors
	receivedAt time.Time
	onUpdate   func()

	now func() time.Time
}

// NewMQTTSource creates a source for the given topic. Call Start to subscribe
func NewMQTTSource(client mqtt.Client, topic string, loc *time.Location, logger *slog.Logger) *MQTTSource {
	return &MQTTSource{
		mqtt:   client,
		topic:  topic,
		loc:    loc,
		logger: logger,
		now:    time.Now,
	}
}

// OnUpdate registers a callback run after each accepted message
func (s *MQTTSource) OnUpdate(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onUpdate = fn
}

// Start subscribes to the sun topic. The client must be connected
func (s *MQTTSource) Start() error {
	if err := s.mqtt.Subscribe(s.topic, 1, s.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.topic, err)
	}
	s.logger.Info("Subscribed to sun anchors", "topic", s.topic)
	return nil
}

func (s *MQTTSource) handleMessage(msg mqtt.Message) {
	a, err := ParsePayload(msg.Payload(), s.loc)
	if err != nil {
		s.logger.Error("Failed to parse sun anchors",
			"topic", msg.Topic(),
			"error", err)
		return
	}

	s.mu.Lock()
	s.latest = &a
	s.receivedAt = s.now()
	fn := s.onUpdate
	s.mu.Unlock()

	s.logger.Debug("Received sun anchors",
		"topic", msg.Topic(),
		"retained", msg.Retained(),
		"next_dawn", a.DayStart.Format(time.RFC3339),
		"next_noon", a.DayMiddle.Format(time.RFC3339),
		"next_dusk", a.DayEnd.Format(time.RFC3339))

	if fn != nil {
		fn()
	}
}

// NextAnchors returns the most recent anchors seen on the topic. Anchors
// that arrived StaleAfter ago or earlier are treated as missing
func (s *MQTTSource) NextAnchors(ctx context.Context) (dayschedule.Anchors, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.latest == nil {
		return dayschedule.Anchors{}, fmt.Errorf("%w: nothing received on %s", dayschedule.ErrAnchorUnavailable, s.topic)
	}
	if age := s.now().Sub(s.receivedAt); age >= dayschedule.StaleAfter {
		return dayschedule.Anchors{}, fmt.Errorf("%w: last message on %s is %s old",
			dayschedule.ErrAnchorUnavailable, s.topic, age.Round(time.Minute))
	}
	return *s.latest, nil
}
