package anchors

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/jeeves-circadian/internal/dayschedule"
	"github.com/saaga0h/jeeves-circadian/pkg/mqtt"
)

var helsinki = time.FixedZone("EEST", 3*3600)

const samplePayload = `{"next_dawn":"2024-06-03T04:59:00+10:00","next_noon":"2024-06-03T11:56:00+10:00","next_dusk":"2024-06-03T17:34:00+10:00"}`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// mockMQTT records subscriptions so tests can push messages through them
type mockMQTT struct {
	mu       sync.Mutex
	handlers map[string]mqtt.MessageHandler
	subErr   error
}

func newMockMQTT() *mockMQTT {
	return &mockMQTT{handlers: make(map[string]mqtt.MessageHandler)}
}

func (m *mockMQTT) Connect(ctx context.Context) error { return nil }
func (m *mockMQTT) Disconnect()                       {}
func (m *mockMQTT) IsConnected() bool                 { return true }

func (m *mockMQTT) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	if m.subErr != nil {
		return m.subErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = handler
	return nil
}

func (m *mockMQTT) Publish(topic string, qos byte, retained bool, payload []byte) error {
	return nil
}

func (m *mockMQTT) deliver(topic string, payload string, retained bool) {
	m.mu.Lock()
	h := m.handlers[topic]
	m.mu.Unlock()
	if h != nil {
		h(&mockMessage{topic: topic, payload: []byte(payload), retained: retained})
	}
}

type mockMessage struct {
	topic    string
	payload  []byte
	retained bool
}

func (m *mockMessage) Topic() string   { return m.topic }
func (m *mockMessage) Payload() []byte { return m.payload }
func (m *mockMessage) Retained() bool  { return m.retained }
func (m *mockMessage) Ack()            {}

// mockRedis serves HGetAll from a fixed map
type mockRedis struct {
	hashes map[string]map[string]string
	err    error
}

func (m *mockRedis) HSetAll(ctx context.Context, key string, fields map[string]interface{}) error {
	return nil
}

func (m *mockRedis) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	if h, ok := m.hashes[key]; ok {
		return h, nil
	}
	return map[string]string{}, nil
}

func (m *mockRedis) Expire(ctx context.Context, key string, ttl time.Duration) error { return nil }
func (m *mockRedis) Ping(ctx context.Context) error                                  { return nil }
func (m *mockRedis) Close() error                                                    { return nil }

type fixedSource struct {
	anchors dayschedule.Anchors
	err     error
	calls   int
}

func (f *fixedSource) NextAnchors(ctx context.Context) (dayschedule.Anchors, error) {
	f.calls++
	return f.anchors, f.err
}

func TestParsePayload(t *testing.T) {
	a, err := ParsePayload([]byte(samplePayload), helsinki)
	require.NoError(t, err)

	assert.Equal(t, helsinki, a.DayStart.Location())
	assert.True(t, a.DayStart.Equal(time.Date(2024, 6, 3, 4, 59, 0, 0, time.FixedZone("", 10*3600))))
	assert.Equal(t, 21, a.DayStart.Hour()) // 04:59+10 is 21:59+03 the previous day
	assert.True(t, a.DayMiddle.Before(a.DayEnd))
}

func TestParsePayload_Errors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", `not json`},
		{"missing dusk", `{"next_dawn":"2024-06-03T04:59:00Z","next_noon":"2024-06-03T11:56:00Z"}`},
		{"bad timestamp", `{"next_dawn":"yesterday","next_noon":"2024-06-03T11:56:00Z","next_dusk":"2024-06-03T17:34:00Z"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePayload([]byte(tt.payload), helsinki)
			assert.Error(t, err)
		})
	}
}

func TestMQTTSource_UnavailableUntilMessage(t *testing.T) {
	client := newMockMQTT()
	src := NewMQTTSource(client, "automation/context/sun", helsinki, testLogger())
	require.NoError(t, src.Start())

	_, err := src.NextAnchors(context.Background())
	assert.ErrorIs(t, err, dayschedule.ErrAnchorUnavailable)

	updates := 0
	src.OnUpdate(func() { updates++ })

	client.deliver("automation/context/sun", samplePayload, true)

	a, err := src.NextAnchors(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, updates)
	assert.True(t, a.DayMiddle.Equal(time.Date(2024, 6, 3, 1, 56, 0, 0, time.UTC)))
}

func TestMQTTSource_ExpiresOldMessage(t *testing.T) {
	client := newMockMQTT()
	src := NewMQTTSource(client, "sun", helsinki, testLogger())
	received := time.Date(2024, 6, 3, 20, 0, 0, 0, helsinki)
	now := received
	src.now = func() time.Time { return now }
	require.NoError(t, src.Start())

	client.deliver("sun", samplePayload, true)

	now = received.Add(dayschedule.StaleAfter - time.Second)
	_, err := src.NextAnchors(context.Background())
	require.NoError(t, err)

	now = received.Add(dayschedule.StaleAfter)
	_, err = src.NextAnchors(context.Background())
	assert.ErrorIs(t, err, dayschedule.ErrAnchorUnavailable)

	// A new message makes the source usable again
	client.deliver("sun", samplePayload, false)
	_, err = src.NextAnchors(context.Background())
	assert.NoError(t, err)
}

func TestMQTTSource_IgnoresMalformed(t *testing.T) {
	client := newMockMQTT()
	src := NewMQTTSource(client, "sun", helsinki, testLogger())
	require.NoError(t, src.Start())

	client.deliver("sun", samplePayload, false)
	client.deliver("sun", `{"next_dawn":"garbage"}`, false)

	a, err := src.NextAnchors(context.Background())
	require.NoError(t, err)
	assert.True(t, a.DayEnd.Equal(time.Date(2024, 6, 3, 7, 34, 0, 0, time.UTC)))
}

func TestMQTTSource_SubscribeError(t *testing.T) {
	client := newMockMQTT()
	client.subErr = errors.New("not connected")
	src := NewMQTTSource(client, "sun", helsinki, testLogger())

	assert.Error(t, src.Start())
}

func TestRedisSource(t *testing.T) {
	client := &mockRedis{hashes: map[string]map[string]string{
		"sun:anchors": {
			FieldNextDawn: "2024-06-03T04:59:00+10:00",
			FieldNextNoon: "2024-06-03T11:56:00+10:00",
			FieldNextDusk: "2024-06-03T17:34:00+10:00",
		},
	}}

	a, err := NewRedisSource(client, "sun:anchors", helsinki).NextAnchors(context.Background())
	require.NoError(t, err)
	assert.Equal(t, helsinki, a.DayEnd.Location())

	_, err = NewRedisSource(client, "missing", helsinki).NextAnchors(context.Background())
	assert.ErrorIs(t, err, dayschedule.ErrAnchorUnavailable)

	client.err = errors.New("connection refused")
	_, err = NewRedisSource(client, "sun:anchors", helsinki).NextAnchors(context.Background())
	assert.ErrorIs(t, err, dayschedule.ErrAnchorUnavailable)
}

func TestRedisSource_MalformedHash(t *testing.T) {
	client := &mockRedis{hashes: map[string]map[string]string{
		"sun:anchors": {FieldNextDawn: "2024-06-03T04:59:00Z"},
	}}

	_, err := NewRedisSource(client, "sun:anchors", helsinki).NextAnchors(context.Background())
	assert.ErrorIs(t, err, dayschedule.ErrAnchorUnavailable)
}

func TestFallbackSource_FirstSuccessWins(t *testing.T) {
	want := dayschedule.Anchors{
		DayStart:  time.Date(2024, 6, 3, 5, 0, 0, 0, helsinki),
		DayMiddle: time.Date(2024, 6, 3, 13, 0, 0, 0, helsinki),
		DayEnd:    time.Date(2024, 6, 3, 22, 0, 0, 0, helsinki),
	}
	failing := &fixedSource{err: dayschedule.ErrAnchorUnavailable}
	good := &fixedSource{anchors: want}
	unused := &fixedSource{}

	f := NewFallbackSource(testLogger(),
		Named{Name: "mqtt", Source: failing},
		Named{Name: "suncalc", Source: good},
		Named{Name: "redis", Source: unused})

	got, err := f.NextAnchors(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, good.calls)
	assert.Equal(t, 0, unused.calls)
}

func TestFallbackSource_AllFail(t *testing.T) {
	f := NewFallbackSource(testLogger(),
		Named{Name: "mqtt", Source: &fixedSource{err: errors.New("a")}},
		Named{Name: "redis", Source: &fixedSource{err: errors.New("b")}})

	_, err := f.NextAnchors(context.Background())
	assert.ErrorIs(t, err, dayschedule.ErrAnchorUnavailable)
	assert.Contains(t, err.Error(), "mqtt: a")
	assert.Contains(t, err.Error(), "redis: b")

	_, err = NewFallbackSource(testLogger()).NextAnchors(context.Background())
	assert.ErrorIs(t, err, dayschedule.ErrAnchorUnavailable)
}

func TestFallbackSource_CancelledContext(t *testing.T) {
	src := &fixedSource{}
	f := NewFallbackSource(testLogger(), Named{Name: "mqtt", Source: src})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.NextAnchors(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, src.calls)
}

func TestSunCalcSource_Helsinki(t *testing.T) {
	src := NewSunCalcSource(60.17, 24.94, helsinki)
	now := time.Date(2024, 3, 20, 2, 0, 0, 0, helsinki)
	src.now = func() time.Time { return now }

	a, err := src.NextAnchors(context.Background())
	require.NoError(t, err)

	assert.True(t, a.DayStart.After(now))
	assert.True(t, a.DayStart.Before(a.DayMiddle))
	assert.True(t, a.DayMiddle.Before(a.DayEnd))
	assert.Equal(t, 20, a.DayStart.Day())
	// Solar noon at 24.94E is about 10:27 UTC around the equinox
	assert.InDelta(t, 13.45, float64(a.DayMiddle.Hour())+float64(a.DayMiddle.Minute())/60, 0.25)
}

func TestSunCalcSource_RollsToTomorrow(t *testing.T) {
	src := NewSunCalcSource(60.17, 24.94, helsinki)
	now := time.Date(2024, 3, 20, 15, 0, 0, 0, helsinki)
	src.now = func() time.Time { return now }

	a, err := src.NextAnchors(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 21, a.DayStart.Day())
	assert.Equal(t, 21, a.DayMiddle.Day())
	assert.Equal(t, 20, a.DayEnd.Day())
	assert.True(t, a.DayEnd.After(now))
}

func TestSunCalcSource_PolarSummer(t *testing.T) {
	// Civil dusk never happens above ~72N around the solstice
	src := NewSunCalcSource(78.22, 15.65, time.UTC)
	src.now = func() time.Time { return time.Date(2024, 6, 21, 12, 0, 0, 0, time.UTC) }

	_, err := src.NextAnchors(context.Background())
	assert.ErrorIs(t, err, dayschedule.ErrAnchorUnavailable)
}
