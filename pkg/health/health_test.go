package health

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/jeeves-circadian/pkg/mqtt"
)

type fakeMQTT struct{ connected bool }

func (f *fakeMQTT) Connect(ctx context.Context) error { return nil }
func (f *fakeMQTT) Disconnect()                       {}
func (f *fakeMQTT) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	return nil
}
func (f *fakeMQTT) Publish(topic string, qos byte, retained bool, payload []byte) error {
	return nil
}
func (f *fakeMQTT) IsConnected() bool { return f.connected }

type fakeRedis struct{ pingErr error }

func (f *fakeRedis) HSetAll(ctx context.Context, key string, fields map[string]interface{}) error {
	return nil
}
func (f *fakeRedis) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return nil, nil
}
func (f *fakeRedis) Expire(ctx context.Context, key string, ttl time.Duration) error { return nil }
func (f *fakeRedis) Ping(ctx context.Context) error                                  { return f.pingErr }
func (f *fakeRedis) Close() error                                                    { return nil }

type fakeSensor bool

func (f fakeSensor) SensorAvailable() bool { return bool(f) }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func serve(t *testing.T, h http.HandlerFunc) (int, HealthResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func TestHandlerFunc(t *testing.T) {
	c := NewChecker(nil, nil, nil, testLogger())

	code, resp := serve(t, c.HandlerFunc())
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.Services)
}

func TestDetailedHandlerFunc(t *testing.T) {
	tests := []struct {
		name       string
		mqtt       *fakeMQTT
		redis      *fakeRedis
		sensor     SensorStatus
		wantCode   int
		wantStatus string
		wantSensor string
	}{
		{
			name:       "all healthy",
			mqtt:       &fakeMQTT{connected: true},
			redis:      &fakeRedis{},
			sensor:     fakeSensor(true),
			wantCode:   http.StatusOK,
			wantStatus: "healthy",
			wantSensor: "available",
		},
		{
			name:       "waiting for anchors",
			mqtt:       &fakeMQTT{connected: true},
			redis:      &fakeRedis{},
			sensor:     fakeSensor(false),
			wantCode:   http.StatusOK,
			wantStatus: "healthy",
			wantSensor: "unavailable",
		},
		{
			name:       "mqtt down",
			mqtt:       &fakeMQTT{connected: false},
			redis:      &fakeRedis{},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "degraded",
		},
		{
			name:       "redis down",
			mqtt:       &fakeMQTT{connected: true},
			redis:      &fakeRedis{pingErr: errors.New("refused")},
			sensor:     fakeSensor(true),
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "degraded",
			wantSensor: "available",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker(tt.mqtt, tt.redis, tt.sensor, testLogger())

			code, resp := serve(t, c.DetailedHandlerFunc())
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStatus, resp.Status)
			require.NotNil(t, resp.Services)
			assert.Equal(t, tt.wantSensor, resp.Services.Sensor)
		})
	}
}
