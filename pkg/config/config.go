package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config holds the configuration for the J.E.E.V.E.S. circadian agent
type Config struct {
	// MQTT configuration
	MQTTBroker   string `yaml:"mqtt_broker"`
	MQTTPort     int    `yaml:"mqtt_port"`
	MQTTUser     string `yaml:"mqtt_user"`
	MQTTPassword string `yaml:"mqtt_password"`
	MQTTClientID string `yaml:"mqtt_client_id"`

	// Redis configuration
	RedisHost     string `yaml:"redis_host"`
	RedisPort     int    `yaml:"redis_port"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	// Service configuration
	ServiceName string `yaml:"service_name"`
	HealthPort  int    `yaml:"health_port"`
	APIPort     int    `yaml:"api_port"`
	LogLevel    string `yaml:"log_level"`

	// Sensor configuration
	SensorName      string  `yaml:"sensor_name"`
	MinKelvin       int     `yaml:"min"`
	MidKelvin       int     `yaml:"mid"`
	MaxKelvin       int     `yaml:"max"`
	OvernightKelvin int     `yaml:"overnight"`
	TopExponent     float64 `yaml:"top_exponent"`
	BottomExponent  float64 `yaml:"bottom_exponent"`
	PredawnExponent float64 `yaml:"predawn_exponent"`
	EveningExponent float64 `yaml:"evening_exponent"`
	PhaseModel      string  `yaml:"phase_model"`
	CoercionPolicy  string  `yaml:"coercion_policy"`

	// Evaluation loop
	EvaluationIntervalSec int `yaml:"evaluation_interval_sec"`
	StateTTLHours         int `yaml:"state_ttl_hours"`
	RefreshCooldownSec    int `yaml:"refresh_cooldown_sec"`

	// Anchor sources, tried in order
	AnchorSources []string `yaml:"anchor_sources"`
	SunTopic      string   `yaml:"sun_topic"`
	Latitude      float64  `yaml:"latitude"`
	Longitude     float64  `yaml:"longitude"`
	TimeZone      string   `yaml:"time_zone"`
}

// Known anchor source names
const (
	SourceMQTT    = "mqtt"
	SourceRedis   = "redis"
	SourceSunCalc = "suncalc"
)

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		MQTTBroker:    "localhost",
		MQTTPort:      1883,
		MQTTUser:      "",
		MQTTPassword:  "",
		MQTTClientID:  "",
		RedisHost:     "localhost",
		RedisPort:     6379,
		RedisPassword: "",
		RedisDB:       0,
		ServiceName:   "circadian-agent",
		HealthPort:    8080,
		APIPort:       3003,
		LogLevel:      "info",
		// Sensor defaults
		SensorName:      "circadian_white",
		MinKelvin:       2500,
		MidKelvin:       4500,
		MaxKelvin:       6500,
		OvernightKelvin: 1500,
		TopExponent:     2,
		BottomExponent:  2.2,
		PredawnExponent: 2,
		EveningExponent: 8,
		PhaseModel:      "extended",
		CoercionPolicy:  "today",
		// Evaluation defaults
		EvaluationIntervalSec: 60,
		StateTTLHours:         48,
		RefreshCooldownSec:    10,
		// Anchor defaults (Helsinki coordinates for the suncalc fallback)
		AnchorSources: []string{SourceMQTT, SourceSunCalc},
		SunTopic:      "automation/context/sun",
		Latitude:      60.1695,
		Longitude:     24.9354,
		TimeZone:      "Local",
	}
}

// LoadDotEnv loads a .env file into the process environment if one exists
func LoadDotEnv(paths ...string) {
	_ = godotenv.Load(paths...)
}

// LoadFromFile overlays values from a YAML file. Keys missing from the file
// keep their current values
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config YAML: %w", err)
	}

	return nil
}

// LoadFromEnv loads configuration from environment variables with JEEVES_ prefix
func (c *Config) LoadFromEnv() {
	// MQTT configuration
	if v := os.Getenv("JEEVES_MQTT_BROKER"); v != "" {
		c.MQTTBroker = v
	}
	if v := os.Getenv("JEEVES_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.MQTTPort = port
		}
	}
	if v := os.Getenv("JEEVES_MQTT_USER"); v != "" {
		c.MQTTUser = v
	}
	if v := os.Getenv("JEEVES_MQTT_PASSWORD"); v != "" {
		c.MQTTPassword = v
	}
	if v := os.Getenv("JEEVES_MQTT_CLIENT_ID"); v != "" {
		c.MQTTClientID = v
	}

	// Redis configuration
	if v := os.Getenv("JEEVES_REDIS_HOST"); v != "" {
		c.RedisHost = v
	}
	if v := os.Getenv("JEEVES_REDIS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.RedisPort = port
		}
	}
	if v := os.Getenv("JEEVES_REDIS_PASSWORD"); v != "" {
		c.RedisPassword = v
	}
	if v := os.Getenv("JEEVES_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.RedisDB = db
		}
	}

	// Service configuration
	if v := os.Getenv("JEEVES_SERVICE_NAME"); v != "" {
		c.ServiceName = v
	}
	if v := os.Getenv("JEEVES_HEALTH_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.HealthPort = port
		}
	}
	if v := os.Getenv("JEEVES_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.APIPort = port
		}
	}
	if v := os.Getenv("JEEVES_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}

	// Sensor configuration
	if v := os.Getenv("JEEVES_SENSOR_NAME"); v != "" {
		c.SensorName = v
	}
	if v := os.Getenv("JEEVES_MIN_KELVIN"); v != "" {
		if k, err := strconv.Atoi(v); err == nil {
			c.MinKelvin = k
		}
	}
	if v := os.Getenv("JEEVES_MID_KELVIN"); v != "" {
		if k, err := strconv.Atoi(v); err == nil {
			c.MidKelvin = k
		}
	}
	if v := os.Getenv("JEEVES_MAX_KELVIN"); v != "" {
		if k, err := strconv.Atoi(v); err == nil {
			c.MaxKelvin = k
		}
	}
	if v := os.Getenv("JEEVES_OVERNIGHT_KELVIN"); v != "" {
		if k, err := strconv.Atoi(v); err == nil {
			c.OvernightKelvin = k
		}
	}
	if v := os.Getenv("JEEVES_TOP_EXPONENT"); v != "" {
		if e, err := strconv.ParseFloat(v, 64); err == nil {
			c.TopExponent = e
		}
	}
	if v := os.Getenv("JEEVES_BOTTOM_EXPONENT"); v != "" {
		if e, err := strconv.ParseFloat(v, 64); err == nil {
			c.BottomExponent = e
		}
	}
	if v := os.Getenv("JEEVES_PREDAWN_EXPONENT"); v != "" {
		if e, err := strconv.ParseFloat(v, 64); err == nil {
			c.PredawnExponent = e
		}
	}
	if v := os.Getenv("JEEVES_EVENING_EXPONENT"); v != "" {
		if e, err := strconv.ParseFloat(v, 64); err == nil {
			c.EveningExponent = e
		}
	}
	if v := os.Getenv("JEEVES_PHASE_MODEL"); v != "" {
		c.PhaseModel = v
	}
	if v := os.Getenv("JEEVES_COERCION_POLICY"); v != "" {
		c.CoercionPolicy = v
	}

	// Evaluation loop
	if v := os.Getenv("JEEVES_EVALUATION_INTERVAL_SEC"); v != "" {
		if interval, err := strconv.Atoi(v); err == nil {
			c.EvaluationIntervalSec = interval
		}
	}
	if v := os.Getenv("JEEVES_STATE_TTL_HOURS"); v != "" {
		if hours, err := strconv.Atoi(v); err == nil {
			c.StateTTLHours = hours
		}
	}
	if v := os.Getenv("JEEVES_REFRESH_COOLDOWN_SEC"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil {
			c.RefreshCooldownSec = sec
		}
	}

	// Anchor sources
	if v := os.Getenv("JEEVES_ANCHOR_SOURCES"); v != "" {
		c.AnchorSources = splitList(v)
	}
	if v := os.Getenv("JEEVES_SUN_TOPIC"); v != "" {
		c.SunTopic = v
	}
	if v := os.Getenv("JEEVES_LATITUDE"); v != "" {
		if lat, err := strconv.ParseFloat(v, 64); err == nil {
			c.Latitude = lat
		}
	}
	if v := os.Getenv("JEEVES_LONGITUDE"); v != "" {
		if lon, err := strconv.ParseFloat(v, 64); err == nil {
			c.Longitude = lon
		}
	}
	if v := os.Getenv("JEEVES_TIME_ZONE"); v != "" {
		c.TimeZone = v
	}
}

// LoadFromFlags parses command-line flags and overrides config values
func (c *Config) LoadFromFlags() {
	// MQTT flags
	pflag.StringVar(&c.MQTTBroker, "mqtt-broker", c.MQTTBroker, "MQTT broker hostname")
	pflag.IntVar(&c.MQTTPort, "mqtt-port", c.MQTTPort, "MQTT broker port")
	pflag.StringVar(&c.MQTTUser, "mqtt-user", c.MQTTUser, "MQTT username")
	pflag.StringVar(&c.MQTTPassword, "mqtt-password", c.MQTTPassword, "MQTT password")
	pflag.StringVar(&c.MQTTClientID, "mqtt-client-id", c.MQTTClientID, "MQTT client ID")

	// Redis flags
	pflag.StringVar(&c.RedisHost, "redis-host", c.RedisHost, "Redis hostname")
	pflag.IntVar(&c.RedisPort, "redis-port", c.RedisPort, "Redis port")
	pflag.StringVar(&c.RedisPassword, "redis-password", c.RedisPassword, "Redis password")
	pflag.IntVar(&c.RedisDB, "redis-db", c.RedisDB, "Redis database number")

	// Service flags
	pflag.StringVar(&c.ServiceName, "service-name", c.ServiceName, "Service name")
	pflag.IntVar(&c.HealthPort, "health-port", c.HealthPort, "Health check HTTP port")
	pflag.IntVar(&c.APIPort, "api-port", c.APIPort, "HTTP API port")
	pflag.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (debug, info, warn, error)")

	// Sensor flags
	pflag.StringVar(&c.SensorName, "sensor-name", c.SensorName, "Sensor name used in topics and keys")
	pflag.IntVar(&c.MinKelvin, "min", c.MinKelvin, "Minimum (dawn/dusk) color temperature in kelvins")
	pflag.IntVar(&c.MidKelvin, "mid", c.MidKelvin, "Middle color temperature in kelvins")
	pflag.IntVar(&c.MaxKelvin, "max", c.MaxKelvin, "Maximum (solar noon) color temperature in kelvins")
	pflag.IntVar(&c.OvernightKelvin, "overnight", c.OvernightKelvin, "Overnight floor in kelvins (0 = same as min)")
	pflag.Float64Var(&c.TopExponent, "top-exponent", c.TopExponent, "Curve exponent around solar noon (> 1)")
	pflag.Float64Var(&c.BottomExponent, "bottom-exponent", c.BottomExponent, "Curve exponent around dawn and dusk (> 1)")
	pflag.Float64Var(&c.PredawnExponent, "predawn-exponent", c.PredawnExponent, "Curve exponent before dawn (> 1)")
	pflag.Float64Var(&c.EveningExponent, "evening-exponent", c.EveningExponent, "Curve exponent after dusk (> 1)")
	pflag.StringVar(&c.PhaseModel, "phase-model", c.PhaseModel, "Phase model (plateau, continuous, extended)")
	pflag.StringVar(&c.CoercionPolicy, "coercion-policy", c.CoercionPolicy, "Anchor date coercion (today, shift-back)")

	// Evaluation flags
	pflag.IntVar(&c.EvaluationIntervalSec, "evaluation-interval", c.EvaluationIntervalSec, "Evaluation loop interval in seconds")
	pflag.IntVar(&c.StateTTLHours, "state-ttl-hours", c.StateTTLHours, "TTL of the cached state in Redis (hours)")
	pflag.IntVar(&c.RefreshCooldownSec, "refresh-cooldown", c.RefreshCooldownSec, "Minimum seconds between forced refreshes per requester")

	// Anchor flags
	pflag.StringSliceVar(&c.AnchorSources, "anchor-sources", c.AnchorSources, "Anchor sources in fallback order (mqtt, redis, suncalc)")
	pflag.StringVar(&c.SunTopic, "sun-topic", c.SunTopic, "MQTT topic carrying next dawn/noon/dusk")
	pflag.Float64Var(&c.Latitude, "latitude", c.Latitude, "Geographic latitude for the suncalc source")
	pflag.Float64Var(&c.Longitude, "longitude", c.Longitude, "Geographic longitude for the suncalc source")
	pflag.StringVar(&c.TimeZone, "time-zone", c.TimeZone, "IANA time zone for day boundaries")

	pflag.Parse()
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT broker is required")
	}
	if c.MQTTPort <= 0 || c.MQTTPort > 65535 {
		return fmt.Errorf("MQTT port must be between 1 and 65535")
	}
	if c.RedisHost == "" {
		return fmt.Errorf("Redis host is required")
	}
	if c.RedisPort <= 0 || c.RedisPort > 65535 {
		return fmt.Errorf("Redis port must be between 1 and 65535")
	}
	if c.HealthPort <= 0 || c.HealthPort > 65535 {
		return fmt.Errorf("Health port must be between 1 and 65535")
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("API port must be between 1 and 65535")
	}
	if c.ServiceName == "" {
		return fmt.Errorf("Service name is required")
	}
	if c.SensorName == "" {
		return fmt.Errorf("Sensor name is required")
	}
	if c.EvaluationIntervalSec <= 0 {
		return fmt.Errorf("evaluation interval must be positive")
	}
	if c.RefreshCooldownSec < 0 {
		return fmt.Errorf("refresh cooldown must not be negative")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	if len(c.AnchorSources) == 0 {
		return fmt.Errorf("at least one anchor source is required")
	}
	validSources := map[string]bool{
		SourceMQTT:    true,
		SourceRedis:   true,
		SourceSunCalc: true,
	}
	for _, s := range c.AnchorSources {
		if !validSources[s] {
			return fmt.Errorf("invalid anchor source: %s (must be mqtt, redis, or suncalc)", s)
		}
	}
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("latitude must be between -90 and 90")
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("longitude must be between -180 and 180")
	}
	if _, err := c.Location(); err != nil {
		return err
	}

	return nil
}

// MQTTAddress returns the full MQTT broker address
func (c *Config) MQTTAddress() string {
	return fmt.Sprintf("tcp://%s:%d", c.MQTTBroker, c.MQTTPort)
}

// RedisAddress returns the full Redis address
func (c *Config) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// EvaluationInterval returns the evaluation loop interval
func (c *Config) EvaluationInterval() time.Duration {
	return time.Duration(c.EvaluationIntervalSec) * time.Second
}

// RefreshCooldown returns the minimum spacing of forced refreshes
func (c *Config) RefreshCooldown() time.Duration {
	return time.Duration(c.RefreshCooldownSec) * time.Second
}

// StateTTL returns how long the cached state lives in Redis
func (c *Config) StateTTL() time.Duration {
	return time.Duration(c.StateTTLHours) * time.Hour
}

// Location resolves the configured time zone
func (c *Config) Location() (*time.Location, error) {
	if c.TimeZone == "" || c.TimeZone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone %s: %w", c.TimeZone, err)
	}
	return loc, nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
