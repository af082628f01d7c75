package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/saaga0h/jeeves-circadian/internal/circadian"
	"github.com/saaga0h/jeeves-circadian/internal/curve"
	"github.com/saaga0h/jeeves-circadian/internal/dayschedule"
	"github.com/saaga0h/jeeves-circadian/pkg/config"
	"github.com/saaga0h/jeeves-circadian/pkg/health"
	"github.com/saaga0h/jeeves-circadian/pkg/mqtt"
	"github.com/saaga0h/jeeves-circadian/pkg/redis"
)

func main() {
	// Load configuration with hierarchy: defaults → .env → file → env → flags
	config.LoadDotEnv()
	cfg := config.NewConfig()
	if path := os.Getenv("JEEVES_CONFIG_FILE"); path != "" {
		if err := cfg.LoadFromFile(path); err != nil {
			fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
			os.Exit(1)
		}
	}
	cfg.LoadFromEnv()
	cfg.LoadFromFlags()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	model, phases, policy, err := buildModel(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	// Set up structured logging
	logLevel := parseLogLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting J.E.E.V.E.S. Circadian Agent",
		"version", "1.0",
		"service_name", cfg.ServiceName,
		"sensor", cfg.SensorName,
		"mqtt_broker", cfg.MQTTAddress(),
		"redis_host", cfg.RedisAddress(),
		"log_level", cfg.LogLevel)

	// Set up context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Initialize MQTT client
	mqttClient := mqtt.NewClient(cfg, logger)

	// Initialize Redis client
	redisClient := redis.NewClient(cfg, logger)

	// Create circadian agent
	evaluator := dayschedule.NewEvaluator(model, phases, policy, logger)
	agent := circadian.NewAgent(mqttClient, redisClient, cfg, evaluator, logger)

	// Start health check and API servers
	healthChecker := health.NewChecker(mqttClient, redisClient, agent, logger)
	healthServer := startHealthServer(cfg.HealthPort, healthChecker, logger)
	apiServer := startAPIServer(cfg.APIPort, agent.Router(), logger)

	// Start agent in a goroutine
	agentErr := make(chan error, 1)
	go func() {
		if err := agent.Start(ctx); err != nil {
			logger.Error("Agent error", "error", err)
			agentErr <- err
		}
	}()

	// Wait for shutdown signal or agent error
	select {
	case <-sigChan:
		logger.Info("Shutdown signal received (SIGTERM/SIGINT)")
	case err := <-agentErr:
		logger.Error("Agent failed", "error", err)
	}

	// Graceful shutdown
	logger.Info("Initiating graceful shutdown")
	cancel()

	if err := agent.Stop(); err != nil {
		logger.Error("Error stopping agent", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down API server", "error", err)
	}
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down health server", "error", err)
	}

	logger.Info("Circadian agent shutdown complete")
}

// buildModel turns the sensor settings into a curve model and schedule options
func buildModel(cfg *config.Config) (*curve.Model, dayschedule.PhaseModel, dayschedule.CoercionPolicy, error) {
	model, err := curve.New(
		curve.Levels{
			Overnight: cfg.OvernightKelvin,
			Minimum:   cfg.MinKelvin,
			Middle:    cfg.MidKelvin,
			Maximum:   cfg.MaxKelvin,
		},
		curve.Exponents{
			Top:     cfg.TopExponent,
			Bottom:  cfg.BottomExponent,
			Predawn: cfg.PredawnExponent,
			Evening: cfg.EveningExponent,
		},
	)
	if err != nil {
		return nil, "", "", err
	}

	phases, err := dayschedule.ParsePhaseModel(cfg.PhaseModel)
	if err != nil {
		return nil, "", "", err
	}

	policy, err := dayschedule.ParseCoercionPolicy(cfg.CoercionPolicy)
	if err != nil {
		return nil, "", "", err
	}

	return model, phases, policy, nil
}

func startHealthServer(port int, checker *health.Checker, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", checker.HandlerFunc())
	mux.HandleFunc("/health/detailed", checker.DetailedHandlerFunc())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		logger.Info("Starting health check server", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Health server error", "error", err)
		}
	}()

	return server
}

func startAPIServer(port int, handler http.Handler, logger *slog.Logger) *http.Server {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Starting API server", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("API server error", "error", err)
		}
	}()

	return server
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
