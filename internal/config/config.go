package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config contains all runtime settings for the follow-up call service.
type Config struct {
	BindAddr              string
	ShutdownTimeout       time.Duration
	CallInactivityTimeout time.Duration
	MetricsNamespace      string

	AllowAnyOrigin bool

	// Realtime speech service endpoints.
	RealtimeBootstrapURL string
	RealtimeWSURL        string
	RealtimeModel        string
	RealtimeVoice        string
	RealtimeDialTimeout  time.Duration

	// Chat model backends for matching, summaries, and script generation.
	OpenAIAPIKey  string
	MatcherModel  string
	SummaryModel  string
	ScriptModel   string
	RemoteMatcher bool

	// Call defaults.
	DefaultLanguage string
	DefaultMode     string

	// Turn timing knobs.
	KickoffDelay     time.Duration
	ResponseDebounce time.Duration
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:             envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:     envOrDefault("APP_METRICS_NAMESPACE", "carevox"),
		AllowAnyOrigin:       false,
		RealtimeBootstrapURL: envOrDefault("REALTIME_BOOTSTRAP_URL", "http://127.0.0.1:8081"),
		RealtimeWSURL:        envOrDefault("REALTIME_WS_URL", "wss://api.openai.com/v1/realtime"),
		RealtimeModel:        envOrDefault("REALTIME_MODEL", "gpt-4o-realtime-preview"),
		// Default to a calm voice suited to clinical follow-up calls.
		RealtimeVoice:         envOrDefault("REALTIME_VOICE", "alloy"),
		OpenAIAPIKey:          stringsTrimSpace("OPENAI_API_KEY"),
		MatcherModel:          envOrDefault("MATCHER_MODEL", "gpt-4o-mini"),
		SummaryModel:          envOrDefault("SUMMARY_MODEL", "gpt-4o-mini"),
		ScriptModel:           envOrDefault("SCRIPT_MODEL", "gpt-4o"),
		RemoteMatcher:         false,
		DefaultLanguage:       envOrDefault("CALL_DEFAULT_LANGUAGE", "en"),
		DefaultMode:           envOrDefault("CALL_DEFAULT_MODE", "voice"),
		ShutdownTimeout:       15 * time.Second,
		CallInactivityTimeout: 30 * time.Minute,
		RealtimeDialTimeout:   15 * time.Second,
		KickoffDelay:          200 * time.Millisecond,
		ResponseDebounce:      400 * time.Millisecond,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.CallInactivityTimeout, err = durationFromEnv("APP_CALL_INACTIVITY_TIMEOUT", cfg.CallInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.RealtimeDialTimeout, err = durationFromEnv("REALTIME_DIAL_TIMEOUT", cfg.RealtimeDialTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.KickoffDelay, err = durationFromEnv("CALL_KICKOFF_DELAY", cfg.KickoffDelay)
	if err != nil {
		return Config{}, err
	}
	cfg.ResponseDebounce, err = durationFromEnv("CALL_RESPONSE_DEBOUNCE", cfg.ResponseDebounce)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.RemoteMatcher, err = boolFromEnv("MATCHER_REMOTE_ENABLED", cfg.RemoteMatcher)
	if err != nil {
		return Config{}, err
	}

	if cfg.CallInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_CALL_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.KickoffDelay < 0 {
		return Config{}, fmt.Errorf("CALL_KICKOFF_DELAY must not be negative")
	}
	if cfg.ResponseDebounce <= 0 {
		return Config{}, fmt.Errorf("CALL_RESPONSE_DEBOUNCE must be positive")
	}
	if cfg.RemoteMatcher && cfg.OpenAIAPIKey == "" {
		return Config{}, fmt.Errorf("MATCHER_REMOTE_ENABLED requires OPENAI_API_KEY")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
