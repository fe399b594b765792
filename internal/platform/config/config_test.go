package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "kycproxy/pkg/domain-errors"
)

func lookupFrom(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func requiredVars() map[string]string {
	return map[string]string{
		"QUICKSCAN_BASE_URL": "https://quickscan.example.com",
		"QUICKSCAN_API_KEY":  "qs-key",
		"SESSIONS_BASE_URL":  "https://sessions.example.com",
		"SESSIONS_API_KEY":   "s-key",
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := fromLookup(lookupFrom(requiredVars()))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 19, cfg.Verification.MinAge)
	assert.Equal(t, 3, cfg.Verification.HandleMaxAttempts)
	assert.Equal(t, 5*time.Minute, cfg.Verification.LookupCacheTTL)
	assert.Equal(t, 30*time.Second, cfg.Quickscan.Timeout)
	assert.Equal(t, "kycproxy.audit", cfg.Kafka.Topic)
	assert.Empty(t, cfg.Database.URL)
	assert.Empty(t, cfg.Redis.URL)
	assert.Equal(t, 30, cfg.RateLimit.Requests)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.False(t, cfg.Server.TrustProxyHeaders)
}

func TestFromEnv_Overrides(t *testing.T) {
	vars := requiredVars()
	vars["DOC_VERIFY_MIN_AGE"] = "21"
	vars["QUICKSCAN_TIMEOUT"] = "5s"
	vars["IMAGE_BASE_URL"] = "https://cdn.example.com/img/"
	vars["LOG_LEVEL"] = "debug"
	vars["KAFKA_BROKERS"] = "kafka-1:9092,kafka-2:9092"
	vars["TRACING_ENABLED"] = "true"
	vars["OTEL_EXPORTER_OTLP_ENDPOINT"] = "otel-collector:4317"
	vars["TRUST_PROXY_HEADERS"] = "true"
	vars["RATE_LIMIT_REQUESTS"] = "0"

	cfg, err := fromLookup(lookupFrom(vars))
	require.NoError(t, err)

	assert.Equal(t, 21, cfg.Verification.MinAge)
	assert.Equal(t, 5*time.Second, cfg.Quickscan.Timeout)
	assert.Equal(t, "https://cdn.example.com/img", cfg.Verification.ImageBaseURL)
	assert.Equal(t, slog.LevelDebug, cfg.Server.LogLevel)
	assert.Equal(t, "kafka-1:9092,kafka-2:9092", cfg.Kafka.Brokers)
	assert.True(t, cfg.Server.TracingEnabled)
	assert.Equal(t, "otel-collector:4317", cfg.Server.OTLPEndpoint)
	assert.True(t, cfg.Server.TrustProxyHeaders)
	assert.Zero(t, cfg.RateLimit.Requests)
}

func TestFromEnv_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]string)
		msg    string
	}{
		{"missing quickscan key", func(v map[string]string) { delete(v, "QUICKSCAN_API_KEY") }, "quickscan config: api_key is required"},
		{"bad provider url", func(v map[string]string) { v["SESSIONS_BASE_URL"] = "not-a-url" }, "sessions config: base_url must be a valid url"},
		{"unparseable duration", func(v map[string]string) { v["QUICKSCAN_TIMEOUT"] = "soon" }, "QUICKSCAN_TIMEOUT"},
		{"unparseable int", func(v map[string]string) { v["DOC_VERIFY_MIN_AGE"] = "nineteen" }, "DOC_VERIFY_MIN_AGE"},
		{"zero handle attempts", func(v map[string]string) { v["HANDLE_MAX_ATTEMPTS"] = "0" }, "handle_max_attempts must be at least 1"},
		{"unknown environment", func(v map[string]string) { v["ENVIRONMENT"] = "qa" }, "server config: environment must be one of"},
		{"zero rate limit window", func(v map[string]string) { v["RATE_LIMIT_WINDOW"] = "0s" }, "rate_limit config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vars := requiredVars()
			tt.mutate(vars)

			_, err := fromLookup(lookupFrom(vars))
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}
