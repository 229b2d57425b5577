package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetDuration(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{name: "unset", value: "", want: DefaultPollInterval},
		{name: "go duration", value: "250ms", want: 250 * time.Millisecond},
		{name: "seconds", value: "15", want: 15 * time.Second},
		{name: "garbage", value: "soon", want: DefaultPollInterval},
		{name: "negative", value: "-1s", want: DefaultPollInterval},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("POLL_INTERVAL", tt.value)
			assert.Equal(t, tt.want, GetDuration("POLL_INTERVAL", DefaultPollInterval))
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "STORE", "MQ", "ORDERS_URL", "POLL_INTERVAL", "PERSIST_DEBOUNCE", "CACHE_TTL"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "memory", cfg.Store)
	assert.Equal(t, "go_chan", cfg.MqMode)
	assert.Equal(t, DefaultOrdersURL, cfg.OrdersURL)
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.Equal(t, 100*time.Millisecond, cfg.PersistDebounce)
	assert.Equal(t, DefaultCacheTTL, cfg.CacheTTL)
}
