package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	t.Setenv("PULSE_AUTH_SECRET", "secret")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 10*time.Second, cfg.AuthTimeout)
	assert.Equal(t, 4000, cfg.MaxContentLen)
	assert.Equal(t, StorePebble, cfg.StoreBackend)
}

func TestNew_Overrides(t *testing.T) {
	t.Setenv("PULSE_AUTH_SECRET", "secret")
	t.Setenv("PULSE_ADDR", ":9090")
	t.Setenv("PULSE_AUTH_TIMEOUT", "3s")
	t.Setenv("PULSE_MAX_CONTENT_LEN", "100")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 3*time.Second, cfg.AuthTimeout)
	assert.Equal(t, 100, cfg.MaxContentLen)
}

func TestNew_RequiresSecret(t *testing.T) {
	t.Setenv("PULSE_AUTH_SECRET", "")

	_, err := New()
	assert.Error(t, err)
}

func TestNew_SurrealBackendNeedsConnectionDetails(t *testing.T) {
	t.Setenv("PULSE_AUTH_SECRET", "secret")
	t.Setenv("PULSE_STORE", "surreal")
	t.Setenv("SURREAL_URL", "")

	_, err := New()
	assert.Error(t, err)

	t.Setenv("SURREAL_URL", "ws://localhost:8000/rpc")
	t.Setenv("SURREAL_NS", "pulse")
	t.Setenv("SURREAL_DB", "chat")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, StoreSurreal, cfg.StoreBackend)
}

func TestNew_UnknownBackend(t *testing.T) {
	t.Setenv("PULSE_AUTH_SECRET", "secret")
	t.Setenv("PULSE_STORE", "floppy")

	_, err := New()
	assert.Error(t, err)
}
