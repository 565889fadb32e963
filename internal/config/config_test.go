package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Addr)
	require.Equal(t, "data.db", cfg.DBPath)
	require.Equal(t, "@every 30m", cfg.SyncSchedule)
	require.True(t, cfg.IncludeDelivery)
	require.Equal(t, 4, cfg.HorizonWeeks)
	require.Equal(t, 10*time.Second, cfg.HTTPTimeout)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STAFFPLAN_INCLUDE_DELIVERY", "false")
	t.Setenv("STAFFPLAN_HTTP_TIMEOUT", "3s")
	cfg, err := Load("")
	require.NoError(t, err)
	require.False(t, cfg.IncludeDelivery)
	require.Equal(t, 3*time.Second, cfg.HTTPTimeout)

	t.Setenv("STAFFPLAN_HORIZON_WEEKS", "20")
	_, err = Load("")
	require.Error(t, err)
}

func TestDefaults(t *testing.T) {
	d := Defaults()
	require.Equal(t, ":8080", d["STAFFPLAN_ADDR"])
	require.Equal(t, "10s", d["STAFFPLAN_HTTP_TIMEOUT"])
	require.Equal(t, "true", d["STAFFPLAN_INCLUDE_DELIVERY"])
	require.Contains(t, d, "STAFFPLAN_REDIS_ADDR")
}
