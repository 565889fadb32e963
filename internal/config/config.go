package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/phillip-england/staffplan/internal/envutil"
)

type Config struct {
	Addr                string        `env:"STAFFPLAN_ADDR" envDefault:":8080"`
	DBPath              string        `env:"STAFFPLAN_DB_PATH" envDefault:"data.db"`
	LogLevel            string        `env:"STAFFPLAN_LOG_LEVEL" envDefault:"info"`
	LogFormat           string        `env:"STAFFPLAN_LOG_FORMAT" envDefault:"json"`
	WeatherURL          string        `env:"STAFFPLAN_WEATHER_URL"`
	PTOURL              string        `env:"STAFFPLAN_PTO_URL"`
	ProfilePath         string        `env:"STAFFPLAN_PROFILE_PATH"`
	RedisAddr           string        `env:"STAFFPLAN_REDIS_ADDR"`
	SyncSchedule        string        `env:"STAFFPLAN_SYNC_SCHEDULE" envDefault:"@every 30m"`
	IncludeDelivery     bool          `env:"STAFFPLAN_INCLUDE_DELIVERY" envDefault:"true"`
	NormalsLookbackYear int           `env:"STAFFPLAN_NORMALS_LOOKBACK_YEARS" envDefault:"5"`
	HorizonWeeks        int           `env:"STAFFPLAN_HORIZON_WEEKS" envDefault:"4"`
	HTTPTimeout         time.Duration `env:"STAFFPLAN_HTTP_TIMEOUT" envDefault:"10s"`
}

// Load reads envFile (if present) into the environment and parses Config.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := envutil.LoadDotEnv(envFile); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.HorizonWeeks < 1 || cfg.HorizonWeeks > 12 {
		return Config{}, fmt.Errorf("STAFFPLAN_HORIZON_WEEKS must be between 1 and 12")
	}
	if cfg.NormalsLookbackYear < 1 {
		return Config{}, fmt.Errorf("STAFFPLAN_NORMALS_LOOKBACK_YEARS must be at least 1")
	}
	return cfg, nil
}

// Defaults is what `staffplan setup` writes to a fresh .env.
func Defaults() map[string]string {
	d := Config{}
	_ = env.ParseWithOptions(&d, env.Options{Environment: map[string]string{}})
	return map[string]string{
		"STAFFPLAN_ADDR":                   d.Addr,
		"STAFFPLAN_DB_PATH":                d.DBPath,
		"STAFFPLAN_LOG_LEVEL":              d.LogLevel,
		"STAFFPLAN_LOG_FORMAT":             d.LogFormat,
		"STAFFPLAN_WEATHER_URL":            "",
		"STAFFPLAN_PTO_URL":                "",
		"STAFFPLAN_PROFILE_PATH":           "",
		"STAFFPLAN_REDIS_ADDR":             "",
		"STAFFPLAN_SYNC_SCHEDULE":          d.SyncSchedule,
		"STAFFPLAN_INCLUDE_DELIVERY":       strconv.FormatBool(d.IncludeDelivery),
		"STAFFPLAN_NORMALS_LOOKBACK_YEARS": strconv.Itoa(d.NormalsLookbackYear),
		"STAFFPLAN_HORIZON_WEEKS":          strconv.Itoa(d.HorizonWeeks),
		"STAFFPLAN_HTTP_TIMEOUT":           d.HTTPTimeout.String(),
	}
}
