package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/lumastack/routelog/internal/day"
	"github.com/lumastack/routelog/internal/geo"
	"github.com/lumastack/routelog/internal/schedule"
	"github.com/lumastack/routelog/internal/wire"
)

// Config is the process configuration, read from the environment after
// an optional .env file is loaded.
type Config struct {
	APIURL       string
	APIKey       string
	DBPath       string
	Cutoff       string
	OfficePolicy day.OfficePolicy
	ORSKey       string
	OSRMURL      string
	NominatimURL string
	LogLevel     slog.Level
}

// LoadConfig reads configuration from the environment. A .env file in
// the working directory is loaded first when present; real environment
// variables win over file entries.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		APIURL:       os.Getenv("ROUTELOG_API_URL"),
		APIKey:       os.Getenv("ROUTELOG_API_KEY"),
		DBPath:       os.Getenv("ROUTELOG_DB"),
		Cutoff:       os.Getenv("ROUTELOG_CUTOFF"),
		ORSKey:       os.Getenv("ROUTELOG_ORS_KEY"),
		OSRMURL:      os.Getenv("ROUTELOG_OSRM_URL"),
		NominatimURL: os.Getenv("ROUTELOG_NOMINATIM_URL"),
	}

	if cfg.DBPath == "" {
		cfg.DBPath = defaultDBPath()
	}
	if cfg.Cutoff == "" {
		cfg.Cutoff = schedule.DefaultCutoff
	}
	if _, err := schedule.ParseTimeOfDay(cfg.Cutoff); err != nil {
		return Config{}, fmt.Errorf("ROUTELOG_CUTOFF: %w", err)
	}

	cfg.OfficePolicy = day.ParseOfficePolicy(os.Getenv("ROUTELOG_OFFICE_REFRESH"))

	cfg.LogLevel = parseLogLevel(os.Getenv("LOG_LEVEL"))
	return cfg, nil
}

// Wire returns the delivery configuration slice of the process config.
func (c Config) Wire() wire.Config {
	return wire.Config{APIURL: c.APIURL, APIKey: c.APIKey}
}

// Geo returns the geocoding/routing configuration slice.
func (c Config) Geo() geo.Config {
	return geo.Config{
		ORSKey:       c.ORSKey,
		OSRMURL:      c.OSRMURL,
		NominatimURL: c.NominatimURL,
	}
}

func defaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "routelog.db"
	}
	return filepath.Join(dir, "routelog", "routelog.db")
}

func parseLogLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}
