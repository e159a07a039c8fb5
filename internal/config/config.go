package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

type Config struct {
	ListenAddr   string
	DatabaseURL  string
	OpsTokenHash string

	// account registry
	Stage          string
	RegistryPrefix string
	RegistryDir    string
	RegistryKey    []byte

	// workflow
	Location               *time.Location
	HolidaysFile           string
	WaitMinutesMin         int
	WaitMinutesMax         int
	MeetingDurationMinutes int
	TimeoutMargin          time.Duration
	ZoomBaseURL            string

	// trigger
	TriggerCron     string
	TriggerLocation *time.Location

	// scheduler
	PollInterval time.Duration
	LeaseTTL     time.Duration

	LogLevel  string
	LogFormat string
}

// FromEnv reads the process environment, after loading .env when one exists.
// All invalid or missing values are reported together.
func FromEnv() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		ListenAddr:   getenv("LISTEN_ADDR", ":8080"),
		DatabaseURL:  strings.TrimSpace(os.Getenv("DATABASE_URL")),
		OpsTokenHash: strings.TrimSpace(os.Getenv("OPS_TOKEN_HASH")),
		HolidaysFile: strings.TrimSpace(os.Getenv("HOLIDAYS_FILE")),
		ZoomBaseURL:  strings.TrimRight(getenv("ZOOM_API_BASE_URL", "https://api.zoom.us/v2"), "/"),
		TriggerCron:  getenv("TRIGGER_CRON", "0 3,8 * * *"),
		LogLevel:     getenv("LOG_LEVEL", "info"),
		LogFormat:    getenv("LOG_FORMAT", "json"),
	}

	var missing, invalid []string

	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	readRegistry(&cfg, &missing, &invalid)

	if loc, err := time.LoadLocation(getenv("TZ_NAME", "Asia/Tokyo")); err != nil {
		invalid = append(invalid, "TZ_NAME")
	} else {
		cfg.Location = loc
	}
	if loc, err := time.LoadLocation(getenv("TRIGGER_TZ", "UTC")); err != nil {
		invalid = append(invalid, "TRIGGER_TZ")
	} else {
		cfg.TriggerLocation = loc
	}

	intVar := func(key, def string, min int, dst *int) {
		n, err := strconv.Atoi(getenv(key, def))
		if err != nil || n < min {
			invalid = append(invalid, key)
			return
		}
		*dst = n
	}
	intVar("WAIT_MINUTES_MIN", "10", 0, &cfg.WaitMinutesMin)
	intVar("WAIT_MINUTES_MAX", "50", 0, &cfg.WaitMinutesMax)
	intVar("MEETING_DURATION_MINUTES", "10", 1, &cfg.MeetingDurationMinutes)

	var pollSec, leaseSec int
	intVar("SCHED_POLL_SECONDS", "2", 1, &pollSec)
	intVar("SCHED_LEASE_SECONDS", "60", 1, &leaseSec)
	cfg.PollInterval = time.Duration(pollSec) * time.Second
	cfg.LeaseTTL = time.Duration(leaseSec) * time.Second

	if d, err := time.ParseDuration(getenv("EXECUTION_TIMEOUT_MARGIN", "5m")); err != nil || d < 0 {
		invalid = append(invalid, "EXECUTION_TIMEOUT_MARGIN")
	} else {
		cfg.TimeoutMargin = d
	}

	if cfg.WaitMinutesMin > cfg.WaitMinutesMax {
		invalid = append(invalid, "WAIT_MINUTES_MIN > WAIT_MINUTES_MAX")
	}

	if err := report(missing, invalid); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// RegistryFromEnv reads only the account registry settings. The account
// commands use it so they work without a database.
func RegistryFromEnv() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	var missing, invalid []string
	readRegistry(&cfg, &missing, &invalid)
	if err := report(missing, invalid); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readRegistry(cfg *Config, missing, invalid *[]string) {
	cfg.Stage = getenv("STAGE", "dev")
	cfg.RegistryDir = getenv("REGISTRY_DIR", "./data/registry")
	cfg.RegistryPrefix = getenv("ACCOUNT_REGISTRY_PREFIX", fmt.Sprintf("/casualchat/%s/account-manager/accounts/", cfg.Stage))
	if !strings.HasSuffix(cfg.RegistryPrefix, "/") {
		cfg.RegistryPrefix += "/"
	}

	if v := strings.TrimSpace(os.Getenv("REGISTRY_KEY")); v == "" {
		*missing = append(*missing, "REGISTRY_KEY")
	} else if key, err := decodeB64(v); err != nil || len(key) < 32 {
		*invalid = append(*invalid, "REGISTRY_KEY")
	} else {
		cfg.RegistryKey = key
	}
}

func report(missing, invalid []string) error {
	if len(missing) > 0 {
		return errors.Errorf("required environment variables are not set: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return errors.Errorf("invalid environment values: %s", strings.Join(invalid, ", "))
	}
	return nil
}

// ExecutionTimeout is the hard ceiling for one execution: the longest random
// wait, the meeting itself, and the configured margin for the teardown calls.
func (c Config) ExecutionTimeout(durationMinutes int) time.Duration {
	if durationMinutes <= 0 {
		durationMinutes = c.MeetingDurationMinutes
	}
	return time.Duration(c.WaitMinutesMax+durationMinutes)*time.Minute + c.TimeoutMargin
}

func getenv(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}

func decodeB64(s string) ([]byte, error) {
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}
