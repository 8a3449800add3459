package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults shared by DefaultConfig and Normalize.
const (
	DefaultPath            = "/etc/mtsched/config.yaml"
	DefaultListen          = "127.0.0.1:8080"
	DefaultPrimaryTimezone = "Asia/Tokyo"
	DefaultLanguage        = "ja"
	DefaultOrdinals        = "legacy"
	DefaultLogLevel        = "info"
	DefaultSessionSweep    = "*/10 * * * *"
	DefaultSessionIdleMin  = 12 * 60
	DefaultBusyRefresh     = "*/15 * * * *"
	DefaultBusyHorizonDays = 42
	DefaultBusyCacheDir    = "/var/lib/mtsched/ics-cache"
)

// ICSConfig describes a single ICS subscription whose events are shown as
// busy blocks behind the selection calendar.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label shown in the UI.
	Name string `yaml:"name" json:"name"`
}

// BusyConfig controls the busy overlay.
type BusyConfig struct {
	// Refresh is a cron schedule for re-fetching feeds.
	Refresh string `yaml:"refresh" json:"refresh"`
	// HorizonDays caps how far ahead /api/busy will expand recurrences.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`
	// CacheDir stores fetched bodies and ETag metadata.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`
	// ICS is the list of subscribed sources. Empty disables the overlay.
	ICS []ICSConfig `yaml:"ics" json:"ics"`
}

// CalendarConfig is handed to the calendar widget as-is. The flags are
// pointers so an explicit false in the file is kept by Normalize.
type CalendarConfig struct {
	InitialView  string `yaml:"initial_view" json:"initialView"`
	Selectable   *bool  `yaml:"selectable" json:"selectable"`
	SelectMirror *bool  `yaml:"select_mirror" json:"selectMirror"`
	UnselectAuto *bool  `yaml:"unselect_auto" json:"unselectAuto"`
	SlotMinTime  string `yaml:"slot_min_time" json:"slotMinTime"`
	SlotMaxTime  string `yaml:"slot_max_time" json:"slotMaxTime"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// PrimaryTimezone is the fixed reference zone every range is shown in.
	PrimaryTimezone string `yaml:"primary_timezone" json:"primary_timezone"`

	// SecondaryTimezone is the initial secondary zone of new sessions.
	// Empty means the first entry of the zone catalog.
	SecondaryTimezone string `yaml:"secondary_timezone" json:"secondary_timezone"`

	// UseSecondary is the initial state of the "Use Secondary Time Zone"
	// checkbox. Pointer so that an explicit false survives Normalize.
	UseSecondary *bool `yaml:"use_secondary" json:"use_secondary"`

	// Language of the primary-only output line ("ja" or "en").
	Language string `yaml:"language" json:"language"`

	// Ordinals selects the day suffix rule:
	//   - "legacy" (default): only 1st/2nd/3rd are special
	//   - "english": correct English ordinals
	Ordinals string `yaml:"ordinals" json:"ordinals"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// SessionSweep is a cron schedule for dropping idle sessions.
	SessionSweep string `yaml:"session_sweep" json:"session_sweep"`

	// SessionIdleMinutes is how long a session may be idle before it is swept.
	SessionIdleMinutes int `yaml:"session_idle_minutes" json:"session_idle_minutes"`

	// CORSOrigins lists allowed cross-origin callers of the API.
	CORSOrigins []string `yaml:"cors_origins" json:"cors_origins"`

	Calendar CalendarConfig `yaml:"calendar" json:"calendar"`

	Busy BusyConfig `yaml:"busy" json:"busy"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultCalendar is the widget setup: week view, 05:00-24:00.
func DefaultCalendar() CalendarConfig {
	return CalendarConfig{
		InitialView:  "timeGridWeek",
		Selectable:   boolPtr(true),
		SelectMirror: boolPtr(true),
		UnselectAuto: boolPtr(false),
		SlotMinTime:  "05:00:00",
		SlotMaxTime:  "24:00:00",
	}
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	useSecondary := true
	return &Config{
		Listen:             DefaultListen,
		PrimaryTimezone:    DefaultPrimaryTimezone,
		SecondaryTimezone:  "",
		UseSecondary:       &useSecondary,
		Language:           DefaultLanguage,
		Ordinals:           DefaultOrdinals,
		LogLevel:           DefaultLogLevel,
		SessionSweep:       DefaultSessionSweep,
		SessionIdleMinutes: DefaultSessionIdleMin,
		CORSOrigins:        []string{},
		Calendar:           DefaultCalendar(),
		Busy: BusyConfig{
			Refresh:     DefaultBusyRefresh,
			HorizonDays: DefaultBusyHorizonDays,
			CacheDir:    DefaultBusyCacheDir,
			ICS:         []ICSConfig{},
		},
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.PrimaryTimezone == "" {
		c.PrimaryTimezone = DefaultPrimaryTimezone
	}
	if c.UseSecondary == nil {
		v := true
		c.UseSecondary = &v
	}
	switch c.Language {
	case "ja", "en":
	default:
		c.Language = DefaultLanguage
	}
	switch c.Ordinals {
	case "legacy", "english":
	default:
		c.Ordinals = DefaultOrdinals
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.SessionSweep == "" {
		c.SessionSweep = DefaultSessionSweep
	}
	if c.SessionIdleMinutes <= 0 {
		c.SessionIdleMinutes = DefaultSessionIdleMin
	}
	if c.CORSOrigins == nil {
		c.CORSOrigins = []string{}
	}

	def := DefaultCalendar()
	if c.Calendar.InitialView == "" {
		c.Calendar.InitialView = def.InitialView
	}
	if c.Calendar.Selectable == nil {
		c.Calendar.Selectable = def.Selectable
	}
	if c.Calendar.SelectMirror == nil {
		c.Calendar.SelectMirror = def.SelectMirror
	}
	if c.Calendar.UnselectAuto == nil {
		c.Calendar.UnselectAuto = def.UnselectAuto
	}
	if c.Calendar.SlotMinTime == "" {
		c.Calendar.SlotMinTime = def.SlotMinTime
	}
	if c.Calendar.SlotMaxTime == "" {
		c.Calendar.SlotMaxTime = def.SlotMaxTime
	}

	if c.Busy.Refresh == "" {
		c.Busy.Refresh = DefaultBusyRefresh
	}
	// The month view asks for six weeks at once.
	if c.Busy.HorizonDays < DefaultBusyHorizonDays {
		c.Busy.HorizonDays = DefaultBusyHorizonDays
	}
	if c.Busy.CacheDir == "" {
		c.Busy.CacheDir = DefaultBusyCacheDir
	}
	if c.Busy.ICS == nil {
		c.Busy.ICS = []ICSConfig{}
	}
}

// SecondaryEnabled reports the default state of the include-secondary flag.
func (c *Config) SecondaryEnabled() bool {
	return c.UseSecondary == nil || *c.UseSecondary
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Env variable names that override file values.
const (
	EnvListen            = "MTSCHED_LISTEN"
	EnvPrimaryTimezone   = "MTSCHED_PRIMARY_TIMEZONE"
	EnvSecondaryTimezone = "MTSCHED_SECONDARY_TIMEZONE"
	EnvLanguage          = "MTSCHED_LANGUAGE"
	EnvLogLevel          = "MTSCHED_LOG_LEVEL"
	EnvCORSOrigins       = "MTSCHED_CORS_ORIGINS"
)

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set. Missing
// files are not an error.
func LoadDotEnv(files ...string) error {
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// ApplyEnv overrides config values from MTSCHED_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvListen); v != "" {
		c.Listen = v
	}
	if v := os.Getenv(EnvPrimaryTimezone); v != "" {
		c.PrimaryTimezone = v
	}
	if v := os.Getenv(EnvSecondaryTimezone); v != "" {
		c.SecondaryTimezone = v
	}
	if v := os.Getenv(EnvLanguage); v != "" {
		c.Language = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvCORSOrigins); v != "" {
		c.CORSOrigins = splitCSV(v)
	}
	c.Normalize()
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".mtsched-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func boolPtr(b bool) *bool { return &b }
