package internal

import (
	"fmt"
	"log/slog"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/robfig/cron/v3"

	"github.com/starford/typikon/internal/calendar"
	"github.com/starford/typikon/internal/scripture"
	"github.com/starford/typikon/internal/titles"
)

var (
	httpURLRe = regexp.MustCompile(`^https?://\S+$`)
	feedURLRe = regexp.MustCompile(`^(?:https?|webcal)://\S+$`)
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Calendar providers.
const (
	ProviderGoogle = "google"
	ProviderICS    = "ics"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Dataset   DatasetConfig     `yaml:"dataset"`
	Calendar  CalendarConfig    `yaml:"calendar"`
	Cache     CacheConfig       `yaml:"cache"`
	Prefetch  PrefetchConfig    `yaml:"prefetch"`
	Scripture ScriptureConfig   `yaml:"scripture"`
	Reconcile ReconcileConfig   `yaml:"reconcile"`
	Auth      AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{
		&c.App, &c.Dataset, &c.Calendar, &c.Cache, &c.Prefetch, &c.Scripture, &c.Reconcile, &c.Auth,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// DatasetConfig points at the curated readings JSON file.
type DatasetConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// Validate validates the dataset configuration.
func (c *DatasetConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// CalendarConfig selects and configures the remote event source.
type CalendarConfig struct {
	Provider string        `yaml:"provider"`
	Timezone string        `yaml:"timezone"`
	Timeout  time.Duration `yaml:"timeout"`
	Google   GoogleConfig  `yaml:"google"`
	ICS      ICSConfig     `yaml:"ics"`
}

// GoogleConfig holds Google Calendar API settings.
type GoogleConfig struct {
	CalendarID string `yaml:"calendar_id"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
}

// ICSConfig holds the iCalendar feed URL (http, https or webcal).
type ICSConfig struct {
	URL string `yaml:"url"`
}

// Location loads the configured timezone.
func (c *CalendarConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Validate validates the calendar configuration.
func (c *CalendarConfig) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.Required, validation.In(ProviderGoogle, ProviderICS)),
		validation.Field(&c.Timezone, validation.Required, validation.By(func(any) error {
			_, err := c.Location()
			return err
		})),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
	if err != nil {
		return fmt.Errorf("calendar: %w", err)
	}
	switch c.Provider {
	case ProviderGoogle:
		err = validation.ValidateStruct(&c.Google,
			validation.Field(&c.Google.CalendarID, validation.Required),
			validation.Field(&c.Google.APIKey, validation.Required.Error(calendar.ErrMissingAPIKey.Error())),
			validation.Field(&c.Google.BaseURL, validation.Match(httpURLRe)),
		)
		if err != nil {
			return fmt.Errorf("calendar.google: %w", err)
		}
	case ProviderICS:
		err = validation.ValidateStruct(&c.ICS,
			validation.Field(&c.ICS.URL, validation.Required, validation.Match(feedURLRe)),
		)
		if err != nil {
			return fmt.Errorf("calendar.ics: %w", err)
		}
	}
	return nil
}

// CacheConfig holds the SQLite event cache settings. A zero TTL keeps
// entries until they are refreshed. KeepDays bounds how far back cached days
// survive the scheduled prefetch run; zero keeps them all.
type CacheConfig struct {
	Path     string        `yaml:"path"`
	TTL      time.Duration `yaml:"ttl"`
	KeepDays int           `yaml:"keep_days"`
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.TTL, validation.Min(time.Duration(0))),
		validation.Field(&c.KeepDays, validation.Min(0)),
	)
}

// PrefetchConfig controls the scheduled cache warm-up.
type PrefetchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Schedule  string `yaml:"schedule"`
	DaysAhead int    `yaml:"days_ahead"`
}

// Validate validates the prefetch configuration.
func (c *PrefetchConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Schedule, validation.Required, validation.By(func(any) error {
			_, err := cron.ParseStandard(c.Schedule)
			return err
		})),
		validation.Field(&c.DaysAhead, validation.Min(0), validation.Max(366)),
	)
}

// ScriptureConfig configures the passage text client. An empty base URL
// disables scripture lookups.
type ScriptureConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Translation string        `yaml:"translation"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Enabled reports whether a passage client should be created.
func (c *ScriptureConfig) Enabled() bool {
	return c.BaseURL != ""
}

// Validate validates the scripture configuration.
func (c *ScriptureConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Match(httpURLRe)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// ReconcileConfig tunes duplicate suppression.
type ReconcileConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

// Validate validates the reconcile configuration.
func (c *ReconcileConfig) Validate() error {
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("reconcile: similarity_threshold must be in (0, 1], got %v", c.SimilarityThreshold)
	}
	return nil
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
// Provider credentials have no default.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Dataset: DatasetConfig{
			Path:  "./data/extracted_readings.json",
			Watch: true,
		},
		Calendar: CalendarConfig{
			Provider: ProviderGoogle,
			Timezone: "America/New_York",
			Timeout:  15 * time.Second,
			Google: GoogleConfig{
				BaseURL: calendar.DefaultGoogleBaseURL,
			},
		},
		Cache: CacheConfig{
			Path:     "./typikon.db",
			KeepDays: 60,
		},
		Prefetch: PrefetchConfig{
			Enabled:   true,
			Schedule:  "0 3 * * *",
			DaysAhead: 14,
		},
		Scripture: ScriptureConfig{
			BaseURL:     scripture.DefaultBaseURL,
			Translation: scripture.DefaultTranslation,
			Timeout:     10 * time.Second,
		},
		Reconcile: ReconcileConfig{
			SimilarityThreshold: titles.DuplicateThreshold,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
