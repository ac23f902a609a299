// Package config holds the worker configuration, built once at startup and
// passed by reference into each component.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const configPathEnv = "ROUTEMAPS_CONFIG"

// Config is the full worker configuration. Values come from the optional
// YAML file named by ROUTEMAPS_CONFIG, overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	Map       MapConfig       `yaml:"map"`
	Report    ReportConfig    `yaml:"report"`
	Publisher PublisherConfig `yaml:"publisher"`
	PubSub    PubSubConfig    `yaml:"pubsub"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// SiteConfig selects which operating site and day a batch covers.
type SiteConfig struct {
	// ID is the operating site the report covers.
	ID int `yaml:"id" validate:"required,gt=0"`

	// DayOffset is how many days back from today the report day lies.
	DayOffset int `yaml:"dayOffset" validate:"gte=0"`
}

// DatabaseConfig describes the read-only Postgres connection.
type DatabaseConfig struct {
	Host     string `yaml:"host" validate:"required"`
	Port     int    `yaml:"port" validate:"required"`
	User     string `yaml:"user" validate:"required"`
	Password string `yaml:"password"`
	Name     string `yaml:"name" validate:"required"`
	SSLMode  string `yaml:"sslMode"`
	MaxConns int    `yaml:"maxConns" validate:"gte=1"`
}

// DSN returns the pgx connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// MapConfig controls map rendering.
type MapConfig struct {
	// Depot is plotted on every route map.
	DepotLat float64 `yaml:"depotLat"`
	DepotLon float64 `yaml:"depotLon"`

	// Fallback center/zoom used when a route has nothing to fit a viewport to.
	FallbackLat  float64 `yaml:"fallbackLat"`
	FallbackLon  float64 `yaml:"fallbackLon"`
	FallbackZoom int     `yaml:"fallbackZoom" validate:"gte=1,lte=19"`

	// ArrowEvery places a directional indicator on every Nth road segment.
	ArrowEvery int `yaml:"arrowEvery" validate:"gte=1"`

	// TrackSampleMeters thins the plotted telematics track to roughly one
	// point per this many meters. Zero disables thinning.
	TrackSampleMeters float64 `yaml:"trackSampleMeters" validate:"gte=0"`
}

// ReportConfig controls capture and document assembly.
type ReportConfig struct {
	// StagingDir holds map HTML, screenshots and the finished PDF.
	StagingDir string `yaml:"stagingDir" validate:"required"`

	// SettleDelay is the bounded wait between loading a map in the capture
	// engine and taking the screenshot, so tiles and markers finish drawing.
	SettleDelay time.Duration `yaml:"settleDelay" validate:"gt=0"`
}

// PublisherConfig controls the optional upload of the finished PDF.
type PublisherConfig struct {
	// Endpoint is the blob-gateway base URL the PDF is PUT to.
	// Empty disables publishing; the document still exists locally.
	Endpoint string `yaml:"endpoint"`
}

// PubSubConfig controls the optional Pub/Sub trigger. Both fields empty
// means the worker runs once and exits.
type PubSubConfig struct {
	ProjectID    string `yaml:"projectId"`
	Subscription string `yaml:"subscription"`
}

// TelemetryConfig controls OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	OTLPEndpoint string `yaml:"otlpEndpoint"`
	Environment  string `yaml:"environment"`
}

// ReportDay resolves the day a batch covers, relative to now.
func (c Config) ReportDay(now time.Time) time.Time {
	day := now.AddDate(0, 0, -c.Site.DayOffset)
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
}

// Load builds the configuration from defaults, the optional YAML file and
// environment overrides, then validates it.
func Load() (Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func defaultConfig() Config {
	return Config{
		Site: SiteConfig{
			ID:        10,
			DayOffset: 1,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "routemaps",
			Name:     "routemaps",
			SSLMode:  "disable",
			MaxConns: 4,
		},
		Map: MapConfig{
			DepotLat:          51.463121, // Dartford depot
			DepotLon:          0.246687,
			FallbackLat:       51.5, // central London
			FallbackLon:       -0.1,
			FallbackZoom:      12,
			ArrowEvery:        20,
			TrackSampleMeters: 50,
		},
		Report: ReportConfig{
			StagingDir:  os.TempDir(),
			SettleDelay: 2 * time.Second,
		},
	}
}

func (c *Config) applyEnvOverrides() {
	setInt(&c.Site.ID, "SITE_ID")
	setInt(&c.Site.DayOffset, "REPORT_DAY_OFFSET")

	setString(&c.Database.Host, "DB_HOST")
	setInt(&c.Database.Port, "DB_PORT")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.Name, "DB_NAME")
	setString(&c.Database.SSLMode, "DB_SSL_MODE")
	setInt(&c.Database.MaxConns, "DB_MAX_CONNS")

	setFloat(&c.Map.DepotLat, "DEPOT_LAT")
	setFloat(&c.Map.DepotLon, "DEPOT_LON")
	setInt(&c.Map.ArrowEvery, "MAP_ARROW_EVERY")

	setString(&c.Report.StagingDir, "STAGING_DIR")
	setDuration(&c.Report.SettleDelay, "CAPTURE_SETTLE_DELAY")

	setString(&c.Publisher.Endpoint, "PUBLISH_ENDPOINT")

	setString(&c.PubSub.ProjectID, "PUBSUB_PROJECT_ID")
	setString(&c.PubSub.Subscription, "PUBSUB_SUBSCRIPTION")

	if v := os.Getenv("OTEL_ENABLED"); v != "" {
		c.Telemetry.Enabled = v == "true"
	}
	setString(&c.Telemetry.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&c.Telemetry.Environment, "APP_ENV")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
