// Package config loads runtime settings from an optional YAML file, a .env
// file and SENTINEL_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/potooio/sentinel/internal/notifier"
	"github.com/potooio/sentinel/internal/types"
)

// EnvPrefix prefixes every environment override, e.g. SENTINEL_STREAM_ADDRESS.
const EnvPrefix = "SENTINEL"

// Config is the full runtime configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Data      DataConfig      `mapstructure:"data"`
	Store     StoreConfig     `mapstructure:"store"`
	Detection DetectionConfig `mapstructure:"detection"`
	Stream    StreamConfig    `mapstructure:"stream"`
	API       APIConfig       `mapstructure:"api"`
	Notifier  NotifierConfig  `mapstructure:"notifier"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// DataConfig locates reference tables and output files.
type DataConfig struct {
	ProductsCSV  string `mapstructure:"products_csv"`
	CustomersCSV string `mapstructure:"customers_csv"`
	ReplayDir    string `mapstructure:"replay_dir"`
	EventsPath   string `mapstructure:"events_path"`
}

type StoreConfig struct {
	Window             time.Duration `mapstructure:"window"`
	InventoryRetention time.Duration `mapstructure:"inventory_retention"`
	MaxBucketSize      int           `mapstructure:"max_bucket_size"`
}

// DetectionConfig holds rule thresholds and scheduling.
type DetectionConfig struct {
	GlobalInterval        time.Duration `mapstructure:"global_interval"`
	EmitSuccessOperations bool          `mapstructure:"emit_success_operations"`

	CorrelationRadius       time.Duration `mapstructure:"correlation_radius"`
	WeightToleranceG        float64       `mapstructure:"weight_tolerance_g"`
	PriceRatio              float64       `mapstructure:"price_ratio"`
	LongQueueCustomers      int           `mapstructure:"long_queue_customers"`
	LongWaitSeconds         float64       `mapstructure:"long_wait_seconds"`
	SampleInterval          time.Duration `mapstructure:"sample_interval"`
	TrendSamples            int           `mapstructure:"trend_samples"`
	UnresponsiveAfter       time.Duration `mapstructure:"unresponsive_after"`
	InventoryVariancePct    float64       `mapstructure:"inventory_variance_pct"`
	MinInventoryForVariance int           `mapstructure:"min_inventory_for_variance"`
	BusyStationCustomers    int           `mapstructure:"busy_station_customers"`
}

// Thresholds converts the detection settings into rule thresholds.
func (d DetectionConfig) Thresholds() types.Thresholds {
	return types.Thresholds{
		CorrelationRadius:       d.CorrelationRadius,
		WeightToleranceG:        d.WeightToleranceG,
		PriceRatio:              d.PriceRatio,
		LongQueueCustomers:      d.LongQueueCustomers,
		LongWaitSeconds:         d.LongWaitSeconds,
		SampleInterval:          d.SampleInterval,
		TrendSamples:            d.TrendSamples,
		UnresponsiveAfter:       d.UnresponsiveAfter,
		InventoryVariancePct:    d.InventoryVariancePct,
		MinInventoryForVariance: d.MinInventoryForVariance,
		BusyStationCustomers:    d.BusyStationCustomers,
	}
}

type StreamConfig struct {
	Address              string        `mapstructure:"address"`
	ReconnectInterval    time.Duration `mapstructure:"reconnect_interval"`
	MaxReconnectInterval time.Duration `mapstructure:"max_reconnect_interval"`
	BufferSize           int           `mapstructure:"buffer_size"`
}

type APIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// NotifierConfig configures external fan-out. Every sender is off by default.
type NotifierConfig struct {
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute"`
	Webhook            WebhookConfig `mapstructure:"webhook"`
	Redis              RedisConfig   `mapstructure:"redis"`
	Archive            ArchiveConfig `mapstructure:"archive"`
}

type WebhookConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	URL         string        `mapstructure:"url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MinSeverity string        `mapstructure:"min_severity"`
	AuthToken   string        `mapstructure:"auth_token"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

type RedisConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	Addr               string `mapstructure:"addr"`
	Password           string `mapstructure:"password"`
	DB                 int    `mapstructure:"db"`
	Channel            string `mapstructure:"channel"`
	PerStationChannels bool   `mapstructure:"per_station_channels"`
	MinSeverity        string `mapstructure:"min_severity"`
}

type ArchiveConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Path        string `mapstructure:"path"`
	MinSeverity string `mapstructure:"min_severity"`
}

func setDefaults(v *viper.Viper) {
	th := types.DefaultThresholds()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("data.products_csv", "data/input/products_list.csv")
	v.SetDefault("data.customers_csv", "data/input/customer_data.csv")
	v.SetDefault("data.replay_dir", "data/input")
	v.SetDefault("data.events_path", "output/events.jsonl")

	v.SetDefault("store.window", 30*time.Second)
	v.SetDefault("store.inventory_retention", time.Hour)
	v.SetDefault("store.max_bucket_size", 4096)

	v.SetDefault("detection.global_interval", 60*time.Second)
	v.SetDefault("detection.emit_success_operations", true)
	v.SetDefault("detection.correlation_radius", th.CorrelationRadius)
	v.SetDefault("detection.weight_tolerance_g", th.WeightToleranceG)
	v.SetDefault("detection.price_ratio", th.PriceRatio)
	v.SetDefault("detection.long_queue_customers", th.LongQueueCustomers)
	v.SetDefault("detection.long_wait_seconds", th.LongWaitSeconds)
	v.SetDefault("detection.sample_interval", th.SampleInterval)
	v.SetDefault("detection.trend_samples", th.TrendSamples)
	v.SetDefault("detection.unresponsive_after", th.UnresponsiveAfter)
	v.SetDefault("detection.inventory_variance_pct", th.InventoryVariancePct)
	v.SetDefault("detection.min_inventory_for_variance", th.MinInventoryForVariance)
	v.SetDefault("detection.busy_station_customers", th.BusyStationCustomers)

	v.SetDefault("stream.address", "localhost:8765")
	v.SetDefault("stream.reconnect_interval", time.Second)
	v.SetDefault("stream.max_reconnect_interval", time.Minute)
	v.SetDefault("stream.buffer_size", 1000)

	v.SetDefault("api.enabled", true)
	v.SetDefault("api.addr", ":8080")

	v.SetDefault("notifier.rate_limit_per_minute", 100)
	v.SetDefault("notifier.webhook.enabled", false)
	v.SetDefault("notifier.webhook.url", "")
	v.SetDefault("notifier.webhook.timeout", 10*time.Second)
	v.SetDefault("notifier.webhook.min_severity", "HIGH")
	v.SetDefault("notifier.webhook.auth_token", "")
	v.SetDefault("notifier.webhook.max_attempts", 3)
	v.SetDefault("notifier.redis.enabled", false)
	v.SetDefault("notifier.redis.addr", "localhost:6379")
	v.SetDefault("notifier.redis.password", "")
	v.SetDefault("notifier.redis.db", 0)
	v.SetDefault("notifier.redis.channel", "sentinel:findings")
	v.SetDefault("notifier.redis.per_station_channels", false)
	v.SetDefault("notifier.redis.min_severity", "")
	v.SetDefault("notifier.archive.enabled", false)
	v.SetDefault("notifier.archive.path", "output/findings.db")
	v.SetDefault("notifier.archive.min_severity", "")
}

// Default returns the configuration with every default applied.
func Default() *Config {
	cfg, err := load(viper.New(), "")
	if err != nil {
		panic(fmt.Sprintf("config defaults do not decode: %v", err))
	}
	return cfg
}

// LoadDotEnv loads .env style files into the process environment without
// overriding variables that are already set. With no paths it loads ./.env
// and tolerates its absence; explicitly named files must exist.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(paths...); err != nil {
		return fmt.Errorf("loading env file: %w", err)
	}
	return nil
}

// Load reads the YAML file at path (optional) and applies environment
// overrides. Call LoadDotEnv first to pick up .env values.
func Load(path string) (*Config, error) {
	return load(viper.New(), path)
}

// LoadWith is Load on a caller-owned viper instance, so CLI flags bound to
// v take precedence over file and environment values.
func LoadWith(v *viper.Viper, path string) (*Config, error) {
	return load(v, path)
}

func load(v *viper.Viper, path string) (*Config, error) {
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config failed: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late or silently.
func (c *Config) Validate() error {
	var errs []error

	if c.Store.Window <= 0 {
		errs = append(errs, fmt.Errorf("store.window must be positive"))
	}
	if c.Store.InventoryRetention <= 0 {
		errs = append(errs, fmt.Errorf("store.inventory_retention must be positive"))
	}
	if c.Detection.GlobalInterval <= 0 {
		errs = append(errs, fmt.Errorf("detection.global_interval must be positive"))
	}
	if c.Detection.CorrelationRadius <= 0 {
		errs = append(errs, fmt.Errorf("detection.correlation_radius must be positive"))
	}
	if c.Detection.CorrelationRadius > c.Store.Window {
		errs = append(errs, fmt.Errorf("detection.correlation_radius (%s) exceeds store.window (%s)",
			c.Detection.CorrelationRadius, c.Store.Window))
	}
	if c.Detection.TrendSamples < 3 {
		errs = append(errs, fmt.Errorf("detection.trend_samples must be at least 3"))
	}
	if _, _, err := net.SplitHostPort(c.Stream.Address); err != nil {
		errs = append(errs, fmt.Errorf("stream.address: %w", err))
	}
	if c.API.Enabled && c.API.Addr == "" {
		errs = append(errs, fmt.Errorf("api.addr is required when the API is enabled"))
	}

	n := c.Notifier
	if n.Webhook.Enabled && n.Webhook.URL == "" {
		errs = append(errs, fmt.Errorf("notifier.webhook.url is required when the webhook is enabled"))
	}
	if n.Redis.Enabled && n.Redis.Addr == "" {
		errs = append(errs, fmt.Errorf("notifier.redis.addr is required when redis is enabled"))
	}
	if n.Archive.Enabled && n.Archive.Path == "" {
		errs = append(errs, fmt.Errorf("notifier.archive.path is required when the archive is enabled"))
	}
	for key, sev := range map[string]string{
		"notifier.webhook.min_severity": n.Webhook.MinSeverity,
		"notifier.redis.min_severity":   n.Redis.MinSeverity,
		"notifier.archive.min_severity": n.Archive.MinSeverity,
	} {
		if _, err := notifier.ParseSeverity(sev); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}

	return errors.Join(errs...)
}
