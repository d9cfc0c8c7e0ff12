package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"optionflow/models"
)

// Config is the root configuration for the optionflow service.
type Config struct {
	Optionflow   AppConfig          `yaml:"optionflow"`
	Symbols      []string           `yaml:"symbols"`
	Channels     ChannelsConfig     `yaml:"channels"`
	Providers    []ProviderConfig   `yaml:"providers"`
	Acquirer     AcquirerConfig     `yaml:"acquirer"`
	Tracker      TrackerConfig      `yaml:"tracker"`
	Session      SessionConfig      `yaml:"session"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Thresholds   ThresholdsConfig   `yaml:"thresholds"`
	Storage      StorageConfig      `yaml:"storage"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	Logging      LoggingConfig      `yaml:"logging"`
}

type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type ChannelsConfig struct {
	SnapshotBuffer int `yaml:"snapshot_buffer"`
	SignalBuffer   int `yaml:"signal_buffer"`
}

// ProviderConfig declares one upstream gateway. Priority 1 is tried first;
// the order is static and never adjusted at runtime.
type ProviderConfig struct {
	Name        string                     `yaml:"name"`
	Kind        string                     `yaml:"kind"`
	Priority    int                        `yaml:"priority"`
	Enabled     bool                       `yaml:"enabled"`
	BaseURL     string                     `yaml:"base_url"`
	MinInterval time.Duration              `yaml:"min_interval"`
	Credentials models.ProviderCredentials `yaml:"credentials"`
}

type AcquirerConfig struct {
	CallTimeout time.Duration `yaml:"call_timeout"`
}

type TrackerConfig struct {
	SignificanceFloor int64 `yaml:"significance_floor"`
	LargeDeltaFloor   int64 `yaml:"large_delta_floor"`
}

// SessionConfig describes the trading session calendar in local time.
type SessionConfig struct {
	Timezone  string   `yaml:"timezone"`
	Open      string   `yaml:"open"`
	Close     string   `yaml:"close"`
	EODCutoff string   `yaml:"eod_cutoff"`
	Weekdays  []string `yaml:"weekdays"`
}

type OrchestratorConfig struct {
	PollInterval     time.Duration `yaml:"poll_interval"`
	MaxWorkers       int           `yaml:"max_workers"`
	ReconcileWeekday string        `yaml:"reconcile_weekday"`
	ReconcileTime    string        `yaml:"reconcile_time"`
}

// ThresholdsConfig collects every analyzer tunable. Zero values fall back to
// the engine defaults.
type ThresholdsConfig struct {
	OIBuildupFloor       float64       `yaml:"oi_buildup_floor"`
	ShortCoverFloor      float64       `yaml:"short_cover_floor"`
	PremiumSurge         float64       `yaml:"premium_surge"`
	VolumeFloor          float64       `yaml:"volume_floor"`
	GammaProximityPct    float64       `yaml:"gamma_proximity_pct"`
	GammaOIFloor         float64       `yaml:"gamma_oi_floor"`
	GammaOIScale         float64       `yaml:"gamma_oi_scale"`
	SpikeAvgChange       float64       `yaml:"spike_avg_change"`
	UnusualVolumeOIRatio float64       `yaml:"unusual_volume_oi_ratio"`
	SRProximityPct       float64       `yaml:"sr_proximity_pct"`
	SROIFloor            float64       `yaml:"sr_oi_floor"`
	MomentumPricePct     float64       `yaml:"momentum_price_pct"`
	MaxPainGapPct        float64       `yaml:"max_pain_gap_pct"`
	SignalValidity       time.Duration `yaml:"signal_validity"`
}

type StorageConfig struct {
	Postgres PostgresConfig `yaml:"postgres"`
	S3       S3Config       `yaml:"s3"`
}

type PostgresConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	LocalDir        string `yaml:"local_dir"`
}

type MetricsConfig struct {
	CloudWatch bool   `yaml:"cloudwatch"`
	Namespace  string `yaml:"namespace"`
	Region     string `yaml:"region"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv substitutes ${VAR} references with environment values so secrets
// never live in the YAML file itself.
func expandEnv(raw []byte) []byte {
	return envPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		name := envPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// LoadConfig reads, expands and validates the configuration file at path.
func LoadConfig(path string) (*Config, error) {
	resolved := resolveEnvSpecificPath(path, defaultConfigPath, configEnvPaths)

	raw, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", resolved, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(expandEnv(raw), cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", resolved, err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Channels.SnapshotBuffer <= 0 {
		c.Channels.SnapshotBuffer = 100
	}
	if c.Channels.SignalBuffer <= 0 {
		c.Channels.SignalBuffer = 100
	}
	if c.Acquirer.CallTimeout <= 0 {
		c.Acquirer.CallTimeout = 10 * time.Second
	}
	if c.Tracker.LargeDeltaFloor <= 0 {
		c.Tracker.LargeDeltaFloor = 50000
	}
	if c.Orchestrator.PollInterval <= 0 {
		c.Orchestrator.PollInterval = 3 * time.Minute
	}
	if c.Orchestrator.MaxWorkers <= 0 {
		c.Orchestrator.MaxWorkers = 4
	}
	if c.Orchestrator.ReconcileWeekday == "" {
		c.Orchestrator.ReconcileWeekday = "Sunday"
	}
	if c.Orchestrator.ReconcileTime == "" {
		c.Orchestrator.ReconcileTime = "03:00"
	}
	if c.Session.Timezone == "" {
		c.Session.Timezone = "Asia/Kolkata"
	}
	if c.Session.Open == "" {
		c.Session.Open = "09:15"
	}
	if c.Session.Close == "" {
		c.Session.Close = "15:30"
	}
	if c.Session.EODCutoff == "" {
		c.Session.EODCutoff = "15:35"
	}
	if len(c.Session.Weekdays) == 0 {
		c.Session.Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}
	}
	for i := range c.Providers {
		if c.Providers[i].MinInterval <= 0 {
			c.Providers[i].MinInterval = 2 * time.Second
		}
	}
}

func (c *Config) validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("at least one symbol is required")
	}
	if len(c.Providers) == 0 {
		return fmt.Errorf("at least one provider is required")
	}

	seen := map[string]bool{}
	prio := map[int]string{}
	for _, p := range c.Providers {
		name := strings.ToLower(p.Name)
		if name == "" {
			return fmt.Errorf("provider with empty name")
		}
		if seen[name] {
			return fmt.Errorf("duplicate provider '%s'", p.Name)
		}
		seen[name] = true
		if p.Priority <= 0 {
			return fmt.Errorf("provider '%s' must have a positive priority", p.Name)
		}
		if other, dup := prio[p.Priority]; dup {
			return fmt.Errorf("providers '%s' and '%s' share priority %d", other, p.Name, p.Priority)
		}
		prio[p.Priority] = p.Name
	}

	if _, err := time.LoadLocation(c.Session.Timezone); err != nil {
		return fmt.Errorf("invalid session timezone '%s': %w", c.Session.Timezone, err)
	}
	for _, hm := range []string{c.Session.Open, c.Session.Close, c.Session.EODCutoff, c.Orchestrator.ReconcileTime} {
		if _, err := time.Parse("15:04", hm); err != nil {
			return fmt.Errorf("invalid clock time '%s': %w", hm, err)
		}
	}

	if c.Storage.Postgres.Enabled && c.Storage.Postgres.DSN == "" {
		return fmt.Errorf("storage.postgres.dsn is required when postgres is enabled")
	}
	if c.Storage.S3.Enabled {
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when S3 is enabled")
		}
		if c.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when S3 is enabled")
		}
		if !isValidS3Bucket(c.Storage.S3.Bucket) {
			return fmt.Errorf("storage.s3.bucket '%s' is invalid", c.Storage.S3.Bucket)
		}
	}

	return nil
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
