// Package config loads scraper settings from a YAML file, SCRAPER_* environment
// variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const DateLayout = "2006-01-02"

// Configuration validation errors.
var (
	ErrUnknownProfile       = errors.New("unknown site profile")
	ErrInvalidConcurrency   = errors.New("concurrency must be at least 1")
	ErrInvalidMaxAttempts   = errors.New("retry.max_attempts must be at least 1")
	ErrInvalidMultiplier    = errors.New("retry.multiplier must be >= 1.0")
	ErrInvalidDelay         = errors.New("retry delays must be non-negative")
	ErrInvalidTimeout       = errors.New("request_timeout must be positive")
	ErrInvalidBatchSize     = errors.New("batch.size must be non-negative")
	ErrInvalidDateRange     = errors.New("from must not be after to")
	ErrMissingOutputDir     = errors.New("output.dir is required")
	ErrUnknownSink          = errors.New("unknown sink")
	ErrNoSinks              = errors.New("output.sinks needs at least one sink")
	ErrSinkNotConfigured    = errors.New("sink is missing its connection settings")
	ErrInvalidLogLevel      = errors.New("log.level must be one of: debug, info, warn, error")
	ErrMissingListingURL    = errors.New("profile listing_url is required")
	ErrMissingListingLink   = errors.New("profile listing_link is required")
	ErrNothingToExtractWith = errors.New("profile needs ld+json, a title/body selector or readability fallback")
)

type Config struct {
	Profile  string             `mapstructure:"profile"`
	Profiles map[string]Profile `mapstructure:"profiles"`

	From string `mapstructure:"from"`
	To   string `mapstructure:"to"`

	Concurrency        int           `mapstructure:"concurrency"`
	ListingConcurrency int           `mapstructure:"listing_concurrency"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	RequestsPerSecond  float64       `mapstructure:"requests_per_second"`
	RandomDelay        time.Duration `mapstructure:"random_delay"`
	UserAgent          string        `mapstructure:"user_agent"`

	MaxListingPages     int  `mapstructure:"max_listing_pages"`
	MaxArticlePages     int  `mapstructure:"max_article_pages"`
	ValidateItems       bool `mapstructure:"validate"`
	ReadabilityFallback bool `mapstructure:"readability_fallback"`
	RespectRobots       bool `mapstructure:"respect_robots"`
	SkipRecorded        bool `mapstructure:"skip_recorded"`

	Retry     RetryPolicy     `mapstructure:"retry"`
	Batch     BatchConfig     `mapstructure:"batch"`
	Output    OutputConfig    `mapstructure:"output"`
	Seeds     SeedConfig      `mapstructure:"seeds"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Cassandra CassandraConfig `mapstructure:"cassandra"`
	Log       LogConfig       `mapstructure:"log"`

	MetricsAddr string `mapstructure:"metrics_addr"`
}

// RetryPolicy is a bounded exponential back-off.
type RetryPolicy struct {
	MaxAttempts  int           `mapstructure:"max_attempts"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
	Multiplier   float64       `mapstructure:"multiplier"`
}

type BatchConfig struct {
	Size  int           `mapstructure:"size"`
	Pause time.Duration `mapstructure:"pause"`
	Start int           `mapstructure:"start"`
}

type OutputConfig struct {
	Dir   string   `mapstructure:"dir"`
	Label string   `mapstructure:"label"`
	Sinks []string `mapstructure:"sinks"`
}

type SeedConfig struct {
	File   string `mapstructure:"file"`
	Column string `mapstructure:"column"`
}

type RedisConfig struct {
	Address string `mapstructure:"address"`
}

type KafkaConfig struct {
	Brokers    []string `mapstructure:"brokers"`
	ItemsTopic string   `mapstructure:"items_topic"`
	LinksTopic string   `mapstructure:"links_topic"`
}

type CassandraConfig struct {
	Hosts    []string `mapstructure:"hosts"`
	Keyspace string   `mapstructure:"keyspace"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// New returns a viper instance with defaults and SCRAPER_* env binding.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("SCRAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("profile", "tempo")
	v.SetDefault("from", "")
	v.SetDefault("to", "")
	v.SetDefault("concurrency", 7)
	v.SetDefault("listing_concurrency", 2)
	v.SetDefault("request_timeout", 60*time.Second)
	v.SetDefault("requests_per_second", 0)
	v.SetDefault("random_delay", 50*time.Millisecond)
	v.SetDefault("user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	v.SetDefault("max_listing_pages", 200)
	v.SetDefault("max_article_pages", 10)
	v.SetDefault("validate", true)
	v.SetDefault("readability_fallback", true)
	v.SetDefault("respect_robots", false)
	v.SetDefault("skip_recorded", false)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_delay", 2*time.Second)
	v.SetDefault("retry.max_delay", 30*time.Second)
	v.SetDefault("retry.multiplier", 2.0)

	v.SetDefault("batch.size", 5000)
	v.SetDefault("batch.pause", 20*time.Second)
	v.SetDefault("batch.start", 1)

	v.SetDefault("output.dir", "scrapping_result")
	v.SetDefault("output.label", "")
	v.SetDefault("output.sinks", []string{"csv"})
	v.SetDefault("seeds.file", "")
	v.SetDefault("seeds.column", "url")

	v.SetDefault("redis.address", "")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.items_topic", "articles")
	v.SetDefault("kafka.links_topic", "")
	v.SetDefault("cassandra.hosts", []string{})
	v.SetDefault("cassandra.keyspace", "scraper")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("metrics_addr", "")
}

// Load reads the optional config file into v and returns the validated config.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	profiles := BuiltinProfiles()
	for name, p := range cfg.Profiles {
		p.Name = name
		profiles[name] = p
	}
	cfg.Profiles = profiles

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	p, ok := c.Profiles[c.Profile]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProfile, c.Profile)
	}
	if err := p.Validate(c.ReadabilityFallback); err != nil {
		return fmt.Errorf("profile %s: %w", c.Profile, err)
	}

	if c.Concurrency < 1 || c.ListingConcurrency < 1 {
		return ErrInvalidConcurrency
	}
	if c.RequestTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if err := c.Retry.Validate(); err != nil {
		return err
	}
	if c.Batch.Size < 0 {
		return ErrInvalidBatchSize
	}
	if c.Output.Dir == "" {
		return ErrMissingOutputDir
	}

	if c.From != "" && c.To != "" {
		from, to, err := c.DateRange()
		if err != nil {
			return err
		}
		if from.After(to) {
			return ErrInvalidDateRange
		}
	}

	if len(c.Output.Sinks) == 0 {
		return ErrNoSinks
	}
	for _, s := range c.Output.Sinks {
		switch s {
		case "csv":
		case "kafka":
			if len(c.Kafka.Brokers) == 0 || c.Kafka.ItemsTopic == "" {
				return fmt.Errorf("%w: kafka", ErrSinkNotConfigured)
			}
		case "cassandra":
			if len(c.Cassandra.Hosts) == 0 || c.Cassandra.Keyspace == "" {
				return fmt.Errorf("%w: cassandra", ErrSinkNotConfigured)
			}
		default:
			return fmt.Errorf("%w: %q", ErrUnknownSink, s)
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return ErrInvalidLogLevel
	}
	return nil
}

func (rp RetryPolicy) Validate() error {
	if rp.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}
	if rp.InitialDelay < 0 || rp.MaxDelay < 0 {
		return ErrInvalidDelay
	}
	if rp.Multiplier < 1.0 {
		return ErrInvalidMultiplier
	}
	return nil
}

// Delay returns the back-off to wait after the given failed attempt (1-based).
func (rp RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	d := float64(rp.InitialDelay)
	for i := 1; i < attempt; i++ {
		d *= rp.Multiplier
		if rp.MaxDelay > 0 && time.Duration(d) >= rp.MaxDelay {
			return rp.MaxDelay
		}
	}
	if rp.MaxDelay > 0 && time.Duration(d) > rp.MaxDelay {
		return rp.MaxDelay
	}
	return time.Duration(d)
}

// OutputLabel is the file name discriminator: output.label, else the year
// of From, else the current year.
func (c *Config) OutputLabel() string {
	if c.Output.Label != "" {
		return c.Output.Label
	}
	if from, err := time.Parse(DateLayout, c.From); err == nil {
		return from.Format("2006")
	}
	return time.Now().Format("2006")
}

// ActiveProfile returns the selected site profile.
func (c *Config) ActiveProfile() Profile {
	return c.Profiles[c.Profile]
}

// DateRange parses From and To. An empty To means the same day as From.
func (c *Config) DateRange() (time.Time, time.Time, error) {
	from, err := time.Parse(DateLayout, c.From)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid from date %q: %w", c.From, err)
	}
	if c.To == "" {
		return from, from, nil
	}
	to, err := time.Parse(DateLayout, c.To)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid to date %q: %w", c.To, err)
	}
	return from, to, nil
}

// ProfileNames returns all known profile names, sorted.
func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Profile: %s, Concurrency: %d, MaxAttempts: %d, BatchSize: %d, Output: %s}",
		c.Profile,
		c.Concurrency,
		c.Retry.MaxAttempts,
		c.Batch.Size,
		c.Output.Dir,
	)
}
