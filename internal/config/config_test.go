package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, "tempo", cfg.Profile)
	assert.Equal(t, 7, cfg.Concurrency)
	assert.Equal(t, 60*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Retry.InitialDelay)
	assert.Equal(t, 5000, cfg.Batch.Size)
	assert.Equal(t, 20*time.Second, cfg.Batch.Pause)
	assert.Equal(t, 1, cfg.Batch.Start)
	assert.Equal(t, "scrapping_result", cfg.Output.Dir)
	assert.Equal(t, []string{"csv"}, cfg.Output.Sinks)
	assert.True(t, cfg.ValidateItems)
	assert.Equal(t, []string{"jpnn", "tempo"}, cfg.ProfileNames())
	assert.Equal(t, "tempo", cfg.ActiveProfile().Name)
}

func TestLoad_FileWithCustomProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
profile: kompas
concurrency: 15
from: "2023-12-01"
to: "2023-12-31"
retry:
  max_attempts: 5
  initial_delay: 500ms
batch:
  size: 0
output:
  dir: out
profiles:
  kompas:
    listing_url: https://indeks.kompas.com/?date={date}
    listing_link: a.article-link
    listing_next: a.paging__link--next
    use_ld_json: true
`), 0o644))

	cfg, err := Load(New(), path)
	require.NoError(t, err)

	assert.Equal(t, 15, cfg.Concurrency)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Retry.InitialDelay)
	assert.Equal(t, 0, cfg.Batch.Size)
	assert.Equal(t, "2023", cfg.OutputLabel())

	p := cfg.ActiveProfile()
	assert.Equal(t, "kompas", p.Name)
	assert.True(t, p.UseLDJSON)
	assert.Equal(t, "a.paging__link--next", p.ListingNext)
	assert.Contains(t, cfg.ProfileNames(), "jpnn")

	from, to, err := cfg.DateRange()
	require.NoError(t, err)
	assert.Equal(t, 30*24*time.Hour, to.Sub(from))
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SCRAPER_CONCURRENCY", "12")
	t.Setenv("SCRAPER_BATCH_SIZE", "100")
	t.Setenv("SCRAPER_PROFILE", "jpnn")

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Concurrency)
	assert.Equal(t, 100, cfg.Batch.Size)
	assert.Equal(t, "jpnn", cfg.ActiveProfile().Name)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"unknown profile", func(c *Config) { c.Profile = "detik" }, ErrUnknownProfile},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }, ErrInvalidConcurrency},
		{"zero listing concurrency", func(c *Config) { c.ListingConcurrency = 0 }, ErrInvalidConcurrency},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }, ErrInvalidTimeout},
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, ErrInvalidMaxAttempts},
		{"negative delay", func(c *Config) { c.Retry.InitialDelay = -time.Second }, ErrInvalidDelay},
		{"shrinking multiplier", func(c *Config) { c.Retry.Multiplier = 0.5 }, ErrInvalidMultiplier},
		{"negative batch", func(c *Config) { c.Batch.Size = -1 }, ErrInvalidBatchSize},
		{"no output dir", func(c *Config) { c.Output.Dir = "" }, ErrMissingOutputDir},
		{"reversed range", func(c *Config) { c.From, c.To = "2024-01-02", "2024-01-01" }, ErrInvalidDateRange},
		{"no sinks", func(c *Config) { c.Output.Sinks = nil }, ErrNoSinks},
		{"unknown sink", func(c *Config) { c.Output.Sinks = []string{"s3"} }, ErrUnknownSink},
		{"kafka without brokers", func(c *Config) { c.Output.Sinks = []string{"kafka"} }, ErrSinkNotConfigured},
		{"cassandra without hosts", func(c *Config) { c.Output.Sinks = []string{"cassandra"} }, ErrSinkNotConfigured},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }, ErrInvalidLogLevel},
		{"profile without listing url", func(c *Config) {
			c.Profiles["bare"] = Profile{Name: "bare", ListingLink: "a"}
			c.Profile = "bare"
		}, ErrMissingListingURL},
		{"profile with nothing to extract", func(c *Config) {
			c.Profiles["bare"] = Profile{Name: "bare", ListingURL: "https://x.test/{date}", ListingLink: "a"}
			c.Profile = "bare"
			c.ReadabilityFallback = false
		}, ErrNothingToExtractWith},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(New(), "")
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}
}

func TestRetryPolicy_Delay(t *testing.T) {
	rp := RetryPolicy{MaxAttempts: 5, InitialDelay: 2 * time.Second, MaxDelay: 10 * time.Second, Multiplier: 2}
	assert.Equal(t, time.Duration(0), rp.Delay(0))
	assert.Equal(t, 2*time.Second, rp.Delay(1))
	assert.Equal(t, 4*time.Second, rp.Delay(2))
	assert.Equal(t, 8*time.Second, rp.Delay(3))
	assert.Equal(t, 10*time.Second, rp.Delay(4))
	assert.Equal(t, 10*time.Second, rp.Delay(20))

	flat := RetryPolicy{InitialDelay: 2 * time.Second, Multiplier: 1}
	assert.Equal(t, 2*time.Second, flat.Delay(3))
}

func TestProfile_ListingURLFor(t *testing.T) {
	day := time.Date(2023, 12, 3, 0, 0, 0, 0, time.UTC)
	profiles := BuiltinProfiles()

	assert.Equal(t, "https://www.tempo.co/indeks/2023-12-03/", profiles["tempo"].ListingURLFor(day))
	assert.Equal(t, "https://www.jpnn.com/indeks?id=&d=03&m=12&y=2023&tab=all", profiles["jpnn"].ListingURLFor(day))
}

func TestOutputLabel(t *testing.T) {
	cfg := &Config{Output: OutputConfig{Label: "resume"}, From: "2022-05-01"}
	assert.Equal(t, "resume", cfg.OutputLabel())

	cfg.Output.Label = ""
	assert.Equal(t, "2022", cfg.OutputLabel())

	cfg.From = ""
	assert.Equal(t, time.Now().Format("2006"), cfg.OutputLabel())
}

func TestDateRange_SingleDay(t *testing.T) {
	cfg := &Config{From: "2024-02-29"}
	from, to, err := cfg.DateRange()
	require.NoError(t, err)
	assert.Equal(t, from, to)

	cfg.From = "29-02-2024"
	_, _, err = cfg.DateRange()
	assert.Error(t, err)
}
