package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"news-scraper/internal/config"
	"news-scraper/internal/frontier"
	"news-scraper/pkg/models"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(config.New()).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "crawler",
		Short:         "Scrape news listing pages and articles into CSV batches",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", "", "path to a YAML config file")
	pf.String("profile", "tempo", "site profile to scrape")
	pf.Int("concurrency", 7, "maximum article pages fetched at once")
	pf.Int("max-attempts", 3, "attempts per page before giving up")
	pf.String("output-dir", "scrapping_result", "directory for CSV output")
	pf.String("label", "", "file name discriminator (defaults to the year)")
	pf.StringSlice("sinks", []string{"csv"}, "result sinks: csv, kafka, cassandra")
	pf.String("redis", "", "redis address for recorded-URL tracking and robots.txt cache")
	pf.String("metrics-addr", "", "address for the /metrics and /status server")
	pf.String("log-level", "info", "debug, info, warn or error")
	bind(v, pf.Lookup("profile"), "profile")
	bind(v, pf.Lookup("concurrency"), "concurrency")
	bind(v, pf.Lookup("max-attempts"), "retry.max_attempts")
	bind(v, pf.Lookup("output-dir"), "output.dir")
	bind(v, pf.Lookup("label"), "output.label")
	bind(v, pf.Lookup("sinks"), "output.sinks")
	bind(v, pf.Lookup("redis"), "redis.address")
	bind(v, pf.Lookup("metrics-addr"), "metrics_addr")
	bind(v, pf.Lookup("log-level"), "log.level")

	load := func() (*config.Config, error) {
		return config.Load(v, configFile)
	}

	root.AddCommand(
		newIndexCmd(v, load),
		newArticlesCmd(v, load),
		newRunCmd(v, load),
		newProfilesCmd(load),
	)
	return root
}

func bind(v *viper.Viper, flag *pflag.Flag, key string) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}

// bindFlags binds a subcommand's flags to config keys once that subcommand
// is the one being run. Several subcommands share keys such as "from".
func bindFlags(v *viper.Viper, keys map[string]string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		for name, key := range keys {
			if err := v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
				return fmt.Errorf("failed to bind --%s: %w", name, err)
			}
		}
		return nil
	}
}

var dateFlagKeys = map[string]string{"from": "from", "to": "to"}

func addDateFlags(cmd *cobra.Command) {
	cmd.Flags().String("from", "", "first listing date (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "last listing date (YYYY-MM-DD), defaults to --from")
}

func newIndexCmd(v *viper.Viper, load func() (*config.Config, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "index",
		Short:   "Enumerate article links from the daily listing pages",
		PreRunE: bindFlags(v, dateFlagKeys),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			from, to, err := cfg.DateRange()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.close()

			_, err = a.coordinator.Index(cmd.Context(), from, to)
			return err
		},
	}
	addDateFlags(cmd)
	return cmd
}

func newArticlesCmd(v *viper.Viper, load func() (*config.Config, error)) *cobra.Command {
	var fromKafka bool
	cmd := &cobra.Command{
		Use:   "articles",
		Short: "Fetch and extract the articles listed in a seed CSV",
		PreRunE: bindFlags(v, map[string]string{
			"seeds":       "seeds.file",
			"column":      "seeds.column",
			"batch-size":  "batch.size",
			"batch-start": "batch.start",
			"batch-pause": "batch.pause",
		}),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.close()

			var links []models.ChildLink
			if fromKafka {
				if a.frontier == nil {
					return fmt.Errorf("--from-kafka needs kafka.brokers and kafka.links_topic")
				}
				links, err = a.frontier.Drain(cmd.Context(), 0, 10*time.Second)
			} else {
				if cfg.Seeds.File == "" {
					return fmt.Errorf("--seeds is required")
				}
				links, err = frontier.ReadSeedFile(cfg.Seeds.File, cfg.Seeds.Column)
			}
			if err != nil {
				return err
			}

			summary, err := a.coordinator.Articles(cmd.Context(), links)
			a.report(summary)
			return err
		},
	}
	cmd.Flags().String("seeds", "", "CSV file of article URLs")
	cmd.Flags().String("column", "url", "name of the URL column in the seed file")
	cmd.Flags().Int("batch-size", 5000, "articles per output batch, 0 for a single file")
	cmd.Flags().Int("batch-start", 1, "number of the first batch")
	cmd.Flags().Duration("batch-pause", 20*time.Second, "pause between batches")
	cmd.Flags().BoolVar(&fromKafka, "from-kafka", false, "read links from the kafka links topic instead of a file")
	return cmd
}

func newRunCmd(v *viper.Viper, load func() (*config.Config, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Enumerate a date range and fetch every article found",
		PreRunE: bindFlags(v, dateFlagKeys),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			from, to, err := cfg.DateRange()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.close()

			summary, err := a.coordinator.Run(cmd.Context(), from, to)
			a.report(summary)
			return err
		},
	}
	addDateFlags(cmd)
	return cmd
}

func newProfilesCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List the available site profiles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			for _, name := range cfg.ProfileNames() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s\n", name, cfg.Profiles[name].ListingURL)
			}
			return nil
		},
	}
}
