package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/naka-gawa/github-pr-stats/internal/config"
	"github.com/naka-gawa/github-pr-stats/internal/gateway"
	"github.com/naka-gawa/github-pr-stats/internal/logging"
	"github.com/naka-gawa/github-pr-stats/internal/metrics"
	"github.com/naka-gawa/github-pr-stats/internal/report"
	"github.com/naka-gawa/github-pr-stats/internal/usecase"
)

// statsGateway is what the stats command needs from GitHub.
type statsGateway interface {
	gateway.PageFetcher
	gateway.Counter
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Fetches all pull requests of a repository and prints summary statistics",
	Long: `Fetches every page of a repository's pull request list using a pool of workers,
then prints the number fetched, the elapsed time, the top authors and the
smallest and biggest time-to-close.

The GitHub token is read from the GITHUB_TOKEN environment variable (or a .env file).`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			os.Exit(1)
		}
		if err := applyFlags(cmd, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid flags: %v\n", err)
			os.Exit(1)
		}
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid configuration: %v\n", err)
			os.Exit(1)
		}

		// The verbose flag wins over any configured level.
		logCfg := logging.DefaultConfig()
		logCfg.Level = logging.Level(cfg.LogLevel)
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			logCfg.Level = logging.LevelDebug
		}
		logger := logging.Setup(logCfg)

		// Inject dependencies and run the main business logic.
		githubGateway, err := gateway.NewGitHubGateway(cfg.Token, gateway.Options{BaseURL: cfg.APIURL, Timeout: cfg.Timeout}, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create GitHub gateway: %v\n", err)
			os.Exit(1)
		}

		if err := runStats(ctx, cfg, githubGateway, os.Stdout, logger); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to collect stats: %v\n", err)
			os.Exit(1)
		}
	},
}

// runStats fetches, summarizes and renders. Nothing is written to out when the fetch fails.
func runStats(ctx context.Context, cfg *config.Config, gw statsGateway, out io.Writer, logger zerolog.Logger) error {
	recorder := metrics.NewRecorder(prometheus.NewRegistry())
	if cfg.MetricsFile != "" {
		defer func() {
			if err := recorder.WriteFile(cfg.MetricsFile); err != nil {
				logger.Warn().Err(err).Str("path", cfg.MetricsFile).Msg("Failed to write metrics file")
			}
		}()
	}

	repo := cfg.RepositoryRef()
	fetcher := usecase.NewPaginatedFetcher(gw, recorder, logger)
	result, err := fetcher.Fetch(ctx, usecase.FetchOptions{
		Repository: repo,
		State:      cfg.State,
		MaxPages:   cfg.MaxPages,
		PerPage:    cfg.PerPage,
		Workers:    cfg.Workers,
		Estimate:   cfg.Estimate,
	})
	if err != nil {
		return err
	}

	rep := report.Report{
		Repository:    repo.String(),
		State:         cfg.State,
		Fetched:       result.Table.Len(),
		Elapsed:       result.Elapsed,
		TotalEstimate: result.TotalEstimate,
	}
	if cfg.ExactCount {
		count, err := gw.CountPullRequests(ctx, repo, cfg.State)
		if err != nil {
			return err
		}
		rep.ExactCount = &count
	}

	reducer := usecase.NewSummaryReducer(logger)
	rep.Summary = reducer.Summarize(result.Table.Snapshot(), cfg.Top)

	return report.Render(out, cfg.Format, rep)
}

// addStatsFlags registers the stats flags on cmd.
func addStatsFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("repo", "r", "", "Target repository in owner/name form (required unless set in the config file)")
	cmd.Flags().StringP("state", "s", "closed", "Pull request state filter (open, closed, all)")
	cmd.Flags().Int("max-pages", usecase.AllPages, "Maximum number of pages to fetch, page 1 included (-1 for all)")
	cmd.Flags().Int("per-page", gateway.MaxPerPage, "Pull requests per page (1-100)")
	cmd.Flags().IntP("workers", "w", usecase.DefaultWorkers, "Number of concurrent page workers; overrides PR_STATS_WORKERS")
	cmd.Flags().Int("top", 3, "Number of top authors to show")
	cmd.Flags().StringP("format", "f", config.FormatText, "Output format (text, json, table)")
	cmd.Flags().Bool("no-estimate", false, "Skip the last page probe used to estimate the total count")
	cmd.Flags().Bool("exact-count", false, "Query the exact total count with the GraphQL API")
	cmd.Flags().String("metrics-file", "", "Write Prometheus metrics in text format to this file after the run")
	cmd.Flags().Duration("timeout", 0, "Timeout of a single HTTP request (e.g. 30s)")
}

// applyFlags copies explicitly set flags over cfg, so flags win over the file and environment.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var err error
	if flags.Changed("repo") {
		cfg.Repository, err = flags.GetString("repo")
	}
	if err == nil && flags.Changed("state") {
		cfg.State, err = flags.GetString("state")
	}
	if err == nil && flags.Changed("max-pages") {
		cfg.MaxPages, err = flags.GetInt("max-pages")
	}
	if err == nil && flags.Changed("per-page") {
		cfg.PerPage, err = flags.GetInt("per-page")
	}
	if err == nil && flags.Changed("workers") {
		cfg.Workers, err = flags.GetInt("workers")
	}
	if err == nil && flags.Changed("top") {
		cfg.Top, err = flags.GetInt("top")
	}
	if err == nil && flags.Changed("format") {
		cfg.Format, err = flags.GetString("format")
	}
	if err == nil && flags.Changed("no-estimate") {
		var skip bool
		skip, err = flags.GetBool("no-estimate")
		cfg.Estimate = !skip
	}
	if err == nil && flags.Changed("exact-count") {
		cfg.ExactCount, err = flags.GetBool("exact-count")
	}
	if err == nil && flags.Changed("metrics-file") {
		cfg.MetricsFile, err = flags.GetString("metrics-file")
	}
	if err == nil && flags.Changed("timeout") {
		cfg.Timeout, err = flags.GetDuration("timeout")
	}
	if err == nil && flags.Changed("log-level") {
		cfg.LogLevel, err = flags.GetString("log-level")
	}
	return err
}

func init() {
	rootCmd.AddCommand(statsCmd)
	addStatsFlags(statsCmd)
}
