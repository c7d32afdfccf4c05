package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nao1215/sitescraper/internal/config"
	"github.com/nao1215/sitescraper/internal/crawler"
	"github.com/nao1215/sitescraper/internal/database"
	"github.com/nao1215/sitescraper/internal/log"
	"github.com/nao1215/sitescraper/internal/metrics"
	"github.com/nao1215/sitescraper/internal/mirror"
	"github.com/nao1215/sitescraper/internal/model"
	"github.com/nao1215/sitescraper/internal/ratelimit"
	"github.com/nao1215/sitescraper/internal/render"
	"github.com/nao1215/sitescraper/internal/report"
	"github.com/nao1215/sitescraper/internal/transport"
	"github.com/spf13/cobra"
)

// addCrawlFlags registers the crawl flags on cmd.
func addCrawlFlags(cmd *cobra.Command) {
	// Crawl behavior flags
	cmd.Flags().Int("max_depth", config.DefaultMaxDepth,
		"Maximum number of links followed from the seed page")
	cmd.Flags().Float64("rate_limit", config.DefaultRateLimit.Seconds(),
		"Minimum seconds between two requests (0 disables rate limiting)")
	cmd.Flags().Int("max_concurrency", config.DefaultMaxConcurrency,
		"Maximum number of concurrent fetches")
	cmd.Flags().Duration("timeout", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().String("user_agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")
	cmd.Flags().String("proxy", "",
		"Route every request through the SOCKS5 proxy at host:port")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .sitescraper in current or home directory)")

	// Output flags
	cmd.Flags().String("summary", "",
		"Write a crawl summary to this path (.json for JSON, otherwise Markdown)")
	cmd.Flags().String("metrics_file", "",
		"Write Prometheus text-format crawl metrics to this path")

	// History flags
	cmd.Flags().String("db_dir", config.XDGDataDir(),
		"Directory of the crawl history database")
	cmd.Flags().Bool("no_history", false,
		"Do not record the crawl in the history database")
}

// runCrawlCmd executes a crawl.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.New(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	// SIGINT and SIGTERM stop the crawl. Pages fetched so far are still saved.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cfg, cmd.OutOrStdout(), logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags and the
// configuration file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	if len(args) > 0 {
		cfg.Site = strings.TrimSpace(args[0])
	}
	if len(args) > 1 {
		cfg.OutputDir = args[1]
	}

	var err error

	cfg.MaxDepth, err = cmd.Flags().GetInt("max_depth")
	if err != nil {
		return nil, err
	}

	rateLimit, err := cmd.Flags().GetFloat64("rate_limit")
	if err != nil {
		return nil, err
	}
	cfg.RateLimit = config.RateLimitFromSeconds(rateLimit)

	cfg.MaxConcurrency, err = cmd.Flags().GetInt("max_concurrency")
	if err != nil {
		return nil, err
	}

	cfg.Timeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}

	cfg.UserAgent, err = cmd.Flags().GetString("user_agent")
	if err != nil {
		return nil, err
	}

	cfg.ProxyAddress, err = cmd.Flags().GetString("proxy")
	if err != nil {
		return nil, err
	}

	cfg.SummaryFile, err = cmd.Flags().GetString("summary")
	if err != nil {
		return nil, err
	}

	cfg.MetricsFile, err = cmd.Flags().GetString("metrics_file")
	if err != nil {
		return nil, err
	}

	cfg.DBDir, err = cmd.Flags().GetString("db_dir")
	if err != nil {
		return nil, err
	}

	noHistory, err := cmd.Flags().GetBool("no_history")
	if err != nil {
		return nil, err
	}
	cfg.SaveHistory = !noHistory

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	cfg.Verbose = getVerboseFlag(cmd)

	// Load the site configuration.
	// If the user explicitly specified a config file path, error if not found.
	// If no path was specified, silently use an empty config.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	var file *config.File
	switch {
	case configPath != "":
		file, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case explicitConfigPath:
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	default:
		file = &config.File{Sites: make(map[string]config.SiteConfig)}
	}

	cfg.SiteConfig = file.GetSiteConfig(strings.ToLower(cfg.SiteHost()))
	applySiteConfig(cmd, cfg)

	return cfg, nil
}

// applySiteConfig copies site configuration values into cfg.
// A flag the user set explicitly always wins over the file.
func applySiteConfig(cmd *cobra.Command, cfg *config.Config) {
	sc := cfg.SiteConfig

	if sc.Depth != 0 && !cmd.Flags().Changed("max_depth") {
		cfg.MaxDepth = sc.Depth
	}
	if sc.RateLimit != 0 && !cmd.Flags().Changed("rate_limit") {
		cfg.RateLimit = sc.RateLimitDuration()
	}
	if sc.MaxConcurrency != 0 && !cmd.Flags().Changed("max_concurrency") {
		cfg.MaxConcurrency = sc.MaxConcurrency
	}
	if sc.UserAgent != "" && !cmd.Flags().Changed("user_agent") {
		cfg.UserAgent = sc.UserAgent
	}
}

// runCrawl wires the crawl components together and runs one crawl.
// Progress and the final summary are written to out.
func runCrawl(ctx context.Context, cfg *config.Config, out io.Writer, logger *slog.Logger) error {
	seed, err := crawler.NormalizeSeed(cfg.Site)
	if err != nil {
		return err
	}

	logger.Info("starting crawl",
		"site", seed,
		"output", cfg.OutputDir,
		"maxDepth", cfg.MaxDepth,
		"maxConcurrency", cfg.MaxConcurrency,
		"rateLimit", cfg.RateLimit,
		"saveHistory", cfg.SaveHistory,
	)

	if cfg.ProxyAddress != "" {
		status := transport.CheckProxy(ctx, cfg.ProxyAddress, proxyTarget(seed))
		if err := status.Err(); err != nil {
			return fmt.Errorf("proxy check failed: %s (make sure a SOCKS5 proxy is running at %s): %w",
				status, cfg.ProxyAddress, err)
		}
		logger.Info("proxy connection verified", "address", cfg.ProxyAddress)
	}

	client, err := transport.NewHTTPClient(transport.Options{
		ProxyAddress:        cfg.ProxyAddress,
		Cookie:              cfg.SiteConfig.Cookie,
		Headers:             cfg.SiteConfig.Headers,
		MaxIdleConnsPerHost: cfg.MaxConcurrency,
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP client: %w", err)
	}

	if err := os.MkdirAll(cfg.OutputDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	collector := metrics.New()
	limiter := ratelimit.New(cfg.RateLimit)
	if limiter != nil {
		if err := collector.ObserveRateLimiter(limiter.Grants); err != nil {
			return err
		}
	}

	fetcher := crawler.NewHTTPFetcher(client,
		crawler.WithFetchTimeout(cfg.Timeout),
		crawler.WithUserAgent(cfg.UserAgent),
		crawler.WithMaxBodySize(cfg.MaxBodySize),
	)
	worker := crawler.NewWorker(fetcher, render.NewHTMLRenderer(),
		crawler.WithLimiter(limiter),
		crawler.WithWorkerLogger(logger),
	)
	dispatcher := crawler.NewDispatcher(worker.Do, cfg.MaxConcurrency,
		crawler.WithInFlightTracker(collector.InFlight),
		crawler.WithDispatcherLogger(logger),
	)

	observers := []crawler.Observer{newProgressObserver(out), collector}

	var recorder *database.Recorder
	if cfg.SaveHistory {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		recorder, err = database.NewRecorder(ctx, db, seed, cfg.OutputDir, cfg.MaxDepth, logger)
		if err != nil {
			return fmt.Errorf("failed to start crawl history: %w", err)
		}
		observers = append(observers, recorder)
	}

	engine := crawler.NewEngine(dispatcher, mirror.NewWriter(cfg.OutputDir),
		crawler.WithMaxDepth(cfg.MaxDepth),
		crawler.WithIgnorePatterns(cfg.SiteConfig.IgnorePatterns),
		crawler.WithFollowPatterns(cfg.SiteConfig.FollowPatterns),
		crawler.WithObservers(observers...),
		crawler.WithEngineLogger(logger),
	)

	summary, crawlErr := engine.Crawl(ctx, seed)
	if summary == nil {
		return crawlErr
	}

	return finishCrawl(ctx, cfg, summary, crawlErr, recorder, collector, out, logger)
}

// finishCrawl writes everything that depends on the final summary.
// Every output is attempted even if an earlier one fails.
func finishCrawl(
	ctx context.Context,
	cfg *config.Config,
	summary *model.CrawlSummary,
	crawlErr error,
	recorder *database.Recorder,
	collector *metrics.Collector,
	out io.Writer,
	logger *slog.Logger,
) error {
	var errs []error

	if recorder != nil {
		if err := recorder.Finish(ctx, summary); err != nil {
			errs = append(errs, fmt.Errorf("failed to save crawl history: %w", err))
		} else if recorder.Err() == nil {
			logger.Info("crawl saved to history", "run", recorder.RunID())
		}
	}

	fmt.Fprintln(out)
	if _, err := report.NewSimpleWriter(out, report.WithVerbose(cfg.Verbose)).Write(summary); err != nil {
		errs = append(errs, err)
	}

	if cfg.SummaryFile != "" {
		if err := report.WriteFile(cfg.SummaryFile, summary, getVersion()); err != nil {
			errs = append(errs, err)
		} else {
			fmt.Fprintf(out, "Summary written to %s\n", cfg.SummaryFile)
		}
	}

	if cfg.MetricsFile != "" {
		if err := collector.WriteTextfile(cfg.MetricsFile); err != nil {
			errs = append(errs, err)
		} else {
			fmt.Fprintf(out, "Metrics written to %s\n", cfg.MetricsFile)
		}
	}

	if crawlErr != nil {
		errs = append(errs, fmt.Errorf("crawl interrupted after %d page(s): %w", len(summary.Pages), crawlErr))
	}

	return errors.Join(errs...)
}

// proxyTarget returns the host:port the proxy check asks the proxy to reach.
func proxyTarget(seed string) string {
	u, err := url.Parse(seed)
	if err != nil {
		return seed
	}
	if port := u.Port(); port != "" {
		return u.Host
	}
	if u.Scheme == "http" {
		return net.JoinHostPort(u.Hostname(), "80")
	}
	return net.JoinHostPort(u.Hostname(), "443")
}

// progressObserver prints one line per level and per saved page.
type progressObserver struct {
	crawler.NopObserver
	out io.Writer
}

func newProgressObserver(out io.Writer) *progressObserver {
	return &progressObserver{out: out}
}

// LevelStarted implements crawler.Observer.
func (p *progressObserver) LevelStarted(_ context.Context, depth, size int) {
	fmt.Fprintf(p.out, "Crawling depth %d with %d page(s)...\n", depth, size)
}

// PageProcessed implements crawler.Observer.
func (p *progressObserver) PageProcessed(_ context.Context, record model.PageRecord) {
	if record.SaveFailed {
		fmt.Fprintf(p.out, "Failed to save %s\n", record.URL)
		return
	}
	fmt.Fprintf(p.out, "Saved %s to %s\n", record.URL, record.Path)
}
