package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/linkcollector/internal/config"
	"github.com/nao1215/linkcollector/internal/crawler"
	"github.com/nao1215/linkcollector/internal/database"
	applog "github.com/nao1215/linkcollector/internal/log"
	"github.com/nao1215/linkcollector/internal/model"
	"github.com/nao1215/linkcollector/internal/pipeline"
	"github.com/nao1215/linkcollector/internal/report"
)

// NewCollectCmd creates the collect command.
func NewCollectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect [url...]",
		Short: "Crawl websites and collect their links",
		Long: `Collect crawls each seed URL breadth-first and reports every link found.

Depth 0 scans only the seed page, depth 1 also scans the pages the seed
links to, and so on. Links are resolved, normalized and deduplicated; the
seed itself is never reported. Press Ctrl-C to stop a crawl early and print
what was collected so far.

Examples:
  # Collect the links of a page and the pages it links to
  linkcollector collect https://example.com/docs/

  # Only follow links inside the sidebar, two levels deep
  linkcollector collect -s "nav.sidebar" -d 2 example.com/docs/

  # Keep only links under /docs/, export them one per line
  linkcollector collect --filter-path /docs/ -l example.com

  # Space separated list with the page each link came from
  linkcollector collect -l --separator space --with-source example.com

  # Crawl several sites concurrently and write a JSON report
  linkcollector collect -j -o links.json site1.example site2.example

Configuration file (.linkcollector) example:
  sites:
    docs.example.com:
      selector: "main"
      depth: 2
      filters:
        - pathPrefix: /docs/
    intranet.example.com:
      cookie: "session_id=abc123"`,
		Args: cobra.ArbitraryArgs,
		RunE: runCollectCmd,
	}

	// Crawl behavior flags
	cmd.Flags().IntP("depth", "d", config.DefaultCrawlDepth,
		"Maximum number of link hops from the seed")
	cmd.Flags().Duration("delay", config.DefaultCrawlDelay,
		"Delay between the end of one request and the start of the next")
	cmd.Flags().Float64("rate", 0,
		"Maximum requests per second on top of --delay (0 = no cap)")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum fetch attempts per crawl (0 = no limit)")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")
	cmd.Flags().String("proxy", "",
		"Proxy URL (http://, https://, socks5:// or socks5h://)")
	cmd.Flags().Bool("robots", false,
		"Skip URLs disallowed by robots.txt")

	// Extraction flags
	cmd.Flags().StringP("selector", "s", "",
		"Only extract links inside elements matching this CSS selector")
	cmd.Flags().String("selector-scope", string(model.SelectorScopeSeed),
		`Pages the selector applies to: "seed" or "all"`)
	cmd.Flags().Bool("skip-query", false,
		"Strip query strings from discovered URLs")
	cmd.Flags().Bool("skip-hash", true,
		"Strip fragments from discovered URLs")

	// Filter flags
	cmd.Flags().StringSlice("filter-domain", nil, "Keep URLs on these domains or their subdomains")
	cmd.Flags().StringSlice("filter-path", nil, "Keep URLs whose path starts with these prefixes")
	cmd.Flags().StringSlice("filter-regex", nil, "Keep URLs matching these regular expressions")
	cmd.Flags().StringSlice("filter-keyword", nil, "Keep URLs containing these keywords")
	cmd.Flags().StringSlice("exclude-domain", nil, "Drop URLs on these domains or their subdomains")
	cmd.Flags().StringSlice("exclude-path", nil, "Drop URLs whose path starts with these prefixes")
	cmd.Flags().StringSlice("exclude-regex", nil, "Drop URLs matching these regular expressions")
	cmd.Flags().StringSlice("exclude-keyword", nil, "Drop URLs containing these keywords")
	cmd.Flags().StringSlice("exclude", nil,
		"Remove URLs matching these patterns from the output only (the crawl is unaffected)")

	// Batch flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of seeds crawled concurrently")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .linkcollector in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown and --list)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json and --list)")
	cmd.Flags().BoolP("list", "l", false,
		"Output only the collected URLs (mutually exclusive with --json and --markdown)")
	cmd.Flags().String("separator", config.DefaultListSeparator,
		`Separator for --list: "newline" or "space"`)
	cmd.Flags().Bool("with-source", false,
		"Append the page each URL was found on to --list output")
	cmd.Flags().Bool("with-title", false,
		"Append the page title to --list output when known")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	// History flags
	cmd.Flags().Bool("no-save", false,
		"Do not save results to the history database")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")

	return cmd
}

// runCollectCmd executes the collect command.
func runCollectCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCollect(ctx, cfg, cmd.OutOrStdout(), cmd.ErrOrStderr(), logger)
}

// commandContext returns the command's context, or Background when the
// command is executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
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

// setupLogger creates the credential-masking logger. JSON reports get JSON
// logs so that both streams are machine readable.
func setupLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	if cfg.JSONReport {
		return applog.NewSecureJSONLogger(w, cfg.Verbose)
	}
	return applog.NewSecureLogger(w, cfg.Verbose)
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.CrawlDepth, err = flags.GetInt("depth"); err != nil {
		return nil, err
	}
	if cfg.CrawlDelay, err = flags.GetDuration("delay"); err != nil {
		return nil, err
	}
	if cfg.RateLimit, err = flags.GetFloat64("rate"); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.ProxyURL, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.RespectRobots, err = flags.GetBool("robots"); err != nil {
		return nil, err
	}
	if cfg.Selector, err = flags.GetString("selector"); err != nil {
		return nil, err
	}

	scope, err := flags.GetString("selector-scope")
	if err != nil {
		return nil, err
	}
	cfg.SelectorScope = model.SelectorScope(strings.ToLower(strings.TrimSpace(scope)))

	if cfg.SkipQueryURLs, err = flags.GetBool("skip-query"); err != nil {
		return nil, err
	}
	if cfg.SkipHashURLs, err = flags.GetBool("skip-hash"); err != nil {
		return nil, err
	}
	if cfg.Filters, err = filterRulesFromFlags(cmd); err != nil {
		return nil, err
	}
	if cfg.ExcludePatterns, err = flags.GetStringSlice("exclude"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if cfg.SiteConfigs, err = loadSiteConfigs(cfg.ConfigFilePath); err != nil {
		return nil, err
	}

	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ListReport, err = flags.GetBool("list"); err != nil {
		return nil, err
	}
	if cfg.ListSeparator, err = flags.GetString("separator"); err != nil {
		return nil, err
	}
	if cfg.IncludeSource, err = flags.GetBool("with-source"); err != nil {
		return nil, err
	}
	if cfg.IncludeTitle, err = flags.GetBool("with-title"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}

	noSave, err := flags.GetBool("no-save")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noSave
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}

	cfg.Verbose = getVerboseFlag(cmd)

	cfg.Targets = make([]string, 0, len(args))
	for _, arg := range args {
		if target := normalizeTarget(arg); target != "" {
			cfg.Targets = append(cfg.Targets, target)
		}
	}
	return cfg, nil
}

// loadSiteConfigs loads the configuration file. A file the user named
// explicitly must exist; otherwise a missing file means no site settings.
func loadSiteConfigs(explicitPath string) (*config.File, error) {
	path := config.FindConfigFile(explicitPath)
	if path == "" {
		if explicitPath != "" {
			return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, explicitPath)
		}
		return &config.File{Sites: make(map[string]config.SiteConfig)}, nil
	}

	file, err := config.LoadConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	return file, nil
}

// filterRulesFromFlags builds at most one inclusion and one exclusion rule
// from the --filter-* and --exclude-* flags.
func filterRulesFromFlags(cmd *cobra.Command) ([]model.FilterRule, error) {
	build := func(prefix string, exclude bool) (model.FilterRule, error) {
		rule := model.FilterRule{Exclude: exclude}
		fields := []struct {
			name string
			dst  *model.StringList
		}{
			{prefix + "-domain", &rule.Domain},
			{prefix + "-path", &rule.PathPrefix},
			{prefix + "-regex", &rule.Regex},
			{prefix + "-keyword", &rule.Keywords},
		}
		for _, f := range fields {
			values, err := cmd.Flags().GetStringSlice(f.name)
			if err != nil {
				return rule, err
			}
			*f.dst = model.StringList(values)
		}
		return rule, nil
	}

	var rules []model.FilterRule
	for _, spec := range []struct {
		prefix  string
		exclude bool
	}{{"filter", false}, {"exclude", true}} {
		rule, err := build(spec.prefix, spec.exclude)
		if err != nil {
			return nil, err
		}
		if !rule.IsEmpty() {
			rules = append(rules, rule)
		}
	}
	return rules, nil
}

// normalizeTarget trims arg and adds https:// when it has no scheme.
func normalizeTarget(arg string) string {
	target := strings.TrimSpace(arg)
	if target == "" {
		return ""
	}
	if !strings.Contains(target, "://") {
		target = "https://" + target
	}
	return target
}

// runCollect crawls every target and writes one report per seed.
func runCollect(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer, logger *slog.Logger) error {
	if len(cfg.Targets) == 0 {
		return config.ErrNoTarget
	}

	var saver pipeline.Saver
	if cfg.SaveToDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		saver = db
		logger.Debug("database opened", "path", db.Path())
	}

	shared, err := newFetcher(cfg, config.SiteConfig{})
	if err != nil {
		return fmt.Errorf("failed to create HTTP client: %w", err)
	}
	robots := crawler.NewRobotsAgent(shared.Client(), cfg.UserAgent)

	jobs := make([]*pipeline.Job, 0, len(cfg.Targets))
	for _, target := range cfg.Targets {
		job, err := newJob(cfg, target, robots)
		if err != nil {
			return err
		}
		jobs = append(jobs, job)
	}

	output, closeOutput, err := openOutput(cfg.ReportFile, stdout)
	if err != nil {
		return err
	}
	defer closeOutput() //nolint:errcheck // closed explicitly below on success

	writer, err := newReportWriter(cfg, output)
	if err != nil {
		return err
	}

	var collectorOpts []crawler.Option
	if cfg.RateLimit > 0 {
		collectorOpts = append(collectorOpts, crawler.WithRateLimit(cfg.RateLimit))
	}
	if cfg.Verbose {
		collectorOpts = append(collectorOpts, crawler.WithProgress(progressPrinter(stderr)))
	}

	bc := pipeline.NewBatchCollector(
		func() *pipeline.Pipeline {
			return pipeline.DefaultPipeline(shared, pipeline.DefaultPipelineConfig{
				Saver:            saver,
				ExcludePatterns:  cfg.ExcludePatterns,
				CollectorOptions: collectorOpts,
				Logger:           logger,
			})
		},
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	startTime := time.Now()

	var (
		mu      sync.Mutex
		failed  int
		reports []error
	)
	batchErr := bc.ProcessBatchWithCallback(ctx, jobs, func(job *pipeline.Job, index int) {
		mu.Lock()
		defer mu.Unlock()

		if len(jobs) > 1 {
			fmt.Fprintf(stderr, "[%d/%d] Collected %s\n", index+1, len(jobs), job.Seed)
		}
		if job.Result == nil {
			return
		}
		if job.Result.Status == model.CrawlStatusFailed {
			failed++
			fmt.Fprintf(stderr, "Error for %s: %v\n", job.Seed, job.Err)
			return
		}
		if _, err := writer.Write(job.Result); err != nil {
			reports = append(reports, fmt.Errorf("failed to write report for %s: %w", job.Seed, err))
		}
	})

	if err := closeOutput(); err != nil {
		reports = append(reports, fmt.Errorf("failed to close output file: %w", err))
	}

	fmt.Fprintf(stderr, "Finished %d seed(s) in %s\n", len(jobs), time.Since(startTime).Round(time.Millisecond))

	if batchErr != nil {
		return fmt.Errorf("collection interrupted, partial results shown: %w", batchErr)
	}
	if err := errors.Join(reports...); err != nil {
		return err
	}
	if failed == len(jobs) {
		return fmt.Errorf("all %d seed(s) failed", failed)
	}
	return nil
}

// newJob prepares the pipeline job for target with its site settings.
func newJob(cfg *config.Config, target string, robots *crawler.RobotsAgent) (*pipeline.Job, error) {
	job := pipeline.NewJob(target, cfg.CollectionOptionsFor(target))

	site := cfg.SiteFor(target)
	if site.Cookie != "" || len(site.Headers) > 0 {
		fetcher, err := newFetcher(cfg, site)
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP client for %s: %w", target, err)
		}
		job.Fetcher = fetcher
	}
	if cfg.RespectRobots || site.RespectRobots {
		job.CollectorOptions = append(job.CollectorOptions, crawler.WithRobots(robots))
	}
	return job, nil
}

// newFetcher builds an HTTP fetcher with the global settings and the
// site's cookie and headers.
func newFetcher(cfg *config.Config, site config.SiteConfig) (*crawler.HTTPFetcher, error) {
	return crawler.NewHTTPFetcher(crawler.FetcherOptions{
		UserAgent:   cfg.UserAgent,
		Timeout:     cfg.Timeout,
		MaxBodySize: cfg.MaxBodySize,
		Headers:     site.Headers,
		Cookie:      site.Cookie,
		ProxyURL:    cfg.ProxyURL,
	})
}

// newReportWriter returns the writer for the selected output format.
func newReportWriter(cfg *config.Config, w io.Writer) (report.Writer, error) {
	switch {
	case cfg.JSONReport:
		return report.NewFullJSONWriter(w, getVersion(), report.WithPrettyPrint()), nil
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(w), nil
	case cfg.ListReport:
		sep, err := config.ParseSeparator(cfg.ListSeparator)
		if err != nil {
			return nil, err
		}
		return report.NewListWriter(w,
			report.WithSeparator(sep.String()),
			report.WithSource(cfg.IncludeSource),
			report.WithTitle(cfg.IncludeTitle),
		), nil
	default:
		return report.NewSimpleWriter(w, report.WithVerbose(cfg.Verbose)), nil
	}
}

// openOutput returns path opened for writing, or stdout when path is
// empty. The returned close function is safe to call more than once.
func openOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" {
		return stdout, func() error { return nil }, nil
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	var once sync.Once
	var closeErr error
	return f, func() error {
		once.Do(func() { closeErr = f.Close() })
		return closeErr
	}, nil
}

// progressPrinter returns a progress callback that prints one line per
// fetch attempt. Concurrent crawls share it.
func progressPrinter(w io.Writer) func(crawler.Progress) {
	var mu sync.Mutex
	return func(p crawler.Progress) {
		status := "ok"
		if !p.OK {
			status = "error"
		}

		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(w, "[depth %d] %-5s %s (scanned %d, collected %d, queued %d)\n",
			p.Depth, status, p.URL, p.Scanned, p.Collected, p.Queued)
	}
}
