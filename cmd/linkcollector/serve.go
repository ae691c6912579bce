package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/linkcollector/internal/config"
	"github.com/nao1215/linkcollector/internal/crawler"
	"github.com/nao1215/linkcollector/internal/database"
	applog "github.com/nao1215/linkcollector/internal/log"
	"github.com/nao1215/linkcollector/internal/server"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the link collection HTTP API",
		Long: `Serve starts an HTTP server exposing link collection as a JSON API.

Endpoints:
  POST /api/collectLinks   {"url": "...", "selector": "...", "options": {...}}
  GET  /api/health

Each request runs one crawl. Depth and delayMs default to 1 and 1000 when
omitted. Results are saved to the history database unless --no-save is set.

Examples:
  # Listen on the default address
  linkcollector serve

  # Listen on localhost only and stop crawls after one minute
  linkcollector serve -a 127.0.0.1:8080 --request-timeout 1m`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().StringP("addr", "a", config.DefaultListenAddr,
		"Address to listen on")
	cmd.Flags().Duration("request-timeout", config.DefaultRequestTimeout,
		"Maximum duration of a single crawl")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request the crawler makes")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")
	cmd.Flags().String("proxy", "",
		"Proxy URL (http://, https://, socks5:// or socks5h://)")
	cmd.Flags().Bool("robots", false,
		"Skip URLs disallowed by robots.txt")
	cmd.Flags().Float64("rate", 0,
		"Maximum requests per second per crawl on top of the delay (0 = no cap)")
	cmd.Flags().Bool("no-save", false,
		"Do not save results to the history database")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")

	return cmd
}

// buildServeConfig creates a Config from the serve command flags.
func buildServeConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.ListenAddr, err = flags.GetString("addr"); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = flags.GetDuration("request-timeout"); err != nil {
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
	if cfg.RateLimit, err = flags.GetFloat64("rate"); err != nil {
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
	return cfg, nil
}

// runServeCmd executes the serve command.
func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildServeConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateServer(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := applog.NewServerLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.ListenAddr, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s\n", ln.Addr())

	return runServe(ctx, cfg, ln, logger)
}

// runServe serves the API on ln until ctx is cancelled.
func runServe(ctx context.Context, cfg *config.Config, ln net.Listener, logger *slog.Logger) error {
	fetcher, err := newFetcher(cfg, config.SiteConfig{})
	if err != nil {
		_ = ln.Close() //nolint:errcheck // already failing
		return fmt.Errorf("failed to create HTTP client: %w", err)
	}

	opts := []server.TransportOption{
		server.WithLogger(logger),
		server.WithRequestTimeout(cfg.RequestTimeout),
	}
	if cfg.RespectRobots {
		robots := crawler.NewRobotsAgent(fetcher.Client(), cfg.UserAgent)
		opts = append(opts, server.WithCollectorOptions(crawler.WithRobots(robots)))
	}
	if cfg.RateLimit > 0 {
		opts = append(opts, server.WithCollectorOptions(crawler.WithRateLimit(cfg.RateLimit)))
	}
	if cfg.SaveToDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			_ = ln.Close() //nolint:errcheck // already failing
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		opts = append(opts, server.WithSaver(db))
	}

	transport := server.NewTransport(fetcher, opts...)
	srv := server.New(cfg.ListenAddr, transport.Handler(), cfg.RequestTimeout)
	return server.Run(ctx, srv, ln, logger)
}
