package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/linkcollector/internal/config"
	"github.com/nao1215/linkcollector/internal/database"
	"github.com/nao1215/linkcollector/internal/report"
	"github.com/nao1215/linkcollector/internal/urlfilter"
)

// historyTimeLayout formats crawl timestamps in listings.
const historyTimeLayout = "2006-01-02 15:04:05"

// historyOptions are the flags of the history command.
type historyOptions struct {
	dbDir     string
	list      bool
	listSeeds bool
	diff      bool
	withID    int64
	found     string
	json      bool
}

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [url]",
		Short: "Show saved crawl results",
		Long: `History reads the crawl results saved by 'linkcollector collect'.

Without flags it prints the latest saved crawl of the URL. Seeds are matched
after normalization, so "example.com" finds crawls of https://example.com/.

Examples:
  # Print the latest crawl of a seed
  linkcollector history example.com

  # List every crawl of a seed
  linkcollector history --list example.com

  # Show URLs added or removed since the previous crawl
  linkcollector history --diff example.com

  # Compare the latest crawl with a specific older one
  linkcollector history --diff --with-id 3 example.com

  # Which pages linked to a URL?
  linkcollector history --found https://example.com/pricing example.com

  # List every seed in the database
  linkcollector history --list-seeds`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("list", "l", false, "List crawl history for the URL")
	cmd.Flags().BoolP("list-seeds", "L", false, "List every crawled seed URL")
	cmd.Flags().Bool("diff", false, "Compare the latest crawl with the previous one")
	cmd.Flags().Int64P("with-id", "i", 0, "With --diff, compare against this crawl ID instead of the previous crawl")
	cmd.Flags().String("found", "", "Show the pages on which this URL was found")
	cmd.Flags().BoolP("json", "j", false, "Output in JSON format")
	cmd.Flags().String("db-dir", config.XDGDataDir(), "Directory of the history database")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	var (
		opts historyOptions
		err  error
	)
	flags := cmd.Flags()
	if opts.dbDir, err = flags.GetString("db-dir"); err != nil {
		return err
	}
	if opts.list, err = flags.GetBool("list"); err != nil {
		return err
	}
	if opts.listSeeds, err = flags.GetBool("list-seeds"); err != nil {
		return err
	}
	if opts.diff, err = flags.GetBool("diff"); err != nil {
		return err
	}
	if opts.withID, err = flags.GetInt64("with-id"); err != nil {
		return err
	}
	if opts.found, err = flags.GetString("found"); err != nil {
		return err
	}
	if opts.json, err = flags.GetBool("json"); err != nil {
		return err
	}

	// Validate arguments before opening the database.
	var seed string
	if !opts.listSeeds {
		if len(args) == 0 {
			return errors.New("a seed URL is required (use --list-seeds to see saved seeds)")
		}
		seed, err = normalizeSeed(args[0])
		if err != nil {
			return err
		}
	}

	db, err := database.Open(opts.dbDir, database.Options{})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	return runHistory(commandContext(cmd), db, seed, opts, cmd.OutOrStdout())
}

// normalizeSeed converts user input into the form seeds are saved in.
func normalizeSeed(arg string) (string, error) {
	target := normalizeTarget(arg)
	seed, ok := urlfilter.Normalize(target, "", urlfilter.Options{SkipHash: true})
	if !ok {
		return "", fmt.Errorf("invalid seed URL: %q", arg)
	}
	return seed, nil
}

// runHistory dispatches to the selected history view.
func runHistory(ctx context.Context, db *database.CrawlDB, seed string, opts historyOptions, w io.Writer) error {
	switch {
	case opts.listSeeds:
		return listSeeds(ctx, db, opts, w)
	case opts.list:
		return listCrawlHistory(ctx, db, seed, opts, w)
	case opts.diff:
		return showDiff(ctx, db, seed, opts, w)
	case opts.found != "":
		return showFoundOn(ctx, db, seed, opts, w)
	default:
		return showLatest(ctx, db, seed, opts, w)
	}
}

func jsonWriter(w io.Writer) *report.JSONWriter {
	return report.NewJSONWriter(w, report.WithPrettyPrint())
}

// listSeeds lists every seed that has saved crawls.
func listSeeds(ctx context.Context, db *database.CrawlDB, opts historyOptions, w io.Writer) error {
	seeds, err := db.ListSeeds(ctx)
	if err != nil {
		return fmt.Errorf("failed to list seeds: %w", err)
	}
	if opts.json {
		if seeds == nil {
			seeds = []string{}
		}
		_, err := jsonWriter(w).WriteValue(seeds)
		return err
	}

	if len(seeds) == 0 {
		fmt.Fprintln(w, "No crawls found in the database.")
		fmt.Fprintln(w, "\nUse 'linkcollector collect <url>' to crawl a site.")
		return nil
	}

	fmt.Fprintf(w, "Crawled seeds (%d):\n\n", len(seeds))
	for _, seed := range seeds {
		fmt.Fprintf(w, "  - %s\n", seed)
	}
	fmt.Fprintln(w, "\nUse 'linkcollector history --list <url>' to see the crawls of a seed.")
	return nil
}

// listCrawlHistory lists the crawls of seed, newest first.
func listCrawlHistory(ctx context.Context, db *database.CrawlDB, seed string, opts historyOptions, w io.Writer) error {
	history, err := db.GetCrawlHistory(ctx, seed)
	if err != nil {
		return fmt.Errorf("failed to get crawl history: %w", err)
	}
	if opts.json {
		if history == nil {
			history = []database.CrawlMetadata{}
		}
		_, err := jsonWriter(w).WriteValue(history)
		return err
	}

	if len(history) == 0 {
		fmt.Fprintf(w, "No crawl history found for %s\n", seed)
		return nil
	}

	fmt.Fprintf(w, "Crawl history for %s (%d crawls):\n\n", seed, len(history))
	fmt.Fprintf(w, "  %-6s  %-19s  %-9s  %5s  %6s  %6s\n", "ID", "Date", "Status", "Depth", "Links", "Errors")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 62))
	for _, meta := range history {
		fmt.Fprintf(w, "  %-6d  %-19s  %-9s  %5d  %6d  %6d\n",
			meta.ID,
			meta.Timestamp.Local().Format(historyTimeLayout),
			meta.Status,
			meta.Depth,
			meta.UniqueLinks,
			meta.ErrorCount,
		)
	}
	fmt.Fprintln(w, "\nUse 'linkcollector history --diff <url>' to compare the latest two crawls.")
	return nil
}

// showDiff prints the URLs added and removed between two crawls.
func showDiff(ctx context.Context, db *database.CrawlDB, seed string, opts historyOptions, w io.Writer) error {
	var (
		cmp *database.Comparison
		err error
	)
	if opts.withID > 0 {
		history, herr := db.GetCrawlHistory(ctx, seed)
		if herr != nil {
			return fmt.Errorf("failed to get crawl history: %w", herr)
		}
		if len(history) == 0 {
			return fmt.Errorf("no crawl history found for %s", seed)
		}
		if !containsCrawl(history, opts.withID) {
			return fmt.Errorf("crawl %d does not belong to %s", opts.withID, seed)
		}
		cmp, err = db.CompareCrawls(ctx, opts.withID, history[0].ID)
	} else {
		cmp, err = db.CompareLatest(ctx, seed)
	}
	if err != nil {
		return err
	}

	if opts.json {
		_, err := jsonWriter(w).WriteValue(cmp)
		return err
	}

	fmt.Fprintf(w, "Comparing crawls of %s\n", cmp.SeedURL)
	fmt.Fprintf(w, "  previous: #%d  %s  %d links\n",
		cmp.Previous.ID, cmp.Previous.Timestamp.Local().Format(historyTimeLayout), cmp.Previous.UniqueLinks)
	fmt.Fprintf(w, "  current:  #%d  %s  %d links\n\n",
		cmp.Current.ID, cmp.Current.Timestamp.Local().Format(historyTimeLayout), cmp.Current.UniqueLinks)

	if cmp.Unchanged {
		fmt.Fprintln(w, "No changes: both crawls collected the same URLs and pages.")
		return nil
	}

	fmt.Fprintf(w, "Added (%d):\n", len(cmp.Added))
	for _, u := range cmp.Added {
		fmt.Fprintf(w, "  + %s\n", u)
	}
	fmt.Fprintf(w, "\nRemoved (%d):\n", len(cmp.Removed))
	for _, u := range cmp.Removed {
		fmt.Fprintf(w, "  - %s\n", u)
	}
	fmt.Fprintf(w, "\nContent changed (%d):\n", len(cmp.Changed))
	for _, u := range cmp.Changed {
		fmt.Fprintf(w, "  ~ %s\n", u)
	}
	return nil
}

func containsCrawl(history []database.CrawlMetadata, id int64) bool {
	for _, meta := range history {
		if meta.ID == id {
			return true
		}
	}
	return false
}

// showFoundOn prints the pages on which opts.found was discovered.
func showFoundOn(ctx context.Context, db *database.CrawlDB, seed string, opts historyOptions, w io.Writer) error {
	found, ok := urlfilter.Normalize(normalizeTarget(opts.found), "", urlfilter.Options{SkipHash: true})
	if !ok {
		return fmt.Errorf("invalid URL: %q", opts.found)
	}

	rels, err := db.QueryRelationships(ctx, seed, found)
	if err != nil {
		return err
	}
	if opts.json {
		if rels == nil {
			rels = []database.Relationship{}
		}
		_, err := jsonWriter(w).WriteValue(rels)
		return err
	}

	if len(rels) == 0 {
		fmt.Fprintf(w, "%s was not found in any crawl of %s\n", found, seed)
		return nil
	}

	fmt.Fprintf(w, "%s was found on:\n\n", found)
	for _, rel := range rels {
		fmt.Fprintf(w, "  #%-5d %s\n", rel.CrawlID, rel.Source)
	}
	return nil
}

// showLatest prints the latest saved crawl of seed.
func showLatest(ctx context.Context, db *database.CrawlDB, seed string, opts historyOptions, w io.Writer) error {
	result, err := db.GetLatestCrawl(ctx, seed)
	if err != nil {
		return err
	}
	if result == nil {
		return fmt.Errorf("no crawl history found for %s", seed)
	}

	var writer report.Writer = report.NewSimpleWriter(w)
	if opts.json {
		writer = jsonWriter(w)
	}
	_, err = writer.Write(result)
	return err
}
