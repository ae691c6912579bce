package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/linkcollector/internal/model"
)

// SimpleWriter outputs human-readable text for the terminal. Plain ASCII
// keeps it readable when piped to a file.
type SimpleWriter struct {
	baseWriter

	// showEmpty prints sections that have nothing in them.
	showEmpty bool

	// verbose adds error messages and the relationship list.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the crawl result in human-readable format.
func (w *SimpleWriter) Write(result *model.CrawlResult) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, result)
	w.writeStats(&sb, result)
	w.writeURLs(&sb, result)
	w.writeErrors(&sb, result)
	if w.verbose {
		w.writeRelationships(&sb, result)
	}
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

func rule(sb *strings.Builder, ch string) {
	sb.WriteString(strings.Repeat(ch, 70))
	sb.WriteString("\n")
}

func section(sb *strings.Builder, title string) {
	rule(sb, "-")
	sb.WriteString(title)
	sb.WriteString("\n")
	rule(sb, "-")
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, result *model.CrawlResult) {
	sb.WriteString("\n")
	rule(sb, "=")
	sb.WriteString("                      LINK COLLECTION REPORT\n")
	rule(sb, "=")
	sb.WriteString("\n")

	fmt.Fprintf(sb, "Seed URL:   %s\n", result.InitialURL)
	if result.ID != "" {
		fmt.Fprintf(sb, "Crawl ID:   %s\n", result.ID)
	}
	fmt.Fprintf(sb, "Crawled:    %s\n", crawlTime(result).Format(timeLayout))
	fmt.Fprintf(sb, "Depth:      %d\n", result.Depth)
	fmt.Fprintf(sb, "Status:     %s\n", statusText(result))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeStats(sb *strings.Builder, result *model.CrawlResult) {
	section(sb, "STATISTICS")

	s := result.Stats
	fmt.Fprintf(sb, "  Pages scanned:      %d\n", s.TotalURLsScanned)
	fmt.Fprintf(sb, "  Links extracted:    %d\n", s.TotalURLsCollected)
	fmt.Fprintf(sb, "  Unique links:       %d\n", s.UniqueLinks)
	fmt.Fprintf(sb, "  Relationships:      %d\n", len(result.LinkRelationships))
	fmt.Fprintf(sb, "  Max depth reached:  %d\n", s.MaxDepthReached)
	fmt.Fprintf(sb, "  Errors:             %d\n", len(result.Errors))
	fmt.Fprintf(sb, "  Duration:           %s\n", formatDuration(s.DurationMs))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeURLs(sb *strings.Builder, result *model.CrawlResult) {
	if len(result.AllCollectedURLs) == 0 && !w.showEmpty {
		return
	}

	section(sb, fmt.Sprintf("COLLECTED URLS (%d)", len(result.AllCollectedURLs)))
	if len(result.AllCollectedURLs) == 0 {
		sb.WriteString("  No links collected\n\n")
		return
	}

	width := len(fmt.Sprint(len(result.AllCollectedURLs)))
	for i, u := range result.AllCollectedURLs {
		fmt.Fprintf(sb, "  %*d. %s\n", width, i+1, u)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeErrors(sb *strings.Builder, result *model.CrawlResult) {
	if len(result.Errors) == 0 && !w.showEmpty {
		return
	}

	section(sb, "ERRORS")
	if len(result.Errors) == 0 {
		sb.WriteString("  No errors\n\n")
		return
	}

	counts := result.ErrorCounts()
	for _, et := range model.ErrorTypes() {
		n := counts[et]
		if n == 0 {
			continue
		}
		fmt.Fprintf(sb, "[%s] %d\n", et, n)
		for _, e := range result.Errors {
			if e.ErrorType != et {
				continue
			}
			if w.verbose {
				fmt.Fprintf(sb, "  * %s\n    %s\n", e.URL, e.Message)
			} else {
				fmt.Fprintf(sb, "  * %s\n", e.URL)
			}
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeRelationships(sb *strings.Builder, result *model.CrawlResult) {
	if len(result.LinkRelationships) == 0 && !w.showEmpty {
		return
	}

	section(sb, "LINK RELATIONSHIPS")
	if len(result.LinkRelationships) == 0 {
		sb.WriteString("  None\n\n")
		return
	}

	source := ""
	for _, rel := range result.LinkRelationships {
		if rel.Source != source {
			source = rel.Source
			fmt.Fprintf(sb, "  %s\n", source)
		}
		fmt.Fprintf(sb, "    -> %s\n", rel.Found)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	rule(sb, "=")
	sb.WriteString("Report generated by linkcollector\n")
	sb.WriteString("https://github.com/nao1215/linkcollector\n")
	rule(sb, "=")
}
