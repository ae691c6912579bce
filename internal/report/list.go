package report

import (
	"io"
	"strings"

	"github.com/nao1215/linkcollector/internal/model"
)

// ListWriter outputs only the collected URLs, joined by a separator, for
// pasting into tools that accept a list of sources.
type ListWriter struct {
	baseWriter

	separator     string
	includeTitle  bool
	includeSource bool
}

// ListWriterOption configures a ListWriter.
type ListWriterOption func(*ListWriter)

// WithSeparator sets the string between URLs. The default is a newline.
func WithSeparator(sep string) ListWriterOption {
	return func(w *ListWriter) {
		w.separator = sep
	}
}

// WithTitle appends "(title)" to URLs whose page title is known.
func WithTitle(include bool) ListWriterOption {
	return func(w *ListWriter) {
		w.includeTitle = include
	}
}

// WithSource appends "[from: page]" with the page each URL was first
// found on.
func WithSource(include bool) ListWriterOption {
	return func(w *ListWriter) {
		w.includeSource = include
	}
}

// NewListWriter creates a ListWriter that outputs to the given writer.
func NewListWriter(output io.Writer, opts ...ListWriterOption) *ListWriter {
	w := &ListWriter{
		baseWriter: newBaseWriter(output),
		separator:  "\n",
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the collected URLs followed by a newline. Nothing is
// written when no URL was collected.
func (w *ListWriter) Write(result *model.CrawlResult) (int, error) {
	if len(result.AllCollectedURLs) == 0 {
		return 0, nil
	}
	return io.WriteString(w.output, w.Format(result)+"\n")
}

// Format returns the list without a trailing newline.
func (w *ListWriter) Format(result *model.CrawlResult) string {
	var sources map[string]string
	if w.includeSource {
		sources = result.FirstSources()
	}

	entries := make([]string, len(result.AllCollectedURLs))
	for i, u := range result.AllCollectedURLs {
		parts := []string{u}
		if w.includeTitle {
			if title := result.PageTitles[u]; title != "" {
				parts = append(parts, "("+title+")")
			}
		}
		if w.includeSource {
			if src := sources[u]; src != "" && src != u {
				parts = append(parts, "[from: "+src+"]")
			}
		}
		entries[i] = strings.Join(parts, " ")
	}
	return strings.Join(entries, w.separator)
}
