package report

import (
	"io"
	"time"

	"github.com/nao1215/linkcollector/internal/model"
)

// timeLayout is the timestamp layout used in human-readable reports.
const timeLayout = "2006-01-02 15:04:05 MST"

// Writer writes crawl results in some format.
type Writer interface {
	// Write outputs result and returns the number of bytes written.
	Write(result *model.CrawlResult) (int, error)
}

// MultiWriter writes to multiple Writers in turn.
// Our Writer takes results rather than bytes, so io.MultiWriter does not fit.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs result to every Writer and stops on the first error.
func (m *MultiWriter) Write(result *model.CrawlResult) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(result)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter holds the output destination shared by all writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// statusText describes the terminal state of result.
func statusText(result *model.CrawlResult) string {
	switch {
	case result.Status == model.CrawlStatusCancelled:
		return "Cancelled (partial results)"
	case result.Status == model.CrawlStatusFailed:
		return "Failed"
	case result.Truncated:
		return "Complete (page limit reached)"
	default:
		return "Complete"
	}
}

// crawlTime returns when the crawl ended, falling back to its start.
func crawlTime(result *model.CrawlResult) time.Time {
	if !result.Stats.EndTime.IsZero() {
		return result.Stats.EndTime
	}
	return result.Stats.StartTime
}

func formatDuration(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).String()
}
