package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/linkcollector/internal/model"
)

// JSONWriter outputs crawl results as JSON.
type JSONWriter struct {
	baseWriter

	indent       bool
	indentPrefix string
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables indented JSON with the given prefix and indent.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
// Output is compact unless an indent option is given.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the crawl result as JSON.
func (w *JSONWriter) Write(result *model.CrawlResult) (int, error) {
	return w.WriteValue(result)
}

// WriteValue marshals any value with the writer's formatting, followed by
// a newline. The history command uses it for comparisons and listings.
func (w *JSONWriter) WriteValue(v any) (int, error) {
	var (
		data []byte
		err  error
	)
	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}

// JSONReport wraps a crawl result with tool metadata and the API summary.
type JSONReport struct {
	// Version is the linkcollector version that produced the report.
	Version string `json:"version"`

	Summary model.Summary      `json:"summary"`
	Result  *model.CrawlResult `json:"result"`
}

// NewJSONReport creates a JSONReport for result.
func NewJSONReport(result *model.CrawlResult, version string) *JSONReport {
	return &JSONReport{
		Version: version,
		Summary: result.Summary(),
		Result:  result,
	}
}

// FullJSONWriter outputs crawl results wrapped in a JSONReport.
type FullJSONWriter struct {
	*JSONWriter

	version string
}

// NewFullJSONWriter creates a writer for results with metadata.
func NewFullJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *FullJSONWriter {
	return &FullJSONWriter{
		JSONWriter: NewJSONWriter(output, opts...),
		version:    version,
	}
}

// Write outputs result wrapped with metadata.
func (w *FullJSONWriter) Write(result *model.CrawlResult) (int, error) {
	return w.WriteValue(NewJSONReport(result, w.version))
}
