package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/linkcollector/internal/model"
)

// maxMarkdownRelationships caps the relationship table. Large crawls have
// thousands of pairs; the JSON report carries them all.
const maxMarkdownRelationships = 200

// MarkdownWriter outputs crawl results as GitHub-flavored Markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the crawl result in Markdown format.
func (w *MarkdownWriter) Write(result *model.CrawlResult) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, result)
	w.writeStats(md, result)
	w.writeErrors(md, result)
	w.writeURLs(md, result)
	w.writeRelationships(md, result)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, result *model.CrawlResult) {
	md.H1("Link Collection Report")
	md.PlainText("")

	rows := [][]string{
		{"Seed URL", "`" + result.InitialURL + "`"},
		{"Crawled", crawlTime(result).Format(timeLayout)},
		{"Depth", strconv.Itoa(result.Depth)},
		{"Status", statusText(result)},
	}
	if result.ID != "" {
		rows = append(rows, []string{"Crawl ID", "`" + result.ID + "`"})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeStats(md *markdown.Markdown, result *model.CrawlResult) {
	md.H2("Statistics")
	md.PlainText("")

	s := result.Stats
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Pages scanned", strconv.Itoa(s.TotalURLsScanned)},
			{"Links extracted", strconv.Itoa(s.TotalURLsCollected)},
			{"Unique links", strconv.Itoa(s.UniqueLinks)},
			{"Relationships", strconv.Itoa(len(result.LinkRelationships))},
			{"Max depth reached", strconv.Itoa(s.MaxDepthReached)},
			{"Errors", strconv.Itoa(len(result.Errors))},
			{"Duration", formatDuration(s.DurationMs)},
		},
	})
	md.PlainText("")

	switch {
	case result.Status == model.CrawlStatusCancelled:
		md.Warningf("The crawl was cancelled. %d page(s) were scanned before it stopped.", s.TotalURLsScanned)
	case result.Truncated:
		md.Importantf("The page limit stopped the crawl after %d page(s); some links were not followed.", s.TotalURLsScanned)
	case len(result.Errors) > 0:
		md.Note("Some pages could not be fetched. See the errors below.")
	default:
		md.Tip("Every page in range was scanned successfully.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeErrors(md *markdown.Markdown, result *model.CrawlResult) {
	if len(result.Errors) == 0 {
		return
	}

	md.H2("Errors")
	md.PlainText("")

	counts := result.ErrorCounts()
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Errors by Type"),
		piechart.WithShowData(true),
	)
	for _, et := range model.ErrorTypes() {
		if n := counts[et]; n > 0 {
			chart.LabelAndIntValue(string(et), uint64(n))
		}
	}
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")

	rows := make([][]string, len(result.Errors))
	for i, e := range result.Errors {
		rows[i] = []string{"`" + e.URL + "`", string(e.ErrorType), truncateString(e.Message, 80)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Type", "Message"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeURLs(md *markdown.Markdown, result *model.CrawlResult) {
	md.H2("Collected URLs")
	md.PlainText("")

	if len(result.AllCollectedURLs) == 0 {
		md.PlainText("No links were collected.")
		md.PlainText("")
		return
	}

	md.BulletList(result.AllCollectedURLs...)
	md.PlainText("")
}

func (w *MarkdownWriter) writeRelationships(md *markdown.Markdown, result *model.CrawlResult) {
	if len(result.LinkRelationships) == 0 {
		return
	}

	md.H2("Link Relationships")
	md.PlainText("")

	rels := result.LinkRelationships
	if len(rels) > maxMarkdownRelationships {
		rels = rels[:maxMarkdownRelationships]
	}
	rows := make([][]string, len(rels))
	for i, rel := range rels {
		rows[i] = []string{rel.Source, rel.Found}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Found On", "Link"},
		Rows:   rows,
	})
	md.PlainText("")

	if hidden := len(result.LinkRelationships) - len(rels); hidden > 0 {
		md.Details("More relationships",
			strconv.Itoa(hidden)+" more relationship(s) are omitted. Use --json for the full list.")
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [linkcollector](https://github.com/nao1215/linkcollector)*")
}

// truncateString truncates a string to maxLen bytes with an ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
