// Package report renders crawl results.
//
// Writers for the supported output formats:
//   - SimpleWriter: human-readable text for the terminal
//   - JSONWriter and FullJSONWriter: the crawl result as JSON
//   - MarkdownWriter: a shareable Markdown report with tables and a chart
//   - ListWriter: a plain URL list ready to paste into other tools
//
// All writers implement Writer and can be combined with MultiWriter.
package report
