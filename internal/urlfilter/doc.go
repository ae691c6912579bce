// Package urlfilter canonicalizes discovered links and decides which of
// them a crawl may collect.
//
// # Normalization
//
// Normalize resolves a raw href against the page it was found on, rejects
// anything that is not http or https, lowercases the scheme and host,
// removes default ports and optionally strips the fragment and query.
// Normalizing an already normalized URL returns it unchanged.
//
// # Filtering
//
// A Filter is compiled from a list of model.FilterRule values. Exclusion
// rules are checked first and always win. When at least one inclusion rule
// exists the filter acts as an allow-list; otherwise every URL not excluded
// is allowed. All comparisons are case-insensitive.
//
// Regex conditions are compiled once into a Matcher. A pattern that is not
// a valid regular expression becomes a substring matcher instead, so a
// filter never fails at match time:
//
//	m := urlfilter.CompileMatcher("[unclosed")
//	m.Kind()                                    // urlfilter.MatchSubstring
//	m.Match("https://x.com/[unclosed-path")     // true
package urlfilter
