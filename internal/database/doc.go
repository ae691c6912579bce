// Package database stores crawl history in SQLite.
//
// Every saved crawl keeps its full JSON result plus three normalized tables
// (collected URLs, link relationships and errors) so that history queries
// such as "where was this link found" or "what changed since last week"
// run as SQL instead of decoding old results.
//
// The driver is modernc.org/sqlite, which needs no cgo, so the binary stays
// easy to cross-compile and the database is a single file under the XDG
// data directory.
package database
