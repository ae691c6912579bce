// Package main provides the entry point for the linkcollector CLI.
//
// linkcollector crawls websites breadth-first from one or more seed URLs,
// collects every link it finds and records which page each link was found
// on. Results can be printed as text, JSON, Markdown or a plain URL list,
// and are kept in a local history database for later comparison.
//
// Usage:
//
//	linkcollector collect <url> [url...]
//	linkcollector serve
//	linkcollector history <url>
//
// See --help for all available options.
package main

// main is the entry point for linkcollector.
func main() {
	Execute()
}
