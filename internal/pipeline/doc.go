// Package pipeline runs link collection jobs.
//
// A Job carries one seed through a Pipeline of Steps: the crawl itself,
// saving the raw result to the history database, and the post-crawl
// exclusion patterns applied to what is printed. BatchCollector runs one
// pipeline per seed with a concurrency limit. Every crawl keeps its own
// traversal state, so seeds never share visited sets or relationships.
package pipeline
