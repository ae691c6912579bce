package crawler

import "github.com/nao1215/linkcollector/internal/model"

// aggregate turns the final traversal state into a CrawlResult.
// It performs no I/O.
func aggregate(t *traversal) *model.CrawlResult {
	collected := dedupe(t.collected)

	relationships := make([]model.LinkRelationship, len(t.relationships))
	copy(relationships, t.relationships)

	errs := make([]model.CrawlError, len(t.errors))
	copy(errs, t.errors)

	titles := copyMap(t.titles)
	hashes := copyMap(t.hashes)

	return &model.CrawlResult{
		ID:                t.id,
		InitialURL:        t.seed,
		Depth:             t.c.maxDepth,
		Status:            t.status(),
		Truncated:         t.truncated,
		AllCollectedURLs:  collected,
		LinkRelationships: relationships,
		Errors:            errs,
		PageTitles:        titles,
		PageHashes:        hashes,
		Stats: model.CrawlStats{
			StartTime:          t.startTime,
			EndTime:            t.endTime,
			DurationMs:         t.endTime.Sub(t.startTime).Milliseconds(),
			TotalURLsScanned:   t.scanned,
			TotalURLsCollected: t.rawLinks,
			UniqueLinks:        len(collected),
			MaxDepthReached:    t.maxDepthReached,
		},
	}
}

// dedupe returns urls without repeats, keeping the first occurrence.
func dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// copyMap returns a copy of m, or nil when m is empty.
func copyMap(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
