// Package server exposes link collection over HTTP.
//
// # Endpoints
//
//	POST /api/collectLinks   crawl a seed URL and return the collected links
//	GET  /api/health         liveness probe
//
// A collect request is a JSON object:
//
//	{
//	  "url": "https://example.com/docs/",
//	  "selector": "main",
//	  "options": {"depth": 1, "delayMs": 1000, "filters": [{"pathPrefix": "/docs/"}]}
//	}
//
// Depth and delayMs fall back to 1 and 1000 when omitted or zero. The
// response is the success envelope built by model.NewCollectResponse, or
// {"success": false, "error": "..."} with status 400 for a bad request,
// 504 when the crawl exceeds the per-request timeout and 500 for anything
// else.
//
// # Middleware
//
// Handler wraps the routes with RequestID, which assigns or propagates
// X-Request-ID, and Logging, which writes one structured line per request.
//
// Each crawl runs through the same pipeline as the CLI, so results are
// saved to the history database when a Saver is configured.
package server
