package urlfilter

import (
	"net"
	"net/url"
	"strings"
)

// Options controls which URL components Normalize strips.
type Options struct {
	// SkipQuery removes the query string.
	SkipQuery bool

	// SkipHash removes the fragment.
	SkipHash bool
}

// Normalize resolves raw against base and returns the canonical absolute
// URL. The boolean is false when raw is empty, unparseable, resolves to a
// scheme other than http or https, or has no host.
//
// base may be empty, in which case raw must already be absolute.
func Normalize(raw, base string, opts Options) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "#" {
		return "", false
	}

	ref, err := url.Parse(raw)
	if err != nil {
		return "", false
	}

	u := ref
	if base != "" {
		baseURL, err := url.Parse(base)
		if err != nil {
			return "", false
		}
		u = baseURL.ResolveReference(ref)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if u.Hostname() == "" {
		return "", false
	}

	u.Host = canonicalHost(u.Scheme, u.Host)

	if u.Path == "" {
		u.Path = "/"
		u.RawPath = ""
	}
	if opts.SkipHash {
		u.Fragment = ""
		u.RawFragment = ""
	}
	if opts.SkipQuery {
		u.RawQuery = ""
		u.ForceQuery = false
	}

	return u.String(), true
}

// canonicalHost lowercases host and drops the port when it is the default
// for scheme.
func canonicalHost(scheme, host string) string {
	host = strings.ToLower(host)

	h, port, err := net.SplitHostPort(host)
	if err != nil {
		return host
	}
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") || port == "" {
		if strings.Contains(h, ":") {
			return "[" + h + "]"
		}
		return h
	}
	return host
}

// Normalizer applies a fixed set of Options. Its zero value keeps both the
// query and the fragment.
type Normalizer struct {
	opts Options
}

// NewNormalizer returns a Normalizer using opts.
func NewNormalizer(opts Options) Normalizer {
	return Normalizer{opts: opts}
}

// Normalize is the method form of the package level Normalize.
func (n Normalizer) Normalize(raw, base string) (string, bool) {
	return Normalize(raw, base, n.opts)
}

// Options returns the options the Normalizer was built with.
func (n Normalizer) Options() Options {
	return n.opts
}
