package model

import (
	"crypto/sha256"
	"encoding/hex"
)

// Page is a successfully fetched HTML document.
// The fetcher has already decoded the transfer encoding and converted the
// body to UTF-8, so HTML is ready for link extraction.
type Page struct {
	// URL is the URL that was requested.
	URL string `json:"url"`

	// FinalURL is the URL after following redirects. Relative links on the
	// page are resolved against it.
	FinalURL string `json:"finalUrl"`

	// StatusCode is the HTTP response status code.
	StatusCode int `json:"statusCode"`

	// ContentType is the value of the Content-Type response header.
	ContentType string `json:"contentType"`

	// HTML is the decoded document body.
	HTML string `json:"-"`

	// Hash is the SHA-256 hash of HTML, hex encoded.
	Hash string `json:"hash"`
}

// BaseURL returns the URL that relative links on the page resolve against.
func (p *Page) BaseURL() string {
	if p.FinalURL != "" {
		return p.FinalURL
	}
	return p.URL
}

// ComputeHash calculates the SHA-256 hash of the page body.
func (p *Page) ComputeHash() {
	sum := sha256.Sum256([]byte(p.HTML))
	p.Hash = hex.EncodeToString(sum[:])
}
