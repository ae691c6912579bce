package crawler

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// anchorSelector matches every element whose href is a navigable link.
const anchorSelector = "a[href], area[href]"

// Document holds what the crawl needs from a parsed page.
type Document struct {
	// Title is the trimmed text of the first <title> element.
	Title string

	// BaseHref is the href of the first <base> element, if any.
	BaseHref string

	// Links are the raw href values in document order, not deduplicated.
	Links []string
}

// Extractor pulls hyperlinks out of HTML. An Extractor with a scope
// selector only returns links inside elements matching the selector.
// It holds no per-document state and is safe for concurrent use.
type Extractor struct {
	selector string
	scope    cascadia.Selector
}

// NewExtractor compiles selector. An empty selector means the whole
// document is in scope.
func NewExtractor(selector string) (*Extractor, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return &Extractor{}, nil
	}

	compiled, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidSelector, selector, err)
	}
	return &Extractor{selector: selector, scope: compiled}, nil
}

// ValidateSelector reports whether selector is valid CSS.
func ValidateSelector(selector string) error {
	_, err := NewExtractor(selector)
	return err
}

// Selector returns the scope selector, or "" when unscoped.
func (e *Extractor) Selector() string {
	return e.selector
}

// Extract parses html and returns its title, base href and links.
// When scoped is true and the extractor has a selector, only anchors inside
// (or equal to) an element matching the selector are returned; a selector
// matching nothing yields no links.
//
// The HTML parser recovers from malformed markup, so Extract only fails if
// the input cannot be read at all.
func (e *Extractor) Extract(html string, scoped bool) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	result := &Document{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
		Links: make([]string, 0),
	}
	if base, ok := doc.Find("base[href]").First().Attr("href"); ok {
		result.BaseHref = strings.TrimSpace(base)
	}

	anchors := doc.Find(anchorSelector)
	if scoped && e.scope != nil {
		if doc.FindMatcher(e.scope).Length() == 0 {
			return result, nil
		}
		anchors = anchors.FilterFunction(func(_ int, s *goquery.Selection) bool {
			return s.ClosestMatcher(e.scope).Length() > 0
		})
	}

	anchors.Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			result.Links = append(result.Links, href)
		}
	})

	return result, nil
}

// ExtractLinks returns the href of every anchor in html, restricted to the
// elements matching scopeSelector when it is non-empty.
func ExtractLinks(html, scopeSelector string) ([]string, error) {
	e, err := NewExtractor(scopeSelector)
	if err != nil {
		return nil, err
	}
	doc, err := e.Extract(html, true)
	if err != nil {
		return nil, err
	}
	return doc.Links, nil
}
