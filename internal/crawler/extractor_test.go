package crawler

import (
	"errors"
	"strings"
	"testing"
)

func TestExtractLinks(t *testing.T) {
	t.Parallel()

	t.Run("document order without deduplication", func(t *testing.T) {
		t.Parallel()

		html := `<html><body>
			<a href="/first">1</a>
			<p><a href="/second">2</a></p>
			<a name="anchor-only">no href</a>
			<map><area href="/map-area"></map>
			<a href="/first">1 again</a>
		</body></html>`

		links, err := ExtractLinks(html, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"/first", "/second", "/map-area", "/first"}
		if strings.Join(links, ",") != strings.Join(want, ",") {
			t.Errorf("expected %v, got %v", want, links)
		}
	})

	t.Run("scoped to selector", func(t *testing.T) {
		t.Parallel()

		html := `<header><a href="/h">h</a></header>
			<article class="post"><a href="/p1">p1</a></article>
			<aside><a href="/s">s</a></aside>
			<article class="post"><a href="/p2">p2</a></article>`

		links, err := ExtractLinks(html, "article.post")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"/p1", "/p2"}
		if strings.Join(links, ",") != strings.Join(want, ",") {
			t.Errorf("expected %v, got %v", want, links)
		}
	})

	t.Run("selector matching the anchor itself", func(t *testing.T) {
		t.Parallel()

		links, err := ExtractLinks(`<a class="nav" href="/x">x</a><a href="/y">y</a>`, "a.nav")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(links) != 1 || links[0] != "/x" {
			t.Errorf("expected [/x], got %v", links)
		}
	})

	t.Run("selector matching nothing returns empty list", func(t *testing.T) {
		t.Parallel()

		links, err := ExtractLinks(`<a href="/x">x</a>`, "#does-not-exist")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if links == nil || len(links) != 0 {
			t.Errorf("expected empty non-nil list, got %#v", links)
		}
	})

	t.Run("malformed html", func(t *testing.T) {
		t.Parallel()

		html := `<p><a href="/one">one<a href='/two'>two</p></span><a href=/three>three<b><i>unclosed`
		links, err := ExtractLinks(html, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"/one", "/two", "/three"}
		if strings.Join(links, ",") != strings.Join(want, ",") {
			t.Errorf("expected %v, got %v", want, links)
		}
	})

	t.Run("invalid selector", func(t *testing.T) {
		t.Parallel()

		_, err := ExtractLinks(`<a href="/x">x</a>`, "div[")
		if !errors.Is(err, ErrInvalidSelector) {
			t.Errorf("expected ErrInvalidSelector, got %v", err)
		}
	})
}

func TestExtractor_Extract(t *testing.T) {
	t.Parallel()

	html := `<html><head>
		<title>  Docs Home </title>
		<base href="https://cdn.example.com/">
	</head><body><main><a href="a.html">a</a></main><a href="b.html">b</a></body></html>`

	e, err := NewExtractor("main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Selector() != "main" {
		t.Errorf("expected selector main, got %q", e.Selector())
	}

	scoped, err := e.Extract(html, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scoped.Title != "Docs Home" {
		t.Errorf("expected title 'Docs Home', got %q", scoped.Title)
	}
	if scoped.BaseHref != "https://cdn.example.com/" {
		t.Errorf("expected base href, got %q", scoped.BaseHref)
	}
	if len(scoped.Links) != 1 || scoped.Links[0] != "a.html" {
		t.Errorf("expected [a.html], got %v", scoped.Links)
	}

	unscoped, err := e.Extract(html, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(unscoped.Links) != 2 {
		t.Errorf("expected 2 links without scope, got %v", unscoped.Links)
	}
}

func TestValidateSelector(t *testing.T) {
	t.Parallel()

	for _, sel := range []string{"", "main", "div.content > a", "#id, .class", "ul li:nth-child(2)"} {
		if err := ValidateSelector(sel); err != nil {
			t.Errorf("expected %q to be valid, got %v", sel, err)
		}
	}
	for _, sel := range []string{"div[", ">>>", "a:unknown-pseudo"} {
		if err := ValidateSelector(sel); err == nil {
			t.Errorf("expected %q to be invalid", sel)
		}
	}
}
