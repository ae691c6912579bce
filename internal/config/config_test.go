package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/linkcollector/internal/model"
)

// TestNewConfig tests that NewConfig returns the expected defaults.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	if cfg == nil {
		t.Fatal("NewConfig returned nil")
	}

	t.Run("default Timeout is 30 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.Timeout != 30*time.Second {
			t.Errorf("expected 30s, got %v", cfg.Timeout)
		}
	})

	t.Run("default CrawlDepth is 1", func(t *testing.T) {
		t.Parallel()
		if cfg.CrawlDepth != 1 {
			t.Errorf("expected 1, got %d", cfg.CrawlDepth)
		}
	})

	t.Run("default CrawlDelay is one second", func(t *testing.T) {
		t.Parallel()
		if cfg.CrawlDelay != time.Second {
			t.Errorf("expected 1s, got %v", cfg.CrawlDelay)
		}
	})

	t.Run("default MaxPages is 500", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxPages != 500 {
			t.Errorf("expected 500, got %d", cfg.MaxPages)
		}
	})

	t.Run("default BatchSize is 4", func(t *testing.T) {
		t.Parallel()
		if cfg.BatchSize != 4 {
			t.Errorf("expected 4, got %d", cfg.BatchSize)
		}
	})

	t.Run("fragments are skipped and queries kept by default", func(t *testing.T) {
		t.Parallel()
		if !cfg.SkipHashURLs {
			t.Error("expected SkipHashURLs to be true")
		}
		if cfg.SkipQueryURLs {
			t.Error("expected SkipQueryURLs to be false")
		}
	})

	t.Run("default SelectorScope is seed", func(t *testing.T) {
		t.Parallel()
		if cfg.SelectorScope != model.SelectorScopeSeed {
			t.Errorf("expected seed, got %q", cfg.SelectorScope)
		}
	})

	t.Run("default ListenAddr is :7071", func(t *testing.T) {
		t.Parallel()
		if cfg.ListenAddr != ":7071" {
			t.Errorf("expected :7071, got %q", cfg.ListenAddr)
		}
	})

	t.Run("default UserAgent identifies linkcollector", func(t *testing.T) {
		t.Parallel()
		if cfg.UserAgent != DefaultUserAgent {
			t.Errorf("expected %q, got %q", DefaultUserAgent, cfg.UserAgent)
		}
	})
}

// TestConfigValidate tests the Validate method.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	valid := func() *Config {
		cfg := NewConfig()
		cfg.Targets = []string{"https://example.com"}
		return cfg
	}

	t.Run("valid config returns nil", func(t *testing.T) {
		t.Parallel()
		if err := valid().Validate(); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})

	t.Run("depth zero is valid", func(t *testing.T) {
		t.Parallel()
		cfg := valid()
		cfg.CrawlDepth = 0
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"empty targets", func(c *Config) { c.Targets = nil }, ErrNoTarget},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, ErrInvalidTimeout},
		{"negative depth", func(c *Config) { c.CrawlDepth = -1 }, ErrInvalidDepth},
		{"negative max pages", func(c *Config) { c.MaxPages = -1 }, ErrInvalidMaxPages},
		{"negative delay", func(c *Config) { c.CrawlDelay = -time.Second }, ErrInvalidCrawlDelay},
		{"negative rate", func(c *Config) { c.RateLimit = -1 }, ErrInvalidRateLimit},
		{"negative body size", func(c *Config) { c.MaxBodySize = -1 }, ErrInvalidMaxBodySize},
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }, ErrInvalidBatchSize},
		{"unknown selector scope", func(c *Config) { c.SelectorScope = "page" }, ErrInvalidSelectorScope},
		{"bad separator", func(c *Config) { c.ListSeparator = "comma" }, ErrInvalidSeparator},
		{"bad proxy", func(c *Config) { c.ProxyURL = "://nope" }, ErrInvalidProxyURL},
		{"json and markdown", func(c *Config) { c.JSONReport, c.MarkdownReport = true, true }, ErrConflictingReportFormats},
		{"json and list", func(c *Config) { c.JSONReport, c.ListReport = true, true }, ErrConflictingReportFormats},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

// TestConfigValidateServer tests the ValidateServer method.
func TestConfigValidateServer(t *testing.T) {
	t.Parallel()

	t.Run("defaults are valid without targets", func(t *testing.T) {
		t.Parallel()
		if err := NewConfig().ValidateServer(); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})

	t.Run("empty address returns ErrNoListenAddr", func(t *testing.T) {
		t.Parallel()
		cfg := NewConfig()
		cfg.ListenAddr = " "
		if err := cfg.ValidateServer(); !errors.Is(err, ErrNoListenAddr) {
			t.Errorf("expected ErrNoListenAddr, got %v", err)
		}
	})

	t.Run("zero request timeout returns ErrInvalidRequestTimeout", func(t *testing.T) {
		t.Parallel()
		cfg := NewConfig()
		cfg.RequestTimeout = 0
		if err := cfg.ValidateServer(); !errors.Is(err, ErrInvalidRequestTimeout) {
			t.Errorf("expected ErrInvalidRequestTimeout, got %v", err)
		}
	})
}

// TestParseSeparator tests the list separator parsing.
func TestParseSeparator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Separator
		literal string
		wantErr bool
	}{
		{"", SeparatorNewline, "\n", false},
		{"newline", SeparatorNewline, "\n", false},
		{"SPACE", SeparatorSpace, " ", false},
		{"tab", "", "", true},
	}
	for _, tt := range tests {
		got, err := ParseSeparator(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidSeparator) {
				t.Errorf("ParseSeparator(%q): expected ErrInvalidSeparator, got %v", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseSeparator(%q): unexpected error %v", tt.in, err)
			continue
		}
		if got != tt.want || got.String() != tt.literal {
			t.Errorf("ParseSeparator(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

// TestFileGetSiteConfig tests the merge of defaults and site entries.
func TestFileGetSiteConfig(t *testing.T) {
	t.Parallel()

	yes, no := true, false

	t.Run("returns defaults when site not found", func(t *testing.T) {
		t.Parallel()
		cf := &File{
			Defaults: SiteConfig{Depth: 2, Cookie: "a=b"},
			Sites:    map[string]SiteConfig{"other.com": {Depth: 9}},
		}
		got := cf.GetSiteConfig("example.com")
		if got.Depth != 2 {
			t.Errorf("expected depth 2, got %d", got.Depth)
		}
		if got.Cookie != "a=b" {
			t.Errorf("expected cookie a=b, got %q", got.Cookie)
		}
	})

	t.Run("site values override defaults", func(t *testing.T) {
		t.Parallel()
		cf := &File{
			Defaults: SiteConfig{Depth: 2, Selector: "main", SkipHashURLs: &yes},
			Sites: map[string]SiteConfig{
				"docs.example.com": {Depth: 3, Selector: "nav", SelectorScope: model.SelectorScopeAll, SkipHashURLs: &no},
			},
		}
		got := cf.GetSiteConfig("docs.example.com")
		if got.Depth != 3 || got.Selector != "nav" || got.SelectorScope != model.SelectorScopeAll {
			t.Errorf("expected site overrides, got %+v", got)
		}
		if got.SkipHashURLs == nil || *got.SkipHashURLs {
			t.Error("expected SkipHashURLs false from site")
		}
	})

	t.Run("host matching is case-insensitive", func(t *testing.T) {
		t.Parallel()
		cf := &File{Sites: map[string]SiteConfig{"Example.COM": {Depth: 4}}}
		if got := cf.GetSiteConfig("example.com"); got.Depth != 4 {
			t.Errorf("expected depth 4, got %d", got.Depth)
		}
	})

	t.Run("merges headers and filters", func(t *testing.T) {
		t.Parallel()
		cf := &File{
			Defaults: SiteConfig{
				Headers: map[string]string{"Accept-Language": "en", "X-A": "1"},
				Filters: []model.FilterRule{{Domain: model.StringList{"example.com"}}},
			},
			Sites: map[string]SiteConfig{
				"example.com": {
					Headers: map[string]string{"X-A": "2"},
					Filters: []model.FilterRule{{Keywords: model.StringList{"logout"}, Exclude: true}},
				},
			},
		}
		got := cf.GetSiteConfig("example.com")
		if got.Headers["Accept-Language"] != "en" || got.Headers["X-A"] != "2" {
			t.Errorf("unexpected headers %v", got.Headers)
		}
		if len(got.Filters) != 2 {
			t.Fatalf("expected 2 filters, got %d", len(got.Filters))
		}
		if cf.Defaults.Headers["X-A"] != "1" {
			t.Error("merge must not modify the defaults")
		}
	})

	t.Run("nil sites map", func(t *testing.T) {
		t.Parallel()
		cf := &File{Defaults: SiteConfig{DelayMs: 250}}
		if got := cf.GetSiteConfig("example.com"); got.DelayMs != 250 {
			t.Errorf("expected 250, got %d", got.DelayMs)
		}
	})
}

// TestCollectionOptionsFor tests merging flags with the site file.
func TestCollectionOptionsFor(t *testing.T) {
	t.Parallel()

	t.Run("without a site file the flags are used", func(t *testing.T) {
		t.Parallel()
		cfg := NewConfig()
		cfg.Selector = "article"
		cfg.CrawlDelay = 250 * time.Millisecond
		cfg.Filters = []model.FilterRule{{PathPrefix: model.StringList{"/docs"}}}

		opts := cfg.CollectionOptionsFor("https://example.com/")
		if opts.Selector != "article" {
			t.Errorf("expected selector article, got %q", opts.Selector)
		}
		if opts.DelayMs != 250 {
			t.Errorf("expected delay 250, got %d", opts.DelayMs)
		}
		if opts.Depth != 1 {
			t.Errorf("expected depth 1, got %d", opts.Depth)
		}
		if !opts.SkipHash() {
			t.Error("expected SkipHash true")
		}
		if len(opts.Filters) != 1 {
			t.Errorf("expected 1 filter, got %d", len(opts.Filters))
		}
		if err := opts.Validate(); err != nil {
			t.Errorf("expected valid options, got %v", err)
		}
	})

	t.Run("site entry overrides by host", func(t *testing.T) {
		t.Parallel()
		no := false
		cfg := NewConfig()
		cfg.Filters = []model.FilterRule{{Domain: model.StringList{"example.com"}}}
		cfg.SiteConfigs = &File{
			Sites: map[string]SiteConfig{
				"example.com": {
					Depth:        3,
					SkipHashURLs: &no,
					Filters:      []model.FilterRule{{Regex: model.StringList{`\.pdf$`}, Exclude: true}},
				},
			},
		}

		opts := cfg.CollectionOptionsFor("https://EXAMPLE.com/start")
		if opts.Depth != 3 {
			t.Errorf("expected depth 3, got %d", opts.Depth)
		}
		if opts.SkipHash() {
			t.Error("expected SkipHash false from site entry")
		}
		if len(opts.Filters) != 2 {
			t.Errorf("expected 2 filters, got %d", len(opts.Filters))
		}
		if len(cfg.Filters) != 1 {
			t.Error("global filters must not be modified")
		}

		other := cfg.CollectionOptionsFor("https://other.org/")
		if other.Depth != 1 {
			t.Errorf("expected depth 1 for other host, got %d", other.Depth)
		}
	})
}

// TestHostOf tests host extraction.
func TestHostOf(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"https://Example.com:8443/a": "example.com",
		"http://[::1]/":              "::1",
		"not a url":                  "",
		"%zz":                        "",
	}
	for in, want := range tests {
		if got := HostOf(in); got != want {
			t.Errorf("HostOf(%q): expected %q, got %q", in, want, got)
		}
	}
}

// TestLoadConfigFile tests the LoadConfigFile function.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile("/nonexistent/path/.linkcollector")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got: %v", err)
		}
		if cfg != nil {
			t.Error("expected nil config when file not found")
		}
	})

	t.Run("loads valid YAML config", func(t *testing.T) {
		t.Parallel()
		configPath := filepath.Join(t.TempDir(), ".linkcollector")

		content := `defaults:
  delayMs: 500
  cookie: "default=abc"
sites:
  docs.example.com:
    depth: 2
    selector: "nav.sidebar"
    selectorScope: all
    skipHashUrls: false
    headers:
      Authorization: "Bearer token"
    filters:
      - pathPrefix: /docs
      - keywords: [logout, signout]
        exclude: true
`
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cfg, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Defaults.DelayMs != 500 {
			t.Errorf("expected default delay 500, got %d", cfg.Defaults.DelayMs)
		}

		site, ok := cfg.Sites["docs.example.com"]
		if !ok {
			t.Fatal("expected docs.example.com in sites")
		}
		if site.Depth != 2 || site.Selector != "nav.sidebar" || site.SelectorScope != model.SelectorScopeAll {
			t.Errorf("unexpected site config %+v", site)
		}
		if site.SkipHashURLs == nil || *site.SkipHashURLs {
			t.Error("expected skipHashUrls false")
		}
		if site.Headers["Authorization"] != "Bearer token" {
			t.Error("expected Authorization header")
		}
		if len(site.Filters) != 2 {
			t.Fatalf("expected 2 filters, got %d", len(site.Filters))
		}
		if site.Filters[0].PathPrefix[0] != "/docs" {
			t.Errorf("expected /docs, got %v", site.Filters[0].PathPrefix)
		}
		if !site.Filters[1].Exclude || len(site.Filters[1].Keywords) != 2 {
			t.Errorf("unexpected exclusion rule %+v", site.Filters[1])
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()
		configPath := filepath.Join(t.TempDir(), ".linkcollector")
		if err := os.WriteFile(configPath, []byte(`invalid: yaml: content: [}`), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		if _, err := LoadConfigFile(configPath); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})

	t.Run("initializes nil Sites map", func(t *testing.T) {
		t.Parallel()
		configPath := filepath.Join(t.TempDir(), ".linkcollector")
		if err := os.WriteFile(configPath, []byte("defaults:\n  depth: 2\n"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		cfg, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Sites == nil {
			t.Error("expected Sites map to be initialized")
		}
	})
}

// TestFindConfigFile tests the FindConfigFile function.
func TestFindConfigFile(t *testing.T) {
	t.Run("returns explicit path if exists", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(configPath, []byte("sites: {}\n"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		if got := FindConfigFile(configPath); got != configPath {
			t.Errorf("expected %q, got %q", configPath, got)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		if got := FindConfigFile("/nonexistent/custom.yaml"); got != "" {
			t.Errorf("expected empty path, got %q", got)
		}
	})

	t.Run("finds file in working directory", func(t *testing.T) {
		dir := t.TempDir()
		t.Chdir(dir)
		configPath := filepath.Join(dir, DefaultConfigFile)
		if err := os.WriteFile(configPath, []byte("sites: {}\n"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		got := FindConfigFile("")
		if filepath.Base(got) != DefaultConfigFile {
			t.Errorf("expected %s to be found, got %q", DefaultConfigFile, got)
		}
	})
}

// TestXDGDirs tests the XDG directory helpers.
func TestXDGDirs(t *testing.T) {
	t.Parallel()

	for name, dir := range map[string]string{"data": XDGDataDir(), "config": XDGConfigDir()} {
		if dir == "" {
			t.Errorf("expected non-empty %s dir", name)
		}
		if filepath.Base(dir) != AppName {
			t.Errorf("expected %s dir to end with %s, got %q", name, AppName, dir)
		}
	}
}
