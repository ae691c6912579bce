package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/linkcollector/internal/config"
	"github.com/nao1215/linkcollector/internal/database"
)

func TestNewServeCmd(t *testing.T) {
	t.Parallel()

	cmd := NewServeCmd()

	tests := []struct {
		name     string
		defValue string
	}{
		{"addr", config.DefaultListenAddr},
		{"request-timeout", "5m0s"},
		{"timeout", "30s"},
		{"robots", "false"},
		{"rate", "0"},
		{"no-save", "false"},
	}
	for _, tt := range tests {
		flag := cmd.Flags().Lookup(tt.name)
		if flag == nil {
			t.Errorf("expected %s flag", tt.name)
			continue
		}
		if flag.DefValue != tt.defValue {
			t.Errorf("%s: expected default %q, got %q", tt.name, tt.defValue, flag.DefValue)
		}
	}
}

func TestBuildServeConfig(t *testing.T) {
	t.Parallel()

	cmd := NewServeCmd()
	if err := cmd.ParseFlags([]string{"-a", "127.0.0.1:9000", "--request-timeout", "1m", "--robots", "--no-save"}); err != nil {
		t.Fatalf("failed to parse flags: %v", err)
	}
	cfg, err := buildServeConfig(cmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:9000" {
		t.Errorf("expected addr 127.0.0.1:9000, got %q", cfg.ListenAddr)
	}
	if cfg.RequestTimeout != time.Minute {
		t.Errorf("expected request timeout 1m, got %s", cfg.RequestTimeout)
	}
	if !cfg.RespectRobots || cfg.SaveToDB {
		t.Errorf("expected robots on and saving off, got %+v", cfg)
	}
}

func TestRunServeCmdValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want error
	}{
		{"empty address", []string{"--addr", " "}, config.ErrNoListenAddr},
		{"zero request timeout", []string{"--request-timeout", "0s"}, config.ErrInvalidRequestTimeout},
		{"zero fetch timeout", []string{"--timeout", "0s"}, config.ErrInvalidTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cmd := NewServeCmd()
			cmd.SetOut(io.Discard)
			cmd.SetErr(io.Discard)
			cmd.SetArgs(tt.args)
			if err := cmd.Execute(); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

// TestRunServe starts the API, crawls a local site through it and checks
// that the result is saved before shutting down.
func TestRunServe(t *testing.T) {
	t.Parallel()

	site := newTestSite(t)

	cfg := config.NewConfig()
	cfg.DBDir = t.TempDir()
	cfg.Timeout = 5 * time.Second

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	cfg.ListenAddr = ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runServe(ctx, cfg, ln, discardLogger())
	}()

	body := `{"url": "` + site.URL + `/", "options": {"delayMs": 1}}`
	resp, err := http.Post("http://"+cfg.ListenAddr+"/api/collectLinks", "application/json", strings.NewReader(body))
	if err != nil {
		cancel()
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		cancel()
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	var payload struct {
		Success bool `json:"success"`
		Data    struct {
			AllCollectedURLs []string `json:"allCollectedUrls"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		cancel()
		t.Fatalf("failed to decode response: %v", err)
	}
	if !payload.Success || len(payload.Data.AllCollectedURLs) != 4 {
		t.Errorf("expected 4 URLs, got %+v", payload)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}

	db, err := database.Open(cfg.DBDir, database.Options{})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()
	seeds, err := db.ListSeeds(context.Background())
	if err != nil {
		t.Fatalf("failed to list seeds: %v", err)
	}
	if len(seeds) != 1 || seeds[0] != site.URL+"/" {
		t.Errorf("expected saved seed %s/, got %v", site.URL, seeds)
	}
}
