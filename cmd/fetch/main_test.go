package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/samvad-hq/dataddo-puller/internal/logger"
	"github.com/samvad-hq/dataddo-puller/pkg/dataddo"
	"github.com/spf13/pflag"
)

const (
	testToken = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	testID    = "5f1a2b3c4d5e6f7a8b9c0d1e"
	testBody  = `{"header":["day","revenue"],"data":[["2026-10-01",10],["2026-10-02",null]],"type":["date","integer"],"columnID":["c1","c2"],"totalRows":5}`
)

func newDataServer(t *testing.T, gotURL *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*gotURL = r.URL.String()
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(testBody))
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { logger.S = nil })
	return srv
}

func TestRunPrintsJSONTable(t *testing.T) {
	var gotURL string
	srv := newDataServer(t, &gotURL)
	t.Setenv("DATADDO_TOKEN", testToken)

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"--kind", "flow", "--id", testID, "--base-url", srv.URL}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run: %v (stderr=%s)", err, stderr.String())
	}
	if gotURL != "/get/flow/"+testID+"?format=json&json_format=2d_array" {
		t.Fatalf("unexpected request url %q", gotURL)
	}

	var out struct {
		Header    []string `json:"header"`
		TotalRows int      `json:"totalRows"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		t.Fatalf("stdout is not JSON: %v\n%s", err, stdout.String())
	}
	if len(out.Header) != 2 || out.TotalRows != 5 {
		t.Fatalf("unexpected output %+v", out)
	}
}

func TestRunPrintsTabularView(t *testing.T) {
	var gotURL string
	srv := newDataServer(t, &gotURL)
	t.Setenv("DATADDO_TOKEN", testToken)

	var stdout, stderr bytes.Buffer
	args := []string{"--id", testID, "--base-url", srv.URL, "--format", "csv", "--csv-delimiter", "tab", "--output", "table"}
	if err := run(context.Background(), args, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	if gotURL != "/get/source/"+testID+"?format=csv&csv_delimiter=%09" {
		t.Fatalf("unexpected request url %q", gotURL)
	}

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if len(lines) != 6 {
		t.Fatalf("expected header, types, 2 rows, blank and footer; got %q", stdout.String())
	}
	if !strings.HasPrefix(lines[0], "day") || !strings.Contains(lines[0], "revenue") {
		t.Fatalf("unexpected header line %q", lines[0])
	}
	if !strings.Contains(lines[1], "integer") {
		t.Fatalf("unexpected types line %q", lines[1])
	}
	if lines[5] != "2 of 5 rows" {
		t.Fatalf("unexpected footer %q", lines[5])
	}
}

func TestRunRejectsMissingToken(t *testing.T) {
	t.Setenv("DATADDO_TOKEN", "")
	t.Cleanup(func() { logger.S = nil })

	err := run(context.Background(), []string{"--id", testID}, &bytes.Buffer{}, &bytes.Buffer{})
	var tokenErr *dataddo.InvalidTokenError
	if !errors.As(err, &tokenErr) {
		t.Fatalf("expected InvalidTokenError, got %v", err)
	}
}

func TestRunRejectsBadIdentifier(t *testing.T) {
	t.Setenv("DATADDO_TOKEN", testToken)
	t.Cleanup(func() { logger.S = nil })

	err := run(context.Background(), []string{"--kind", "endpoint", "--id", "xyz"}, &bytes.Buffer{}, &bytes.Buffer{})
	var idErr *dataddo.InvalidIdentifierError
	if !errors.As(err, &idErr) || idErr.Kind != dataddo.KindEndpoint {
		t.Fatalf("expected endpoint InvalidIdentifierError, got %v", err)
	}
}

func TestRunReportsStatusErrors(t *testing.T) {
	var gotURL string
	srv := newDataServer(t, &gotURL)
	t.Setenv("DATADDO_TOKEN", strings.Repeat("f", 64))

	err := run(context.Background(), []string{"--id", testID, "--base-url", srv.URL}, &bytes.Buffer{}, &bytes.Buffer{})
	var statusErr *dataddo.UnexpectedStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 status error, got %v", err)
	}
}

func TestRunRejectsUnknownOutput(t *testing.T) {
	t.Setenv("DATADDO_TOKEN", testToken)
	t.Cleanup(func() { logger.S = nil })

	err := run(context.Background(), []string{"--id", testID, "--output", "xml"}, &bytes.Buffer{}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "unsupported output") {
		t.Fatalf("expected output error, got %v", err)
	}
}

func logLevelFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("fetch", pflag.ContinueOnError)
	fs.String("log-level", "", "")
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return fs
}

func TestLoadConfigLogLevelPrecedence(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	cfg, err := loadConfig(logLevelFlags(t))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("expected info default, got %q", cfg.LogLevel)
	}

	t.Setenv("LOG_LEVEL", "error")
	cfg, err = loadConfig(logLevelFlags(t))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.LogLevel != "error" {
		t.Fatalf("unset flag must not shadow LOG_LEVEL, got %q", cfg.LogLevel)
	}

	cfg, err = loadConfig(logLevelFlags(t, "--log-level", "debug"))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("flag must override LOG_LEVEL, got %q", cfg.LogLevel)
	}
}

func TestRunDebugLogsRequestOptions(t *testing.T) {
	var gotURL string
	srv := newDataServer(t, &gotURL)
	t.Setenv("DATADDO_TOKEN", testToken)

	var stdout, stderr bytes.Buffer
	args := []string{"--id", testID, "--base-url", srv.URL, "--format", "csv", "--csv-delimiter", "tab", "--log-level", "debug"}
	if err := run(context.Background(), args, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	logs := stderr.String()
	if !strings.Contains(logs, "fetch starting") || !strings.Contains(logs, `"csv_delimiter":"tab"`) {
		t.Fatalf("expected debug request log with delimiter name, got %s", logs)
	}
	if !strings.Contains(logs, srv.URL) {
		t.Fatalf("expected base url in debug log, got %s", logs)
	}
}
