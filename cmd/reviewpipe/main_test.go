package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/poiesic/reviewpipe"
	"github.com/poiesic/reviewpipe/config"
	"github.com/poiesic/reviewpipe/core"
	"github.com/poiesic/reviewpipe/enrich"
	"github.com/poiesic/reviewpipe/ingestion"
	"github.com/poiesic/reviewpipe/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func findCommand(t *testing.T, app *cli.App, name string) *cli.Command {
	t.Helper()
	for _, cmd := range app.Commands {
		if cmd.Name == name {
			return cmd
		}
	}
	t.Fatalf("command %q not found", name)
	return nil
}

func findFlag[T cli.Flag](cmd *cli.Command, name string) T {
	var zero T
	for _, flag := range cmd.Flags {
		if f, ok := flag.(T); ok && flag.Names()[0] == name {
			return f
		}
	}
	return zero
}

func TestRunCommandFlags(t *testing.T) {
	app := newApp()

	for _, name := range []string{"index", "update", "metrics"} {
		t.Run(name, func(t *testing.T) {
			cmd := findCommand(t, app, name)

			for _, required := range []string{"source-bucket", "key", "index", "endpoint"} {
				f := findFlag[*cli.StringFlag](cmd, required)
				require.NotNil(t, f, required)
				assert.True(t, f.Required, required)
			}

			dest := findFlag[*cli.StringFlag](cmd, "destination-bucket")
			require.NotNil(t, dest)
			assert.False(t, dest.Required)
			assert.Empty(t, dest.Value)

			attempts := findFlag[*cli.IntFlag](cmd, "attempts")
			require.NotNil(t, attempts)
			assert.Equal(t, 1, attempts.Value)

			endpoint := findFlag[*cli.StringFlag](cmd, "endpoint")
			assert.Equal(t, []string{"REVIEWPIPE_SEARCH_ENDPOINT"}, endpoint.EnvVars)
		})
	}
}

func TestRunCommandValidation(t *testing.T) {
	t.Run("index is required", func(t *testing.T) {
		err := newApp().Run([]string{"reviewpipe", "index",
			"--source-bucket", "raw", "--key", "r.json", "--endpoint", "localhost"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "index")
	})

	t.Run("attempts must be positive", func(t *testing.T) {
		err := newApp().Run([]string{"reviewpipe", "update",
			"--source-bucket", "raw", "--key", "r.json", "--index", "reviews",
			"--endpoint", "localhost", "--attempts", "0"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "attempts must be greater than 0")
	})
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"invalid invocation", fmt.Errorf("load stage: %w", ingestion.ErrInvalidInvocation), false},
		{"missing source", fmt.Errorf("%w: raw/r.json", ingestion.ErrSourceNotFound), false},
		{"malformed batch", fmt.Errorf("decode: %w", core.ErrSerialization), false},
		{"missing secret", fmt.Errorf("resolve: %w", storage.ErrSecretNotFound), false},
		{"no classifier", fmt.Errorf("%w: %w", ingestion.ErrEnrichmentFailed, enrich.ErrClassifierRequired), false},
		{"bulk failure", ingestion.ErrBulkWriteFailed, true},
		{"classifier failure", ingestion.ErrEnrichmentFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retryable(tt.err))
		})
	}
}

// searchServer answers every _bulk action line with a 201 item.
type searchServer struct {
	requests atomic.Int32
}

func (s *searchServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)
	var items []string
	scanner := bufio.NewScanner(r.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	action := true
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if action {
			var meta map[string]struct {
				ID string `json:"_id"`
			}
			if err := json.Unmarshal([]byte(line), &meta); err == nil {
				for name, m := range meta {
					items = append(items, fmt.Sprintf(`{%q:{"_id":%q,"status":201}}`, name, m.ID))
				}
			}
		}
		action = !action
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"took":1,"errors":false,"items":[%s]}`, strings.Join(items, ","))
}

// testEnv writes a config file backed by an on-disk badger store and seeds
// the raw/reviews.json batch.
func testEnv(t *testing.T, batch string) (string, *httptest.Server, *searchServer) {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "reviewpipe.yaml")
	cfgYAML := fmt.Sprintf(`storage:
  backend: badger
  path: %s
secrets:
  backend: env
  env_prefix: RPTEST_
classifier:
  backend: none
`, filepath.Join(dir, "data"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgYAML), 0o644))

	t.Setenv("RPTEST_OS_USERNAME", "admin")
	t.Setenv("RPTEST_OS_PASSWORD", "secret")

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	sys, err := reviewpipe.Open(context.Background(), cfg)
	require.NoError(t, err)
	if batch != "" {
		require.NoError(t, sys.BlobStore().Put(context.Background(), "raw", "reviews.json", []byte(batch)))
	}
	require.NoError(t, sys.Close())

	handler := &searchServer{}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return cfgPath, srv, handler
}

func TestIndexCommand_EndToEnd(t *testing.T) {
	cfgPath, srv, handler := testEnv(t, `[{"review_body":"muy bueno"},{"review_body":"malo"}]`)

	app := newApp()
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &bytes.Buffer{}

	err := app.Run([]string{"reviewpipe", "--config", cfgPath, "index",
		"--source-bucket", "raw", "--destination-bucket", "enriched",
		"--key", "reviews.json", "--index", "reviews", "--endpoint", srv.URL, "--progress"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), handler.requests.Load())

	var result resultOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.Equal(t, ingestion.StatusOK, result.StatusCode)
	assert.Equal(t, "Indexing completed!", result.Body)
	assert.Equal(t, 2, result.Records)
	assert.Zero(t, result.Failed)
	assert.Equal(t, "enriched/reviews.json", result.Artifact)
	assert.NotEmpty(t, result.RunID)

	// The run is journaled alongside the objects.
	out.Reset()
	err = app.Run([]string{"reviewpipe", "--config", cfgPath, "runs"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), result.RunID)
	assert.Contains(t, out.String(), "raw/reviews.json")
}

func TestIndexCommand_SourceNotFoundIsNotRetried(t *testing.T) {
	cfgPath, srv, handler := testEnv(t, "")

	app := newApp()
	var out bytes.Buffer
	app.Writer = &out

	err := app.Run([]string{"reviewpipe", "--config", cfgPath, "update",
		"--source-bucket", "raw", "--key", "missing.json", "--index", "reviews",
		"--endpoint", srv.URL, "--attempts", "3", "--retry-delay", "1ms"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ingestion.ErrSourceNotFound)
	assert.Zero(t, handler.requests.Load())

	var result resultOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.Equal(t, ingestion.StatusFailed, result.StatusCode)
}

func TestMetricsCommand_RequiresClassifier(t *testing.T) {
	cfgPath, srv, handler := testEnv(t, `[{"id":1,"review_body":"muy bueno"}]`)

	app := newApp()
	var out bytes.Buffer
	app.Writer = &out

	err := app.Run([]string{"reviewpipe", "--config", cfgPath, "metrics",
		"--source-bucket", "raw", "--destination-bucket", "metrics",
		"--key", "reviews.json", "--index", "reviews", "--endpoint", srv.URL})
	require.Error(t, err)
	assert.ErrorIs(t, err, enrich.ErrClassifierRequired)
	assert.Zero(t, handler.requests.Load())
	assert.Empty(t, out.String())
}

func TestSetupLogger(t *testing.T) {
	newTestApp := func(action cli.ActionFunc) *cli.App {
		return &cli.App{
			Name: "test",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "log-level", Aliases: []string{"l"}, Value: "info"},
				&cli.StringFlag{Name: "log-format", Value: "text"},
			},
			Before: setupLogger,
			Action: action,
		}
	}
	noop := func(c *cli.Context) error { return nil }

	t.Run("valid log levels", func(t *testing.T) {
		for _, level := range []string{"debug", "info", "warn", "error"} {
			t.Run(level, func(t *testing.T) {
				err := newTestApp(noop).Run([]string{"test", "--log-level", level})
				require.NoError(t, err)
			})
		}
	})

	t.Run("case insensitive log levels", func(t *testing.T) {
		for _, level := range []string{"DEBUG", "Info", "WaRn", "ERROR"} {
			t.Run(level, func(t *testing.T) {
				err := newTestApp(noop).Run([]string{"test", "-l", level})
				require.NoError(t, err)
			})
		}
	})

	t.Run("invalid log level returns error", func(t *testing.T) {
		err := newTestApp(noop).Run([]string{"test", "--log-level", "invalid"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `invalid log level "invalid"`)
	})

	t.Run("debug level enables debug logging", func(t *testing.T) {
		err := newTestApp(func(c *cli.Context) error {
			assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelDebug))
			return nil
		}).Run([]string{"test", "--log-level", "debug"})
		require.NoError(t, err)
	})

	t.Run("error level suppresses info", func(t *testing.T) {
		err := newTestApp(func(c *cli.Context) error {
			assert.False(t, slog.Default().Enabled(context.Background(), slog.LevelInfo))
			return nil
		}).Run([]string{"test", "--log-level", "error"})
		require.NoError(t, err)
	})

	t.Run("json format", func(t *testing.T) {
		err := newTestApp(func(c *cli.Context) error {
			_, ok := slog.Default().Handler().(*slog.JSONHandler)
			assert.True(t, ok)
			return nil
		}).Run([]string{"test", "--log-format", "JSON"})
		require.NoError(t, err)
	})

	t.Run("falls back to config file", func(t *testing.T) {
		cfgPath := filepath.Join(t.TempDir(), "reviewpipe.yaml")
		require.NoError(t, os.WriteFile(cfgPath, []byte("logging:\n  level: debug\n  format: json\n"), 0o644))

		app := &cli.App{
			Name: "test",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "config"},
				&cli.StringFlag{Name: "log-level"},
				&cli.StringFlag{Name: "log-format"},
			},
			Before: setupLogger,
			Action: func(c *cli.Context) error {
				assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelDebug))
				_, ok := slog.Default().Handler().(*slog.JSONHandler)
				assert.True(t, ok)
				return nil
			},
		}
		require.NoError(t, app.Run([]string{"test", "--config", cfgPath}))
	})

	t.Run("invalid log format returns error", func(t *testing.T) {
		err := newTestApp(noop).Run([]string{"test", "--log-format", "xml"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log format")
	})
}

func TestMain(m *testing.M) {
	code := m.Run()
	os.Exit(code)
}
