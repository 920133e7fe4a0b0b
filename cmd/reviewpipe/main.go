// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/reviewpipe"
	"github.com/poiesic/reviewpipe/config"
	"github.com/poiesic/reviewpipe/core"
	"github.com/poiesic/reviewpipe/enrich"
	"github.com/poiesic/reviewpipe/ingestion"
	"github.com/poiesic/reviewpipe/progress"
	"github.com/poiesic/reviewpipe/retry"
	"github.com/poiesic/reviewpipe/storage"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "reviewpipe",
		Usage: "Enrich review batches with sentiment and index them into OpenSearch",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
				EnvVars: []string{"REVIEWPIPE_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error); defaults to logging.level",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Set logging format (text, json); defaults to logging.format",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "index",
				Usage:  "Assign ids, classify and index a batch, then persist the enriched batch",
				Action: runCommand(ingestion.VariantIndex),
				Flags:  runFlags(),
			},
			{
				Name:   "update",
				Usage:  "Classify a batch and update existing documents",
				Action: runCommand(ingestion.VariantUpdate),
				Flags:  runFlags(),
			},
			{
				Name:   "metrics",
				Usage:  "Classify a batch, update documents and persist the id/sentiment projection",
				Action: runCommand(ingestion.VariantMetrics),
				Flags:  runFlags(),
			},
			{
				Name:   "runs",
				Usage:  "List recent pipeline runs from the run journal",
				Action: runsCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs to show",
						Value: 20,
					},
				},
			},
		},
	}
}

func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "source-bucket",
			Usage:    "Bucket holding the input batch",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "key",
			Aliases:  []string{"k"},
			Usage:    "Object key of the input batch",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "destination-bucket",
			Usage: "Bucket receiving the persisted artifact (skipped when empty)",
		},
		&cli.StringFlag{
			Name:  "destination-key",
			Usage: "Object key of the persisted artifact (defaults to key, or metrics.json)",
		},
		&cli.StringFlag{
			Name:     "index",
			Aliases:  []string{"i"},
			Usage:    "Target search index",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "endpoint",
			Aliases:  []string{"e"},
			Usage:    "Search cluster endpoint (host, host:port or URL)",
			Required: true,
			EnvVars:  []string{"REVIEWPIPE_SEARCH_ENDPOINT"},
		},
		&cli.StringFlag{
			Name:  "language",
			Usage: "Language code passed to the classifier",
		},
		&cli.BoolFlag{
			Name:  "progress",
			Usage: "Report classification progress on stderr",
		},
		&cli.IntFlag{
			Name:  "attempts",
			Usage: "Maximum number of attempts for the whole run",
			Value: 1,
		},
		&cli.DurationFlag{
			Name:  "retry-delay",
			Usage: "Base delay for exponential backoff between attempts",
			Value: 1 * time.Second,
		},
	}
}

func openSystem(c *cli.Context) (*reviewpipe.System, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	sys, err := reviewpipe.Open(c.Context, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open pipeline: %w", err)
	}
	return sys, nil
}

func runCommand(variant ingestion.Variant) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.Int("attempts") <= 0 {
			return fmt.Errorf("attempts must be greater than 0")
		}

		sys, err := openSystem(c)
		if err != nil {
			return err
		}
		defer sys.Close()

		var opts []ingestion.Option
		var tracker *progress.Tracker
		if c.Bool("progress") {
			tracker = progress.New(c.App.ErrWriter, "Classifying", 10)
			opts = append(opts, ingestion.WithProgress(tracker.Observe))
		}

		pipeline, err := sys.NewPipeline(opts...)
		if err != nil {
			return fmt.Errorf("failed to create pipeline: %w", err)
		}
		defer pipeline.Release()
		if err := pipeline.Supports(variant); err != nil {
			return err
		}

		inv := ingestion.Invocation{
			SourceBucket:      c.String("source-bucket"),
			DestinationBucket: c.String("destination-bucket"),
			Key:               c.String("key"),
			DestinationKey:    c.String("destination-key"),
			Index:             c.String("index"),
			SearchEndpoint:    c.String("endpoint"),
			Language:          c.String("language"),
		}

		var result *ingestion.Result
		runErr := retry.WithBackoff(c.Context, c.Int("attempts"), c.Duration("retry-delay"), func(ctx context.Context, attempt int) error {
			var err error
			result, err = pipeline.Run(ctx, variant, inv)
			if err != nil && !retryable(err) {
				return retry.Permanent(err)
			}
			return err
		})
		if tracker != nil {
			tracker.Finish()
		}

		if err := sys.FlushMetrics(); err != nil {
			slog.Error("failed to write metrics textfile", "err", err)
		}
		if result != nil {
			if err := printResult(c.App.Writer, result); err != nil {
				return err
			}
		}
		return runErr
	}
}

// retryable reports whether re-running the whole invocation could succeed.
func retryable(err error) bool {
	for _, permanent := range []error{
		ingestion.ErrInvalidInvocation,
		ingestion.ErrUnknownVariant,
		ingestion.ErrSourceNotFound,
		core.ErrSerialization,
		enrich.ErrClassifierRequired,
		storage.ErrSecretNotFound,
	} {
		if errors.Is(err, permanent) {
			return false
		}
	}
	return true
}

type resultOutput struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
	RunID      string `json:"runId"`
	Records    int    `json:"records"`
	Failed     int    `json:"failed"`
	Artifact   string `json:"artifact,omitempty"`
}

func printResult(w io.Writer, result *ingestion.Result) error {
	out := resultOutput{
		StatusCode: result.StatusCode,
		Body:       result.Message,
		RunID:      result.RunID,
		Records:    result.Records,
		Failed:     result.Failed(),
	}
	if result.ArtifactKey != "" {
		out.Artifact = result.ArtifactBucket + "/" + result.ArtifactKey
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(out)
}

func runsCommand(c *cli.Context) error {
	sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	if sys.Runs() == nil {
		return fmt.Errorf("no run journal configured: use the badger storage backend or set pipeline.journal_path")
	}
	runs, err := sys.Runs().ListRuns(c.Context, c.Int("limit"))
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tVARIANT\tSTATE\tSOURCE\tINDEX\tRECORDS\tFAILED\tSTARTED\tDURATION")
	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s/%s\t%s\t%d\t%d\t%s\t%s\n",
			run.RunID, run.Variant, run.State, run.Bucket, run.Key, run.Index,
			run.Records, run.Failed,
			run.StartedAt.Format(time.RFC3339),
			run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}
	return tw.Flush()
}

func setupLogger(c *cli.Context) error {
	levelStr, format := c.String("log-level"), c.String("log-format")
	if levelStr == "" || format == "" {
		// Fall back to the configuration file and REVIEWPIPE_LOG_* variables.
		cfg, err := config.Load(c.String("config"))
		if err != nil {
			return err
		}
		if levelStr == "" {
			levelStr = cfg.Logging.Level
		}
		if format == "" {
			format = cfg.Logging.Format
		}
	}
	levelStr = strings.ToLower(levelStr)

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch format = strings.ToLower(format); format {
	case "", "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("invalid log format %q: must be one of text, json", format)
	}
	slog.SetDefault(slog.New(handler))

	return nil
}
