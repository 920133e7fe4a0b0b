// Package kafka publishes pipeline run results to a Kafka topic as JSON
// events, keyed by run id.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/reviewpipe/ingestion"
	"github.com/segmentio/kafka-go"
)

// Writer is the subset of *kafka.Writer used by Notifier.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config holds broker settings.
type Config struct {
	Brokers []string
	Topic   string
}

// DocumentFailure identifies a record that was not written to the index.
type DocumentFailure struct {
	Position int    `json:"position"`
	ID       string `json:"id,omitempty"`
	Error    string `json:"error"`
}

// RunEvent is the JSON payload published for each run.
type RunEvent struct {
	RunID          string            `json:"run_id"`
	Variant        string            `json:"variant"`
	State          string            `json:"state"`
	Stage          string            `json:"stage,omitempty"`
	SourceBucket   string            `json:"source_bucket"`
	Key            string            `json:"key"`
	Index          string            `json:"index"`
	Records        int               `json:"records"`
	Assigned       int               `json:"assigned"`
	Failures       []DocumentFailure `json:"failures,omitempty"`
	ArtifactBucket string            `json:"artifact_bucket,omitempty"`
	ArtifactKey    string            `json:"artifact_key,omitempty"`
	StatusCode     int               `json:"status_code"`
	Message        string            `json:"message"`
	StartedAt      time.Time         `json:"started_at"`
	FinishedAt     time.Time         `json:"finished_at"`
}

// EventOf converts a run result into its published form.
func EventOf(result *ingestion.Result) RunEvent {
	ev := RunEvent{
		RunID:          result.RunID,
		Variant:        string(result.Variant),
		State:          result.State.String(),
		Stage:          string(result.Stage),
		SourceBucket:   result.Invocation.SourceBucket,
		Key:            result.Invocation.Key,
		Index:          result.Invocation.Index,
		Records:        result.Records,
		Assigned:       result.Assigned,
		ArtifactBucket: result.ArtifactBucket,
		ArtifactKey:    result.ArtifactKey,
		StatusCode:     result.StatusCode,
		Message:        result.Message,
		StartedAt:      result.StartedAt,
		FinishedAt:     result.FinishedAt,
	}
	if result.Bulk != nil {
		for _, o := range result.Bulk.Failed() {
			f := DocumentFailure{Position: o.Position, Error: o.Err.Error()}
			if o.ID != 0 {
				f.ID = o.ID.String()
			}
			ev.Failures = append(ev.Failures, f)
		}
	}
	return ev
}

// Notifier implements ingestion.Notifier on a Kafka topic.
type Notifier struct {
	writer Writer
	logger *slog.Logger
}

var _ ingestion.Notifier = (*Notifier)(nil)

// NewNotifier creates a Notifier writing synchronously to cfg.Topic.
func NewNotifier(cfg Config) *Notifier {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireAll,
	}
	return NewNotifierWithWriter(w, cfg.Topic)
}

// NewNotifierWithWriter creates a Notifier on an existing writer.
func NewNotifierWithWriter(w Writer, topic string) *Notifier {
	return &Notifier{
		writer: w,
		logger: slog.Default().With("component", "kafka-notifier", "topic", topic),
	}
}

// Notify publishes the run result.
func (n *Notifier) Notify(ctx context.Context, result *ingestion.Result) error {
	value, err := json.Marshal(EventOf(result))
	if err != nil {
		return fmt.Errorf("marshaling run event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(result.RunID),
		Value: value,
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		n.logger.Error("failed to publish run event", "run_id", result.RunID, "err", err)
		return fmt.Errorf("publishing run event: %w", err)
	}
	n.logger.Debug("run event published", "run_id", result.RunID, "value_size", len(value))
	return nil
}

// Close flushes pending writes and closes the writer.
func (n *Notifier) Close() error {
	return n.writer.Close()
}
