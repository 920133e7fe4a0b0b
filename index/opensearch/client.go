package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"time"

	"github.com/opensearch-project/opensearch-go/v4"
	"github.com/opensearch-project/opensearch-go/v4/opensearchapi"
	"github.com/poiesic/reviewpipe/index"
)

// ErrRequestFailed is returned when the cluster rejects a bulk request as a whole.
var ErrRequestFailed = errors.New("bulk request rejected")

// Config holds connection settings for a Client.
type Config struct {
	Addresses []string
	Username  string
	Password  string
	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// Client sends bulk requests to OpenSearch.
type Client struct {
	api    *opensearchapi.Client
	logger *slog.Logger
}

var _ index.SearchEngine = (*Client)(nil)

// NewClient creates a Client for the given cluster. Transport-level retries
// are disabled; a failed run is retried as a whole by the caller.
func NewClient(cfg Config) (*Client, error) {
	if len(cfg.Addresses) == 0 {
		return nil, ErrEndpointRequired
	}
	api, err := opensearchapi.NewClient(opensearchapi.Config{
		Client: opensearch.Config{
			Addresses:    cfg.Addresses,
			Username:     cfg.Username,
			Password:     cfg.Password,
			Transport:    cfg.Transport,
			DisableRetry: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create opensearch client: %w", err)
	}
	return &Client{
		api:    api,
		logger: slog.Default().With("component", "opensearch"),
	}, nil
}

type actionMeta struct {
	Index string `json:"_index"`
	ID    string `json:"_id"`
}

// Bulk implements index.SearchEngine.
func (c *Client) Bulk(ctx context.Context, ops iter.Seq[index.Operation], timeout time.Duration) ([]index.ItemResult, error) {
	body, count, err := encodeBulk(ops)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}

	c.logger.Debug("sending bulk request", "operations", count, "bytes", len(body))
	resp, err := c.api.Bulk(ctx, opensearchapi.BulkReq{
		Body:   bytes.NewReader(body),
		Params: opensearchapi.BulkParams{Timeout: timeout},
	})
	if err != nil {
		if resp != nil {
			if raw := resp.Inspect().Response; raw != nil && raw.IsError() {
				return nil, fmt.Errorf("%w: status %d: %w", ErrRequestFailed, raw.StatusCode, err)
			}
		}
		return nil, fmt.Errorf("perform bulk request: %w", err)
	}

	results := make([]index.ItemResult, 0, count)
	for _, entry := range resp.Items {
		for _, item := range entry {
			results = append(results, toItemResult(item))
		}
	}
	if resp.Errors {
		c.logger.Warn("bulk response reported item errors", "items", len(results), "took_ms", resp.Took)
	}
	return results, nil
}

func toItemResult(item opensearchapi.BulkRespItem) index.ItemResult {
	r := index.ItemResult{ID: item.ID, Status: item.Status}
	switch {
	case item.Error != nil:
		r.Err = &index.ItemError{Status: item.Status, Type: item.Error.Type, Reason: item.Error.Reason}
	case item.Status >= http.StatusMultipleChoices:
		r.Err = &index.ItemError{Status: item.Status}
	}
	return r
}

// encodeBulk renders ops as a bulk body: an action line per operation
// followed by the document line, each terminated by a newline.
func encodeBulk(ops iter.Seq[index.Operation]) ([]byte, int, error) {
	var buf bytes.Buffer
	count := 0
	for op := range ops {
		action := map[index.Action]actionMeta{
			op.Action: {Index: op.Index, ID: op.ID.String()},
		}
		line, err := json.Marshal(action)
		if err != nil {
			return nil, 0, fmt.Errorf("encode bulk action: %w", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')

		doc, err := op.Document.MarshalJSON()
		if err != nil {
			return nil, 0, fmt.Errorf("encode document %s: %w", op.ID, err)
		}
		if op.Action == index.ActionUpdate {
			buf.WriteString(`{"doc":`)
			buf.Write(doc)
			buf.WriteByte('}')
		} else {
			buf.Write(doc)
		}
		buf.WriteByte('\n')
		count++
	}
	return buf.Bytes(), count, nil
}
