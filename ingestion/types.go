package ingestion

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/poiesic/reviewpipe/ai"
	"github.com/poiesic/reviewpipe/index"
)

// MetricsKey is the default artifact key of the metrics variant.
const MetricsKey = "metrics.json"

// Status codes reported in Result.
const (
	StatusOK     = 200
	StatusFailed = 500
)

// State is the position of a run in the pipeline.
type State int

const (
	StateIdle State = iota
	StateLoaded
	StateEnriched
	StateIndexed
	StatePersisted
	StateDone
	StateFailed
)

var stateNames = [...]string{"idle", "loaded", "enriched", "indexed", "persisted", "done", "failed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Stage names the transition a run was attempting.
type Stage string

const (
	StageLoad    Stage = "load"
	StageEnrich  Stage = "enrich"
	StageIndex   Stage = "index"
	StagePersist Stage = "persist"
)

// Variant selects what a run writes and persists.
type Variant string

const (
	// VariantIndex creates documents and persists the enriched batch.
	VariantIndex Variant = "index"
	// VariantUpdate updates existing documents.
	VariantUpdate Variant = "update"
	// VariantMetrics updates documents and persists the {id, Sentiment} projection.
	VariantMetrics Variant = "metrics"
)

// ParseVariant resolves a variant name.
func ParseVariant(s string) (Variant, error) {
	v := Variant(strings.ToLower(strings.TrimSpace(s)))
	switch v {
	case VariantIndex, VariantUpdate, VariantMetrics:
		return v, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownVariant, s)
	}
}

// Mode returns the write mode used by the variant.
func (v Variant) Mode() index.Mode {
	if v == VariantIndex {
		return index.ModeCreate
	}
	return index.ModeUpdate
}

func (v Variant) completionMessage() string {
	switch v {
	case VariantUpdate:
		return "Updating completed!"
	case VariantMetrics:
		return "Metrics have been calculated and uploaded!"
	default:
		return "Indexing completed!"
	}
}

// Invocation describes one run.
type Invocation struct {
	SourceBucket      string `json:"source_bucket"`
	DestinationBucket string `json:"destination_bucket,omitempty"`
	Key               string `json:"key"`
	// DestinationKey defaults to Key, or MetricsKey for the metrics variant.
	DestinationKey string `json:"destination_key,omitempty"`
	Index          string `json:"index"`
	SearchEndpoint string `json:"search_endpoint"`
	// Language defaults to ai.DefaultLanguage.
	Language string `json:"language,omitempty"`
}

// Validate reports missing required fields.
func (inv Invocation) Validate() error {
	var missing []string
	for name, v := range map[string]string{
		"source_bucket":   inv.SourceBucket,
		"key":             inv.Key,
		"index":           inv.Index,
		"search_endpoint": inv.SearchEndpoint,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("%w: missing %s", ErrInvalidInvocation, strings.Join(missing, ", "))
	}
	return nil
}

func (inv Invocation) withDefaults(v Variant) Invocation {
	if inv.Language == "" {
		inv.Language = ai.DefaultLanguage
	}
	if inv.DestinationKey == "" {
		inv.DestinationKey = inv.Key
		if v == VariantMetrics {
			inv.DestinationKey = MetricsKey
		}
	}
	return inv
}

// Result summarizes a finished run.
type Result struct {
	RunID      string     `json:"run_id"`
	Variant    Variant    `json:"variant"`
	Invocation Invocation `json:"invocation"`
	State      State      `json:"-"`
	// Stage is set when the run failed.
	Stage    Stage             `json:"stage,omitempty"`
	Records  int               `json:"records"`
	Assigned int               `json:"assigned"`
	Bulk     *index.BulkResult `json:"-"`
	// ArtifactKey is empty when nothing was persisted.
	ArtifactBucket string    `json:"artifact_bucket,omitempty"`
	ArtifactKey    string    `json:"artifact_key,omitempty"`
	StatusCode     int       `json:"status_code"`
	Message        string    `json:"message"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	Err            error     `json:"-"`
}

// OK reports whether the run completed.
func (r *Result) OK() bool {
	return r.State == StateDone
}

// Failed returns how many documents failed to be written.
func (r *Result) Failed() int {
	if r.Bulk == nil {
		return 0
	}
	return len(r.Bulk.Failed())
}
