package core

import (
	"encoding/hex"
	"encoding/json"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/go-crypt/x/blake2b"
)

// Well-known record fields.
const (
	// FieldID holds the stable document identifier.
	FieldID = "id"
	// FieldReviewBody holds the text consumed by the classifier.
	FieldReviewBody = "review_body"
	// FieldSentiment holds the label attached by enrichment.
	FieldSentiment = "Sentiment"
)

// ID is the identifier of a logical document in the search index.
// Valid identifiers are strictly positive.
type ID uint64

// String returns the decimal form used as the search engine document id.
func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// maxExactFloat is the largest integer a float64 represents exactly.
const maxExactFloat = 1 << 53

// ParseID interprets a field value as a document identifier.
// Integers, integral floats, json.Number and decimal strings are accepted;
// anything else, including zero and negative values, reports false.
func ParseID(v any) (ID, bool) {
	switch n := v.(type) {
	case ID:
		return n, n > 0
	case int:
		return ID(n), n > 0
	case int32:
		return ID(n), n > 0
	case int64:
		return ID(n), n > 0
	case uint:
		return ID(n), n > 0
	case uint32:
		return ID(n), n > 0
	case uint64:
		return ID(n), n > 0
	case float64:
		return idFromFloat(n)
	case json.Number:
		if u, err := strconv.ParseUint(n.String(), 10, 64); err == nil {
			return ID(u), u > 0
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return idFromFloat(f)
	case string:
		u, err := strconv.ParseUint(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, false
		}
		return ID(u), u > 0
	default:
		return 0, false
	}
}

func idFromFloat(f float64) (ID, bool) {
	if f < 1 || f > maxExactFloat || f != math.Trunc(f) {
		return 0, false
	}
	return ID(f), true
}

// Record is a single review document: an ordered mapping of field name to
// value. Values are JSON values; nested objects decode to *Record so their
// field order survives a round trip as well.
type Record struct {
	keys   []string
	fields map[string]any
}

// NewRecord creates an empty record.
func NewRecord() *Record {
	return &Record{fields: make(map[string]any)}
}

// RecordOf builds a record from alternating key/value arguments.
// It panics on an odd argument count or a non-string key.
func RecordOf(kv ...any) *Record {
	if len(kv)%2 != 0 {
		panic("core: RecordOf requires key/value pairs")
	}
	r := NewRecord()
	for i := 0; i < len(kv); i += 2 {
		r.Set(kv[i].(string), kv[i+1])
	}
	return r
}

// Get returns the value stored under key.
func (r *Record) Get(key string) (any, bool) {
	v, ok := r.fields[key]
	return v, ok
}

// Set stores value under key. New keys are appended after existing ones;
// replacing a value keeps the key's position.
func (r *Record) Set(key string, value any) {
	if r.fields == nil {
		r.fields = make(map[string]any)
	}
	if _, ok := r.fields[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.fields[key] = value
}

// Keys returns the field names in order.
func (r *Record) Keys() []string {
	return slices.Clone(r.keys)
}

// Len returns the number of fields.
func (r *Record) Len() int {
	return len(r.keys)
}

// ID returns the record's identifier if it carries a valid one.
func (r *Record) ID() (ID, bool) {
	v, ok := r.fields[FieldID]
	if !ok {
		return 0, false
	}
	return ParseID(v)
}

// SetID stores id under FieldID.
func (r *Record) SetID(id ID) {
	r.Set(FieldID, id)
}

// Text returns the string stored under key.
func (r *Record) Text(key string) (string, bool) {
	v, ok := r.fields[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Select returns a new record holding only the given keys, in the order they
// are listed. Keys missing from r are skipped.
func (r *Record) Select(keys ...string) *Record {
	out := NewRecord()
	for _, k := range keys {
		if v, ok := r.fields[k]; ok {
			out.Set(k, v)
		}
	}
	return out
}

// Batch is an ordered sequence of records loaded for one pipeline run.
type Batch []*Record

// Fingerprint returns a hex-encoded 128-bit BLAKE2b digest over parts.
// Parts are separated by a zero byte so ("ab","c") and ("a","bc") differ.
func Fingerprint(parts ...string) string {
	h, _ := blake2b.New(16, nil)
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
