package core

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Format selects the on-disk representation of a persisted batch.
type Format string

const (
	// FormatJSON writes the batch as a single JSON array of objects.
	FormatJSON Format = "json"
	// FormatNDJSON writes one JSON object per line.
	FormatNDJSON Format = "ndjson"
)

// ParseFormat resolves a format name. The empty string selects FormatJSON.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", string(FormatJSON):
		return FormatJSON, nil
	case string(FormatNDJSON), "jsonl":
		return FormatNDJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// MarshalJSON encodes the record as a JSON object with fields in order.
// HTML characters and non-ASCII text are written verbatim.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := r.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r *Record) writeJSON(buf *bytes.Buffer) error {
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeValue(buf, k); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := writeValue(buf, r.fields[k]); err != nil {
			return fmt.Errorf("field %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeValue(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case *Record:
		return t.writeJSON(buf)
	case []any:
		buf.WriteByte('[')
		for i, item := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeValue(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case ID:
		buf.WriteString(t.String())
		return nil
	}

	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	// Encoder terminates every value with a newline.
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}

// UnmarshalJSON decodes a JSON object, keeping field order. Numbers are
// kept as json.Number so they re-encode unchanged.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("%w: expected object, got %v", ErrSerialization, tok)
	}
	decoded, err := readObject(dec)
	if err != nil {
		return err
	}
	*r = *decoded
	return nil
}

// readObject consumes the members of an object whose opening brace has
// already been read.
func readObject(dec *json.Decoder) (*Record, error) {
	r := NewRecord()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: object key %v", ErrSerialization, tok)
		}
		v, err := readValue(dec)
		if err != nil {
			return nil, err
		}
		r.Set(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return r, nil
}

func readValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}
	switch delim {
	case '{':
		return readObject(dec)
	case '[':
		items := []any{}
		for dec.More() {
			v, err := readValue(dec)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return items, nil
	default:
		return nil, fmt.Errorf("%w: unexpected %v", ErrSerialization, delim)
	}
}

// DecodeBatch parses a persisted batch. It accepts a JSON array of objects or
// newline-delimited objects, with or without a leading UTF-8 byte order mark.
func DecodeBatch(data []byte) (Batch, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrSerialization)
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	if trimmed[0] == '[' {
		if _, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
		}
		batch := Batch{}
		for dec.More() {
			rec, err := decodeObject(dec, len(batch))
			if err != nil {
				return nil, err
			}
			batch = append(batch, rec)
		}
		if _, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
		}
		if dec.More() {
			return nil, fmt.Errorf("%w: trailing data after array", ErrSerialization)
		}
		return batch, nil
	}

	batch := Batch{}
	for {
		rec, err := decodeObject(dec, len(batch))
		if errors.Is(err, io.EOF) {
			return batch, nil
		}
		if err != nil {
			return nil, err
		}
		batch = append(batch, rec)
	}
}

func decodeObject(dec *json.Decoder, position int) (*Record, error) {
	tok, err := dec.Token()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("%w: record %d: %v", ErrSerialization, position, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("%w: record %d is not an object", ErrSerialization, position)
	}
	rec, err := readObject(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: record %d: %v", ErrSerialization, position, err)
	}
	return rec, nil
}

// EncodeBatch serializes records in the requested format.
func EncodeBatch(records []*Record, format Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteBatch(&buf, records, format); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteBatch streams records to w in the requested format.
func WriteBatch(w io.Writer, records []*Record, format Format) error {
	bw := bufio.NewWriter(w)
	var buf bytes.Buffer

	switch format {
	case FormatJSON, "":
		bw.WriteByte('[')
		for i, rec := range records {
			if i > 0 {
				bw.WriteByte(',')
			}
			buf.Reset()
			if err := rec.writeJSON(&buf); err != nil {
				return fmt.Errorf("%w: record %d: %v", ErrSerialization, i, err)
			}
			bw.Write(buf.Bytes())
		}
		bw.WriteByte(']')
	case FormatNDJSON:
		for i, rec := range records {
			buf.Reset()
			if err := rec.writeJSON(&buf); err != nil {
				return fmt.Errorf("%w: record %d: %v", ErrSerialization, i, err)
			}
			buf.WriteByte('\n')
			bw.Write(buf.Bytes())
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return bw.Flush()
}
