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


package storage

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// envelopeVersion is written ahead of every envelope.
const envelopeVersion = 1

// Digest returns the hex-encoded 256-bit BLAKE2b digest of data.
func Digest(data []byte) string {
	h, _ := blake2b.New(32, nil)
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// NewObject wraps data in an Object stamped with its digest and the current time.
func NewObject(data []byte, contentType string) *Object {
	return &Object{
		Data:        data,
		ContentType: contentType,
		Digest:      Digest(data),
		StoredAt:    time.Now().UTC(),
	}
}

// MarshalObject serializes an Object envelope to bytes.
func MarshalObject(obj *Object) []byte {
	storedAt := obj.StoredAt.UnixMicro()
	size := varint.Int.Size(envelopeVersion) +
		ord.String.Size(obj.ContentType) +
		varint.Int64.Size(storedAt) +
		ord.String.Size(obj.Digest) +
		ord.ByteSlice.Size(obj.Data)

	buf := make([]byte, size)
	n := varint.Int.Marshal(envelopeVersion, buf)
	n += ord.String.Marshal(obj.ContentType, buf[n:])
	n += varint.Int64.Marshal(storedAt, buf[n:])
	n += ord.String.Marshal(obj.Digest, buf[n:])
	ord.ByteSlice.Marshal(obj.Data, buf[n:])
	return buf
}

// UnmarshalObject deserializes an Object envelope and verifies its digest.
func UnmarshalObject(data []byte) (*Object, error) {
	version, n, err := varint.Int.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: envelope version: %v", ErrSerializationFailed, err)
	}
	if version != envelopeVersion {
		return nil, fmt.Errorf("%w: unsupported envelope version %d", ErrSerializationFailed, version)
	}

	obj := &Object{}
	off := n

	if obj.ContentType, n, err = ord.String.Unmarshal(data[off:]); err != nil {
		return nil, fmt.Errorf("%w: content type: %v", ErrTruncatedData, err)
	}
	off += n

	var storedAt int64
	if storedAt, n, err = varint.Int64.Unmarshal(data[off:]); err != nil {
		return nil, fmt.Errorf("%w: timestamp: %v", ErrTruncatedData, err)
	}
	obj.StoredAt = time.UnixMicro(storedAt).UTC()
	off += n

	if obj.Digest, n, err = ord.String.Unmarshal(data[off:]); err != nil {
		return nil, fmt.Errorf("%w: digest: %v", ErrTruncatedData, err)
	}
	off += n

	if obj.Data, _, err = ord.ByteSlice.Unmarshal(data[off:]); err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrTruncatedData, err)
	}

	if Digest(obj.Data) != obj.Digest {
		return nil, ErrIntegrity
	}
	return obj, nil
}

// MarshalRunRecord serializes a RunRecord to bytes.
func MarshalRunRecord(run *RunRecord) []byte {
	strs := []string{run.RunID, run.Variant, run.State, run.Bucket, run.Key, run.Index, run.Message}
	ints := []int{run.Records, run.Failed, run.StatusCode}
	times := []int64{run.StartedAt.UnixMicro(), run.FinishedAt.UnixMicro()}

	size := 0
	for _, s := range strs {
		size += ord.String.Size(s)
	}
	for _, i := range ints {
		size += varint.Int.Size(i)
	}
	for _, t := range times {
		size += varint.Int64.Size(t)
	}

	buf := make([]byte, size)
	n := 0
	for _, s := range strs {
		n += ord.String.Marshal(s, buf[n:])
	}
	for _, i := range ints {
		n += varint.Int.Marshal(i, buf[n:])
	}
	for _, t := range times {
		n += varint.Int64.Marshal(t, buf[n:])
	}
	return buf
}

// UnmarshalRunRecord deserializes a RunRecord from bytes.
func UnmarshalRunRecord(data []byte) (*RunRecord, error) {
	run := &RunRecord{}
	off := 0

	for _, dst := range []*string{&run.RunID, &run.Variant, &run.State, &run.Bucket, &run.Key, &run.Index, &run.Message} {
		v, n, err := ord.String.Unmarshal(data[off:])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTruncatedData, err)
		}
		*dst = v
		off += n
	}
	for _, dst := range []*int{&run.Records, &run.Failed, &run.StatusCode} {
		v, n, err := varint.Int.Unmarshal(data[off:])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTruncatedData, err)
		}
		*dst = v
		off += n
	}
	for _, dst := range []*time.Time{&run.StartedAt, &run.FinishedAt} {
		v, n, err := varint.Int64.Unmarshal(data[off:])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTruncatedData, err)
		}
		*dst = time.UnixMicro(v).UTC()
		off += n
	}
	return run, nil
}
