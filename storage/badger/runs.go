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


package badger

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/reviewpipe/storage"
)

// RunRepository implements storage.RunRepository for BadgerDB.
type RunRepository struct {
	backend *Backend
}

var _ storage.RunRepository = (*RunRepository)(nil)

// NewRunRepository creates a new RunRepository.
func NewRunRepository(backend *Backend) *RunRepository {
	return &RunRepository{
		backend: backend,
	}
}

// SaveRun persists a run journal entry.
func (r *RunRepository) SaveRun(ctx context.Context, run *storage.RunRecord) error {
	return r.backend.Update(ctx, func(tx *badger.Txn) error {
		return tx.Set(makeRunKey(run.RunID), storage.MarshalRunRecord(run))
	})
}

// ListRuns returns up to limit runs, most recent first.
// A non-positive limit returns every run.
func (r *RunRepository) ListRuns(ctx context.Context, limit int) ([]*storage.RunRecord, error) {
	var runs []*storage.RunRecord
	err := r.backend.View(ctx, func(tx *badger.Txn) error {
		prefix := makeRunKey("")
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Reverse iteration must seek past the last key carrying the prefix.
		seek := append(append([]byte{}, prefix...), 0xFF)
		for iter.Seek(seek); iter.Valid(); iter.Next() {
			if limit > 0 && len(runs) >= limit {
				break
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			err := iter.Item().Value(func(val []byte) error {
				run, err := storage.UnmarshalRunRecord(val)
				if err != nil {
					return err
				}
				runs = append(runs, run)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	return runs, err
}
