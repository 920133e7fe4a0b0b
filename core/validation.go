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


package core

import "fmt"

// IdentifierIssue describes a record that cannot be addressed by id.
type IdentifierIssue struct {
	Position int
	ID       ID
	Err      error
}

// CheckIdentifiers reports, in batch order, every record that lacks a valid
// id or repeats an id seen earlier in the batch. The first occurrence of a
// duplicated id is considered valid.
func CheckIdentifiers(batch Batch) []IdentifierIssue {
	var issues []IdentifierIssue
	seen := make(map[ID]int, len(batch))
	for i, rec := range batch {
		id, ok := rec.ID()
		if !ok {
			issues = append(issues, IdentifierIssue{Position: i, Err: ErrMissingIdentifier})
			continue
		}
		if first, dup := seen[id]; dup {
			issues = append(issues, IdentifierIssue{
				Position: i,
				ID:       id,
				Err:      fmt.Errorf("%w: %s also at position %d", ErrDuplicateIdentifier, id, first),
			})
			continue
		}
		seen[id] = i
	}
	return issues
}

// RequireIdentifiers returns an error for the first record lacking an id.
func RequireIdentifiers(batch Batch) error {
	for i, rec := range batch {
		if _, ok := rec.ID(); !ok {
			return fmt.Errorf("record %d: %w", i, ErrMissingIdentifier)
		}
	}
	return nil
}
