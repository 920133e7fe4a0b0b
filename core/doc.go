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


// Package core defines the review record model shared by every stage of the
// pipeline.
//
// A Record is an ordered mapping of field names to JSON values. Field order is
// preserved from decoding through encoding so that the artifacts written back
// to storage look like the ones that were read. Two fields carry meaning for
// the pipeline:
//
//   - "id": a positive integer that identifies the logical document in the
//     search index. It is assigned once by AssignIDs and never changes.
//   - "review_body": the free text handed to the sentiment classifier.
//
// Every other field is opaque payload.
//
// # Identifier Assignment
//
// AssignIDs numbers records positionally: the first record without an id gets
// 1, the second gets 2, and so on, skipping ids already present in the batch.
// Assignment is not content-derived, so reordering the input changes which
// review ends up with which id.
//
// # Serialization
//
// DecodeBatch accepts a JSON array of objects or newline-delimited objects and
// tolerates a leading UTF-8 byte order mark. EncodeBatch writes either format
// without escaping non-ASCII or HTML characters.
package core
