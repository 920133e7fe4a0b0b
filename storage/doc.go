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


// Package storage provides the storage abstraction layer for reviewpipe.
//
// This package defines the capabilities the pipeline needs from its
// environment, decoupled from any particular backend:
//
//   - BlobStore: bucket/key object storage for input batches and artifacts
//   - CredentialProvider: named secrets such as search engine credentials
//   - RunRepository: a local journal of pipeline run outcomes
//
// # Constructor Return Type Pattern
//
// Public constructors return INTERFACE types so backends stay swappable:
//
//	store, err := badger.NewBlobStore(backend)  // returns storage.BlobStore
//
// Internal package constructors may return concrete types since they're only
// used within the implementation package.
//
// # Backends
//
//   - storage/badger: embedded BadgerDB, used locally and in tests
//   - storage/s3: Amazon S3
//   - storage/secrets: AWS Secrets Manager and environment variables
//
// # Object Envelope
//
// Backends that own their byte layout (BadgerDB) wrap every object in an
// envelope carrying a BLAKE2b digest, a content type and a write timestamp.
// The digest is verified on every read; a mismatch reports ErrIntegrity.
//
// # Thread Safety
//
// All implementations must be thread-safe and support concurrent access
// from multiple goroutines.
//
// # Context Support
//
// All methods accept context.Context for cancellation and timeout support.
package storage
