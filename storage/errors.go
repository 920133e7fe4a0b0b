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

import "errors"

var (
	// ErrNotFound indicates that the requested object was not found.
	ErrNotFound = errors.New("object not found")

	// ErrSecretNotFound indicates that a named secret does not exist or has no value.
	ErrSecretNotFound = errors.New("secret not found")

	// ErrInvalidLocation indicates an empty or malformed bucket or key.
	ErrInvalidLocation = errors.New("invalid object location")

	// ErrStorageClosed indicates that the storage backend is closed.
	ErrStorageClosed = errors.New("storage is closed")

	// ErrSerializationFailed indicates a serialization/deserialization failure.
	ErrSerializationFailed = errors.New("serialization failed")

	// ErrTruncatedData indicates that data was truncated during reading.
	ErrTruncatedData = errors.New("truncated data")

	// ErrIntegrity indicates a stored object no longer matches its digest.
	ErrIntegrity = errors.New("object digest mismatch")
)
