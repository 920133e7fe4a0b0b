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

import "errors"

// Domain errors
var (
	// ErrMissingIdentifier indicates a record has no valid id where one is required.
	ErrMissingIdentifier = errors.New("record has no identifier")

	// ErrDuplicateIdentifier indicates two records in one batch share an id.
	ErrDuplicateIdentifier = errors.New("duplicate record identifier")

	// ErrSerialization indicates a batch could not be encoded or decoded.
	ErrSerialization = errors.New("serialization failed")

	// ErrUnknownFormat indicates an unsupported artifact format name.
	ErrUnknownFormat = errors.New("unknown artifact format")
)
