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


package ingestion

import "errors"

var (
	// ErrSinkRequired is returned when a sink is not provided.
	ErrSinkRequired = errors.New("sink required")

	// ErrChatBackendRequired is returned when a trainer needs a chat backend
	// to generate questions and none was provided.
	ErrChatBackendRequired = errors.New("chat backend required")

	// ErrAccumulatorClosed is returned by Add after Shutdown has been called.
	// It indicates a programming error: the item would never be stored.
	ErrAccumulatorClosed = errors.New("accumulator is shut down")

	// ErrInvalidOption is returned when an option value is out of range.
	ErrInvalidOption = errors.New("invalid option")

	// ErrSinkPanic is recorded when a sink call panics.
	ErrSinkPanic = errors.New("sink panicked")
)
