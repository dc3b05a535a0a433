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


// Package storage provides the storage abstraction layer for sqlrecall.
//
// This package defines the Repository interface that decouples the vector
// store from the engine holding the training records. Two backends exist:
//
//   - storage/badger: embedded BadgerDB with brute-force cosine search
//   - storage/qdrant: a remote Qdrant collection reached over gRPC
//
// # Constructor Return Type Pattern
//
// Public constructors return the Repository interface:
//
//	repo, err := badger.NewRepository(path)  // returns storage.Repository
//
// Internal constructors (newRepository, OpenBackend) may return concrete
// types since they're only used within the implementation package.
//
// # Record Identity
//
// Records are keyed by core.IDFromContent of their kind and content, so
// retraining the same material upserts instead of duplicating.
//
// # Usage
//
// Use in tests with in-memory storage:
//
//	repo, err := badger.NewMemoryRepository()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer repo.Close()
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
