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

import (
	"context"

	"github.com/poiesic/sqlrecall/core"
)

// Sink is the vector store the accumulator writes into. Both calls embed
// their input before storing it. Implementations must be safe for concurrent
// use by multiple pool workers.
type Sink interface {
	// AddBatch stores items of a single kind in one bulk call.
	AddBatch(ctx context.Context, items []core.TrainingItem) error

	// Add stores one item.
	Add(ctx context.Context, item core.TrainingItem) error
}

// processor is an internal interface for handing items to a sink.
type processor interface {
	// process stores a batch of same-kind items, falling back to one call per
	// item if the bulk call fails.
	process(ctx context.Context, kind core.Kind, items []core.TrainingItem) DispatchResult

	// processOne stores a single item without batching.
	processOne(ctx context.Context, item core.TrainingItem) DispatchResult
}
