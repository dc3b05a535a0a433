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


// Package vectorstore embeds training items and persists them for retrieval.
//
// A Store pairs an ai.Embedder with a storage.Repository. It is the sink the
// ingestion accumulator dispatches batches into:
//   - AddBatch embeds every item in one EmbedBatch call and writes the
//     records in one repository call
//   - Add does the same for a single item and is the per-item fallback
//
// On the read side RetrievalContext embeds a question once and collects the
// nearest DDL statements, documentation blocks and question/SQL examples,
// which the chat backend turns into a prompt. The per-kind queries run
// concurrently; results keep the core.Kinds order.
package vectorstore
