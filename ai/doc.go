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


// Package ai provides abstractions for the AI services used by sqlrecall.
//
// Three interfaces are defined here:
//
//   - Embedder: turns text into fixed-dimension vectors
//   - ChatBackend: turns questions into SQL and SQL into questions
//   - Provider: aggregates both for initialization and shutdown
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible HTTP services (go-openai for embeddings,
//     langchaingo for chat)
//   - ai/mock: test doubles
//
// Public constructors in ai/openai return interfaces. Mock constructors
// return concrete types so tests can inject behavior and count calls.
//
// # Errors
//
// Failures are reported through the sentinels in errors.go and can be
// matched with errors.Is. ErrConfiguration is always raised before any
// network traffic.
//
// # Usage Example
//
//	cfg := ai.NewConfig(
//	    ai.WithEmbeddingHost("https://api.siliconflow.cn/v1"),
//	    ai.WithEmbeddingAPIKey(os.Getenv("EMBEDDING_API_KEY")),
//	)
//	provider, err := openai.NewProvider(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vec, err := provider.Embedder().Embed(ctx, "SELECT * FROM orders")
package ai
