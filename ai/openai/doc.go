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


// Package openai provides AI service implementations using OpenAI-compatible APIs.
//
// The Embedder talks to any /embeddings endpoint through go-openai. It retries
// HTTP 429/500/502/503/504, network errors and malformed responses with
// exponential backoff, learns the vector dimension from the first successful
// response, and falls back to a zero vector once that dimension is known.
//
// The ChatBackend uses langchaingo to reach Qwen or DeepSeek through their
// OpenAI-compatible chat endpoints.
//
// # Usage
//
//	config := ai.NewConfig(
//	    ai.WithEmbeddingHost("https://api.siliconflow.cn/v1"), // /embeddings added automatically
//	    ai.WithEmbeddingAPIKey(os.Getenv("EMBEDDING_API_KEY")),
//	    ai.WithChatProvider(ai.ChatProviderQwen),
//	    ai.WithChatAPIKey(os.Getenv("QWEN_API_KEY")),
//	)
//
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vec, err := provider.Embedder().Embed(ctx, "CREATE TABLE orders (...)")
//	sql, err := provider.ChatBackend().GenerateSQL(ctx, "How many orders shipped today?", rc)
package openai
