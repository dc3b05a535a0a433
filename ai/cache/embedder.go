// Package cache provides an LRU-caching decorator for ai.Embedder.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/poiesic/sqlrecall/ai"
)

// DefaultSize is the number of embeddings kept when no size is given.
const DefaultSize = 100

// Embedder caches vectors produced by another ai.Embedder, keyed by a hash of
// the text. Concurrent misses for the same text share one upstream call.
// Zero vectors are never cached, so degraded results are retried next time.
type Embedder struct {
	inner ai.Embedder
	cache *lru.Cache[string, []float32]
	group singleflight.Group
}

var (
	_ ai.Embedder = (*Embedder)(nil)
	_ ai.Prober   = (*Embedder)(nil)
)

// New wraps inner with a cache holding up to size embeddings.
func New(inner ai.Embedder, size int) (*Embedder, error) {
	if inner == nil {
		return nil, fmt.Errorf("%w: embedder is nil", ai.ErrConfiguration)
	}
	if size <= 0 {
		size = DefaultSize
	}
	c, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &Embedder{inner: inner, cache: c}, nil
}

// Embed returns the cached vector for text or asks the wrapped embedder.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := computeHash(text)
	if v, ok := e.cache.Get(key); ok {
		return copyVector(v), nil
	}

	v, err, _ := e.group.Do(key, func() (any, error) {
		v, err := e.inner.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		e.store(key, v)
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return copyVector(v.([]float32)), nil
}

// EmbedBatch serves hits from the cache and sends the misses upstream in one
// EmbedBatch call. Order and length follow texts.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))

	var missing []string
	var missingIdx []int
	for i, text := range texts {
		keys[i] = computeHash(text)
		if v, ok := e.cache.Get(keys[i]); ok {
			out[i] = copyVector(v)
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vectors, err := e.inner.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missing) {
		return nil, fmt.Errorf("%w: %d texts, %d vectors", ai.ErrMalformedResponse, len(missing), len(vectors))
	}
	for j, i := range missingIdx {
		e.store(keys[i], vectors[j])
		out[i] = vectors[j]
	}
	return out, nil
}

// Dimension delegates to the wrapped embedder.
func (e *Embedder) Dimension() int {
	return e.inner.Dimension()
}

// TestConnection bypasses the cache. It reports failure if the wrapped
// embedder cannot be probed.
func (e *Embedder) TestConnection(ctx context.Context, probeText string) ai.ProbeResult {
	if p, ok := e.inner.(ai.Prober); ok {
		return p.TestConnection(ctx, probeText)
	}
	return ai.ProbeResult{Message: "embedder does not support connection tests"}
}

// Len returns the number of cached embeddings.
func (e *Embedder) Len() int {
	return e.cache.Len()
}

// Purge empties the cache.
func (e *Embedder) Purge() {
	e.cache.Purge()
}

func (e *Embedder) store(key string, v []float32) {
	if isZero(v) {
		return
	}
	e.cache.Add(key, copyVector(v))
}

func computeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

func copyVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
