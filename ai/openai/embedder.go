package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	gogpt "github.com/sashabaranov/go-openai"

	"github.com/poiesic/sqlrecall/ai"
)

// DefaultProbeText is embedded by TestConnection when no text is given.
const DefaultProbeText = "测试文本"

// Embedder implements ai.Embedder against an OpenAI-compatible /embeddings endpoint.
type Embedder struct {
	client    *gogpt.Client
	config    ai.Config
	endpoint  string
	dimension atomic.Int64
	retry     retryPolicy
	logger    *slog.Logger
}

var (
	_ ai.Embedder = (*Embedder)(nil)
	_ ai.Prober   = (*Embedder)(nil)
)

// newEmbedder is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newEmbedder(config *ai.Config) (*Embedder, error) {
	if config == nil {
		return nil, fmt.Errorf("%w: config is nil", ai.ErrConfiguration)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	clientConfig := gogpt.DefaultConfig(config.EmbeddingAPIKey)
	clientConfig.BaseURL = config.EmbeddingBaseURL()
	clientConfig.HTTPClient = &http.Client{Timeout: config.RequestTimeout}

	logger := slog.Default().With("component", "openai-embedder")
	e := &Embedder{
		client:   gogpt.NewClientWithConfig(clientConfig),
		config:   *config,
		endpoint: config.EmbeddingEndpoint(),
		retry: retryPolicy{
			maxRetries: config.MaxRetries,
			interval:   config.RetryInterval,
			sleep:      sleepContext,
			logger:     logger,
		},
		logger: logger,
	}
	e.dimension.Store(int64(config.EmbeddingDimension))
	return e, nil
}

// NewEmbedder creates a new embedder using the provided configuration.
// Configuration problems are reported here, before any request is made.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	return newEmbedder(config)
}

// Dimension returns the configured or learned vector length, 0 if unknown.
func (e *Embedder) Dimension() int {
	return int(e.dimension.Load())
}

// Embed generates a vector embedding for a single text string.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		dim := e.Dimension()
		if dim == 0 {
			return nil, fmt.Errorf("empty text: %w", ai.ErrDimensionUnknown)
		}
		e.logger.Debug("empty text, returning zero vector", "dimension", dim)
		return zeroVector(dim), nil
	}

	vector, attempts, err := e.fetch(ctx, text)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if dim := e.Dimension(); dim > 0 {
			e.logger.Error("embedding failed, returning zero vector",
				"attempts", attempts, "dimension", dim, "err", err)
			return zeroVector(dim), nil
		}
		e.logger.Error("embedding failed and dimension is unknown", "attempts", attempts, "err", err)
		return nil, fmt.Errorf("%w after %d attempts: %w", ai.ErrExhaustedRetries, attempts, err)
	}

	return e.finish(vector), nil
}

// EmbedBatch embeds each text independently and in order. Texts that fail
// get a zero vector once any dimension is known; an error is returned only
// when some text failed and no dimension was ever learned.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("generating embeddings for texts", "count", len(texts))

	vectors := make([][]float32, len(texts))
	var failed []int
	var firstErr error
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err := e.Embed(ctx, text)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			failed = append(failed, i)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		vectors[i] = vec
	}

	if len(failed) == 0 {
		return vectors, nil
	}

	dim := e.Dimension()
	if dim == 0 {
		return nil, fmt.Errorf("%d of %d texts failed: %w", len(failed), len(texts), firstErr)
	}
	for _, i := range failed {
		vectors[i] = zeroVector(dim)
	}
	e.logger.Warn("some texts fell back to zero vectors", "failed", len(failed), "count", len(texts))
	return vectors, nil
}

// TestConnection embeds probeText once and reports what happened. It never
// substitutes a zero vector, so a failing service is reported as such.
func (e *Embedder) TestConnection(ctx context.Context, probeText string) ai.ProbeResult {
	result := ai.ProbeResult{
		Model:             e.config.EmbeddingModel,
		BaseURL:           e.endpoint,
		ExpectedDimension: e.Dimension(),
	}

	cfg := e.config
	if err := cfg.Validate(); err != nil {
		result.Message = err.Error()
		return result
	}

	if strings.TrimSpace(probeText) == "" {
		probeText = DefaultProbeText
	}

	vector, attempts, err := e.fetch(ctx, probeText)
	if err != nil {
		result.Message = fmt.Sprintf("connection test failed after %d attempts: %v", attempts, err)
		return result
	}
	vector = e.finish(vector)

	result.Success = true
	result.ActualDimension = len(vector)
	switch {
	case result.ExpectedDimension == 0:
		result.Message = fmt.Sprintf("connection test succeeded, learned dimension %d", result.ActualDimension)
	case result.ActualDimension != result.ExpectedDimension:
		result.Message = fmt.Sprintf("warning: model produced dimension %d but %d is configured",
			result.ActualDimension, result.ExpectedDimension)
	default:
		result.Message = fmt.Sprintf("connection test succeeded, dimension %d", result.ActualDimension)
	}
	return result
}

// Probe validates config and, when it is complete, runs TestConnection
// against a freshly built embedder. Configuration errors become a message.
func Probe(ctx context.Context, config *ai.Config, probeText string) ai.ProbeResult {
	e, err := newEmbedder(config)
	if err != nil {
		result := ai.ProbeResult{Message: err.Error()}
		if config != nil {
			result.Model = config.EmbeddingModel
			result.BaseURL = config.EmbeddingEndpoint()
			result.ExpectedDimension = config.EmbeddingDimension
		}
		return result
	}
	return e.TestConnection(ctx, probeText)
}

// fetch performs the request with retries and returns the raw vector.
func (e *Embedder) fetch(ctx context.Context, text string) ([]float32, int, error) {
	var vector []float32
	attempts, err := e.retry.do(ctx, func(ctx context.Context) error {
		v, err := e.requestOnce(ctx, text)
		if err != nil {
			return err
		}
		vector = v
		return nil
	})
	return vector, attempts, err
}

// requestOnce performs a single HTTP attempt and classifies its failure.
func (e *Embedder) requestOnce(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, gogpt.EmbeddingRequest{
		Input:          text,
		Model:          gogpt.EmbeddingModel(e.config.EmbeddingModel),
		EncodingFormat: gogpt.EmbeddingEncodingFormatFloat,
	})
	if err != nil {
		return nil, classify(ctx, err)
	}

	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: response has no data", ai.ErrMalformedResponse)
	}
	if len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding", ai.ErrMalformedResponse)
	}
	return resp.Data[0].Embedding, nil
}

// finish learns the dimension on first success, reconciles mismatches and
// normalizes.
func (e *Embedder) finish(vector []float32) []float32 {
	got := int64(len(vector))
	if e.dimension.CompareAndSwap(0, got) {
		e.logger.Info("learned embedding dimension", "dimension", got)
	}

	if dim := e.Dimension(); len(vector) != dim {
		e.logger.Warn("embedding dimension mismatch", "expected", dim, "actual", len(vector),
			"strict", e.config.StrictDimension)
		if e.config.StrictDimension {
			vector = fitDimension(vector, dim)
		}
	}

	if e.config.NormalizeEmbeddings {
		vector = NormalizeVector(vector)
	}
	return vector
}

// retryableStatus lists the HTTP statuses treated as transient.
var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// classify maps a client error onto the ai error taxonomy. Only the statuses
// in retryableStatus are transient. Any other status, 4xx auth and validation
// errors included, is permanent and is never retried.
func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return err
	}

	if status, ok := httpStatus(err); ok {
		if retryableStatus[status] {
			return fmt.Errorf("%w: status %d: %w", ai.ErrTransientNetwork, status, err)
		}
		return fmt.Errorf("%w: status %d: %w", ai.ErrPermanentResponse, status, err)
	}

	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", ai.ErrTransientNetwork, err)
	}

	return fmt.Errorf("%w: %w", ai.ErrMalformedResponse, err)
}

func httpStatus(err error) (int, bool) {
	var apiErr *gogpt.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return apiErr.HTTPStatusCode, true
	}
	var reqErr *gogpt.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return reqErr.HTTPStatusCode, true
	}
	return 0, false
}
