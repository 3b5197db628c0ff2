package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pathfinder-workers/internal/common/config"
	apphttp "pathfinder-workers/internal/common/http"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// maxBatch bounds the number of inputs sent in one embeddings request.
	maxBatch = 256

	requestTimeout = 30 * time.Second
)

// OpenAIEmbedder calls the OpenAI embeddings endpoint, or any compatible server via BaseURL.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
	dim    int
}

func NewOpenAIEmbedder(cfg config.EmbeddingConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientCfg.HTTPClient = apphttp.NewClient(requestTimeout)

	model := cfg.Model
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}

	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		dim:    cfg.Dimension,
	}, nil
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("cannot embed empty text")
	}
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch sends texts in request-sized batches and keeps input order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	for start := 0; start < len(texts); start += maxBatch {
		end := start + maxBatch
		if end > len(texts) {
			end = len(texts)
		}

		req := openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(e.model),
			Input: texts[start:end],
		}
		if e.dim > 0 {
			req.Dimensions = e.dim
		}

		resp, err := e.client.CreateEmbeddings(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("openai embeddings: %w", err)
		}
		if len(resp.Data) != end-start {
			return nil, fmt.Errorf("openai returned %d embeddings for %d inputs", len(resp.Data), end-start)
		}

		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= end-start {
				return nil, fmt.Errorf("openai returned out-of-range index %d", d.Index)
			}
			v := make([]float32, len(d.Embedding))
			for i := range d.Embedding {
				v[i] = float32(d.Embedding[i])
			}
			l2normalize(v)
			out[start+d.Index] = v
		}
	}
	return out, nil
}

func (e *OpenAIEmbedder) Dimension() int { return e.dim }

func (e *OpenAIEmbedder) ModelInfo() string { return "openai-" + e.model }
