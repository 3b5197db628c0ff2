package reference

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	apperrors "pathfinder-workers/internal/common/errors"
	"pathfinder-workers/internal/common/logger"
	"pathfinder-workers/internal/common/metrics"
)

// Loader reads reference data from a backing source.
type Loader interface {
	Load(ctx context.Context) (*Data, error)
	Name() string
}

// Embedder fills in chunk embeddings that the source did not carry.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Store serves the current snapshot. Reads are lock-free; reloads are serialized and
// swap the pointer only after the new snapshot is fully built.
type Store struct {
	loader   Loader
	embedder Embedder
	logger   logger.Logger

	current atomic.Pointer[Snapshot]
	version atomic.Int64
	reload  sync.Mutex
}

type Option func(*Store)

// WithEmbeddingBackfill embeds chunks whose source carried no vector.
func WithEmbeddingBackfill(e Embedder) Option {
	return func(s *Store) { s.embedder = e }
}

func NewStore(loader Loader, log logger.Logger, opts ...Option) *Store {
	s := &Store{loader: loader, logger: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Current returns the snapshot in service, or REFERENCE_UNAVAILABLE before the first load.
func (s *Store) Current() (*Snapshot, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, apperrors.NewReferenceUnavailableError()
	}
	return snap, nil
}

// Ready reports whether a snapshot has been loaded.
func (s *Store) Ready() bool {
	return s.current.Load() != nil
}

// Reload builds a new snapshot and swaps it in. On failure the previous snapshot stays in service.
func (s *Store) Reload(ctx context.Context) (*Snapshot, error) {
	s.reload.Lock()
	defer s.reload.Unlock()

	start := time.Now()
	source := s.loader.Name()

	data, err := s.loader.Load(ctx)
	if err != nil {
		metrics.ReferenceReloads.WithLabelValues(source, "failed").Inc()
		return nil, apperrors.NewReferenceLoadError(source, err)
	}

	if s.embedder != nil {
		if err := backfill(ctx, s.embedder, data); err != nil {
			metrics.ReferenceReloads.WithLabelValues(source, "failed").Inc()
			return nil, apperrors.NewReferenceLoadError(source, fmt.Errorf("embedding backfill: %w", err))
		}
	}

	snap, err := NewSnapshot(data, s.version.Load()+1, source)
	if err != nil {
		metrics.ReferenceReloads.WithLabelValues(source, "invalid").Inc()
		return nil, apperrors.NewReferenceLoadError(source, err)
	}

	s.version.Store(snap.Version)
	s.current.Store(snap)
	metrics.ReferenceReloads.WithLabelValues(source, "ok").Inc()
	metrics.ReferenceVersion.Set(float64(snap.Version))

	stats := snap.Stats()
	s.logger.Info("Reference snapshot loaded", map[string]interface{}{
		"version":     stats.Version,
		"source":      source,
		"skills":      stats.Skills,
		"occupations": stats.Occupations,
		"programs":    stats.Programs,
		"chunks":      stats.Chunks,
		"durationMs":  time.Since(start).Milliseconds(),
	})
	return snap, nil
}

// Refresh reloads every interval until ctx is done. Failures are logged; the old snapshot keeps serving.
func (s *Store) Refresh(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Reload(ctx); err != nil {
				s.logger.Error("Scheduled reference reload failed", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}
	}
}

const backfillBatch = 64

func backfill(ctx context.Context, e Embedder, d *Data) error {
	var idx []int
	for i := range d.Chunks {
		if len(d.Chunks[i].Embedding) == 0 {
			idx = append(idx, i)
		}
	}

	for start := 0; start < len(idx); start += backfillBatch {
		end := start + backfillBatch
		if end > len(idx) {
			end = len(idx)
		}
		texts := make([]string, 0, end-start)
		for _, i := range idx[start:end] {
			texts = append(texts, d.Chunks[i].Text)
		}
		vecs, err := e.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		if len(vecs) != len(texts) {
			return fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(texts))
		}
		for k, i := range idx[start:end] {
			d.Chunks[i].Embedding = vecs[k]
		}
	}
	return nil
}
