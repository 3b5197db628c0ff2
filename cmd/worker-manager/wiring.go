package main

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"pathfinder-workers/internal/common/config"
	"pathfinder-workers/internal/common/database"
	"pathfinder-workers/internal/common/logger"
	"pathfinder-workers/internal/embedding"
	"pathfinder-workers/internal/llm/gemini"
	"pathfinder-workers/internal/matching/profile"
	"pathfinder-workers/internal/matching/retrieval"
	"pathfinder-workers/internal/reference"
)

// backends holds the optional stores selected by configuration. Unused ones stay nil.
type backends struct {
	postgres *database.PostgresClient
	sqlite   *database.SQLiteClient
	elastic  *database.ElasticsearchClient
}

func (b *backends) Close() {
	if b.postgres != nil {
		b.postgres.Close()
	}
	if b.sqlite != nil {
		b.sqlite.Close()
	}
}

// retryWithBackoff runs operation up to maxAttempts times, doubling the delay from
// initialDelay between attempts. It stops early when ctx is done.
func retryWithBackoff(ctx context.Context, operation func() error, maxAttempts int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = 64 * initialDelay
	b.MaxElapsedTime = 0

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		return operation()
	}, backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxAttempts-1)), ctx),
		func(err error, next time.Duration) {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", attempt),
				zap.Int("maxRetries", maxAttempts),
				zap.Duration("nextRetryIn", next),
			)
		})
	if err != nil {
		return fmt.Errorf("%s failed after %d attempts: %w", operationName, attempt, err)
	}
	return nil
}

func connectBackends(ctx context.Context, cfg *config.Config, log *zap.Logger) (*backends, error) {
	b := &backends{}

	if cfg.Reference.Source == config.SourcePostgres || cfg.Retrieval.Backend == config.BackendPGVector {
		err := retryWithBackoff(ctx, func() error {
			pg, err := database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := pg.Ping(pingCtx); err != nil {
				pg.Close()
				return err
			}
			b.postgres = pg
			return nil
		}, 5, 2*time.Second, log, "PostgreSQL connection")
		if err != nil {
			return b, err
		}
		log.Info("PostgreSQL connected successfully")
	}

	if cfg.Reference.Source == config.SourceSQLite {
		lite, err := database.NewSQLite(cfg.Database.SQLite)
		if err != nil {
			return b, err
		}
		if err := lite.Ping(ctx); err != nil {
			lite.Close()
			return b, err
		}
		b.sqlite = lite
		log.Info("SQLite reference database opened", zap.String("path", cfg.Database.SQLite.Path))
	}

	if cfg.Retrieval.KeywordBackend == config.BackendElasticsearch {
		err := retryWithBackoff(ctx, func() error {
			es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := es.Ping(pingCtx); err != nil {
				return err
			}
			b.elastic = es
			return nil
		}, 5, 2*time.Second, log, "Elasticsearch connection")
		if err != nil {
			// keyword fallback still works in memory
			log.Warn("Elasticsearch unavailable, keyword fallback stays in memory", zap.Error(err))
		} else {
			log.Info("Elasticsearch connected successfully")
		}
	}

	return b, nil
}

func newLoader(cfg *config.Config, b *backends) (reference.Loader, error) {
	// pgvector keeps vectors in the database, so the snapshot can skip them
	withEmbeddings := cfg.Retrieval.Backend == config.BackendMemory

	switch cfg.Reference.Source {
	case config.SourcePostgres:
		return reference.NewSQLLoader(b.postgres.DB, config.SourcePostgres, withEmbeddings), nil
	case config.SourceSQLite:
		return reference.NewSQLLoader(b.sqlite.DB, config.SourceSQLite, withEmbeddings), nil
	case config.SourceFile:
		return reference.NewFileLoader(cfg.Reference.FilePath), nil
	default:
		return nil, fmt.Errorf("unknown reference source %q", cfg.Reference.Source)
	}
}

func newEngine(cfg *config.Config, embedder embedding.Embedder, b *backends, log logger.Logger) *retrieval.Engine {
	var index retrieval.VectorIndex = retrieval.NewMemoryIndex()
	if cfg.Retrieval.Backend == config.BackendPGVector && b.postgres != nil {
		index = retrieval.NewPGVectorIndex(b.postgres.DB)
	}

	var keyword retrieval.KeywordSearcher = retrieval.NewMemoryKeywordSearcher()
	if b.elastic != nil {
		keyword = &retrieval.FallbackKeywordSearcher{
			Primary:   retrieval.NewElasticKeywordSearcher(b.elastic.Client, cfg.Retrieval.ChunkIndex),
			Secondary: retrieval.NewMemoryKeywordSearcher(),
			Logger:    log,
		}
	}

	var structural retrieval.StructuralRelevance = retrieval.ConstantRelevance{Value: cfg.Retrieval.DefaultStructural}
	if cfg.Retrieval.Structural == config.StructuralAssociation {
		structural = retrieval.AssociationRelevance{Default: cfg.Retrieval.DefaultStructural}
	}

	log.Info("Retrieval engine configured", map[string]interface{}{
		"index":      index.Name(),
		"keyword":    keyword.Name(),
		"structural": cfg.Retrieval.Structural,
		"embedder":   embedder.ModelInfo(),
	})
	return retrieval.NewEngine(retrieval.FromConfig(cfg.Retrieval), embedder, index, keyword, structural, log)
}

// newRefiner returns nil when the narrative stage is off, which the resolver treats as pass-through.
func newRefiner(ctx context.Context, cfg *config.Config, log logger.Logger) profile.Refiner {
	if !cfg.LLM.Enabled {
		return nil
	}
	gen, err := gemini.NewGenerator(ctx, cfg.LLM.APIKey, cfg.LLM.Model)
	if err != nil {
		log.Warn("Refinement model unavailable, using caller ratings only", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}
	log.Info("Refinement stage enabled", map[string]interface{}{"model": gen.Model()})
	return profile.NewLLMRefiner(gen, config.GetDuration(cfg.LLM.Timeout))
}
