// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"pathfinder-workers/internal/common/camunda"
	"pathfinder-workers/internal/common/config"
	"pathfinder-workers/internal/common/database"
	"pathfinder-workers/internal/common/logger"
	"pathfinder-workers/internal/common/observability"
	"pathfinder-workers/internal/common/validation"
	"pathfinder-workers/internal/embedding"
	"pathfinder-workers/internal/matching/assemble"
	"pathfinder-workers/internal/matching/occupation"
	"pathfinder-workers/internal/matching/profile"
	"pathfinder-workers/internal/matching/triage"
	"pathfinder-workers/internal/reference"
	"pathfinder-workers/internal/session"

	// Admin Workers (1)
	rrd "pathfinder-workers/internal/workers/admin/reload-reference-data"

	// Assessment Workers (3)
	gst "pathfinder-workers/internal/workers/assessment/get-skill-triage"
	si "pathfinder-workers/internal/workers/assessment/submit-interest"
	ssp "pathfinder-workers/internal/workers/assessment/submit-skill-profile"

	// Discovery Workers (2)
	gocc "pathfinder-workers/internal/workers/discovery/get-occupation"
	qp "pathfinder-workers/internal/workers/discovery/query-programs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "console")
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs, err := observability.New("worker-manager")
	if err != nil {
		zapLog.Warn("observability init failed, job metrics disabled", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Init Zeebe Client with retry ---
	var zeebe *camunda.Client
	err = retryWithBackoff(ctx, func() error {
		var err error
		zeebe, err = camunda.NewClient(ctx, cfg.Camunda)
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(ctx, func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		defer pingCancel()
		return rdb.Ping(pingCtx)
	}, 5, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	zapLog.Info("Redis connected successfully")

	// --- Reference stores ---
	stores, err := connectBackends(ctx, cfg, zapLog)
	if err != nil {
		zapLog.Fatal("reference backend connection failed", zap.Error(err))
	}
	defer stores.Close()

	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		zapLog.Fatal("embedder init failed", zap.Error(err))
	}

	loader, err := newLoader(cfg, stores)
	if err != nil {
		zapLog.Fatal("reference loader init failed", zap.Error(err))
	}

	var refOpts []reference.Option
	if cfg.Reference.BackfillEmbeddings && cfg.Retrieval.Backend == config.BackendMemory {
		refOpts = append(refOpts, reference.WithEmbeddingBackfill(embedder))
	}
	refs := reference.NewStore(loader, log, refOpts...)

	err = retryWithBackoff(ctx, func() error {
		_, err := refs.Reload(ctx)
		return err
	}, 5, 2*time.Second, zapLog, "Reference data load")
	if err != nil {
		// workers still start; they answer REFERENCE_UNAVAILABLE until a reload succeeds
		zapLog.Error("initial reference load failed", zap.Error(err))
	}
	go refs.Refresh(ctx, config.GetDuration(cfg.Reference.RefreshInterval))

	// --- Matching components ---
	engine := newEngine(cfg, embedder, stores, log)
	assembler := assemble.NewAssembler(engine, assemble.FromConfig(cfg.Retrieval), log)
	resolver := profile.NewResolver(newRefiner(ctx, cfg, log), log)
	sessions := session.NewRedisStore(rdb.Client, cfg.Session.KeyPrefix, config.GetDuration(cfg.Session.TTL))

	validator, err := validation.NewDefaultValidator()
	if err != nil {
		zapLog.Fatal("activity registry load failed", zap.Error(err))
	}

	client := zeebe.Zeebe()
	var workers []worker.JobWorker
	start := func(taskType string, handler worker.JobHandler) {
		if jw := camunda.StartWorker(client, taskType, config.GetWorkerConfig(cfg, taskType), handler, log); jw != nil {
			workers = append(workers, jw)
		}
	}
	timeoutFor := func(taskType string, fallback time.Duration) time.Duration {
		if ms := config.GetWorkerConfig(cfg, taskType).Timeout; ms > 0 {
			return config.GetDuration(ms)
		}
		return fallback
	}

	// Submit Interest
	{
		wc := si.LoadConfig()
		wc.Timeout = timeoutFor(si.TaskType, wc.Timeout)
		start(si.TaskType, si.NewHandler(wc, sessions, validator, obs, log).Handle)
	}

	// Get Skill Triage
	{
		wc := gst.LoadConfig()
		wc.Timeout = timeoutFor(gst.TaskType, wc.Timeout)
		wc.Triage = triage.FromConfig(cfg.Triage)
		start(gst.TaskType, gst.NewHandler(wc, refs, sessions, validator, obs, log).Handle)
	}

	// Submit Skill Profile
	{
		wc := ssp.LoadConfig()
		wc.Timeout = timeoutFor(ssp.TaskType, wc.Timeout)
		wc.Matching = occupation.FromConfig(cfg.Matching)
		start(ssp.TaskType, ssp.NewHandler(wc, refs, sessions, resolver, assembler, validator, obs, log).Handle)
	}

	// Query Programs
	{
		wc := qp.LoadConfig()
		wc.Timeout = timeoutFor(qp.TaskType, wc.Timeout)
		wc.HomeLocations = cfg.Retrieval.HomeLocations
		start(qp.TaskType, qp.NewHandler(wc, refs, engine, validator, obs, log).Handle)
	}

	// Get Occupation
	{
		wc := gocc.LoadConfig()
		wc.Timeout = timeoutFor(gocc.TaskType, wc.Timeout)
		start(gocc.TaskType, gocc.NewHandler(wc, refs, validator, obs, log).Handle)
	}

	// Reload Reference Data
	{
		wc := rrd.LoadConfig()
		wc.Timeout = timeoutFor(rrd.TaskType, wc.Timeout)
		start(rrd.TaskType, rrd.NewHandler(wc, refs, validator, obs, log).Handle)
	}
	zapLog.Info("Workers registered", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.Handle("/debug/pprof/", http.DefaultServeMux)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if !refs.Ready() {
			writeStatus(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": "reference data not loaded",
			})
			return
		}
		if err := zeebe.HealthCheck(r.Context()); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": err.Error(),
			})
			return
		}
		snap, _ := refs.Current()
		writeStatus(w, http.StatusOK, map[string]string{
			"status":          "ready",
			"snapshotVersion": fmt.Sprintf("%d", snap.Version),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	for _, jw := range workers {
		jw.Close()
		jw.AwaitClose()
	}
	cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}
	if err := rdb.Close(); err != nil {
		zapLog.Error("Error closing Redis client", zap.Error(err))
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error flushing metrics", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func writeStatus(w http.ResponseWriter, code int, body map[string]string) {
	body["time"] = time.Now().Format(time.RFC3339)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
