package main

import (
	"context"
	"log"
	"time"

	"docforge/internal/activities"
	"docforge/internal/config"
	"docforge/internal/embed"
	"docforge/internal/kg"
	"docforge/internal/logger"
	"docforge/internal/monitor"
	"docforge/internal/ocr"
	"docforge/internal/pipeline"
	"docforge/internal/storage"
	"docforge/internal/workflows"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	zl := logger.New("worker", cfg.LogLevel, cfg.LogPretty)

	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{})
	workflows.Register(w)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	registry := prometheus.NewRegistry()
	graph := kg.NewGraph(zl, storage.NewGraphRepo(db))
	pipe := pipeline.New(cfg, pipeline.Deps{
		Store:        storage.NewCASRepo(db),
		OCRBackends:  ocr.FromSpec(cfg.OCRBackends, cfg.OCRBaseURL),
		EmbedBackend: embed.FromSpec(cfg.EmbedBackends, cfg.EmbedBaseURL, cfg.EmbedModel, cfg.EmbedDim),
		Graph:        graph,
		Chunks:       storage.NewChunkSink(storage.NewChunkRepo(db)),
		Monitor:      monitor.NewPrometheusMonitor(registry),
		Audit:        storage.NewAuditRepo(db, zl),
		Logger:       zl,
	})

	activities.Register(w, activities.New(cfg, pipe, db))

	zl.Info().
		Str("temporal", cfg.TemporalAddress).
		Str("task_queue", cfg.TemporalTaskQueue).
		Str("ocr_backends", cfg.OCRBackends).
		Str("embed_backends", cfg.EmbedBackends).
		Msg("docforge worker starting")
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatal(err)
	}
}
