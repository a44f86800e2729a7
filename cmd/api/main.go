package main

import (
	"log"
	"net/http"

	"docforge/internal/api"
	"docforge/internal/config"
	"docforge/internal/logger"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	zl := logger.New("api", cfg.LogLevel, cfg.LogPretty)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	s := api.NewServer(cfg, registry, zl)
	zl.Info().Str("addr", cfg.APIAddr).Msg("docforge api starting")
	if err := http.ListenAndServe(cfg.APIAddr, s.Routes()); err != nil {
		log.Fatal(err)
	}
}
