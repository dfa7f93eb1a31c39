package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/NicholasJacob1990/iudex0-sub007/internal/activities"
	"github.com/NicholasJacob1990/iudex0-sub007/internal/circuitbreaker"
	"github.com/NicholasJacob1990/iudex0-sub007/internal/citer"
	"github.com/NicholasJacob1990/iudex0-sub007/internal/config"
	"github.com/NicholasJacob1990/iudex0-sub007/internal/embeddings"
	"github.com/NicholasJacob1990/iudex0-sub007/internal/health"
	"github.com/NicholasJacob1990/iudex0-sub007/internal/httpapi"
	"github.com/NicholasJacob1990/iudex0-sub007/internal/llm"
	"github.com/NicholasJacob1990/iudex0-sub007/internal/memory"
	"github.com/NicholasJacob1990/iudex0-sub007/internal/retrieval"
	"github.com/NicholasJacob1990/iudex0-sub007/internal/router"
	"github.com/NicholasJacob1990/iudex0-sub007/internal/tracing"
	"github.com/NicholasJacob1990/iudex0-sub007/internal/workflows"
)

func main() {
	logger, err := buildLogger()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	circuitbreaker.ApplySettings(cfg.Resilience.Redis, cfg.Resilience.HTTP)
	circuitbreaker.StartMetricsCollection()

	if err := tracing.Initialize(tracing.Config{
		Enabled:      cfg.Observability.Tracing.Enabled,
		ServiceName:  cfg.Observability.Tracing.ServiceName,
		OTLPEndpoint: cfg.Observability.Tracing.OTLPEndpoint,
	}, logger); err != nil {
		logger.Warn("Tracing initialization failed", zap.Error(err))
	}

	// Model gateway: ordered fallback chain over the configured providers.
	gateway, err := llm.NewGateway(cfg.LLM, logger)
	if err != nil {
		logger.Fatal("Failed to initialize model gateway", zap.Error(err))
	}

	// Retrieval backends. Disabled backends get noop stand-ins so the
	// dual retriever always has a full set of collaborators.
	var vector retrieval.VectorSearcher = retrieval.NoopVector{}
	if cfg.Retrieval.Qdrant.Enabled {
		embedder := embeddings.NewClient(embeddings.Config{
			BaseURL:      cfg.Retrieval.Embeddings.BaseURL,
			DefaultModel: cfg.Retrieval.Embeddings.Model,
			Timeout:      cfg.Retrieval.Embeddings.Timeout,
			MaxLRU:       cfg.Retrieval.Embeddings.CacheSize,
		}, logger)
		vector = retrieval.NewQdrantSearcher(cfg.Retrieval.Qdrant, embedder, logger)
	}
	var lexical retrieval.LexicalSearcher = retrieval.NoopLexical{}
	if cfg.Retrieval.Lexical.Enabled {
		lexical = retrieval.NewLexicalClient(cfg.Retrieval.Lexical, logger)
	}
	var graph retrieval.GraphExpander = retrieval.NoopGraph{}
	if cfg.Retrieval.Graph.Enabled {
		graph = retrieval.NewGraphClient(cfg.Retrieval.Graph, logger)
	}
	retriever := retrieval.NewDualRetriever(vector, lexical, graph,
		cfg.Reasoning.RetrievalConcurrency, logger)

	// Consultation memory: Redis for similarity lookups, Postgres as the
	// optional durable archive.
	hm := health.NewManager(logger)
	var memStore memory.Store
	if cfg.Reasoning.EnableMemory {
		store, err := memory.NewRedisStore(cfg.Memory.RedisAddr, cfg.Memory.TTL, logger)
		if err != nil {
			logger.Fatal("Failed to connect consultation memory", zap.Error(err))
		}
		memStore = store
		hm.Register("consultation-memory", true, store.Ping)
	}
	var archive activities.Archiver
	if cfg.Memory.PostgresDSN != "" {
		pg, err := memory.NewPostgresArchive(cfg.Memory.PostgresDSN, logger)
		if err != nil {
			logger.Warn("Consultation archive unavailable, continuing without it", zap.Error(err))
		} else {
			defer pg.Close()
			archive = pg
			hm.Register("consultation-archive", false, pg.Ping)
		}
	}

	var arbiter router.Arbiter
	if cfg.Router.ArbitrationEnabled {
		arbiter = gateway
	}
	rt := router.New(cfg.Router, arbiter, logger)
	gate := citer.New(cfg.Citer, gateway, logger)

	acts := activities.New(activities.Deps{
		Config:    cfg,
		Gateway:   gateway,
		Retriever: retriever,
		Memory:    memStore,
		Archive:   archive,
		Router:    rt,
		Gate:      gate,
		Logger:    logger,
	})

	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		logger.Fatal("Failed to connect to Temporal", zap.Error(err))
	}
	defer temporalClient.Close()
	hm.Register("temporal", true, func(ctx context.Context) error {
		_, err := temporalClient.CheckHealth(ctx, &client.CheckHealthRequest{})
		return err
	})

	w := worker.New(temporalClient, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.CognitiveWorkflow)
	w.RegisterWorkflow(workflows.RouterWorkflow)
	w.RegisterActivity(acts)

	// Admin mux: health plus Prometheus metrics.
	adminMux := http.NewServeMux()
	health.NewHTTPHandler(hm, logger).RegisterRoutes(adminMux)
	if cfg.Observability.Metrics.Enabled {
		adminMux.Handle("/metrics", promhttp.Handler())
	}
	adminSrv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Observability.Metrics.Port),
		Handler:      adminMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("Admin HTTP server listening", zap.Int("port", cfg.Observability.Metrics.Port))
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Admin HTTP server failed", zap.Error(err))
		}
	}()

	apiHandler := httpapi.NewHandler(temporalClient, rt, gate, cfg, logger)
	apiSrv := httpapi.StartServer(apiHandler, cfg.Service.HTTPPort, logger)

	go func() {
		if err := w.Run(worker.InterruptCh()); err != nil {
			logger.Fatal("Worker stopped", zap.Error(err))
		}
	}()

	logger.Info("iudex orchestrator started",
		zap.String("task_queue", cfg.Temporal.TaskQueue),
		zap.Int("http_port", cfg.Service.HTTPPort),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("API server shutdown error", zap.Error(err))
	}
	if err := adminSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Admin server shutdown error", zap.Error(err))
	}
}

func buildLogger() (*zap.Logger, error) {
	if os.Getenv("IUDEX_DEV_LOGGING") == "1" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
