// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package gateway assembles and runs the engineering support gateway:
// the HTTP edge, query orchestrator, conversation controller, provider
// fallback chains, persistent store, health monitor, and confidence
// scorer, wired together from environment configuration.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/AleutianInsight/services/gateway/confidence"
	"github.com/AleutianAI/AleutianInsight/services/gateway/conversation"
	"github.com/AleutianAI/AleutianInsight/services/gateway/graph"
	"github.com/AleutianAI/AleutianInsight/services/gateway/health"
	"github.com/AleutianAI/AleutianInsight/services/gateway/middleware"
	"github.com/AleutianAI/AleutianInsight/services/gateway/observability"
	"github.com/AleutianAI/AleutianInsight/services/gateway/orchestrator"
	"github.com/AleutianAI/AleutianInsight/services/gateway/routes"
	"github.com/AleutianAI/AleutianInsight/services/gateway/search"
	"github.com/AleutianAI/AleutianInsight/services/gateway/store"
	"github.com/AleutianAI/AleutianInsight/services/llm/fallback"
)

// Service is the gateway lifecycle contract.
type Service interface {
	// Run starts the HTTP server and blocks until a shutdown signal or
	// fatal server error. Cleanup is automatic on return.
	Run() error

	// Router exposes the configured gin engine for integration tests.
	Router() *gin.Engine
}

type service struct {
	config Config
	logger *slog.Logger
	router *gin.Engine

	store      *store.FailoverStore
	index      *search.QdrantIndex
	graph      *graph.Neo4jGraph
	embedding  *fallback.EmbeddingChain
	synthesis  *fallback.SynthesisChain
	scorer     *confidence.Scorer
	controller *conversation.Controller
	monitor    *health.Monitor
	metrics    *observability.Metrics

	tracerCleanup func(context.Context)
}

// New builds a ready-to-run gateway.
//
// # Description
//
// Initialization order: logging, tracing (optional), metrics, persistent
// store (with Redis failover probe), vector and graph adapters, provider
// chains, confidence scorer, conversation controller, health monitor,
// orchestrator, and finally the route table. The embedding chain's
// target dimension is taken from EMBEDDING_DIMENSIONS and must match the
// vector collection; a mismatch with any provider's advertised width is
// a fatal configuration error.
//
// # Inputs
//
//   - cfg: configuration, normally from ConfigFromEnv().
//
// # Outputs
//
//   - Service: ready to Run()
//   - error: non-nil if any required component fails to initialize
func New(cfg Config) (Service, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	s := &service{
		config: cfg,
		logger: logger,
	}

	if cfg.OTLPEndpoint != "" {
		cleanup, err := s.initTracer()
		if err != nil {
			return nil, fmt.Errorf("gateway: initialize tracer: %w", err)
		}
		s.tracerCleanup = cleanup
	}

	s.metrics = observability.NewMetrics(prometheus.DefaultRegisterer)

	s.store = store.NewFailoverStore(
		fmt.Sprintf("%s:%d", cfg.KVHost, cfg.KVPort), cfg.KVPassword, logger)

	var err error
	s.index, err = search.NewQdrantIndex(search.Config{
		URL:        cfg.VectorURL,
		APIKey:     cfg.VectorAPIKey,
		Collection: cfg.VectorCollection,
		Dims:       uint64(cfg.EmbeddingDimensions),
	}, logger)
	if err != nil {
		s.teardown()
		return nil, fmt.Errorf("gateway: initialize vector backend: %w", err)
	}

	s.graph, err = graph.NewNeo4jGraph(graph.Config{
		URI:      cfg.GraphURI,
		User:     cfg.GraphUser,
		Password: cfg.GraphPassword,
		Database: cfg.GraphDatabase,
	}, logger)
	if err != nil {
		s.teardown()
		return nil, fmt.Errorf("gateway: initialize graph backend: %w", err)
	}

	if len(cfg.EmbeddingProviders) == 0 {
		s.teardown()
		return nil, fmt.Errorf("gateway: no embedding providers configured")
	}
	s.embedding, err = fallback.NewEmbeddingChain(cfg.EmbeddingProviders, cfg.EmbeddingDimensions)
	if err != nil {
		s.teardown()
		return nil, fmt.Errorf("gateway: build embedding chain: %w", err)
	}

	if len(cfg.SynthesisProviders) > 0 {
		s.synthesis, err = fallback.NewSynthesisChain(cfg.SynthesisProviders)
		if err != nil {
			s.teardown()
			return nil, fmt.Errorf("gateway: build synthesis chain: %w", err)
		}
	} else {
		logger.Warn("No synthesis providers configured, synthesized mode will degrade to raw evidence")
	}

	confCfg, err := confidence.LoadConfig(cfg.ConfidenceConfigPath)
	if err != nil {
		s.teardown()
		return nil, err
	}
	s.scorer = confidence.NewScorer(confCfg)

	s.controller = conversation.NewController(s.store, logger)

	s.monitor = health.NewMonitor([]health.ServiceConfig{
		{Name: "qdrant", Probe: func(ctx context.Context) (bool, error) {
			return false, s.index.Ping(ctx)
		}},
		{Name: "neo4j", Probe: func(ctx context.Context) (bool, error) {
			return false, s.graph.Ping(ctx)
		}},
		{Name: "redis", Probe: func(ctx context.Context) (bool, error) {
			// A degraded store still serves traffic from memory.
			return s.store.Degraded(), nil
		}},
	}, s.store, logger)

	var synth orchestrator.Synthesizer
	if s.synthesis != nil {
		synth = s.synthesis
	}
	orch := orchestrator.New(s.embedding, s.index, s.graph, synth,
		s.scorer, s.store, s.metrics, logger)

	s.initRouter(orch)
	return s, nil
}

// Run starts the HTTP server and blocks until SIGINT/SIGTERM or a fatal
// server error. Shutdown drains in-flight requests for up to 10 seconds.
func (s *service) Run() error {
	defer s.teardown()

	s.monitor.Start()
	defer s.monitor.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting gateway server", "port", s.config.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("gateway: server error: %w", err)
	case sig := <-quit:
		s.logger.Info("Shutdown signal received", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("gateway: shutdown: %w", err)
	}
	s.logger.Info("Gateway stopped cleanly")
	return nil
}

func (s *service) Router() *gin.Engine {
	return s.router
}

func (s *service) initRouter(orch *orchestrator.Orchestrator) {
	if s.config.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("insight-gateway"))
	router.Use(middleware.RequestID())
	router.Use(middleware.APIKeyAuth(s.config.APIKey, s.metrics))

	routes.SetupRoutes(router, routes.Deps{
		Orchestrator:     orch,
		Controller:       s.controller,
		Monitor:          s.monitor,
		Store:            s.store,
		Embedding:        s.embedding,
		Synthesis:        s.synthesis,
		Projects:         s.index,
		ProjectOverrides: s.config.ProjectOverrides,
		Metrics:          s.metrics,
		QueryLimiter: middleware.NewRateLimiter(
			s.config.QueryRateLimit, s.config.RateLimitWindow, "query", s.metrics),
		ConvLimiter: middleware.NewRateLimiter(
			s.config.ConversationRateLimit, s.config.RateLimitWindow, "conversation", s.metrics),
		Version: s.config.Version,
	})
	s.router = router
}

func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTLPEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("insight-gateway")))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}
	return cleanup, nil
}

// teardown releases every component that was initialized. Safe to call
// with a partially constructed service.
func (s *service) teardown() {
	if s.graph != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := s.graph.Close(ctx); err != nil {
			s.logger.Warn("Failed to close graph driver", "error", err)
		}
		cancel()
		s.graph = nil
	}
	if s.index != nil {
		if err := s.index.Close(); err != nil {
			s.logger.Warn("Failed to close vector client", "error", err)
		}
		s.index = nil
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn("Failed to close store", "error", err)
		}
		s.store = nil
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
		s.tracerCleanup = nil
	}
}
