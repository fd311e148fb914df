// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/AleutianAI/AleutianGauntlet/services/gauntlet/handlers"
	"github.com/AleutianAI/AleutianGauntlet/services/gauntlet/notify"
	"github.com/AleutianAI/AleutianGauntlet/services/gauntlet/observability"
	"github.com/AleutianAI/AleutianGauntlet/services/gauntlet/probes"
	"github.com/AleutianAI/AleutianGauntlet/services/gauntlet/registry"
	"github.com/AleutianAI/AleutianGauntlet/services/gauntlet/routes"
	"github.com/AleutianAI/AleutianGauntlet/services/gauntlet/runner"
	"github.com/AleutianAI/AleutianGauntlet/services/gauntlet/store"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "aleutian-otel-collector:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("gauntlet-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// buildStore selects the run store backend from the environment.
// GAUNTLET_STORE=badger enables the durable store; anything else keeps runs
// in memory.
func buildStore() (store.RunStore, error) {
	if os.Getenv("GAUNTLET_STORE") != "badger" {
		slog.Info("Using in-memory run store (set GAUNTLET_STORE=badger for durability)")
		return store.NewMemoryStore(), nil
	}
	path := os.Getenv("GAUNTLET_BADGER_PATH")
	if path == "" {
		path = "/var/lib/aleutian/gauntlet"
		slog.Warn("GAUNTLET_BADGER_PATH not set, defaulting", "path", path)
	}
	return store.NewBadgerStore(store.BadgerConfig{
		Path:       path,
		SyncWrites: true,
	})
}

func testTimeout() time.Duration {
	raw := os.Getenv("GAUNTLET_TEST_TIMEOUT")
	if raw == "" {
		return runner.DefaultTestTimeout
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		slog.Warn("GAUNTLET_TEST_TIMEOUT is invalid, using default",
			"value", raw, "default", runner.DefaultTestTimeout.String())
		return runner.DefaultTestTimeout
	}
	return d
}

func main() {
	port := os.Getenv("GAUNTLET_PORT")
	if port == "" {
		port = "12260"
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	catalog, err := registry.New()
	if err != nil {
		log.Fatalf("FATAL: Could not load the test catalog: %v", err)
	}
	slog.Info("Test catalog loaded", "tests", len(catalog.AllTests()))

	runStore, err := buildStore()
	if err != nil {
		log.Fatalf("FATAL: Could not open the run store: %v", err)
	}
	defer runStore.Close()

	hub := notify.NewHub()
	metrics := observability.NewRunMetrics(prometheus.DefaultRegisterer)
	engine := runner.New(runStore, catalog, probes.DefaultUnits(), hub, metrics,
		runner.Config{TestTimeout: testTimeout()})

	router := gin.Default()
	router.Use(otelgin.Middleware("gauntlet-service"))

	routes.SetupRoutes(router,
		handlers.NewRunHandler(engine, runStore),
		handlers.NewRegistryHandler(catalog),
		handlers.NewWebSocketHandler(hub),
		handlers.NewHealthHandler(engine.Tasks()),
	)

	log.Println("Starting the gauntlet server on port ", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
