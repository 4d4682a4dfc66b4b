package main

import (
	"context"
	"flag"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/pwaforge/manifestd/internal/config"
	"github.com/pwaforge/manifestd/internal/infra/database"
	"github.com/pwaforge/manifestd/internal/infra/gateway"
	"github.com/pwaforge/manifestd/internal/infra/repository"
	"github.com/pwaforge/manifestd/internal/present/rest"
	"github.com/pwaforge/manifestd/internal/service"
	"github.com/pwaforge/manifestd/internal/usecase"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	if cfg.Server.EnableTrace {
		shutdown, err := setupTracer(cfg.Server.TraceEndpoint)
		if err != nil {
			panic("failed to set up tracing: " + err.Error())
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := shutdown(ctx); err != nil {
				slog.Error("tracer shutdown failed", "error", err)
			}
		}()
	}

	var store usecase.CacheStore
	switch cfg.Server.CacheBackend {
	case "memcached":
		store = repository.NewMemcachedCache(database.NewMemcached(cfg.Server.MemcachedAddr))
	default:
		store = repository.NewRedisCache(database.NewRedis(cfg.Server.RedisAddr, cfg.Server.RedisPassword, cfg.Server.RedisDB))
	}

	engine := gateway.NewRuleEngineGateway(
		cfg.Server.RuleEngineURL,
		cfg.Images.GenerationSvcURL,
		time.Duration(cfg.Server.ValidationMemoMs)*time.Millisecond,
	)
	builder := gateway.NewProjectBuilderGateway(cfg.Server.ProjectBuilderURL)

	manifestUC := usecase.NewManifestUsecase(engine, store, builder, engine, cfg.Platforms)
	probe := service.NewServiceWorkerProbe(time.Duration(cfg.ServiceWorkerChecker.TimeoutMs) * time.Millisecond)

	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	if cfg.Server.EnableTrace {
		e.Use(otelecho.Middleware("manifestd"))
	}

	h := rest.NewHandler(manifestUC, probe, cfg.Server.OutputDir)
	h.RegisterRoutes(e)

	e.Logger.Fatal(e.Start(cfg.Server.Listen))
}

func setupTracer(endpoint string) (func(context.Context) error, error) {
	exporter, err := otlptracehttp.New(context.Background(),
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName("manifestd"),
		)),
	)
	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}
