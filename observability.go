package main

import (
	"context"
	"fmt"
	"time"

	"github.com/TheZeroSlave/zapsentry"
	"github.com/getsentry/sentry-go"
	"github.com/hivemindd/admin-auth/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLogger builds the service logger. Errors are forwarded to Sentry when a
// DSN is configured.
func newLogger(conf *config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if conf.Env.IsProd() {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	logger = logger.With(zap.String("service", serviceName))

	if conf.SentryDSN == "" {
		return logger, nil
	}
	err = sentry.Init(sentry.ClientOptions{
		Dsn:         conf.SentryDSN,
		Environment: string(conf.Env),
		ServerName:  serviceName,
	})
	if err != nil {
		logger.Warn("failed to init sentry", zap.Error(err))
		return logger, nil
	}

	core, err := zapsentry.NewCore(zapsentry.Configuration{
		Level:             zapcore.ErrorLevel,
		EnableBreadcrumbs: true,
		BreadcrumbLevel:   zapcore.InfoLevel,
		Tags:              map[string]string{"service": serviceName},
	}, zapsentry.NewSentryClientFromClient(sentry.CurrentHub().Client()))
	if err != nil {
		logger.Warn("failed to attach sentry core", zap.Error(err))
		return logger, nil
	}
	return zapsentry.AttachCoreToLogger(core, logger), nil
}

// newTracerProvider exports spans over OTLP/HTTP when an endpoint is set and
// keeps them in process otherwise.
func newTracerProvider(ctx context.Context, conf *config.Config, logger *zap.Logger) (*sdktrace.TracerProvider, func()) {
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(serviceName),
		semconv.DeploymentEnvironmentName(string(conf.Env)),
	))
	if err != nil {
		logger.Warn("failed to build trace resource", zap.Error(err))
		res = resource.Default()
	}

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if conf.OTLPEndpoint != "" {
		exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(conf.OTLPEndpoint))
		if err != nil {
			logger.Warn("failed to create otlp exporter, spans will not be exported", zap.Error(err))
		} else {
			opts = append(opts, sdktrace.WithBatcher(exporter))
		}
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("failed to shut down tracer provider", zap.Error(err))
		}
		sentry.Flush(2 * time.Second)
	}
}
