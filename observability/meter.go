package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/uniai/llm"
	"github.com/kbukum/uniai/logger"
)

// initMeter builds the OTLP metric exporter and installs the global meter
// provider.
func initMeter(ctx context.Context, cfg Config) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("observability: creating metric exporter: %w", err)
	}

	res, err := newResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("observability: creating resource: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.Interval))),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", cfg.ServiceName,
		"endpoint", cfg.Endpoint,
		"interval", cfg.Interval.String(),
	))
	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// ChatMetrics holds the instruments recorded around provider round trips.
type ChatMetrics struct {
	chatTotal     metric.Int64Counter
	chatDuration  metric.Float64Histogram
	tokensTotal   metric.Int64Counter
	streamsActive metric.Int64UpDownCounter
}

// NewChatMetrics creates the chat instruments on the given meter.
func NewChatMetrics(meter metric.Meter) (*ChatMetrics, error) {
	chatTotal, err := meter.Int64Counter("llm.chat.total",
		metric.WithDescription("Completed chat round trips by provider, model and status"),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: creating llm.chat.total: %w", err)
	}

	chatDuration, err := meter.Float64Histogram("llm.chat.duration",
		metric.WithDescription("Duration of chat round trips in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: creating llm.chat.duration: %w", err)
	}

	tokensTotal, err := meter.Int64Counter("llm.tokens.total",
		metric.WithDescription("Tokens consumed, split by kind"),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: creating llm.tokens.total: %w", err)
	}

	streamsActive, err := meter.Int64UpDownCounter("llm.streams.active",
		metric.WithDescription("Streaming responses currently open"),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: creating llm.streams.active: %w", err)
	}

	return &ChatMetrics{
		chatTotal:     chatTotal,
		chatDuration:  chatDuration,
		tokensTotal:   tokensTotal,
		streamsActive: streamsActive,
	}, nil
}

// RecordChat records one finished chat round trip and its token usage.
func (m *ChatMetrics) RecordChat(ctx context.Context, provider, model, status string, d time.Duration, usage llm.Usage) {
	dims := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("model", model),
	)
	m.chatTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("model", model),
		attribute.String("status", status),
	))
	m.chatDuration.Record(ctx, d.Seconds(), dims)

	if usage.PromptTokens > 0 {
		m.tokensTotal.Add(ctx, int64(usage.PromptTokens), metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", "prompt"),
		))
	}
	if usage.CompletionTokens > 0 {
		m.tokensTotal.Add(ctx, int64(usage.CompletionTokens), metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", "completion"),
		))
	}
}

// StreamStarted bumps the open-stream gauge.
func (m *ChatMetrics) StreamStarted(ctx context.Context) {
	m.streamsActive.Add(ctx, 1)
}

// StreamEnded decrements the open-stream gauge.
func (m *ChatMetrics) StreamEnded(ctx context.Context) {
	m.streamsActive.Add(ctx, -1)
}
