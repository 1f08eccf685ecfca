package llm

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/Rrens/filechat/internal/llm"

// instrumented records a span, a latency histogram and token counters
// around every Chat call of the wrapped provider
type instrumented struct {
	Provider
	tracer       trace.Tracer
	latency      metric.Float64Histogram
	inputTokens  metric.Int64Counter
	outputTokens metric.Int64Counter
	failures     metric.Int64Counter
}

// Instrument wraps p with OpenTelemetry tracing and metrics. Instruments
// come from the global providers, so this is a no-op until telemetry is set up.
func Instrument(p Provider) Provider {
	meter := otel.Meter(instrumentationName)
	ip := &instrumented{
		Provider: p,
		tracer:   otel.Tracer(instrumentationName),
	}

	var err error
	if ip.latency, err = meter.Float64Histogram(
		"llm.chat.duration",
		metric.WithDescription("Duration of chat completion calls"),
		metric.WithUnit("ms"),
	); err != nil {
		log.Warn().Err(err).Msg("Failed to create latency histogram")
	}
	if ip.inputTokens, err = meter.Int64Counter(
		"llm.tokens.input",
		metric.WithDescription("Prompt tokens sent to the model"),
	); err != nil {
		log.Warn().Err(err).Msg("Failed to create input token counter")
	}
	if ip.outputTokens, err = meter.Int64Counter(
		"llm.tokens.output",
		metric.WithDescription("Completion tokens returned by the model"),
	); err != nil {
		log.Warn().Err(err).Msg("Failed to create output token counter")
	}
	if ip.failures, err = meter.Int64Counter(
		"llm.chat.failures",
		metric.WithDescription("Chat completion calls that returned an error"),
	); err != nil {
		log.Warn().Err(err).Msg("Failed to create failure counter")
	}

	return ip
}

func (p *instrumented) Chat(ctx context.Context, req ChatRequest, model string) (*ChatResponse, error) {
	if model == "" {
		model = p.DefaultModel()
	}
	attrs := metric.WithAttributes(
		attribute.String("llm.provider", p.Name()),
		attribute.String("llm.model", model),
	)

	ctx, span := p.tracer.Start(ctx, p.Name()+"_api_call", trace.WithAttributes(
		attribute.String("llm.provider", p.Name()),
		attribute.String("llm.model", model),
		attribute.Int("llm.messages", len(req.Messages)),
		attribute.Int("llm.max_tokens", req.MaxTokens),
	))
	defer span.End()

	start := time.Now()
	resp, err := p.Provider.Chat(ctx, req, model)
	duration := time.Since(start)

	if p.latency != nil {
		p.latency.Record(ctx, float64(duration.Milliseconds()), attrs)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if p.failures != nil {
			p.failures.Add(ctx, 1, attrs)
		}
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("llm.tokens.input", resp.InputTokens),
		attribute.Int("llm.tokens.output", resp.OutputTokens),
	)
	if p.inputTokens != nil {
		p.inputTokens.Add(ctx, int64(resp.InputTokens), attrs)
	}
	if p.outputTokens != nil {
		p.outputTokens.Add(ctx, int64(resp.OutputTokens), attrs)
	}

	return resp, nil
}
