package llm

import (
	"context"
	"encoding/json"

	"github.com/timvw/reel-judge/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var chatTracer = otel.Tracer("reel-judge/llm")

// startChatSpan starts a GenAI generation span following the OTel GenAI
// semantic conventions. Span name is "{operation} {model}".
func startChatSpan(ctx context.Context, provider, modelName string, maxTokens int64, system string, turns []model.Turn) (context.Context, trace.Span) {
	ctx, span := chatTracer.Start(ctx, "chat "+modelName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("gen_ai.operation.name", "chat"),
			attribute.String("gen_ai.provider.name", provider),
			attribute.String("gen_ai.request.model", modelName),
			attribute.Int64("gen_ai.request.max_tokens", maxTokens),

			// Langfuse-specific: ensure this shows as a "generation"
			attribute.String("langfuse.observation.type", "generation"),
		),
	)

	messages := make([]model.Turn, 0, len(turns)+1)
	if system != "" {
		messages = append(messages, model.Turn{Role: model.RoleSystem, Content: system})
	}
	messages = append(messages, turns...)
	if inputJSON, err := json.Marshal(messages); err == nil {
		span.SetAttributes(attribute.String("gen_ai.input.messages", string(inputJSON)))
	}
	return ctx, span
}

func finishChatSpan(span trace.Span, responseModel, finishReason string, reply *Reply) {
	span.SetAttributes(
		attribute.String("gen_ai.response.model", responseModel),
		attribute.Int64("gen_ai.usage.input_tokens", reply.Usage.InputTokens),
		attribute.Int64("gen_ai.usage.output_tokens", reply.Usage.OutputTokens),
	)
	if reply.Usage.CacheReadInputTokens > 0 {
		span.SetAttributes(attribute.Int64("gen_ai.usage.cache_read_input_tokens", reply.Usage.CacheReadInputTokens))
	}
	if finishReason != "" {
		span.SetAttributes(attribute.StringSlice("gen_ai.response.finish_reasons", []string{finishReason}))
	}

	output := []model.Turn{{Role: model.RoleAssistant, Content: reply.Text}}
	if outputJSON, err := json.Marshal(output); err == nil {
		span.SetAttributes(attribute.String("gen_ai.output.messages", string(outputJSON)))
	}
}

func errorType(kind string) attribute.KeyValue {
	return attribute.String("error.type", kind)
}
