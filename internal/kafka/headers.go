package kafka

import (
	"context"

	segkafka "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

// headerCarrier adapts a Kafka message's headers to the OpenTelemetry
// propagation.TextMapCarrier interface.
type headerCarrier []segkafka.Header

func (c headerCarrier) Get(key string) string {
	for _, h := range c {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// Set writes key/value, replacing any existing header with the same key.
func (c *headerCarrier) Set(key, value string) {
	filtered := (*c)[:0]
	for _, h := range *c {
		if h.Key != key {
			filtered = append(filtered, h)
		}
	}
	*c = append(filtered, segkafka.Header{Key: key, Value: []byte(value)})
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, len(c))
	for i, h := range c {
		keys[i] = h.Key
	}
	return keys
}

// injectTrace returns headers carrying the trace context active in ctx.
func injectTrace(ctx context.Context) []segkafka.Header {
	carrier := make(headerCarrier, 0, 2)
	otel.GetTextMapPropagator().Inject(ctx, &carrier)
	return []segkafka.Header(carrier)
}

// extractTrace returns ctx enriched with the trace context found in headers.
func extractTrace(ctx context.Context, headers []segkafka.Header) context.Context {
	carrier := headerCarrier(headers)
	return otel.GetTextMapPropagator().Extract(ctx, &carrier)
}
