package middleware

import (
	"fmt"

	"postdesk/internal/observability"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// requestCarrier exposes the first value of each request header to the
// configured propagator.
func requestCarrier(c *fiber.Ctx) propagation.MapCarrier {
	carrier := propagation.MapCarrier{}
	for k, v := range c.GetReqHeaders() {
		if len(v) > 0 {
			carrier.Set(k, v[0])
		}
	}
	return carrier
}

// TracingMiddleware opens a server span per request, continuing any W3C trace
// context sent by the caller. The span is renamed to the matched route
// template once the handler has run, so /api/posts/7 and /api/posts/8 share
// one span name.
func TracingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := otel.GetTextMapPropagator().Extract(c.UserContext(), requestCarrier(c))

		ctx, span := observability.Tracer.Start(ctx, c.Method()+" "+c.Path(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Method()),
				attribute.String("http.target", c.OriginalURL()),
				attribute.String("http.client_ip", c.IP()),
				attribute.String("http.user_agent", c.Get(fiber.HeaderUserAgent)),
			),
		)
		defer span.End()

		sc := span.SpanContext()
		c.Locals("traceID", sc.TraceID().String())
		c.Locals("spanID", sc.SpanID().String())
		if sc.HasTraceID() {
			c.Set("X-Trace-ID", sc.TraceID().String())
		}
		if requestID := c.Locals("requestid"); requestID != nil {
			span.SetAttributes(attribute.String("request.id", fmt.Sprint(requestID)))
		}

		c.SetUserContext(ctx)
		err := c.Next()

		if route := c.Route(); route != nil && route.Path != "" {
			span.SetName(c.Method() + " " + route.Path)
			span.SetAttributes(attribute.String("http.route", route.Path))
		}

		status := c.Response().StatusCode()
		if err != nil {
			status = fiberStatus(err)
			span.RecordError(err)
		}
		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= fiber.StatusInternalServerError {
			span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", status))
		}

		return err
	}
}
