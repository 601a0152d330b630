package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName         = "github.com/uramazingdanc/flowboardeai/api"
	requestSpanName    = "http.request"
	requestEventName   = "flowboard.request"
	requestEventDomain = "http"
	observabilityEvent = "observability.event"
)

// Telemetry traces every request and logs one observability event with the
// route, status and duration once the response is written.
func Telemetry(logger *log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			ctx, span := otel.Tracer(tracerName).Start(req.Context(), requestSpanName, trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()
			c.SetRequest(req.WithContext(ctx))

			err := next(c)
			if err != nil {
				c.Error(err)
			}
			status := c.Response().Status
			attrs := map[string]any{
				"http.method":                c.Request().Method,
				"http.route":                 c.Path(),
				"http.status_code":           status,
				"flowboard.request.total_ms": durationToMillis(time.Since(start)),
			}
			if userID, uerr := userFrom(c); uerr == nil {
				attrs["flowboard.user"] = userID
			}
			if err != nil {
				attrs["error.message"] = err.Error()
			}
			record(span, logger, status, err, attrs)
			return nil
		}
	}
}

func record(span trace.Span, logger *log.Logger, status int, err error, attrs map[string]any) {
	severity, number := severityForStatus(status, err)

	spanAttrs := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		switch val := v.(type) {
		case string:
			spanAttrs = append(spanAttrs, attribute.String(k, val))
		case int:
			spanAttrs = append(spanAttrs, attribute.Int(k, val))
		case float64:
			spanAttrs = append(spanAttrs, attribute.Float64(k, val))
		}
	}
	span.SetAttributes(spanAttrs...)
	span.AddEvent(observabilityEvent, trace.WithAttributes(append(spanAttrs,
		attribute.String("event.name", requestEventName),
		attribute.String("event.domain", requestEventDomain),
		attribute.String("severity_text", severity),
	)...))
	if number >= 17 {
		desc := http.StatusText(status)
		if err != nil {
			desc = err.Error()
		}
		span.SetStatus(codes.Error, desc)
	} else {
		span.SetStatus(codes.Ok, "")
	}

	if logger == nil {
		return
	}
	level := log.InfoLevel
	switch number {
	case 13:
		level = log.WarnLevel
	case 17:
		level = log.ErrorLevel
	}
	logger.WithFields(log.Fields{
		"event.name":      requestEventName,
		"event.domain":    requestEventDomain,
		"attributes":      attrs,
		"severity_text":   severity,
		"severity_number": number,
		"trace_id":        span.SpanContext().TraceID().String(),
	}).Log(level, observabilityEvent)
}

// severityForStatus maps a response onto OpenTelemetry log severities.
func severityForStatus(status int, err error) (string, int) {
	switch {
	case status >= http.StatusInternalServerError, status == 0 && err != nil:
		return "ERROR", 17
	case status >= http.StatusBadRequest:
		return "WARN", 13
	default:
		return "INFO", 9
	}
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
