package api

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName         = "github.com/Manideep9308/task-flow-sub000/api"
	requestSpanName    = "tasks.request"
	requestEventName   = "tasks.request.metrics"
	requestEventDomain = "task-flow.api"
	observabilityEvent = "observability.event"
)

type requestMetrics struct {
	logger         *log.Logger
	span           trace.Span
	start          time.Time
	route          string
	method         string
	userID         string
	taskID         string
	authDuration   time.Duration
	storeDuration  time.Duration
	encodeDuration time.Duration
	tasksReturned  int
	replayed       bool
	errorStage     string
	failure        string
}

// newRequestMetrics starts the request span. The returned context carries
// it and should replace the request context.
func newRequestMetrics(ctx context.Context, logger *log.Logger, route, method string) (*requestMetrics, context.Context) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, requestSpanName,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.route", route),
			attribute.String("http.method", method),
		),
	)
	return &requestMetrics{
		logger: logger,
		span:   span,
		start:  time.Now(),
		route:  route,
		method: method,
	}, ctx
}

func (m *requestMetrics) ObserveAuth(d time.Duration) {
	if d > 0 {
		m.authDuration = d
	}
}

func (m *requestMetrics) ObserveStore(d time.Duration) {
	if d > 0 {
		m.storeDuration = d
	}
}

func (m *requestMetrics) ObserveEncode(d time.Duration) {
	if d > 0 {
		m.encodeDuration = d
	}
}

func (m *requestMetrics) SetUser(id string)   { m.userID = id }
func (m *requestMetrics) SetTaskID(id string) { m.taskID = id }
func (m *requestMetrics) SetReplayed()        { m.replayed = true }

func (m *requestMetrics) SetTasksReturned(count int) {
	if count < 0 {
		count = 0
	}
	m.tasksReturned = count
}

func (m *requestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

// SetFailure records an error that was answered with an error response
// rather than returned from the handler.
func (m *requestMetrics) SetFailure(stage string, err error) {
	m.SetErrorStage(stage)
	if err != nil {
		m.failure = err.Error()
	}
}

// Log emits one structured log entry for the request and ends its span.
func (m *requestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}
	severity, number := severityForStatus(status, err)

	attrs := map[string]any{
		"http.route":             m.route,
		"http.method":            m.method,
		"http.status_code":       status,
		"tasks.total_ms":         durationToMillis(time.Since(m.start)),
		"tasks.tasks_returned":   m.tasksReturned,
		"tasks.idempotent_reply": m.replayed,
	}
	kvs := []attribute.KeyValue{
		attribute.Int("http.status_code", status),
		attribute.Float64("tasks.total_ms", attrs["tasks.total_ms"].(float64)),
		attribute.Int("tasks.tasks_returned", m.tasksReturned),
		attribute.Bool("tasks.idempotent_reply", m.replayed),
	}
	addDuration := func(key string, d time.Duration) {
		if d <= 0 {
			return
		}
		ms := durationToMillis(d)
		attrs[key] = ms
		kvs = append(kvs, attribute.Float64(key, ms))
	}
	addDuration("tasks.auth_ms", m.authDuration)
	addDuration("tasks.store_ms", m.storeDuration)
	addDuration("tasks.encode_ms", m.encodeDuration)
	addString := func(key, v string) {
		if v == "" {
			return
		}
		attrs[key] = v
		kvs = append(kvs, attribute.String(key, v))
	}
	addString("enduser.id", m.userID)
	addString("tasks.task_id", m.taskID)
	addString("tasks.error_stage", m.errorStage)
	if err != nil {
		addString("error.message", err.Error())
	} else {
		addString("error.message", m.failure)
	}

	if m.span != nil {
		m.span.SetAttributes(kvs...)
		eventAttrs := append([]attribute.KeyValue{
			attribute.String("event.name", requestEventName),
			attribute.String("event.domain", requestEventDomain),
			attribute.String("severity_text", severity),
			attribute.Int("severity_number", number),
		}, kvs...)
		m.span.AddEvent(observabilityEvent, trace.WithAttributes(eventAttrs...))
		switch {
		case err != nil:
			m.span.RecordError(err)
			m.span.SetStatus(codes.Error, err.Error())
		case status >= http.StatusInternalServerError:
			m.span.SetStatus(codes.Error, http.StatusText(status))
		default:
			m.span.SetStatus(codes.Ok, "")
		}
		m.span.End()
	}

	if m.logger == nil {
		return
	}
	fields := log.Fields{
		"event.name":      requestEventName,
		"event.domain":    requestEventDomain,
		"attributes":      attrs,
		"severity_text":   severity,
		"severity_number": number,
	}
	if m.span != nil {
		if sc := m.span.SpanContext(); sc.IsValid() {
			fields["trace_id"] = sc.TraceID().String()
			fields["span_id"] = sc.SpanID().String()
		}
	}
	entry := m.logger.WithFields(fields)
	switch severity {
	case "ERROR":
		entry.Error(observabilityEvent)
	case "WARN":
		entry.Warn(observabilityEvent)
	default:
		entry.Info(observabilityEvent)
	}
}

// severityForStatus maps a response to OpenTelemetry log severity text and
// number.
func severityForStatus(status int, err error) (string, int) {
	switch {
	case err != nil || status >= http.StatusInternalServerError:
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
