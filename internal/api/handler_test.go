package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/oriys/logdemo/internal/domain"
	"github.com/oriys/logdemo/internal/logsink"
	"github.com/oriys/logdemo/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

var fixedNow = time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

func newTestRouter(t *testing.T) (http.Handler, *logsink.Recorder) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	rec := logsink.NewRecorder()
	h := NewHandler(rec, logger)
	h.now = func() time.Time { return fixedNow }
	return NewRouter(&RouterConfig{Handler: h}), rec
}

func doGet(router http.Handler, path string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, m := range mutate {
		m(req)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func assertRequestRecord(t *testing.T, rec *domain.Record, path string) {
	t.Helper()
	assert.Equal(t, domain.KindRequest, rec.Kind)
	assert.Equal(t, domain.LevelInfo, rec.Level)
	assert.Empty(t, rec.Message)
	method, _ := rec.Field("method")
	assert.Equal(t, http.MethodGet, method)
	p, _ := rec.Field("path")
	assert.Equal(t, path, p)
}

func TestRoot(t *testing.T) {
	router, rec := newTestRouter(t)

	rr := doGet(router, "/")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"message":"Hello World!"}`, rr.Body.String())

	records := rec.Records()
	require.Len(t, records, 1)
	assertRequestRecord(t, records[0], "/")
}

func TestSimulatedError(t *testing.T) {
	router, rec := newTestRouter(t)

	rr := doGet(router, "/error")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"Simulated error"}`, rr.Body.String())

	records := rec.Records()
	require.Len(t, records, 2)
	assertRequestRecord(t, records[0], "/error")

	errRec := records[1]
	assert.Equal(t, domain.LevelError, errRec.Level)
	assert.Equal(t, "This is a simulated error", errRec.Message)
	code, _ := errRec.Field("errorCode")
	assert.Equal(t, "ERR_SIMULATED", code)
	assert.True(t, fixedNow.Equal(errRec.Timestamp))
}

func TestWarn(t *testing.T) {
	router, rec := newTestRouter(t)

	rr := doGet(router, "/warn")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"warning":"Check logs"}`, rr.Body.String())

	records := rec.Records()
	require.Len(t, records, 2)
	assertRequestRecord(t, records[0], "/warn")

	warnRec := records[1]
	assert.Equal(t, domain.LevelWarn, warnRec.Level)
	assert.Equal(t, "This is a warning message", warnRec.Message)
	ctx, _ := warnRec.Field("context")
	assert.Equal(t, "performance degradation detected", ctx)
}

func TestRepeatedCallsAreIndependent(t *testing.T) {
	router, rec := newTestRouter(t)

	for i := 0; i < 3; i++ {
		rr := doGet(router, "/")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"message":"Hello World!"}`, rr.Body.String())
	}
	assert.Equal(t, 3, rec.Len())
}

func TestRequestRecordFields(t *testing.T) {
	router, rec := newTestRouter(t)

	doGet(router, "/warn?verbose=1", func(r *http.Request) {
		r.RemoteAddr = "203.0.113.9:51234"
		r.Header.Set("User-Agent", "pipeline-probe/1.0")
	})

	records := rec.Records()
	require.NotEmpty(t, records)
	req := records[0]

	path, _ := req.Field("path")
	assert.Equal(t, "/warn", path)
	ip, _ := req.Field("ip")
	assert.Equal(t, "203.0.113.9", ip)
	ua, _ := req.Field("userAgent")
	assert.Equal(t, "pipeline-probe/1.0", ua)
}

func TestRequestRecord_MissingUserAgentAndAddress(t *testing.T) {
	router, rec := newTestRouter(t)

	doGet(router, "/", func(r *http.Request) {
		r.RemoteAddr = ""
		r.Header.Del("User-Agent")
	})

	req := rec.Records()[0]
	ua, ok := req.Field("userAgent")
	require.True(t, ok)
	assert.Equal(t, "", ua)
	ip, _ := req.Field("ip")
	assert.Equal(t, "unknown", ip)
}

func TestRequestRecord_IgnoresForwardingHeaders(t *testing.T) {
	router, rec := newTestRouter(t)

	doGet(router, "/", func(r *http.Request) {
		r.RemoteAddr = "203.0.113.9:51234"
		r.Header.Set("X-Forwarded-For", "198.51.100.7")
		r.Header.Set("X-Real-IP", "198.51.100.8")
	})

	ip, _ := rec.Records()[0].Field("ip")
	assert.Equal(t, "203.0.113.9", ip)
}

func TestUnknownPathStillLogged(t *testing.T) {
	router, rec := newTestRouter(t)

	rr := doGet(router, "/nope")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	records := rec.Records()
	require.Len(t, records, 1)
	assertRequestRecord(t, records[0], "/nope")
}

func TestSinkFailureDoesNotBreakRequests(t *testing.T) {
	router, rec := newTestRouter(t)
	rec.FailWith(errors.New("sink unavailable"))

	rr := doGet(router, "/error")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"Simulated error"}`, rr.Body.String())

	rr = doGet(router, "/warn")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Zero(t, rec.Len())
}

func TestEmitFailure_DiagnosticCarriesTraceID(t *testing.T) {
	logger, hook := test.NewNullLogger()
	rec := logsink.NewRecorder()
	rec.FailWith(errors.New("sink unavailable"))
	h := NewHandler(rec, logger)

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	req := httptest.NewRequest(http.MethodGet, "/warn", nil).WithContext(ctx)
	h.Warn(httptest.NewRecorder(), req)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry.Data["trace_id"])
	assert.Equal(t, domain.KindWarning, entry.Data["kind"])

	// 没有追踪上下文时不输出 trace_id
	hook.Reset()
	h.Warn(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/warn", nil))
	require.NotNil(t, hook.LastEntry())
	assert.NotContains(t, hook.LastEntry().Data, "trace_id")
}

func TestHealth(t *testing.T) {
	router, rec := newTestRouter(t)

	rr := doGet(router, "/health")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rr.Body.String())
	assert.Equal(t, 1, rec.Len())
}

func TestConcurrentRequests(t *testing.T) {
	router, rec := newTestRouter(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			doGet(router, "/warn")
		}()
	}
	wg.Wait()

	counts := map[domain.Kind]int{}
	for _, r := range rec.Records() {
		counts[r.Kind]++
	}
	assert.Equal(t, 20, counts[domain.KindRequest])
	assert.Equal(t, 20, counts[domain.KindWarning])
}

func TestRouterWithMetrics(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	rec := logsink.NewRecorder()

	router := NewRouter(&RouterConfig{
		Handler: NewHandler(m.WrapSink(rec), logger),
		Metrics: m,
	})

	doGet(router, "/error")
	doGet(router, "/warn")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/error", "500")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RecordsEmitted.WithLabelValues("info", "request")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecordsEmitted.WithLabelValues("error", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecordsEmitted.WithLabelValues("warn", "warn")))
}
