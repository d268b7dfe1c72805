package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mcncl/gotyper-live/internal/errors"
	"github.com/mcncl/gotyper-live/internal/metrics"
	"github.com/mcncl/gotyper-live/internal/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const generated = "type Generated struct {\n    A int `json:\"a\"`\n}"

// stubService mimics the conversion service: it echoes a canned struct for
// valid bodies and a plain-text error otherwise
type stubService struct {
	calls    atomic.Int32
	lastBody atomic.Value
	lastType atomic.Value
	status   int
	reply    string
	delay    time.Duration
}

func (s *stubService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.calls.Add(1)
	body, _ := io.ReadAll(r.Body)
	s.lastBody.Store(string(body))
	s.lastType.Store(r.Header.Get("Content-Type"))

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-r.Context().Done():
			return
		}
	}
	if s.status != 0 && s.status != http.StatusOK {
		http.Error(w, s.reply, s.status)
		return
	}
	_, _ = w.Write([]byte(s.reply))
}

func newStub(t *testing.T, svc *stubService) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(svc)
	t.Cleanup(srv.Close)
	return srv
}

func TestConvert_Success(t *testing.T) {
	svc := &stubService{reply: generated}
	srv := newStub(t, svc)

	g := New(srv.URL + "/convertJson")
	outcome := g.Convert(context.Background(), `{"a":1}`)

	require.True(t, outcome.OK())
	assert.Equal(t, generated, outcome.Payload)
	assert.Empty(t, outcome.Message)
	assert.Equal(t, int32(1), svc.calls.Load())
	assert.Equal(t, "application/json", svc.lastType.Load())

	var req ConvertRequest
	require.NoError(t, json.Unmarshal([]byte(svc.lastBody.Load().(string)), &req))
	assert.Equal(t, `{"a":1}`, req.JSON)
}

func TestConvert_SendsTextUnvalidated(t *testing.T) {
	svc := &stubService{status: http.StatusBadRequest, reply: "JSON is invalid: unexpected end of JSON input"}
	srv := newStub(t, svc)

	g := New(srv.URL)
	outcome := g.Convert(context.Background(), `{"a":1`)

	assert.Equal(t, int32(1), svc.calls.Load())
	assert.False(t, outcome.OK())
	assert.Equal(t, models.ServiceError, outcome.Kind)
}

func TestConvert_FailureClasses(t *testing.T) {
	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	tests := []struct {
		name        string
		service     *stubService
		endpoint    string
		timeout     time.Duration
		wantKind    models.FailureKind
		wantMessage string
		wantErr     error
	}{
		{
			name:        "service error uses response body",
			service:     &stubService{status: http.StatusBadRequest, reply: "bad type"},
			wantKind:    models.ServiceError,
			wantMessage: "bad type",
			wantErr:     errors.ErrServiceRejected,
		},
		{
			name:        "service error with empty body falls back to generic message",
			service:     &stubService{status: http.StatusInternalServerError, reply: ""},
			wantKind:    models.ServiceError,
			wantMessage: GenericFailureMessage,
			wantErr:     errors.ErrServiceRejected,
		},
		{
			name:        "timeout is a missing response",
			service:     &stubService{reply: generated, delay: time.Second},
			timeout:     50 * time.Millisecond,
			wantKind:    models.NoResponse,
			wantMessage: GenericFailureMessage,
			wantErr:     errors.ErrNoResponse,
		},
		{
			name:        "oversized body is not a complete response",
			service:     &stubService{reply: strings.Repeat("x", maxResponseBytes+100)},
			wantKind:    models.NoResponse,
			wantMessage: GenericFailureMessage,
			wantErr:     errors.ErrNoResponse,
		},
		{
			name:        "unreachable service is a missing response",
			endpoint:    closedURL,
			wantKind:    models.NoResponse,
			wantMessage: GenericFailureMessage,
			wantErr:     errors.ErrNoResponse,
		},
		{
			name:        "malformed endpoint cannot be built",
			endpoint:    "http://[::1",
			wantKind:    models.RequestBuild,
			wantMessage: GenericFailureMessage,
			wantErr:     errors.ErrRequestBuild,
		},
		{
			name:        "non-http endpoint cannot be sent",
			endpoint:    "ftp://example.com/convert",
			wantKind:    models.RequestBuild,
			wantMessage: GenericFailureMessage,
			wantErr:     errors.ErrRequestBuild,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			endpoint := tt.endpoint
			if tt.service != nil {
				endpoint = newStub(t, tt.service).URL
			}
			opts := []Option{}
			if tt.timeout > 0 {
				opts = append(opts, WithTimeout(tt.timeout))
			}

			outcome := New(endpoint, opts...).Convert(context.Background(), `{"a":1}`)

			assert.False(t, outcome.OK())
			assert.Equal(t, tt.wantKind, outcome.Kind)
			assert.Equal(t, tt.wantMessage, outcome.Message)
			assert.Empty(t, outcome.Payload)
			assert.True(t, errors.Is(outcome.Err, tt.wantErr), "err: %v", outcome.Err)
		})
	}
}

func TestConvert_BodyAtSizeLimit(t *testing.T) {
	body := strings.Repeat("x", maxResponseBytes)
	srv := newStub(t, &stubService{reply: body})

	outcome := New(srv.URL).Convert(context.Background(), `{"a":1}`)
	require.True(t, outcome.OK(), "err: %v", outcome.Err)
	assert.Len(t, outcome.Payload, maxResponseBytes)
}

func TestConvert_CancelledContext(t *testing.T) {
	svc := &stubService{reply: generated, delay: time.Second}
	srv := newStub(t, svc)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := New(srv.URL).Convert(ctx, `{"a":1}`)
	assert.Equal(t, models.NoResponse, outcome.Kind)
}

func TestConvert_MetricsAndLogs(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	m := metrics.New(nil)

	ok := newStub(t, &stubService{reply: generated})
	bad := newStub(t, &stubService{status: http.StatusBadRequest, reply: "bad type"})

	logger := zap.New(core).Sugar()
	New(ok.URL, WithMetrics(m), WithLogger(logger)).Convert(context.Background(), `{}`)
	New(bad.URL, WithMetrics(m), WithLogger(logger)).Convert(context.Background(), `{}`)
	New("http://[::1", WithMetrics(m), WithLogger(logger)).Convert(context.Background(), `{}`)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.GatewayRequests.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GatewayRequests.WithLabelValues("service_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GatewayRequests.WithLabelValues("request_build")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.GatewayRequests.WithLabelValues("no_response")))

	classes := []string{}
	for _, entry := range logs.All() {
		classes = append(classes, entry.ContextMap()["class"].(string))
	}
	assert.Equal(t, []string{"success", "service_error", "request_build"}, classes)
	assert.Equal(t, 1, logs.FilterMessage("Conversion request could not be built").Len())

	succeeded := logs.FilterMessage("Conversion succeeded").All()
	require.Len(t, succeeded, 1)
	assert.Equal(t, zapcore.DebugLevel, succeeded[0].Level)
}

func TestNew_Defaults(t *testing.T) {
	g := New("http://localhost:4000/convertJson")
	assert.Equal(t, "http://localhost:4000/convertJson", g.Endpoint())
	assert.Equal(t, DefaultTimeout, g.timeout)
	assert.Same(t, http.DefaultClient, g.client)

	client := &http.Client{}
	g = New("http://localhost", WithHTTPClient(client), WithTimeout(0))
	assert.Same(t, client, g.client)
	assert.Zero(t, g.timeout)
}
