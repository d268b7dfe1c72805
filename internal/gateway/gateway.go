package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mcncl/gotyper-live/internal/errors"
	"github.com/mcncl/gotyper-live/internal/logging"
	"github.com/mcncl/gotyper-live/internal/metrics"
	"github.com/mcncl/gotyper-live/internal/models"
	"go.uber.org/zap"
)

// GenericFailureMessage is shown for every failure that did not come with a
// message from the conversion service
const GenericFailureMessage = "Error converting JSON"

const (
	// DefaultTimeout bounds a single conversion request
	DefaultTimeout = 10 * time.Second

	maxResponseBytes = 1 << 20
)

// Converter turns JSON text into a generated type definition. Convert blocks
// until the outcome is known; callers that need asynchrony run it on their
// own goroutine.
type Converter interface {
	Convert(ctx context.Context, text string) models.Outcome
}

// ConvertRequest is the body posted to the conversion service
type ConvertRequest struct {
	JSON string `json:"json"`
}

// HTTPGateway calls the conversion service over HTTP. It performs exactly one
// request per Convert call and never retries.
type HTTPGateway struct {
	endpoint string
	client   *http.Client
	timeout  time.Duration
	logger   *zap.SugaredLogger
	metrics  *metrics.Metrics
}

// Option configures an HTTPGateway
type Option func(*HTTPGateway)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(client *http.Client) Option {
	return func(g *HTTPGateway) {
		g.client = client
	}
}

// WithTimeout sets the per-request timeout. Zero disables it.
func WithTimeout(timeout time.Duration) Option {
	return func(g *HTTPGateway) {
		g.timeout = timeout
	}
}

// WithLogger sets the logger used to record failures
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(g *HTTPGateway) {
		g.logger = logger
	}
}

// WithMetrics records request outcomes in m
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *HTTPGateway) {
		g.metrics = m
	}
}

// New creates a gateway posting to endpoint. The endpoint is not checked
// here; a malformed one surfaces as a RequestBuild failure.
func New(endpoint string, opts ...Option) *HTTPGateway {
	g := &HTTPGateway{
		endpoint: endpoint,
		client:   http.DefaultClient,
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = logging.OrNop(g.logger)
	return g
}

// Endpoint returns the URL requests are posted to
func (g *HTTPGateway) Endpoint() string {
	return g.endpoint
}

// Convert posts text to the conversion service
func (g *HTTPGateway) Convert(ctx context.Context, text string) models.Outcome {
	start := time.Now()
	outcome := g.convert(ctx, text)
	elapsed := time.Since(start)

	g.metrics.ObserveGateway(outcome.Label(), elapsed)
	g.log(outcome, elapsed, len(text))
	return outcome
}

func (g *HTTPGateway) convert(ctx context.Context, text string) models.Outcome {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	body, err := json.Marshal(ConvertRequest{JSON: text})
	if err != nil {
		return buildFailure(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return buildFailure(err)
	}
	if (req.URL.Scheme != "http" && req.URL.Scheme != "https") || req.URL.Host == "" {
		return buildFailure(errors.Newf("endpoint %q is not an http(s) URL", g.endpoint))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return noResponseFailure(err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return noResponseFailure(err)
	}
	if len(data) > maxResponseBytes {
		return noResponseFailure(errors.Newf("response body exceeds %d bytes", maxResponseBytes))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := strings.TrimSpace(string(data))
		if message == "" {
			message = GenericFailureMessage
		}
		return models.Failure(
			models.ServiceError,
			message,
			errors.NewServiceError(fmt.Sprintf("service responded %d", resp.StatusCode), errors.ErrServiceRejected),
		)
	}

	return models.Success(string(data))
}

func buildFailure(err error) models.Outcome {
	return models.Failure(
		models.RequestBuild,
		GenericFailureMessage,
		errors.NewTransportError("request could not be built", errors.Wrap(errors.ErrRequestBuild, err.Error())),
	)
}

func noResponseFailure(err error) models.Outcome {
	return models.Failure(
		models.NoResponse,
		GenericFailureMessage,
		errors.NewTransportError("request was sent but no response arrived", errors.Wrap(errors.ErrNoResponse, err.Error())),
	)
}

func (g *HTTPGateway) log(outcome models.Outcome, elapsed time.Duration, size int) {
	fields := []interface{}{
		"endpoint", g.endpoint,
		"class", metrics.OutcomeLabel(outcome.Label()),
		"bytes", size,
		"elapsed", elapsed,
	}

	if outcome.OK() {
		g.logger.Debugw("Conversion succeeded", fields...)
		return
	}

	switch outcome.Kind {
	case models.ServiceError:
		g.logger.Infow("Conversion service reported an error",
			append(fields, "message", outcome.Message, "error", outcome.Err)...)
	case models.NoResponse:
		g.logger.Warnw("Conversion request got no response",
			append(fields, "error", outcome.Err)...)
	case models.RequestBuild:
		g.logger.Errorw("Conversion request could not be built",
			append(fields, "error", outcome.Err)...)
	}
}
