package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/teamcoffee/storefront/pkg/errors"
	"github.com/teamcoffee/storefront/pkg/httpclient"
	"github.com/teamcoffee/storefront/pkg/logger"
)

// HeaderCorrelationID carries the request correlation id to the backend.
const HeaderCorrelationID = "X-Correlation-ID"

// Navigator is the presentation layer's hook for sending the user to the
// login entry point.
type Navigator interface {
	RedirectToLogin(ctx context.Context)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context)

// RedirectToLogin calls f.
func (f NavigatorFunc) RedirectToLogin(ctx context.Context) { f(ctx) }

// TokenSource supplies the current bearer token, or "" when anonymous.
type TokenSource interface {
	AccessToken() string
}

// Refresher exchanges the refresh token for a new access token. On failure
// it must leave the client anonymous.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Authenticator is what the session store offers the dispatcher.
type Authenticator interface {
	TokenSource
	Refresher
}

// Request describes one backend call.
type Request struct {
	Method string
	Path   string
	Body   any
	Header http.Header
	// NoRefresh marks authentication calls (login, refresh). A 401 is
	// returned as is, without a refresh attempt or a login redirect.
	NoRefresh bool
}

// Client is the request dispatcher.
type Client struct {
	baseURL string
	http    httpclient.Doer
	auth    Authenticator
	nav     Navigator
	headers http.Header
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithNavigator sets the login redirect hook.
func WithNavigator(n Navigator) Option {
	return func(c *Client) { c.nav = n }
}

// WithHeaders adds default headers sent on every request.
func WithHeaders(h http.Header) Option {
	return func(c *Client) {
		for k, vs := range h {
			for _, v := range vs {
				c.headers.Add(k, v)
			}
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New creates a dispatcher for the backend at baseURL.
func New(baseURL string, doer httpclient.Doer, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    doer,
		headers: make(http.Header),
		logger:  slog.Default(),
		tracer:  otel.Tracer("github.com/teamcoffee/storefront/internal/api"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = NewMetrics(nil)
	}
	return c
}

// SetAuthenticator attaches the session store. The store itself is built on
// top of the dispatcher, so it is wired after construction.
func (c *Client) SetAuthenticator(a Authenticator) {
	c.auth = a
}

// BaseURL returns the configured backend URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Send dispatches req and returns the raw envelope of a 2xx response. A 401
// on a regular call triggers one refresh and one retry; if that cannot
// recover the call the user is sent to login and ErrAuthRequired returned.
func (c *Client) Send(ctx context.Context, req Request) (*RawEnvelope, error) {
	ctx, _ = logger.EnsureCorrelationID(ctx)
	route := routeLabel(req.Path)

	ctx, span := c.tracer.Start(ctx, req.Method+" "+route,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("http.route", route),
		),
	)
	defer span.End()

	env, status, err := c.do(ctx, req, route)
	if status == http.StatusUnauthorized && !req.NoRefresh {
		env, status, err = c.refreshAndRetry(ctx, req, route)
		if status == http.StatusUnauthorized {
			c.redirect(ctx)
		}
	}

	if status > 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, apperrors.Message(err))
		return nil, err
	}
	return env, nil
}

// refreshAndRetry handles a 401: one refresh, then one retry. A returned
// status of 401 means the caller must be sent to login.
func (c *Client) refreshAndRetry(ctx context.Context, req Request, route string) (*RawEnvelope, int, error) {
	authErr := apperrors.AuthRequired(httpclient.MsgAuthRequired)
	if c.auth == nil {
		c.metrics.refresh.WithLabelValues(RefreshUnavailable).Inc()
		return nil, http.StatusUnauthorized, authErr
	}

	if err := c.auth.Refresh(ctx); err != nil {
		c.metrics.refresh.WithLabelValues(RefreshFailure).Inc()
		logger.WithContext(ctx, c.logger).WarnContext(ctx, "token refresh failed",
			slog.String("route", route),
			slog.String("error", err.Error()),
		)
		return nil, http.StatusUnauthorized, authErr
	}
	c.metrics.refresh.WithLabelValues(RefreshSuccess).Inc()

	return c.do(ctx, req, route)
}

func (c *Client) redirect(ctx context.Context) {
	if c.nav != nil {
		c.nav.RedirectToLogin(ctx)
	}
}

// do performs a single round trip. status is 0 when no response arrived.
func (c *Client) do(ctx context.Context, req Request, route string) (*RawEnvelope, int, error) {
	log := logger.WithContext(ctx, c.logger)
	start := time.Now()

	httpReq, err := c.newHTTPRequest(ctx, req)
	if err != nil {
		return nil, 0, err
	}

	resp, err := c.http.Do(ctx, httpReq)
	c.metrics.duration.WithLabelValues(req.Method, route).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.requests.WithLabelValues(req.Method, route, "error").Inc()
		if errors.Is(err, httpclient.ErrCircuitOpen) {
			log.WarnContext(ctx, "backend circuit open", slog.String("route", route))
			return nil, 0, apperrors.ServerError(http.StatusServiceUnavailable, httpclient.MsgServerError)
		}
		log.ErrorContext(ctx, "backend request failed",
			slog.String("method", req.Method),
			slog.String("route", route),
			slog.String("error", err.Error()),
		)
		return nil, 0, apperrors.Transport(err)
	}
	c.metrics.requests.WithLabelValues(req.Method, route, strconv.Itoa(resp.StatusCode)).Inc()

	log.DebugContext(ctx, "backend response",
		slog.String("method", req.Method),
		slog.String("route", route),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, httpclient.ParseResponseError(resp)
	}

	env, err := decodeEnvelope(resp)
	if err != nil {
		log.ErrorContext(ctx, "backend response unreadable",
			slog.String("route", route),
			slog.String("error", err.Error()),
		)
		return nil, resp.StatusCode, apperrors.Transport(err)
	}
	return env, resp.StatusCode, nil
}

func (c *Client) newHTTPRequest(ctx context.Context, req Request) (*http.Request, error) {
	var body io.Reader = http.NoBody
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s %s body: %w", req.Method, req.Path, err)
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, JoinURL(c.baseURL, req.Path), body)
	if err != nil {
		return nil, fmt.Errorf("create %s %s request: %w", req.Method, req.Path, err)
	}

	for k, vs := range c.headers {
		httpReq.Header[k] = append([]string(nil), vs...)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.auth != nil {
		if token := c.auth.AccessToken(); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}
	httpReq.Header.Set(HeaderCorrelationID, logger.CorrelationIDFromContext(ctx))
	for k, vs := range req.Header {
		httpReq.Header[k] = append([]string(nil), vs...)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	return httpReq, nil
}

// decodeEnvelope reads a 2xx body. A 201 without a resultCode gets
// 201-CREATED; an empty 204 body gets 204-NO-CONTENT.
func decodeEnvelope(resp *http.Response) (*RawEnvelope, error) {
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	var env RawEnvelope
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, fmt.Errorf("decode response envelope: %w", err)
		}
	} else if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("empty response body with status %d", resp.StatusCode)
	}

	if env.ResultCode == "" {
		switch resp.StatusCode {
		case http.StatusCreated:
			env.ResultCode = CodeCreated
		case http.StatusNoContent:
			env.ResultCode = CodeNoContent
		}
	}
	return &env, nil
}
