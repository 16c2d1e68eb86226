package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nerrad567/appaccess/internal/session"
)

// DefaultTimeout bounds every request issued by an Authorizer.
const DefaultTimeout = 10 * time.Second

const (
	tracerName       = "github.com/nerrad567/appaccess/internal/client"
	maxResponseBytes = 1 << 20
	defaultUserAgent = "appaccess-client"
)

// Authorizer issues HTTP requests on behalf of the current session.
//
// It attaches the bearer token from the store when one exists and
// classifies every failure once. A 401 on an ordinary call clears the
// session it was sent with and yields ErrSessionInvalidated.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Authorizer struct {
	base      *url.URL
	store     session.Store
	http      *http.Client
	timeout   time.Duration
	tracer    trace.Tracer
	logger    *slog.Logger
	userAgent string
}

// Option configures an Authorizer.
type Option func(*Authorizer)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Authorizer) {
		if c != nil {
			a.http = c
		}
	}
}

// WithTimeout sets the per-request timeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(a *Authorizer) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithTracerProvider sets the provider spans are created from. The global
// provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(a *Authorizer) {
		if tp != nil {
			a.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithLogger sets the logger used for background failures.
func WithLogger(l *slog.Logger) Option {
	return func(a *Authorizer) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(a *Authorizer) {
		if ua != "" {
			a.userAgent = ua
		}
	}
}

// NewAuthorizer creates an Authorizer for the API rooted at baseURL, for
// example "http://localhost:4001/api/v1".
func NewAuthorizer(baseURL string, store session.Store, opts ...Option) (*Authorizer, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("client: invalid base URL %q", baseURL)
	}
	if store == nil {
		return nil, errors.New("client: session store is required")
	}

	a := &Authorizer{
		base:      u,
		store:     store,
		http:      &http.Client{},
		timeout:   DefaultTimeout,
		tracer:    otel.Tracer(tracerName),
		logger:    slog.New(slog.DiscardHandler),
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Store returns the session store the Authorizer reads from.
func (a *Authorizer) Store() session.Store {
	return a.store
}

// Timeout returns the per-request timeout.
func (a *Authorizer) Timeout() time.Duration {
	return a.timeout
}

// call describes one request.
type call struct {
	op     string
	method string
	path   string
	query  url.Values
	body   any
	out    any

	// entry marks login and refresh. No bearer is attached and a 401 is
	// left for the caller to interpret.
	entry bool
}

// Do sends an authenticated request and decodes a 2xx body into out.
// out may be nil. path is relative to the base URL.
func (a *Authorizer) Do(ctx context.Context, op, method, path string, body, out any) error {
	return a.do(ctx, call{op: op, method: method, path: path, body: body, out: out})
}

func (a *Authorizer) do(ctx context.Context, c call) (err error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	ctx, span := a.tracer.Start(ctx, "appaccess.client."+c.op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", c.method),
			attribute.String("url.path", c.path),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	req, err := a.newRequest(ctx, c)
	if err != nil {
		return err
	}

	var sent string
	if !c.entry {
		s, serr := a.store.Current(ctx)
		switch {
		case serr == nil:
			sent = s.Token
			req.Header.Set("Authorization", "Bearer "+sent)
		case errors.Is(serr, session.ErrNoSession):
		default:
			return &Error{Op: c.op, Kind: ErrNoActiveSession, Err: serr}
		}
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return &Error{Op: c.op, Kind: ErrNetworkUnreachable, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &Error{Op: c.op, Kind: ErrNetworkUnreachable, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if c.out == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}
		if err := json.Unmarshal(data, c.out); err != nil {
			return &Error{Op: c.op, Kind: ErrProtocol, Status: resp.StatusCode, Err: err}
		}
		return nil
	}

	if resp.StatusCode == http.StatusUnauthorized && !c.entry && sent != "" {
		a.invalidate(context.WithoutCancel(ctx), sent)
	}
	code, message := serverError(data)
	return &Error{
		Op:      c.op,
		Kind:    kindForStatus(resp.StatusCode),
		Status:  resp.StatusCode,
		Message: message,
		Code:    code,
	}
}

func (a *Authorizer) newRequest(ctx context.Context, c call) (*http.Request, error) {
	u := a.base.JoinPath(c.path)
	if len(c.query) > 0 {
		u.RawQuery = c.query.Encode()
	}

	var body io.Reader
	if c.body != nil {
		b, err := json.Marshal(c.body)
		if err != nil {
			return nil, &Error{Op: c.op, Kind: ErrValidation, Err: err}
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, c.method, u.String(), body)
	if err != nil {
		return nil, &Error{Op: c.op, Kind: ErrValidation, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", a.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// invalidate clears the store if it still holds the token that was
// rejected. A session replaced by a refresh or a new login in the meantime
// is kept.
func (a *Authorizer) invalidate(ctx context.Context, rejected string) {
	if _, err := a.store.CompareAndSwap(ctx, session.HasToken(rejected), nil); err != nil {
		a.logger.Warn("clearing invalidated session failed", "error", err)
	}
}

// serverError extracts the code and message fields of an error body.
func serverError(data []byte) (code, message string) {
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &body) != nil {
		return "", ""
	}
	return body.Code, body.Message
}
