package parse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	headerAppID            = "X-Parse-Application-Id"
	headerRESTAPIKey       = "X-Parse-REST-API-Key"
	headerMasterKey        = "X-Parse-Master-Key"
	headerSessionToken     = "X-Parse-Session-Token"
	headerRevocableSession = "X-Parse-Revocable-Session"

	tracerName = "github.com/dmitrymomot/healthkit/pkg/parse"
)

// Client talks to the Parse Server REST API.
type Client struct {
	baseURL    *url.URL
	appID      string
	restAPIKey string
	masterKey  string
	http       *http.Client
	tracer     trace.Tracer
}

type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithTracerProvider sets the trace provider. The global provider is used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(cl *Client) {
		if tp != nil {
			cl.tracer = tp.Tracer(tracerName)
		}
	}
}

// New validates cfg and returns a Client. A missing server URL or
// application id fails here instead of on the first request.
func New(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.ServerURL) == "" || strings.TrimSpace(cfg.AppID) == "" {
		return nil, ErrMissingConfig
	}
	base, err := url.Parse(strings.TrimRight(cfg.ServerURL, "/") + "/")
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: invalid server url %q", ErrMissingConfig, cfg.ServerURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		baseURL:    base,
		appID:      cfg.AppID,
		restAPIKey: cfg.RESTAPIKey,
		masterKey:  cfg.MasterKey,
		http:       &http.Client{Timeout: timeout},
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// LogIn exchanges credentials for a user record carrying a fresh session token.
func (c *Client) LogIn(ctx context.Context, email, password string) (*User, error) {
	ctx, span := c.tracer.Start(ctx, "parse.login", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	var user User
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "login",
		body:   map[string]string{"username": email, "password": password},
		out:    &user,
		classify: func(code int) error {
			if code == CodeObjectNotFound {
				return ErrInvalidCredentials
			}
			return nil
		},
	})
	if err != nil {
		return nil, recordError(span, err)
	}
	span.SetAttributes(attribute.String("parse.user_id", user.ObjectID))
	return &user, nil
}

// CreateAccount signs up a new user with the given role. The returned record
// combines the submitted fields with what the server assigned.
func (c *Client) CreateAccount(ctx context.Context, email, password, role string) (*User, error) {
	ctx, span := c.tracer.Start(ctx, "parse.create_account", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	var created User
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "users",
		master: true,
		body: map[string]string{
			"username": email,
			"email":    email,
			"password": password,
			"role":     role,
		},
		out: &created,
		classify: func(code int) error {
			if code == CodeUsernameTaken || code == CodeEmailTaken {
				return ErrAccountExists
			}
			return ErrAccountCreation
		},
	})
	if err != nil {
		return nil, recordError(span, err)
	}

	created.Username = email
	created.Email = email
	created.Role = role
	if created.UpdatedAt.IsZero() {
		created.UpdatedAt = created.CreatedAt
	}
	span.SetAttributes(attribute.String("parse.user_id", created.ObjectID))
	return &created, nil
}

// CurrentUser returns the user that owns token.
func (c *Client) CurrentUser(ctx context.Context, token string) (*User, error) {
	ctx, span := c.tracer.Start(ctx, "parse.current_user", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	if token == "" {
		return nil, recordError(span, ErrInvalidSessionToken)
	}

	var user User
	err := c.do(ctx, call{
		method: http.MethodGet,
		path:   "users/me",
		token:  token,
		out:    &user,
		classify: func(code int) error {
			if code == CodeInvalidSessionToken {
				return ErrInvalidSessionToken
			}
			return nil
		},
	})
	if err != nil {
		return nil, recordError(span, err)
	}
	return &user, nil
}

// Become resumes a session from a stored token: the user is fetched and the
// token is attached to the returned record.
func (c *Client) Become(ctx context.Context, token string) (*User, error) {
	user, err := c.CurrentUser(ctx, token)
	if err != nil {
		return nil, err
	}
	user.SessionToken = token
	return user, nil
}

// Ping checks that the server answers its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "parse.ping", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	if err := c.do(ctx, call{method: http.MethodGet, path: "health"}); err != nil {
		return recordError(span, err)
	}
	return nil
}

type call struct {
	method string
	path   string
	token  string
	// master sends the master key when one is configured.
	master bool
	body   any
	out    any
	// classify maps a Parse error code to a sentinel; nil keeps the bare *Error.
	classify func(code int) error
}

// do sends the request and decodes a successful JSON response into call.out.
func (c *Client) do(ctx context.Context, cl call) error {
	var reader io.Reader
	if cl.body != nil {
		raw, err := json.Marshal(cl.body)
		if err != nil {
			return fmt.Errorf("parse: encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL.JoinPath(cl.path).String(), reader)
	if err != nil {
		return fmt.Errorf("parse: build request: %w", err)
	}
	req.Header.Set(headerAppID, c.appID)
	if c.restAPIKey != "" {
		req.Header.Set(headerRESTAPIKey, c.restAPIKey)
	}
	if cl.master && c.masterKey != "" {
		req.Header.Set(headerMasterKey, c.masterKey)
	}
	if cl.token != "" {
		req.Header.Set(headerSessionToken, cl.token)
	}
	req.Header.Set(headerRevocableSession, "1")
	req.Header.Set("Accept", "application/json")
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Join(ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Join(ErrServiceUnavailable, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		perr := &Error{Status: resp.StatusCode}
		if err := json.Unmarshal(raw, perr); err != nil || perr.Code == 0 {
			return errors.Join(ErrServiceUnavailable, fmt.Errorf("unexpected status %d", resp.StatusCode))
		}
		if cl.classify != nil {
			perr.sentinel = cl.classify(perr.Code)
		}
		return perr
	}

	if cl.out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, cl.out); err != nil {
		return errors.Join(ErrServiceUnavailable, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func recordError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	var perr *Error
	if errors.As(err, &perr) {
		span.SetAttributes(attribute.Int("parse.error_code", perr.Code))
	}
	return err
}
