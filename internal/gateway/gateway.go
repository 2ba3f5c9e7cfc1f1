// Package gateway calls the remote GraphQL endpoint with captured operation
// ids and the session's credentials, and classifies the responses.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/PlayerYK/TweetSift/internal/errors"
)

// Method is the HTTP method used for an operation.
type Method string

const (
	POST Method = http.MethodPost
	GET  Method = http.MethodGet
)

const errorBodyLimit = 200

// OperationSource resolves operation ids and captured feature flags.
// *opcache.Cache implements it.
type OperationSource interface {
	OperationID(ctx context.Context, name string) (string, error)
	Invalidate(ctx context.Context, name string) error
	Features(ctx context.Context, name string) json.RawMessage
}

// Options configures a Gateway. Zero values fall back to defaults.
type Options struct {
	BaseURL              string
	BearerToken          string
	DefaultRateLimitWait time.Duration
	Timeout              time.Duration
	// Client overrides the HTTP client, mainly for tests.
	Client *resty.Client
	// Now overrides the clock used to interpret rate-limit reset headers.
	Now func() time.Time
}

// Gateway performs remote operation calls.
type Gateway struct {
	http        *resty.Client
	ops         OperationSource
	creds       CredentialSource
	logger      *slog.Logger
	baseURL     string
	bearer      string
	defaultWait time.Duration
	now         func() time.Time
}

// New returns a Gateway.
func New(ops OperationSource, creds CredentialSource, logger *slog.Logger, opts Options) *Gateway {
	client := opts.Client
	if client == nil {
		client = resty.New()
	}
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	} else {
		client.SetTimeout(30 * time.Second)
	}
	g := &Gateway{
		http:        client,
		ops:         ops,
		creds:       creds,
		logger:      logger,
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		bearer:      opts.BearerToken,
		defaultWait: opts.DefaultRateLimitWait,
		now:         opts.Now,
	}
	if g.baseURL == "" {
		g.baseURL = "https://x.com/i/api/graphql"
	}
	if g.defaultWait <= 0 {
		g.defaultWait = 60 * time.Second
	}
	if g.now == nil {
		g.now = time.Now
	}
	return g
}

// Call invokes op with variables and returns the decoded JSON response.
func (g *Gateway) Call(ctx context.Context, op string, variables any, method Method) (json.RawMessage, error) {
	queryID, err := g.ops.OperationID(ctx, op)
	if err != nil {
		return nil, err
	}
	if queryID == "" {
		return nil, errors.NewMissingOperationID(op)
	}

	creds, err := g.creds.Credentials(ctx)
	if err != nil {
		return nil, err
	}
	if !creds.Valid() {
		return nil, errors.NewNotAuthenticated()
	}

	vars, err := json.Marshal(variables)
	if err != nil {
		return nil, errors.NewInvalidRequest("variables are not serializable: " + err.Error())
	}
	features := g.ops.Features(ctx, op)
	if features == nil {
		features = defaultFeatures[op]
	}

	endpoint := g.baseURL + "/" + queryID + "/" + op
	req := g.http.R().
		SetContext(ctx).
		SetHeaders(g.headers(creds))

	var res *resty.Response
	switch method {
	case GET:
		q := url.Values{}
		q.Set("variables", string(vars))
		if features != nil {
			q.Set("features", string(features))
		}
		res, err = req.SetQueryParamsFromValues(q).Get(endpoint)
	default:
		body := map[string]json.RawMessage{
			"variables": vars,
			"queryId":   json.RawMessage(strconv.Quote(queryID)),
		}
		if features != nil {
			body["features"] = features
		}
		res, err = req.SetBody(body).Post(endpoint)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.NewRemoteError(op, 0, err.Error())
	}

	return g.classify(ctx, op, res)
}

func (g *Gateway) headers(creds Credentials) map[string]string {
	return map[string]string{
		"authorization":         "Bearer " + g.bearer,
		"x-csrf-token":          creds.CSRFToken,
		"x-twitter-auth-type":   "OAuth2Session",
		"x-twitter-active-user": "yes",
		"content-type":          "application/json",
		"cookie":                creds.CookieHeader(),
	}
}

func (g *Gateway) classify(ctx context.Context, op string, res *resty.Response) (json.RawMessage, error) {
	status := res.StatusCode()
	switch {
	case status == http.StatusUnauthorized:
		return nil, errors.NewSessionExpired(op)
	case status == http.StatusTooManyRequests:
		wait := g.retryAfter(res.Header().Get("x-rate-limit-reset"))
		g.logger.Warn("rate limited", "operation", op, "wait", wait)
		return nil, errors.NewRateLimited(op, wait)
	case status == http.StatusBadRequest || status == http.StatusNotFound:
		if err := g.ops.Invalidate(ctx, op); err != nil {
			g.logger.Error("invalidate operation", "operation", op, "error", err)
		}
		return nil, errors.NewOperationRejected(op, status)
	case status < 200 || status > 299:
		return nil, errors.NewRemoteError(op, status, truncate(res.String(), errorBodyLimit))
	}

	body := res.Body()
	var probe any
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, errors.NewMalformedResponse(op, err)
	}
	return json.RawMessage(body), nil
}

// retryAfter converts an epoch-seconds reset header into a wait duration.
func (g *Gateway) retryAfter(header string) time.Duration {
	reset, err := strconv.ParseFloat(strings.TrimSpace(header), 64)
	if header == "" || err != nil {
		return g.defaultWait
	}
	secs := math.Ceil(reset - float64(g.now().UnixMilli())/1000)
	if secs < 1 {
		secs = 1
	}
	return time.Duration(secs) * time.Second
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
