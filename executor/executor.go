package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fnndsc/pfbuild/log"
	"github.com/fnndsc/pfbuild/models"
	"github.com/fnndsc/pfbuild/steps"
)

// BootstrapPath is where the bootstrap API lives under a service URL.
const BootstrapPath = "/api/vi/bootstrap/"

// Request is one call to the bootstrap API.
type Request struct {
	Method string
	URL    *url.URL
	Header http.Header
	Body   []byte
}

// Step reports the step named by the request's query, or "" if absent.
func (r *Request) Step() steps.Id {
	if r.URL == nil {
		return ""
	}
	return steps.Id(r.URL.Query().Get("step"))
}

// Transport delivers a Request and decodes the structured response.
// Implementations classify their failures with the models error kinds.
type Transport interface {
	Do(ctx context.Context, req *Request) (models.Response, error)
}

type Executor struct {
	t       Transport
	l       *slog.Logger
	timeout time.Duration
}

type Option func(*Executor)

func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		e.l = l
	}
}

// WithTimeout bounds each Execute call. Zero means no deadline beyond the
// caller's context.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		e.timeout = d
	}
}

func New(t Transport, opts ...Option) *Executor {
	e := &Executor{
		t: t,
		l: log.New("executor"),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Execute runs one pipeline step against endpoint and returns the response.
// A response with status=false is reported as a server error. Nothing is
// retried.
func (e *Executor) Execute(ctx context.Context, step steps.Id, p models.Payload, endpoint *url.URL) (models.Response, error) {
	if !step.Valid() {
		return models.Response{}, models.ValidationError(fmt.Sprintf("missing/invalid step %q", step))
	}

	body, err := json.Marshal(p)
	if err != nil {
		return models.Response{}, models.WithStep(models.ValidationError(err.Error()), step)
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	req := &Request{
		Method: http.MethodPost,
		URL:    StepURL(endpoint, step),
		Header: http.Header{"Content-Type": []string{"application/json"}},
		Body:   body,
	}

	l := e.l.With("step", step)
	l.Debug("executing step", "url", req.URL.String())

	resp, err := e.t.Do(ctx, req)
	if err != nil {
		l.Error("step failed", "error", err)
		return models.Response{}, models.WithStep(err, step)
	}

	if !resp.Status {
		l.Error("step reported failure", "message", resp.Message)
		return models.Response{}, models.ServerError(step, resp.Message)
	}

	l.Debug("step succeeded", "message", resp.Message)
	return resp, nil
}

// Do sends req as given. It is the raw form of Execute used by the call
// command, so a status=false response is returned as a value, not an error.
func (e *Executor) Do(ctx context.Context, req *Request) (models.Response, error) {
	if req.URL == nil {
		return models.Response{}, models.ValidationError("missing request url")
	}
	if req.Step() == "" {
		return models.Response{}, models.ValidationError("the 'step' query parameter is missing from the URL")
	}
	if req.Method == "" {
		req.Method = http.MethodPost
	}
	return e.t.Do(ctx, req)
}

// StepURL returns a copy of endpoint with the step query parameter set.
func StepURL(endpoint *url.URL, step steps.Id) *url.URL {
	u := *endpoint
	q := u.Query()
	q.Set("step", string(step))
	u.RawQuery = q.Encode()
	return &u
}

// BootstrapURL resolves the bootstrap API endpoint for a service root such
// as "http://localhost:8000".
func BootstrapURL(serviceURL string) (*url.URL, error) {
	u, err := url.Parse(serviceURL)
	if err != nil {
		return nil, models.ValidationError(fmt.Sprintf("invalid service_url %q: %v", serviceURL, err))
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, models.ValidationError(fmt.Sprintf("invalid service_url %q: need scheme and host", serviceURL))
	}
	u.Path = strings.TrimRight(u.Path, "/") + BootstrapPath
	u.RawQuery = ""
	return u, nil
}
