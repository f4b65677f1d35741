package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/fnndsc/pfbuild/models"
)

// maxResponseSize caps how much of a response body is read.
const maxResponseSize = 4 << 20

// apiError is the error body written by the bootstrap server.
type apiError struct {
	Tag     string `json:"error"`
	Message string `json:"message"`
}

// HTTPTransport talks to a real bootstrap API over HTTP.
type HTTPTransport struct {
	Client *http.Client
}

func NewHTTPTransport(c *http.Client) *HTTPTransport {
	if c == nil {
		c = http.DefaultClient
	}
	return &HTTPTransport{Client: c}
}

func (t *HTTPTransport) Do(ctx context.Context, req *Request) (models.Response, error) {
	step := req.Step()

	hreq, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), bytes.NewReader(req.Body))
	if err != nil {
		return models.Response{}, models.ValidationError(err.Error())
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			hreq.Header.Add(k, v)
		}
	}

	hresp, err := t.Client.Do(hreq)
	if err != nil {
		return models.Response{}, models.TransportError(step, err)
	}
	defer hresp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(hresp.Body, maxResponseSize))
	if err != nil {
		return models.Response{}, models.TransportError(step, fmt.Errorf("reading response: %w", err))
	}

	if hresp.StatusCode < 200 || hresp.StatusCode > 299 {
		var ae apiError
		if json.Unmarshal(body, &ae) == nil && ae.Tag != "" {
			if ae.Tag == "Validation" && hresp.StatusCode == http.StatusBadRequest {
				return models.Response{}, models.WithStep(models.ValidationError(ae.Message), step)
			}
			return models.Response{}, models.ServerError(step, fmt.Sprintf("%s (%s): %s", hresp.Status, ae.Tag, ae.Message))
		}
		return models.Response{}, models.ServerError(step, hresp.Status)
	}

	var resp models.Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.Response{}, models.ServerError(step, fmt.Sprintf("malformed response: %v", err))
	}
	return resp, nil
}
