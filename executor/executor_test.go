package executor

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fnndsc/pfbuild/models"
	"github.com/fnndsc/pfbuild/steps"
	"github.com/fnndsc/pfbuild/synth"
)

var payload = models.Payload{
	PluginTitle: "pl-demo",
	ScriptName:  "demo",
	Email:       "dev@example.org",
}

func mustURL(t *testing.T, s string) *url.URL {
	t.Helper()
	u, err := url.Parse(s)
	require.NoError(t, err)
	return u
}

func TestBootstrapURL(t *testing.T) {
	u, err := BootstrapURL("http://localhost:8000")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000/api/vi/bootstrap/", u.String())

	u, err = BootstrapURL("https://build.example.org/prefix/")
	require.NoError(t, err)
	assert.Equal(t, "https://build.example.org/prefix/api/vi/bootstrap/", u.String())

	_, err = BootstrapURL("localhost")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestStepURL(t *testing.T) {
	base := mustURL(t, "http://localhost:8000/api/vi/bootstrap/?step=repoExists")

	u := StepURL(base, steps.GitClone)
	assert.Equal(t, "gitClone", u.Query().Get("step"))
	assert.Equal(t, "repoExists", base.Query().Get("step"))
}

func TestExecute_Synth(t *testing.T) {
	e := New(NewSynthTransport(synth.New(), 0))
	endpoint, err := BootstrapURL("http://localhost:8000")
	require.NoError(t, err)

	for _, st := range steps.All() {
		r, err := e.Execute(context.Background(), st.Id, payload, endpoint)
		require.NoError(t, err)
		assert.Equal(t, st.Id, r.Step())
		assert.True(t, r.Status)
	}
}

func TestExecute_InvalidStep(t *testing.T) {
	e := New(NewSynthTransport(nil, 0))
	_, err := e.Execute(context.Background(), "bogus", payload, mustURL(t, "http://x/api/vi/bootstrap/"))
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestExecute_MissingTitle(t *testing.T) {
	e := New(NewSynthTransport(nil, 0))
	_, err := e.Execute(context.Background(), steps.RepoExists, models.Payload{}, mustURL(t, "http://x/api/vi/bootstrap/"))
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestExecute_TimeoutCancelsLatency(t *testing.T) {
	e := New(NewSynthTransport(nil, time.Minute), WithTimeout(20*time.Millisecond))

	start := time.Now()
	_, err := e.Execute(context.Background(), steps.GitClone, payload, mustURL(t, "http://x/api/vi/bootstrap/"))
	assert.ErrorIs(t, err, models.ErrTransport)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestExecute_HTTP(t *testing.T) {
	s := synth.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, BootstrapPath, r.URL.Path)

		var p models.Payload
		b, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(b, &p))

		resp, err := s.Synthesize(steps.Id(r.URL.Query().Get("step")), p)
		require.NoError(t, err)
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	endpoint, err := BootstrapURL(srv.URL)
	require.NoError(t, err)

	e := New(NewHTTPTransport(srv.Client()))
	r, err := e.Execute(context.Background(), steps.GitCommit, payload, endpoint)
	require.NoError(t, err)

	d, ok := r.Detail.(*models.GitCommit)
	require.True(t, ok)
	assert.Equal(t, "https://github.com/FNNDSC/pl-demo.git", d.RepoURL)
}

func TestExecute_HTTPStatusFalse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": false, "message": "Repository pl-demo already exists"}`))
	}))
	defer srv.Close()

	e := New(NewHTTPTransport(srv.Client()))
	_, err := e.Execute(context.Background(), steps.RepoExists, payload, mustURL(t, srv.URL+BootstrapPath))
	assert.ErrorIs(t, err, models.ErrServer)
	assert.Contains(t, err.Error(), "already exists")
}

func TestExecute_HTTPErrorBodies(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"validation", http.StatusBadRequest, `{"error": "Validation", "message": "missing/invalid step"}`, models.ErrValidation},
		{"internal", http.StatusInternalServerError, `{"error": "Generic", "message": "boom"}`, models.ErrServer},
		{"plain", http.StatusBadGateway, `bad gateway`, models.ErrServer},
		{"malformed", http.StatusOK, `{"status": true`, models.ErrServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			e := New(NewHTTPTransport(srv.Client()))
			_, err := e.Execute(context.Background(), steps.ShellExec, payload, mustURL(t, srv.URL+BootstrapPath))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestExecute_HTTPUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	e := New(NewHTTPTransport(nil))
	_, err := e.Execute(context.Background(), steps.RepoExists, payload, mustURL(t, addr+BootstrapPath))
	assert.ErrorIs(t, err, models.ErrTransport)
}

func TestDo_RequiresStep(t *testing.T) {
	e := New(NewSynthTransport(nil, 0))
	_, err := e.Do(context.Background(), &Request{URL: mustURL(t, "http://x/api/vi/bootstrap/")})
	assert.ErrorIs(t, err, models.ErrValidation)

	b, _ := json.Marshal(payload)
	r, err := e.Do(context.Background(), &Request{
		URL:  mustURL(t, "http://x/api/vi/bootstrap/?step=shellEdit"),
		Body: b,
	})
	require.NoError(t, err)
	assert.Equal(t, steps.ShellEdit, r.Step())
}
