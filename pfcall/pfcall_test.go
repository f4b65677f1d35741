package pfcall

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/fnndsc/pfbuild/models"
	"github.com/fnndsc/pfbuild/steps"
)

func runCall(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := &cli.Command{
		Name:     "pfbuild",
		Writer:   &out,
		Commands: []*cli.Command{Command()},
	}
	err := root.Run(context.Background(), append([]string{"pfbuild", "call"}, args...))
	return out.String(), err
}

func TestBuildRequest(t *testing.T) {
	req, err := buildRequest("post", defaultURL, []string{"X-Trace: abc", "Accept:application/json"}, `{"plugin_title":"pl-demo"}`)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, steps.RepoExists, req.Step())
	assert.Equal(t, "abc", req.Header.Get("X-Trace"))
	assert.Equal(t, "application/json", req.Header.Get("Accept"))
	assert.JSONEq(t, `{"plugin_title":"pl-demo"}`, string(req.Body))
}

func TestBuildRequest_Invalid(t *testing.T) {
	_, err := buildRequest("POST", defaultURL, []string{"no-colon"}, "")
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = buildRequest("POST", defaultURL, nil, "{nope")
	assert.ErrorIs(t, err, models.ErrValidation)

	req, err := buildRequest("POST", defaultURL, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "{}", string(req.Body))
}

func TestCall_Simulate(t *testing.T) {
	out, err := runCall(t,
		"--simulate",
		"-u", "http://localhost:8000/api/vi/bootstrap/?step=gitCommit",
		"-d", `{"plugin_title":"pl-demo","scriptname":"demo"}`,
	)
	require.NoError(t, err)

	var resp models.Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Status)
	assert.Equal(t, steps.GitCommit, resp.Step())
	assert.Contains(t, out, "\n  \"status\"")
}

func TestCall_MissingStep(t *testing.T) {
	_, err := runCall(t, "--simulate", "-u", "http://localhost:8000/api/vi/bootstrap/")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestCall_HTTP(t *testing.T) {
	var gotHeader, gotMethod string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Trace")
		gotMethod = r.Method
		io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"status": true,
			"message": "repo check",
			"TIMESTAMP_FORMAT": "%Y-%m-%d_%H:%M:%S",
			"starttime": "2024-11-05_09:00:00",
			"endtime": "2024-11-05_09:00:00",
			"repoExists": {
				"status": true,
				"message": "exists",
				"TIMESTAMP_FORMAT": "%Y-%m-%d_%H:%M:%S",
				"starttime": "2024-11-05_09:00:00",
				"endtime": "2024-11-05_09:00:00"
			},
			"repoCreateInitial": null,
			"gitClone": null,
			"shellEdit": null,
			"shellExec": null,
			"gitCommit": null
		}`))
	}))
	defer ts.Close()

	out, err := runCall(t, "-X", "PUT", "-H", "X-Trace: 42", "-u", ts.URL+"/api/vi/bootstrap/?step=repoExists")
	require.NoError(t, err)
	assert.Equal(t, "42", gotHeader)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Contains(t, out, `"repoExists"`)
}
