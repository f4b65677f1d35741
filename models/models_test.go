package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fnndsc/pfbuild/steps"
)

func TestResponseJSON_SingleDetail(t *testing.T) {
	ts := time.Date(2024, 11, 5, 9, 30, 0, 0, time.UTC)
	r := NewResponse(&GitCommit{
		Envelope:  NewEnvelope(true, "Changes committed and pushed to pl-demo.", ts, ts),
		RepoName:  "pl-demo",
		RepoURL:   "https://github.com/FNNDSC/pl-demo.git",
		ClonePath: "/home/appuser/repositories/pl-demo",
		Branch:    "main",
	})

	b, err := json.Marshal(r)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))

	assert.Equal(t, true, raw["status"])
	assert.Equal(t, "2024-11-05_09:30:00", raw["starttime"])
	assert.Equal(t, TimestampFormat, raw["TIMESTAMP_FORMAT"])
	for _, s := range steps.All() {
		v, ok := raw[string(s.Id)]
		require.True(t, ok, "key %s missing", s.Id)
		if s.Id == steps.GitCommit {
			assert.NotNil(t, v)
		} else {
			assert.Nil(t, v, "key %s should be null", s.Id)
		}
	}

	var back Response
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, r, back)
	assert.Equal(t, steps.GitCommit, back.Step())
}

func TestResponseClone(t *testing.T) {
	ts := time.Date(2024, 11, 5, 9, 30, 0, 0, time.UTC)
	orig := NewResponse(&ShellEdit{
		Envelope:    NewEnvelope(true, "edited", ts, ts),
		ScriptPath:  "/home/appuser/repositories/pl-demo/bootstrap.sh",
		ChangesMade: []string{"PLUGIN_TITLE='pl-demo'", "READY=YES"},
	})

	c := orig.Clone()
	assert.Equal(t, orig, c)
	assert.NotSame(t, orig.Detail, c.Detail)

	edit := c.Detail.(*ShellEdit)
	edit.ScriptPath = "/tmp/elsewhere.sh"
	edit.ChangesMade[0] = "PLUGIN_TITLE='other'"

	kept := orig.Detail.(*ShellEdit)
	assert.Equal(t, "/home/appuser/repositories/pl-demo/bootstrap.sh", kept.ScriptPath)
	assert.Equal(t, "PLUGIN_TITLE='pl-demo'", kept.ChangesMade[0])

	failed := Response{Envelope: NewEnvelope(false, "boom", ts, ts)}
	assert.Equal(t, failed, failed.Clone())
}

func TestResponseJSON_RejectsAmbiguousBody(t *testing.T) {
	body := `{"status": true, "repoExists": {"repo_name": "a"}, "gitClone": {"branch": "main"}}`

	var r Response
	err := json.Unmarshal([]byte(body), &r)
	assert.Error(t, err)
}

func TestResponseJSON_SuccessNeedsDetail(t *testing.T) {
	var r Response
	assert.Error(t, json.Unmarshal([]byte(`{"status": true, "message": "ok"}`), &r))

	require.NoError(t, json.Unmarshal([]byte(`{"status": false, "message": "boom"}`), &r))
	assert.False(t, r.Status)
	assert.Equal(t, "boom", r.Message)
	assert.Nil(t, r.Detail)
	assert.Equal(t, steps.Id(""), r.Step())
}

func TestEnvelopeElapsed(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	e := NewEnvelope(true, "", start, start.Add(90*time.Second))

	d, err := e.Elapsed()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	_, err = Envelope{StartTime: "yesterday"}.Elapsed()
	assert.Error(t, err)
}

func TestPayloadValidate(t *testing.T) {
	p := Payload{PluginTitle: "pl-demo", Email: "dev@example.org"}
	assert.NoError(t, p.Validate())

	tests := []struct {
		name    string
		payload Payload
	}{
		{"missing title", Payload{ScriptName: "demo"}},
		{"blank title", Payload{PluginTitle: "   "}},
		{"bad email", Payload{PluginTitle: "pl-demo", Email: "not an email"}},
		{"long description", Payload{PluginTitle: "pl-demo", Description: string(make([]byte, 4097))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate()
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestPayloadRedacted(t *testing.T) {
	p := Payload{PluginTitle: "pl-demo", GithubToken: "ghp_secret"}

	assert.Equal(t, "REDACTED", p.Redacted().GithubToken)
	assert.Equal(t, "ghp_secret", p.GithubToken)
	assert.Empty(t, Payload{}.Redacted().GithubToken)
}

func TestErrorKinds(t *testing.T) {
	cause := errors.New("connection refused")
	err := TransportError(steps.GitClone, cause)

	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrServer)
	assert.Contains(t, err.Error(), "gitClone")

	v := WithStep(ValidationError("missing 'plugin_title'"), steps.RepoExists)
	var e *Error
	require.True(t, errors.As(v, &e))
	assert.Equal(t, steps.RepoExists, e.Step)
	assert.ErrorIs(t, v, ErrValidation)

	assert.ErrorIs(t, InvalidStateError("running"), ErrInvalidState)
	assert.ErrorIs(t, ServerError(steps.ShellExec, "status=false"), ErrServer)
}
