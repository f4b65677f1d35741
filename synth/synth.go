// Package synth produces the responses a bootstrap backend would return for
// each pipeline step, without touching GitHub, git or a shell. It stands in
// for the real service in simulations and tests and documents what that
// service is expected to answer.
package synth

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/fnndsc/pfbuild/models"
	"github.com/fnndsc/pfbuild/steps"
)

const (
	DefaultRepoHost     = "https://github.com"
	DefaultOrganization = "FNNDSC"
	DefaultCloneRoot    = "/home/appuser/repositories"
	DefaultBranch       = "main"

	bootstrapScript = "bootstrap.sh"
)

// Synthesizer is stateless; one value may serve any number of concurrent
// runs.
type Synthesizer struct {
	repoHost     string
	organization string
	cloneRoot    string
	now          func() time.Time
}

type Option func(*Synthesizer)

func WithClock(now func() time.Time) Option {
	return func(s *Synthesizer) {
		s.now = now
	}
}

func WithRepoHost(host string) Option {
	return func(s *Synthesizer) {
		s.repoHost = host
	}
}

func WithOrganization(org string) Option {
	return func(s *Synthesizer) {
		s.organization = org
	}
}

func WithCloneRoot(root string) Option {
	return func(s *Synthesizer) {
		s.cloneRoot = root
	}
}

func New(opts ...Option) *Synthesizer {
	s := &Synthesizer{
		repoHost:     DefaultRepoHost,
		organization: DefaultOrganization,
		cloneRoot:    DefaultCloneRoot,
		now:          time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Synthesizer) RepoURL(title string) string {
	return fmt.Sprintf("%s/%s/%s.git", s.repoHost, s.organization, title)
}

func (s *Synthesizer) ClonePath(title string) string {
	return path.Join(s.cloneRoot, title)
}

// Synthesize returns the response for step given payload. Start and end
// times are both taken from the clock at call time.
func (s *Synthesizer) Synthesize(step steps.Id, p models.Payload) (models.Response, error) {
	if !step.Valid() {
		return models.Response{}, models.ValidationError(fmt.Sprintf("missing/invalid step %q", step))
	}
	if strings.TrimSpace(p.PluginTitle) == "" {
		return models.Response{}, models.WithStep(models.ValidationError("invalid payload: missing 'plugin_title'"), step)
	}

	now := s.now()
	title := p.PluginTitle
	env := func(msg string) models.Envelope {
		return models.NewEnvelope(true, msg, now, now)
	}

	var d models.Detail
	switch step {
	case steps.RepoExists:
		// status=true here means the check ran and found no repository
		d = &models.RepoExists{
			Envelope: env(fmt.Sprintf("Repository %s does not exist or not found.", title)),
			RepoName: title,
		}
	case steps.RepoCreateInitial:
		d = &models.RepoCreateInitial{
			Envelope:    env(fmt.Sprintf("Repository %s created successfully.", title)),
			RepoName:    title,
			RepoCreated: true,
			RepoURL:     s.RepoURL(title),
		}
	case steps.GitClone:
		d = &models.GitClone{
			Envelope:  env("Repository cloned successfully."),
			RepoURL:   s.RepoURL(title),
			ClonePath: s.ClonePath(title),
			Branch:    DefaultBranch,
		}
	case steps.ShellEdit:
		d = &models.ShellEdit{
			Envelope:    env(fmt.Sprintf("Shell script updated for %s.", title)),
			ScriptPath:  path.Join(s.ClonePath(title), bootstrapScript),
			ChangesMade: scriptChanges(p),
		}
	case steps.ShellExec:
		d = &models.ShellExec{
			Envelope: env(fmt.Sprintf("Execution logs available for %s.", title)),
			Result: models.JobResult{
				Stdout:     "Execution logs...",
				Stderr:     "",
				ReturnCode: 0,
			},
		}
	case steps.GitCommit:
		d = &models.GitCommit{
			Envelope:  env(fmt.Sprintf("Changes committed and pushed to %s.", title)),
			RepoName:  title,
			RepoURL:   s.RepoURL(title),
			ClonePath: s.ClonePath(title),
			Branch:    DefaultBranch,
		}
	}

	return models.NewResponse(d), nil
}

// scriptChanges lists the variable assignments written into bootstrap.sh, in
// the order they appear in the script.
func scriptChanges(p models.Payload) []string {
	return []string{
		fmt.Sprintf("PLUGIN_TITLE='%s'", p.PluginTitle),
		fmt.Sprintf("SCRIPT_NAME='%s'", p.ScriptName),
		fmt.Sprintf("DESCRIPTION='%s'", p.Description),
		fmt.Sprintf("EMAIL='%s'", p.Email),
		"READY=YES",
	}
}
