package models

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/fnndsc/pfbuild/steps"
)

// Detail is the step specific part of a Response. Each pipeline step has
// exactly one Detail type.
type Detail interface {
	Step() steps.Id
	envelope() Envelope
	clone() Detail
}

type RepoExists struct {
	Envelope
	RepoName string `json:"repo_name"`
}

type RepoCreateInitial struct {
	Envelope
	RepoName    string `json:"repo_name"`
	RepoCreated bool   `json:"repo_created"`
	RepoURL     string `json:"repo_url"`
}

type GitClone struct {
	Envelope
	RepoURL   string `json:"repo_url"`
	ClonePath string `json:"clone_path"`
	Branch    string `json:"branch"`
}

type ShellEdit struct {
	Envelope
	ScriptPath  string   `json:"script_path"`
	ChangesMade []string `json:"changes_made"`
}

type JobResult struct {
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	ReturnCode int    `json:"returncode"`
}

type ShellExec struct {
	Envelope
	Result JobResult `json:"result"`
}

type GitCommit struct {
	Envelope
	RepoName  string `json:"repo_name"`
	RepoURL   string `json:"repo_url"`
	ClonePath string `json:"clone_path"`
	Branch    string `json:"branch"`
}

func (*RepoExists) Step() steps.Id        { return steps.RepoExists }
func (*RepoCreateInitial) Step() steps.Id { return steps.RepoCreateInitial }
func (*GitClone) Step() steps.Id          { return steps.GitClone }
func (*ShellEdit) Step() steps.Id         { return steps.ShellEdit }
func (*ShellExec) Step() steps.Id         { return steps.ShellExec }
func (*GitCommit) Step() steps.Id         { return steps.GitCommit }

func (d *RepoExists) envelope() Envelope        { return d.Envelope }
func (d *RepoCreateInitial) envelope() Envelope { return d.Envelope }
func (d *GitClone) envelope() Envelope          { return d.Envelope }
func (d *ShellEdit) envelope() Envelope         { return d.Envelope }
func (d *ShellExec) envelope() Envelope         { return d.Envelope }
func (d *GitCommit) envelope() Envelope         { return d.Envelope }

func (d *RepoExists) clone() Detail {
	c := *d
	return &c
}

func (d *RepoCreateInitial) clone() Detail {
	c := *d
	return &c
}

func (d *GitClone) clone() Detail {
	c := *d
	return &c
}

func (d *ShellExec) clone() Detail {
	c := *d
	return &c
}

func (d *GitCommit) clone() Detail {
	c := *d
	return &c
}

func (d *ShellEdit) clone() Detail {
	c := *d
	c.ChangesMade = slices.Clone(d.ChangesMade)
	return &c
}

// Response is the result of one step: the shared envelope plus the detail
// produced by that step.
type Response struct {
	Envelope
	Detail Detail
}

// NewResponse builds a Response whose envelope mirrors the detail's.
func NewResponse(d Detail) Response {
	return Response{Envelope: d.envelope(), Detail: d}
}

// Clone returns a copy of r that shares no memory with it.
func (r Response) Clone() Response {
	if r.Detail != nil {
		r.Detail = r.Detail.clone()
	}
	return r
}

// Step reports which step produced r, or "" if r carries no detail.
func (r Response) Step() steps.Id {
	if r.Detail == nil {
		return ""
	}
	return r.Detail.Step()
}

// wireResponse is the JSON shape of a Response: one key per step, exactly
// one of them non-null.
type wireResponse struct {
	Envelope
	RepoExists        *RepoExists        `json:"repoExists"`
	RepoCreateInitial *RepoCreateInitial `json:"repoCreateInitial"`
	GitClone          *GitClone          `json:"gitClone"`
	ShellEdit         *ShellEdit         `json:"shellEdit"`
	ShellExec         *ShellExec         `json:"shellExec"`
	GitCommit         *GitCommit         `json:"gitCommit"`
}

func (r Response) MarshalJSON() ([]byte, error) {
	w := wireResponse{Envelope: r.Envelope}
	switch d := r.Detail.(type) {
	case *RepoExists:
		w.RepoExists = d
	case *RepoCreateInitial:
		w.RepoCreateInitial = d
	case *GitClone:
		w.GitClone = d
	case *ShellEdit:
		w.ShellEdit = d
	case *ShellExec:
		w.ShellExec = d
	case *GitCommit:
		w.GitCommit = d
	case nil:
		if r.Status {
			return nil, fmt.Errorf("response has no step detail")
		}
	default:
		return nil, fmt.Errorf("unknown step detail %T", d)
	}
	return json.Marshal(w)
}

func (r *Response) UnmarshalJSON(b []byte) error {
	var w wireResponse
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}

	var details []Detail
	if w.RepoExists != nil {
		details = append(details, w.RepoExists)
	}
	if w.RepoCreateInitial != nil {
		details = append(details, w.RepoCreateInitial)
	}
	if w.GitClone != nil {
		details = append(details, w.GitClone)
	}
	if w.ShellEdit != nil {
		details = append(details, w.ShellEdit)
	}
	if w.ShellExec != nil {
		details = append(details, w.ShellExec)
	}
	if w.GitCommit != nil {
		details = append(details, w.GitCommit)
	}

	switch len(details) {
	case 0:
		// a failed step may come back without any detail
		if w.Status {
			return fmt.Errorf("response has no step detail")
		}
		*r = Response{Envelope: w.Envelope}
	case 1:
		*r = Response{Envelope: w.Envelope, Detail: details[0]}
	default:
		return fmt.Errorf("response has %d step details, want 1", len(details))
	}
	return nil
}
