package steps

import (
	"fmt"
	"strings"
)

// Id names one stage of the bootstrap pipeline. The zero value is not a
// valid step.
type Id string

const (
	RepoExists        Id = "repoExists"
	RepoCreateInitial Id = "repoCreateInitial"
	GitClone          Id = "gitClone"
	ShellEdit         Id = "shellEdit"
	ShellExec         Id = "shellExec"
	GitCommit         Id = "gitCommit"
)

type Step struct {
	Id          Id
	DisplayName string
}

var catalog = []Step{
	{Id: RepoExists, DisplayName: "Check repository"},
	{Id: RepoCreateInitial, DisplayName: "Create repository from template"},
	{Id: GitClone, DisplayName: "Clone repository"},
	{Id: ShellEdit, DisplayName: "Edit bootstrap script"},
	{Id: ShellExec, DisplayName: "Run bootstrap script"},
	{Id: GitCommit, DisplayName: "Commit and push"},
}

// All returns the pipeline steps in execution order. The returned slice is a
// copy and may be modified by the caller.
func All() []Step {
	out := make([]Step, len(catalog))
	copy(out, catalog)
	return out
}

// Len is the number of steps in a pipeline run.
func Len() int {
	return len(catalog)
}

func First() Step {
	return catalog[0]
}

func Last() Step {
	return catalog[len(catalog)-1]
}

// Index returns the pipeline position of id, or -1 if id is not a step.
func (id Id) Index() int {
	for i, s := range catalog {
		if s.Id == id {
			return i
		}
	}
	return -1
}

func (id Id) Valid() bool {
	return id.Index() >= 0
}

func (id Id) DisplayName() string {
	if i := id.Index(); i >= 0 {
		return catalog[i].DisplayName
	}
	return string(id)
}

func (id Id) String() string {
	return string(id)
}

// Names lists the step ids in order, for help text and error messages.
func Names() []string {
	names := make([]string, len(catalog))
	for i, s := range catalog {
		names[i] = string(s.Id)
	}
	return names
}

// Parse resolves a step identity from its wire name.
func Parse(s string) (Id, error) {
	id := Id(s)
	if !id.Valid() {
		return "", fmt.Errorf("invalid step %q, allowed values are: %s", s, strings.Join(Names(), ", "))
	}
	return id, nil
}
