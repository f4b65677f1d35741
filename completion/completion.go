// Package completion renders the message shown once a bootstrap run has
// created, populated and pushed the new plugin repository.
package completion

import (
	"bytes"
	"text/template"

	"github.com/fnndsc/pfbuild/models"
	"github.com/fnndsc/pfbuild/pipeline"
	"github.com/fnndsc/pfbuild/steps"
)

type Artifact struct {
	RepoName   string `json:"repo_name"`
	RepoURL    string `json:"repo_url"`
	ScriptName string `json:"scriptname"`
	// Document is asciidoc.
	Document string `json:"document"`
}

var tmpl = template.Must(template.New("completion").Parse(`
= Success

Congratulations! Your new ChRIS plugin called ` + "`{{.RepoName}}`" + ` has been successfully created and is ready for checkout and further development.

== Check out the repo:

First, ` + "`cd`" + ` to a directory on your local computer, typically one you might use for coding.

----
# For example...
cd ~/src
----

Now, check out the created repo:

----
gh repo clone {{.RepoURL}}
----

== Initialize and setup

Now, ` + "`cd`" + ` into the repo:

----
cd {{.RepoName}}
----

and run:

----
uv venv
----

followed by

----
source .venv/bin/activate
----

Install any requirements:

----
uv pip install -r requirements.txt
----

and prep your application:

----
uv pip install -e ./
----

This allows you to simply run the script directly and any code changes are immediately reflected in the application.

== Start coding!

You can immediately start coding on your main program ` + "`{{.ScriptName}}.py`" + `.
`))

// Notify returns the completion artifact for run, or false when the run did
// not end with a successful commit of a repository.
func Notify(run pipeline.Run) (Artifact, bool) {
	if run.State != pipeline.RunSucceeded {
		return Artifact{}, false
	}

	resp, ok := run.Responses[steps.Last().Id]
	if !ok || !resp.Status {
		return Artifact{}, false
	}
	commit, ok := resp.Detail.(*models.GitCommit)
	if !ok || commit.RepoURL == "" {
		return Artifact{}, false
	}

	a := Artifact{
		RepoName:   commit.RepoName,
		RepoURL:    commit.RepoURL,
		ScriptName: run.Payload.ScriptName,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, a); err != nil {
		return Artifact{}, false
	}
	a.Document = buf.String()
	return a, true
}
