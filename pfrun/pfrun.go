package pfrun

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/fnndsc/pfbuild/completion"
	"github.com/fnndsc/pfbuild/executor"
	"github.com/fnndsc/pfbuild/log"
	"github.com/fnndsc/pfbuild/models"
	"github.com/fnndsc/pfbuild/pipeline"
	"github.com/fnndsc/pfbuild/steps"
	"github.com/fnndsc/pfbuild/synth"
)

func Command() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "bootstrap a new plugin repository by running every step",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "plugin-title",
				Usage:    "name of the plugin, also its repository name",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "scriptname",
				Usage: "name of the plugin's entrypoint script",
			},
			&cli.StringFlag{
				Name:  "description",
				Usage: "short description of the plugin",
			},
			&cli.StringFlag{
				Name:  "organization",
				Usage: "organization owning the repository",
			},
			&cli.StringFlag{
				Name:  "email",
				Usage: "author email",
			},
			&cli.StringFlag{
				Name:    "github-token",
				Usage:   "token used by the bootstrap service",
				Sources: cli.EnvVars("GITHUB_TOKEN"),
			},
			&cli.StringFlag{
				Name:  "service-url",
				Usage: "root URL of the bootstrap service",
				Value: "http://localhost:8000",
			},
			&cli.BoolFlag{
				Name:  "simulate",
				Usage: "synthesize responses instead of calling the service",
			},
			&cli.DurationFlag{
				Name:  "latency",
				Usage: "simulated delay of each step",
			},
			&cli.DurationFlag{
				Name:  "step-timeout",
				Usage: "deadline for each step",
				Value: 2 * time.Minute,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "print every step response as JSON instead of the completion notes",
			},
		},
		Action: Run,
	}
}

func Run(ctx context.Context, cmd *cli.Command) error {
	l := log.FromContext(ctx)

	p := models.Payload{
		PluginTitle:  cmd.String("plugin-title"),
		ScriptName:   cmd.String("scriptname"),
		Description:  cmd.String("description"),
		Organization: cmd.String("organization"),
		Email:        cmd.String("email"),
		GithubToken:  cmd.String("github-token"),
		ServiceURL:   cmd.String("service-url"),
	}

	var t executor.Transport
	if cmd.Bool("simulate") {
		t = executor.NewSynthTransport(synth.New(), cmd.Duration("latency"))
	} else {
		t = executor.NewHTTPTransport(nil)
	}

	o := pipeline.New(
		executor.New(t,
			executor.WithLogger(log.SubLogger(l, "executor")),
			executor.WithTimeout(cmd.Duration("step-timeout")),
		),
		pipeline.WithLogger(log.SubLogger(l, "pipeline")),
	)

	seq, err := o.Start(ctx, p)
	if err != nil {
		return err
	}
	for tr := range seq {
		switch tr.State {
		case models.StepActive:
			l.Info("running", "step", tr.Step.DisplayName())
		case models.StepCompleted:
			l.Info("done", "step", tr.Step.DisplayName(), "message", tr.Response.Message)
		case models.StepFailed:
			l.Error("failed", "step", tr.Step.DisplayName(), "err", tr.FailureMessage())
		}
	}

	run := o.CurrentState()
	if run.State != pipeline.RunSucceeded {
		return fmt.Errorf("run %s aborted: %s", run.ID, run.Error)
	}

	w := cmd.Root().Writer
	if cmd.Bool("json") {
		out := make([]models.Response, 0, steps.Len())
		for _, st := range steps.All() {
			out = append(out, run.Responses[st.Id])
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	artifact, ok := completion.Notify(run)
	if !ok {
		return fmt.Errorf("run %s succeeded without a committed repository", run.ID)
	}
	_, err = fmt.Fprint(w, artifact.Document)
	return err
}
