package pfcall

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/fnndsc/pfbuild/executor"
	"github.com/fnndsc/pfbuild/log"
	"github.com/fnndsc/pfbuild/models"
	"github.com/fnndsc/pfbuild/synth"
)

const defaultURL = "http://localhost:8000/api/vi/bootstrap/?step=repoExists"

func Command() *cli.Command {
	return &cli.Command{
		Name:  "call",
		Usage: "send a single request to the bootstrap API and print the response",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "simulate",
				Usage: "answer locally instead of calling the API",
			},
			&cli.StringFlag{
				Name:    "method",
				Aliases: []string{"X"},
				Usage:   "HTTP method to use",
				Value:   http.MethodPost,
			},
			&cli.StringSliceFlag{
				Name:    "header",
				Aliases: []string{"H"},
				Usage:   "HTTP header as 'Key: Value', may be repeated",
			},
			&cli.StringFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "JSON payload as string",
			},
			&cli.StringFlag{
				Name:    "url",
				Aliases: []string{"u"},
				Usage:   "full URL of the API including the 'step' query parameter",
				Value:   defaultURL,
			},
		},
		Action: Run,
	}
}

func Run(ctx context.Context, cmd *cli.Command) error {
	l := log.FromContext(ctx)

	req, err := buildRequest(cmd.String("method"), cmd.String("url"), cmd.StringSlice("header"), cmd.String("data"))
	if err != nil {
		return err
	}

	var t executor.Transport
	if cmd.Bool("simulate") {
		t = executor.NewSynthTransport(synth.New(), 0)
	} else {
		t = executor.NewHTTPTransport(nil)
	}
	e := executor.New(t, executor.WithLogger(log.SubLogger(l, "executor")))

	resp, err := e.Do(ctx, req)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.Root().Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func buildRequest(method, rawURL string, headers []string, data string) (*executor.Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, models.ValidationError(fmt.Sprintf("invalid url: %v", err))
	}

	h := http.Header{"Content-Type": []string{"application/json"}}
	for _, raw := range headers {
		k, v, ok := strings.Cut(raw, ":")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, models.ValidationError(fmt.Sprintf("invalid header %q, expected 'Key: Value'", raw))
		}
		h.Set(k, strings.TrimSpace(v))
	}

	body := []byte("{}")
	if data != "" {
		if !json.Valid([]byte(data)) {
			return nil, models.ValidationError("data is not valid JSON")
		}
		body = []byte(data)
	}

	return &executor.Request{
		Method: strings.ToUpper(method),
		URL:    u,
		Header: h,
		Body:   body,
	}, nil
}
