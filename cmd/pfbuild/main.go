package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/fnndsc/pfbuild/log"
	"github.com/fnndsc/pfbuild/pfcall"
	"github.com/fnndsc/pfbuild/pfrun"
	"github.com/fnndsc/pfbuild/server"
)

func main() {
	cmd := &cli.Command{
		Name:  "pfbuild",
		Usage: "bootstrap ChRIS plugin repositories",
		Commands: []*cli.Command{
			server.Command(),
			pfcall.Command(),
			pfrun.Command(),
		},
	}

	ctx := context.Background()
	logger := log.New("pfbuild")
	ctx = log.IntoContext(ctx, logger.With("command", cmd.Name))

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
