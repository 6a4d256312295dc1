// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

package main

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"os"

	"github.com/skburkard1/SharedSpace/internal/app"
	"github.com/skburkard1/SharedSpace/internal/cli"
	"github.com/skburkard1/SharedSpace/internal/config"
	"github.com/skburkard1/SharedSpace/internal/logging"
)

//go:embed conf/*.yaml
var confFiles embed.FS

func main() {
	os.Exit(run())
}

func run() int {
	confDir, _ := fs.Sub(confFiles, "conf")
	conf, err := config.Load(confDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	logging.Setup(&conf.Logging)

	root := cli.NewRootCommand(cli.Options{
		Conf: conf,
		Open: func(ctx context.Context) (*app.App, func(), error) {
			return app.Open(ctx, conf)
		},
	})
	if err := root.ExecuteContext(context.Background()); err != nil {
		if !cli.Reported(err) {
			fmt.Fprintln(os.Stderr, err)
		}
		return 1
	}
	return 0
}
