// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

// Package logging configures structured logging. Local runs get colored tint
// output and JSON runs get the Cloud Logging format.
package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/curioswitch/go-curiostack/config"
	curiologging "github.com/curioswitch/go-curiostack/logging"
	"github.com/lmittmann/tint"
)

// Setup installs the default logger for conf.
func Setup(conf *config.Logging) {
	if conf.JSON {
		curiologging.Initialize(conf)
		return
	}
	slog.SetDefault(New(os.Stderr, conf))
}

// New returns a tint logger writing to w at conf.Level. Unknown or empty
// levels log at info.
func New(w io.Writer, conf *config.Logging) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(conf.Level)); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		AddSource:  true,
	}))
}
