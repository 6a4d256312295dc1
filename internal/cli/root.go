// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

// Package cli is the sharedspace command line client.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/skburkard1/SharedSpace/internal/app"
	"github.com/skburkard1/SharedSpace/internal/config"
	"github.com/skburkard1/SharedSpace/internal/membership"
)

// Opener returns a ready App and the func that releases it.
type Opener func(ctx context.Context) (*app.App, func(), error)

type Options struct {
	Conf *config.Config
	Open Opener
}

type env struct {
	opts Options

	email       string
	password    string
	group       string
	metricsAddr string
}

// NewRootCommand returns the sharedspace command tree.
func NewRootCommand(opts Options) *cobra.Command {
	e := &env{opts: opts}

	root := &cobra.Command{
		Use:   "sharedspace",
		Short: "SharedSpace - shared groceries, chores, places, bills and chat for a group",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&e.email, "email", opts.Conf.Identity.Email, "Account email")
	flags.StringVar(&e.password, "password", opts.Conf.Identity.Password, "Account password")
	flags.StringVarP(&e.group, "group", "g", "", "Group to work in (defaults to the profile's first group)")
	flags.StringVar(&e.metricsAddr, "metrics-addr", opts.Conf.Metrics.Addr, "Serve /metrics on this address while watching")

	root.AddCommand(
		e.signupCommand(),
		e.profileCommand(),
		e.groupCommand(),
		e.groceryCommand(),
		e.choreCommand(),
		e.landmarkCommand(),
		e.messageCommand(),
		e.billCommand(),
	)
	return root
}

func (e *env) printer(cmd *cobra.Command) printer {
	return printer{out: cmd.OutOrStdout(), err: cmd.ErrOrStderr()}
}

// withApp opens an App, signs in with the configured credentials when there is
// no session yet, applies --group and runs fn.
func (e *env) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, release, err := e.opts.Open(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := a.Start(ctx); err != nil {
		return err
	}
	if !a.Session.State().SignedIn() {
		if e.email == "" || e.password == "" {
			return e.printer(cmd).failure("not signed in", "Pass --email and --password, or set IDENTITY_EMAIL and IDENTITY_PASSWORD.")
		}
		if err := a.Session.SignIn(ctx, e.email, e.password); err != nil {
			return err
		}
	}
	if e.group != "" {
		err := a.Membership.SelectGroup(ctx, e.group)
		if errors.Is(err, membership.ErrGroupNotFound) || errors.Is(err, membership.ErrNotMember) {
			return e.printer(cmd).failure("cannot use group "+e.group, "List your groups with\n  sharedspace group list")
		}
		if err != nil {
			return err
		}
	}
	return fn(ctx, a)
}

// withGroup is withApp for commands that work in the current group.
func (e *env) withGroup(cmd *cobra.Command, fn func(ctx context.Context, a *app.App, groupID string) error) error {
	return e.withApp(cmd, func(ctx context.Context, a *app.App) error {
		groupID, err := a.CurrentGroup()
		if errors.Is(err, app.ErrNoGroup) {
			return e.printer(cmd).failure("no group selected", "Create or join one with\n  sharedspace group create NAME\n  sharedspace group join ID")
		}
		if err != nil {
			return err
		}
		return fn(ctx, a, groupID)
	})
}

type listener interface {
	Listen(ctx context.Context, scope string) error
	WaitReady(ctx context.Context) error
	StopListening()
}

// snapshot attaches l to scope until its first snapshot arrived and detaches
// it again. The received items stay readable.
func snapshot(ctx context.Context, l listener, scope string) error {
	if err := l.Listen(ctx, scope); err != nil {
		return err
	}
	defer l.StopListening()
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return l.WaitReady(ctx)
}

// watch attaches l to scope and calls render whenever the feature registered
// by subscribe changes, until interrupted.
func (e *env) watch(cmd *cobra.Command, a *app.App, l listener, scope string, subscribe func(notify func()) func(), render func()) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if e.metricsAddr != "" {
		shutdown, err := serveMetrics(ctx, a, e.metricsAddr)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	changed := make(chan struct{}, 1)
	unsubscribe := subscribe(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	if err := l.Listen(ctx, scope); err != nil {
		return err
	}
	defer l.StopListening()

	p := e.printer(cmd)
	p.detail("Watching %s, press Ctrl-C to stop.", scope)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
			p.heading("--- %s", time.Now().Format(time.Kitchen))
			render()
		}
	}
}

func serveMetrics(ctx context.Context, a *app.App, addr string) (func(), error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("cli: listening for metrics: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.ErrorContext(ctx, "cli: serving metrics", "error", err)
		}
	}()
	slog.InfoContext(ctx, "cli: serving metrics", "addr", lis.Addr().String())
	return func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}, nil
}
