// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

package cli

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skburkard1/SharedSpace/internal/app"
	"github.com/skburkard1/SharedSpace/internal/identity"
)

func (e *env) signupCommand() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account with --email and --password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := e.printer(cmd)
			if e.email == "" || e.password == "" {
				return p.failure("missing credentials", "Pass --email and --password.")
			}
			ctx := cmd.Context()
			a, release, err := e.opts.Open(ctx)
			if err != nil {
				return err
			}
			defer release()
			if err := a.Start(ctx); err != nil {
				return err
			}
			if err := a.Session.CreateAccount(ctx, e.email, e.password); err != nil {
				if errors.Is(err, identity.ErrEmailInUse) {
					return p.failure("email already in use", "Sign in with the existing account instead.")
				}
				return err
			}
			if name != "" {
				if err := a.SaveName(ctx, name); err != nil {
					return err
				}
			}
			p.success("Created account %s (%s)", e.email, a.Session.State().UID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	return cmd
}

func (e *env) profileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show the signed-in profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withApp(cmd, func(_ context.Context, a *app.App) error {
				st := a.Session.State()
				p := e.printer(cmd)
				p.info("uid:   %s", st.UID)
				p.info("email: %s", st.Email)
				p.info("name:  %s", st.Name)
				p.info("group: %s", st.CurrentGroupID)
				return nil
			})
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set-name NAME",
		Short: "Change the display name shown to group members",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.SaveName(ctx, strings.Join(args, " ")); err != nil {
					return err
				}
				e.printer(cmd).success("Name set to %s", a.Session.State().Name)
				return nil
			})
		},
	})
	return cmd
}
