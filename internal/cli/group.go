// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

package cli

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skburkard1/SharedSpace/internal/app"
	"github.com/skburkard1/SharedSpace/internal/membership"
)

func (e *env) groupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Create, join and inspect groups",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create NAME",
		Short: "Create a group with yourself as its only member",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(cmd, func(ctx context.Context, a *app.App) error {
				id, err := a.Membership.CreateGroup(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				e.printer(cmd).success("Created group %s. Share this ID so others can join.", id)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "join ID",
		Short: "Join an existing group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(cmd, func(ctx context.Context, a *app.App) error {
				id, err := a.Membership.JoinGroup(ctx, args[0])
				if errors.Is(err, membership.ErrGroupNotFound) {
					return e.printer(cmd).failure("group not found", "Check the group ID you were given.")
				}
				if err != nil {
					return err
				}
				e.printer(cmd).success("Joined group %s", id)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List your groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withApp(cmd, func(ctx context.Context, a *app.App) error {
				groups, err := a.Membership.ListUserGroups(ctx)
				if err != nil {
					return err
				}
				p := e.printer(cmd)
				if len(groups) == 0 {
					p.detail("No groups yet.")
				}
				current := a.Session.State().CurrentGroupID
				for _, g := range groups {
					marker := " "
					if g.ID == current {
						marker = "*"
					}
					p.info("%s %s  %s  (%d members)", marker, g.ID, g.Name, len(g.Members))
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "members",
		Short: "List the members of the current group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withGroup(cmd, func(ctx context.Context, a *app.App, groupID string) error {
				ms, err := a.Resolver.Resolve(ctx, groupID)
				if err != nil {
					return err
				}
				p := e.printer(cmd)
				for _, m := range ms {
					p.info("%s  %s", m.UID, m.Name)
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "use ID",
		Short: "Start future sessions in a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(cmd, func(ctx context.Context, a *app.App) error {
				err := a.Membership.UseGroup(ctx, args[0])
				if errors.Is(err, membership.ErrNotMember) {
					return e.printer(cmd).failure("not a member of "+args[0], "Join it first with\n  sharedspace group join "+args[0])
				}
				if err != nil {
					return err
				}
				e.printer(cmd).success("Now using group %s", args[0])
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reconcile",
		Short: "Repair one-sided membership records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withApp(cmd, func(ctx context.Context, a *app.App) error {
				report, err := a.Membership.Reconcile(ctx)
				if err != nil {
					return err
				}
				p := e.printer(cmd)
				for _, g := range report.AddedToProfile {
					p.success("Added %s to your profile", g)
				}
				for _, g := range report.AddedToGroup {
					p.success("Added you to the members of %s", g)
				}
				if len(report.AddedToProfile) == 0 && len(report.AddedToGroup) == 0 {
					p.detail("Nothing to repair.")
				}
				return nil
			})
		},
	})
	return cmd
}
