// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skburkard1/SharedSpace/internal/app"
	"github.com/skburkard1/SharedSpace/internal/chores"
)

func printChores(p printer, l *chores.List) {
	items := l.Items()
	if len(items) == 0 {
		p.detail("No chores.")
	}
	for _, c := range items {
		done := "[ ]"
		if c.IsDone {
			done = "[x]"
		}
		p.info("%s %s  %s (%s)  %s, %s", done, c.ID, c.Name, chores.Icon(c.Type), c.AssignedToName, c.Repeat)
	}
}

func findChore(l *chores.List, id string) (chores.Item, error) {
	for _, c := range l.Items() {
		if c.ID == id {
			return c, nil
		}
	}
	return chores.Item{}, fmt.Errorf("cli: no chore %s", id)
}

func (e *env) choreCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chore",
		Short: "Shared chores",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print the chores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withGroup(cmd, func(ctx context.Context, a *app.App, groupID string) error {
				if err := snapshot(ctx, a.Chores, groupID); err != nil {
					return err
				}
				printChores(e.printer(cmd), a.Chores)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "watch",
		Short: "Print the chores whenever they change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withGroup(cmd, func(_ context.Context, a *app.App, groupID string) error {
				return e.watch(cmd, a, a.Chores, groupID,
					func(notify func()) func() { return a.Chores.Watch(func([]chores.Item) { notify() }) },
					func() { printChores(e.printer(cmd), a.Chores) })
			})
		},
	})

	var c chores.NewChore
	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Add a chore",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c.Name = strings.Join(args, " ")
			return e.withGroup(cmd, func(ctx context.Context, a *app.App, groupID string) error {
				id, err := a.Chores.Add(ctx, groupID, c)
				if err != nil {
					return err
				}
				e.printer(cmd).success("Added %s (%s)", c.Name, id)
				return nil
			})
		},
	}
	add.Flags().StringVar(&c.AssigneeUID, "assign", "", "uid of the member doing the chore")
	add.Flags().StringVar(&c.Repeat, "repeat", "", "One of "+strings.Join(chores.RepeatOptions, ", "))
	add.Flags().StringVar(&c.Type, "type", "", "One of "+strings.Join(chores.TypeOptions, ", "))
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "toggle ID",
		Short: "Mark a chore done or not done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withGroup(cmd, func(ctx context.Context, a *app.App, groupID string) error {
				if err := snapshot(ctx, a.Chores, groupID); err != nil {
					return err
				}
				c, err := findChore(a.Chores, args[0])
				if err != nil {
					return err
				}
				if err := a.Chores.Toggle(ctx, groupID, c.ID, c.IsDone); err != nil {
					return err
				}
				state := "done"
				if c.IsDone {
					state = "not done"
				}
				e.printer(cmd).success("%s is %s", c.Name, state)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rm ID",
		Short: "Remove a chore",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withGroup(cmd, func(ctx context.Context, a *app.App, groupID string) error {
				if err := a.Chores.Delete(ctx, groupID, args[0]); err != nil {
					return err
				}
				e.printer(cmd).success("Removed %s", args[0])
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "refresh",
		Short: "Rewrite your name on chores assigned to you",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withGroup(cmd, func(ctx context.Context, a *app.App, groupID string) error {
				st := a.Session.State()
				n, err := a.Chores.RefreshAssigneeNames(ctx, groupID, st.UID, st.Name)
				if err != nil {
					return err
				}
				e.printer(cmd).success("Updated %d chores", n)
				return nil
			})
		},
	})
	return cmd
}
