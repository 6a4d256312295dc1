// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

package cli

import (
	"context"
	"sort"

	"github.com/spf13/cobra"

	"github.com/skburkard1/SharedSpace/internal/app"
	"github.com/skburkard1/SharedSpace/internal/grocery"
	"github.com/skburkard1/SharedSpace/sharedspacedb"
)

func printGrocery(p printer, l *grocery.List) {
	sections := l.Sections()
	names := make([]string, 0, len(sections))
	for name := range sections {
		names = append(names, name)
	}
	// Known sections first.
	sort.Slice(names, func(i, j int) bool {
		rank := func(s string) int {
			switch s {
			case sharedspacedb.SectionToBuy:
				return 0
			case sharedspacedb.SectionInventory:
				return 1
			}
			return 2
		}
		if ri, rj := rank(names[i]), rank(names[j]); ri != rj {
			return ri < rj
		}
		return names[i] < names[j]
	})
	if len(names) == 0 {
		p.detail("The list is empty.")
	}
	for _, name := range names {
		p.heading("%s", name)
		for _, item := range sections[name] {
			p.info("  %s  %s x%d", item.ID, item.Name, item.Quantity)
		}
	}
}

func (e *env) groceryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grocery",
		Short: "Shared grocery list and inventory",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print the grocery list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withGroup(cmd, func(ctx context.Context, a *app.App, groupID string) error {
				if err := snapshot(ctx, a.Grocery, groupID); err != nil {
					return err
				}
				printGrocery(e.printer(cmd), a.Grocery)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "watch",
		Short: "Print the grocery list whenever it changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withGroup(cmd, func(_ context.Context, a *app.App, groupID string) error {
				return e.watch(cmd, a, a.Grocery, groupID,
					func(notify func()) func() { return a.Grocery.Watch(func([]grocery.Item) { notify() }) },
					func() { printGrocery(e.printer(cmd), a.Grocery) })
			})
		},
	})

	var (
		quantity int64
		section  string
	)
	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Add an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withGroup(cmd, func(ctx context.Context, a *app.App, groupID string) error {
				id, err := a.Grocery.Add(ctx, groupID, args[0], quantity, section)
				if err != nil {
					return err
				}
				e.printer(cmd).success("Added %s (%s)", args[0], id)
				return nil
			})
		},
	}
	add.Flags().Int64VarP(&quantity, "quantity", "q", 1, "Quantity")
	add.Flags().StringVarP(&section, "section", "s", sharedspacedb.SectionToBuy, "Section, toBuy or inventory")
	cmd.AddCommand(add)

	set := &cobra.Command{
		Use:   "set ID",
		Short: "Change an item's name, quantity or section",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var u grocery.ItemUpdate
			flags := cmd.Flags()
			if flags.Changed("name") {
				name, _ := flags.GetString("name")
				u.Name = &name
			}
			if flags.Changed("quantity") {
				q, _ := flags.GetInt64("quantity")
				u.Quantity = &q
			}
			if flags.Changed("section") {
				s, _ := flags.GetString("section")
				u.Section = &s
			}
			return e.withGroup(cmd, func(ctx context.Context, a *app.App, groupID string) error {
				if err := a.Grocery.Update(ctx, groupID, args[0], u); err != nil {
					return err
				}
				e.printer(cmd).success("Updated %s", args[0])
				return nil
			})
		},
	}
	set.Flags().String("name", "", "New name")
	set.Flags().Int64P("quantity", "q", 0, "New quantity")
	set.Flags().StringP("section", "s", "", "New section")
	cmd.AddCommand(set)

	cmd.AddCommand(&cobra.Command{
		Use:   "rm ID",
		Short: "Remove an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withGroup(cmd, func(ctx context.Context, a *app.App, groupID string) error {
				if err := a.Grocery.Delete(ctx, groupID, args[0]); err != nil {
					return err
				}
				e.printer(cmd).success("Removed %s", args[0])
				return nil
			})
		},
	})
	return cmd
}
