// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skburkard1/SharedSpace/internal/app"
	"github.com/skburkard1/SharedSpace/internal/bills"
)

func (e *env) billCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bill",
		Short: "Shared expenses",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print the bills",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withGroup(cmd, func(ctx context.Context, a *app.App, groupID string) error {
				if err := snapshot(ctx, a.Bills, groupID); err != nil {
					return err
				}
				p := e.printer(cmd)
				bs := a.Bills.Bills()
				if len(bs) == 0 {
					p.detail("No bills.")
				}
				for _, b := range bs {
					split := "everyone"
					if len(b.SplitAmong) > 0 {
						split = strings.Join(b.SplitAmong, ", ")
					}
					p.info("%s  %s %.2f paid by %s, split among %s", b.ID, b.Name, b.Amount, b.PaidByName, split)
				}
				return nil
			})
		},
	})

	var nb bills.NewBill
	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Record a bill you paid",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nb.Name = strings.Join(args, " ")
			return e.withGroup(cmd, func(ctx context.Context, a *app.App, groupID string) error {
				id, err := a.Bills.Add(ctx, groupID, nb)
				if err != nil {
					return err
				}
				e.printer(cmd).success("Added %s %.2f (%s)", nb.Name, nb.Amount, id)
				return nil
			})
		},
	}
	add.Flags().Float64Var(&nb.Amount, "amount", 0, "Total paid")
	add.Flags().StringSliceVar(&nb.SplitAmong, "split", nil, "uids sharing the bill (default all members)")
	_ = add.MarkFlagRequired("amount")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "rm ID",
		Short: "Remove a bill",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withGroup(cmd, func(ctx context.Context, a *app.App, groupID string) error {
				if err := a.Bills.Delete(ctx, groupID, args[0]); err != nil {
					return err
				}
				e.printer(cmd).success("Removed %s", args[0])
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "balances",
		Short: "Show who owes whom",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withGroup(cmd, func(ctx context.Context, a *app.App, groupID string) error {
				ms, err := a.Resolver.Resolve(ctx, groupID)
				if err != nil {
					return err
				}
				if err := snapshot(ctx, a.Bills, groupID); err != nil {
					return err
				}
				uids := make([]string, len(ms))
				names := map[string]string{}
				for i, m := range ms {
					uids[i] = m.UID
					names[m.UID] = m.Name
				}
				name := func(uid string) string {
					if n, ok := names[uid]; ok {
						return n
					}
					return uid
				}

				balances, settlements := a.Bills.Balances(uids)
				p := e.printer(cmd)
				p.heading("Balances")
				for _, b := range balances {
					p.info("  %-20s paid %8.2f  owes %8.2f  net %+8.2f", name(b.UID), b.Paid, b.Owed, b.Net)
				}
				p.heading("Settle up")
				if len(settlements) == 0 {
					p.detail("  All square.")
				}
				for _, s := range settlements {
					p.info("  %s pays %s %.2f", name(s.From), name(s.To), s.Amount)
				}
				return nil
			})
		},
	})
	return cmd
}
