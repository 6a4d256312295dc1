// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

package cli

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/skburkard1/SharedSpace/internal/app"
	"github.com/skburkard1/SharedSpace/internal/members"
	"github.com/skburkard1/SharedSpace/internal/messaging"
)

// conversation returns the direct conversation with to, or the group
// conversation when to is empty.
func conversation(a *app.App, groupID, to string) (string, error) {
	if to != "" {
		return a.Messages.Direct(to)
	}
	return messaging.GroupConversationID(groupID), nil
}

func senderNames(ctx context.Context, p printer, a *app.App, groupID string) map[string]string {
	names := map[string]string{}
	ms, err := a.Resolver.Resolve(ctx, groupID)
	if err != nil {
		p.warning("could not resolve member names: %v", err)
		return names
	}
	for _, m := range ms {
		names[m.UID] = m.Name
	}
	return names
}

func printMessages(p printer, t *messaging.Thread, names map[string]string) {
	msgs := t.Messages()
	if len(msgs) == 0 {
		p.detail("No messages.")
	}
	for _, m := range msgs {
		name, ok := names[m.FromUID]
		if !ok {
			name = members.UnknownName
		}
		p.detail("%s", m.SentAt.Local().Format(time.DateTime))
		p.info("  %s: %s", name, m.MessageText)
	}
}

func (e *env) messageCommand() *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "message",
		Short: "Group and direct messages",
	}
	cmd.PersistentFlags().StringVar(&to, "to", "", "uid of a member for a direct conversation")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print the conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withGroup(cmd, func(ctx context.Context, a *app.App, groupID string) error {
				conv, err := conversation(a, groupID, to)
				if err != nil {
					return err
				}
				if err := snapshot(ctx, a.Messages, conv); err != nil {
					return err
				}
				p := e.printer(cmd)
				printMessages(p, a.Messages, senderNames(ctx, p, a, groupID))
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "watch",
		Short: "Print the conversation whenever a message arrives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withGroup(cmd, func(ctx context.Context, a *app.App, groupID string) error {
				conv, err := conversation(a, groupID, to)
				if err != nil {
					return err
				}
				names := senderNames(ctx, e.printer(cmd), a, groupID)
				return e.watch(cmd, a, a.Messages, conv,
					func(notify func()) func() { return a.Messages.Watch(func([]messaging.Message) { notify() }) },
					func() { printMessages(e.printer(cmd), a.Messages, names) })
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "send TEXT",
		Short: "Send a message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withGroup(cmd, func(ctx context.Context, a *app.App, groupID string) error {
				conv, err := conversation(a, groupID, to)
				if err != nil {
					return err
				}
				if _, err := a.Messages.Send(ctx, conv, strings.Join(args, " ")); err != nil {
					return err
				}
				e.printer(cmd).success("Sent")
				return nil
			})
		},
	})
	return cmd
}
