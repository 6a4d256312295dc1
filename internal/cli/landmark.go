// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skburkard1/SharedSpace/internal/app"
	"github.com/skburkard1/SharedSpace/internal/landmarks"
)

func printLandmarks(p printer, m *landmarks.Map) {
	byCollection := m.ByCollection()
	if len(byCollection) == 0 {
		p.detail("No landmarks.")
	}
	for _, name := range m.Collections() {
		p.heading("%s", name)
		for _, l := range byCollection[name] {
			p.info("  %s  %s (%.5f, %.5f) added by %s", l.ID, l.Name, l.Latitude, l.Longitude, l.AddedByName)
			if l.Description != "" {
				p.detail("      %s", l.Description)
			}
		}
	}
}

func (e *env) landmarkCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "landmark",
		Short: "Places saved on the group map",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print the landmarks by collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withGroup(cmd, func(ctx context.Context, a *app.App, groupID string) error {
				if err := snapshot(ctx, a.Landmarks, groupID); err != nil {
					return err
				}
				printLandmarks(e.printer(cmd), a.Landmarks)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "watch",
		Short: "Print the landmarks whenever they change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withGroup(cmd, func(_ context.Context, a *app.App, groupID string) error {
				return e.watch(cmd, a, a.Landmarks, groupID,
					func(notify func()) func() { return a.Landmarks.Watch(func([]landmarks.Item) { notify() }) },
					func() { printLandmarks(e.printer(cmd), a.Landmarks) })
			})
		},
	})

	var l landmarks.NewLandmark
	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Save a place",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l.Name = strings.Join(args, " ")
			return e.withGroup(cmd, func(ctx context.Context, a *app.App, groupID string) error {
				id, err := a.Landmarks.Add(ctx, groupID, l)
				if err != nil {
					return err
				}
				e.printer(cmd).success("Saved %s (%s)", l.Name, id)
				return nil
			})
		},
	}
	add.Flags().Float64Var(&l.Latitude, "lat", 0, "Latitude")
	add.Flags().Float64Var(&l.Longitude, "lng", 0, "Longitude")
	add.Flags().StringVar(&l.Description, "description", "", "Description")
	add.Flags().StringVar(&l.Collection, "collection", "", "Collection (default General)")
	_ = add.MarkFlagRequired("lat")
	_ = add.MarkFlagRequired("lng")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "rm ID",
		Short: "Remove a landmark",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withGroup(cmd, func(ctx context.Context, a *app.App, groupID string) error {
				if err := a.Landmarks.Delete(ctx, groupID, args[0]); err != nil {
					return err
				}
				e.printer(cmd).success("Removed %s", args[0])
				return nil
			})
		},
	})
	return cmd
}
