// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

// Package app wires the session, membership and synced features of a
// SharedSpace client together.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/cenkalti/backoff/v5"
	"github.com/juju/clock"
	"github.com/juju/pubsub/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/skburkard1/SharedSpace/internal/bills"
	"github.com/skburkard1/SharedSpace/internal/chores"
	"github.com/skburkard1/SharedSpace/internal/docstore"
	"github.com/skburkard1/SharedSpace/internal/grocery"
	"github.com/skburkard1/SharedSpace/internal/identity"
	"github.com/skburkard1/SharedSpace/internal/landmarks"
	"github.com/skburkard1/SharedSpace/internal/livesync"
	"github.com/skburkard1/SharedSpace/internal/members"
	"github.com/skburkard1/SharedSpace/internal/membership"
	"github.com/skburkard1/SharedSpace/internal/messaging"
	"github.com/skburkard1/SharedSpace/internal/session"
)

// ErrNoGroup is returned when an operation needs a current group and the
// session has none.
var ErrNoGroup = errors.New("app: no group selected")

// Deps are the external services an App runs on.
type Deps struct {
	Store    docstore.Store
	Identity identity.Provider

	// Clock defaults to the wall clock.
	Clock clock.Clock

	// BatchSize is the member resolution batch size. Defaults to 30.
	BatchSize int

	// Retries and BackOff configure membership repair writes.
	Retries int
	BackOff func() backoff.BackOff
}

type App struct {
	Store      docstore.Store
	Identity   identity.Provider
	Session    *session.Manager
	Membership *membership.Manager
	Resolver   *members.Resolver

	Grocery   *grocery.List
	Chores    *chores.List
	Landmarks *landmarks.Map
	Bills     *bills.Ledger
	Messages  *messaging.Thread

	Metrics  *livesync.Collector
	Registry *prometheus.Registry

	hub *pubsub.SimpleHub
}

func New(d Deps) *App {
	if d.Clock == nil {
		d.Clock = clock.WallClock
	}
	if d.BatchSize <= 0 {
		d.BatchSize = members.MaxBatchSize
	}

	hub := pubsub.NewSimpleHub(nil)
	metrics := livesync.NewCollector()
	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics, collectors.NewGoCollector())

	sess := session.New(d.Identity, d.Store, hub)
	resolver := members.NewResolver(d.Store, d.BatchSize)
	opts := livesync.Options{Clock: d.Clock, Hub: hub, Metrics: metrics}

	return &App{
		Store:    d.Store,
		Identity: d.Identity,
		Session:  sess,
		Membership: membership.New(d.Store, sess, membership.Options{
			Clock:   d.Clock,
			Hub:     hub,
			Retries: d.Retries,
			BackOff: d.BackOff,
		}),
		Resolver:  resolver,
		Grocery:   grocery.New(d.Store, sess, opts),
		Chores:    chores.New(d.Store, sess, resolver, opts),
		Landmarks: landmarks.New(d.Store, sess, opts),
		Bills:     bills.New(d.Store, sess, opts),
		Messages:  messaging.New(d.Store, sess, opts),
		Metrics:   metrics,
		Registry:  reg,
		hub:       hub,
	}
}

// Start follows the identity provider's session.
func (a *App) Start(ctx context.Context) error {
	return a.Session.Start(ctx)
}

// Close detaches every live query and stops following the session.
func (a *App) Close() {
	a.StopListening()
	a.Session.Close()
}

// CurrentGroup returns the session's current group.
func (a *App) CurrentGroup() (string, error) {
	st := a.Session.State()
	if !st.SignedIn() {
		return "", session.ErrUnauthenticated
	}
	if st.CurrentGroupID == "" {
		return "", ErrNoGroup
	}
	return st.CurrentGroupID, nil
}

// Listen attaches every group feature and the group conversation to groupID
// and waits for their first snapshots.
func (a *App) Listen(ctx context.Context, groupID string) error {
	listeners := []interface {
		Listen(context.Context, string) error
		WaitReady(context.Context) error
	}{a.Grocery, a.Chores, a.Landmarks, a.Bills}
	for _, l := range listeners {
		if err := l.Listen(ctx, groupID); err != nil {
			return err
		}
	}
	if err := a.Messages.Listen(ctx, messaging.GroupConversationID(groupID)); err != nil {
		return err
	}
	listeners = append(listeners, a.Messages)

	g, ctx := errgroup.WithContext(ctx)
	for _, l := range listeners {
		g.Go(func() error { return l.WaitReady(ctx) })
	}
	return g.Wait()
}

// StopListening detaches every feature.
func (a *App) StopListening() {
	a.Grocery.StopListening()
	a.Chores.StopListening()
	a.Landmarks.StopListening()
	a.Bills.StopListening()
	a.Messages.StopListening()
}

// SaveName stores the profile name and rewrites the copies of the old name
// denormalized onto chores and landmarks of every group in the profile.
func (a *App) SaveName(ctx context.Context, name string) error {
	if err := a.Session.SaveName(ctx, name); err != nil {
		return err
	}
	st := a.Session.State()
	a.Resolver.Invalidate(st.UID)

	groups, err := a.Membership.GroupIDs(ctx)
	if err != nil {
		return err
	}
	if st.CurrentGroupID != "" && !slices.Contains(groups, st.CurrentGroupID) {
		groups = append(groups, st.CurrentGroupID)
	}

	name = st.Name
	if name == "" {
		name = members.UnknownName
	}
	for _, g := range groups {
		chored, err := a.Chores.RefreshAssigneeNames(ctx, g, st.UID, name)
		if err != nil {
			return fmt.Errorf("app: refreshing chore assignees in %s: %w", g, err)
		}
		marked, err := a.Landmarks.RefreshAdderNames(ctx, g, st.UID, name)
		if err != nil {
			return fmt.Errorf("app: refreshing landmark adders in %s: %w", g, err)
		}
		slog.InfoContext(ctx, "app: refreshed name", "uid", st.UID, "group", g, "chores", chored, "landmarks", marked)
	}
	return nil
}

// GroupMembers returns the uids of groupID's members.
func (a *App) GroupMembers(ctx context.Context, groupID string) ([]string, error) {
	g, err := a.Membership.Group(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return g.Members, nil
}
