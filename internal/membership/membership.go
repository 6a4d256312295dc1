// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

// Package membership creates and joins groups and keeps the two-sided
// membership record (group members and profile group list) consistent.
package membership

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/cenkalti/backoff/v5"
	"github.com/juju/clock"
	"github.com/juju/pubsub/v2"
	"golang.org/x/sync/errgroup"

	"github.com/skburkard1/SharedSpace/internal/docstore"
	"github.com/skburkard1/SharedSpace/internal/observable"
	"github.com/skburkard1/SharedSpace/sharedspacedb"
)

var (
	// ErrGroupNotFound is returned when joining or reading a group that does
	// not exist.
	ErrGroupNotFound = errors.New("membership: group does not exist")

	ErrEmptyName    = errors.New("membership: group name is empty")
	ErrEmptyGroupID = errors.New("membership: group id is empty")

	// ErrNotMember is returned when selecting a group missing from the
	// caller's profile.
	ErrNotMember = errors.New("membership: not a member of the group")
)

// Session is the part of the session the manager needs.
type Session interface {
	UID() (string, error)
	SelectGroup(groupID string)
}

// Summary is a group as listed for the signed-in user.
type Summary struct {
	ID      string
	Name    string
	Members []string
}

type Options struct {
	// Clock stamps createdAt. Defaults to the wall clock.
	Clock clock.Clock

	// Hub delivers group list changes. Defaults to a private hub.
	Hub *pubsub.SimpleHub

	// Retries is the number of attempts per repair write in Reconcile.
	Retries int

	// BackOff paces repair retries. Defaults to exponential backoff.
	BackOff func() backoff.BackOff

	// Concurrency bounds parallel group reads. Defaults to 8.
	Concurrency int
}

func New(store docstore.Store, sess Session, opts Options) *Manager {
	if opts.Clock == nil {
		opts.Clock = clock.WallClock
	}
	if opts.Retries <= 0 {
		opts.Retries = 5
	}
	if opts.BackOff == nil {
		opts.BackOff = func() backoff.BackOff { return backoff.NewExponentialBackOff() }
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	return &Manager{
		store:  store,
		sess:   sess,
		opts:   opts,
		groups: observable.NewValue[[]Summary](opts.Hub, "membership.groups", nil),
	}
}

type Manager struct {
	store  docstore.Store
	sess   Session
	opts   Options
	groups *observable.Value[[]Summary]
}

// CreateGroup creates a group with the caller as its only member and adds it
// to the caller's profile. Both writes commit together.
func (m *Manager) CreateGroup(ctx context.Context, name string) (string, error) {
	uid, err := m.sess.UID()
	if err != nil {
		return "", err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}

	groupID := m.store.NewID(sharedspacedb.GroupsCollection)
	err = m.store.RunTransaction(ctx, func(_ context.Context, tx docstore.Tx) error {
		if err := tx.Set(sharedspacedb.GroupPath(groupID), map[string]any{
			sharedspacedb.FieldName:      name,
			sharedspacedb.FieldCreatedBy: uid,
			sharedspacedb.FieldMembers:   []string{uid},
			sharedspacedb.FieldCreatedAt: m.opts.Clock.Now(),
		}); err != nil {
			return err
		}
		return tx.Merge(sharedspacedb.UserPath(uid), map[string]any{
			sharedspacedb.FieldGroups: docstore.ArrayUnion(groupID),
		})
	})
	if err != nil {
		slog.ErrorContext(ctx, "membership: creating group", "uid", uid, "error", err)
		return "", fmt.Errorf("membership: creating group: %w", err)
	}

	slog.InfoContext(ctx, "membership: created group", "uid", uid, "group", groupID)
	m.sess.SelectGroup(groupID)
	return groupID, nil
}

// JoinGroup adds the caller to an existing group. A missing group results in
// ErrGroupNotFound without any writes.
func (m *Manager) JoinGroup(ctx context.Context, groupID string) (string, error) {
	uid, err := m.sess.UID()
	if err != nil {
		return "", err
	}
	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		return "", ErrEmptyGroupID
	}

	err = m.store.RunTransaction(ctx, func(_ context.Context, tx docstore.Tx) error {
		if _, err := tx.Get(sharedspacedb.GroupPath(groupID)); err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return ErrGroupNotFound
			}
			return err
		}
		if err := tx.Update(sharedspacedb.GroupPath(groupID), []docstore.Update{
			{Path: sharedspacedb.FieldMembers, Value: docstore.ArrayUnion(uid)},
		}); err != nil {
			return err
		}
		return tx.Merge(sharedspacedb.UserPath(uid), map[string]any{
			sharedspacedb.FieldGroups: docstore.ArrayUnion(groupID),
		})
	})
	if errors.Is(err, ErrGroupNotFound) {
		return "", ErrGroupNotFound
	}
	if err != nil {
		slog.ErrorContext(ctx, "membership: joining group", "uid", uid, "group", groupID, "error", err)
		return "", fmt.Errorf("membership: joining group: %w", err)
	}

	slog.InfoContext(ctx, "membership: joined group", "uid", uid, "group", groupID)
	m.sess.SelectGroup(groupID)
	return groupID, nil
}

// UseGroup makes groupID the current group and moves it to the front of the
// caller's profile list, so later sessions start in it.
func (m *Manager) UseGroup(ctx context.Context, groupID string) error {
	uid, err := m.sess.UID()
	if err != nil {
		return err
	}
	if groupID == "" {
		return ErrEmptyGroupID
	}

	err = m.store.RunTransaction(ctx, func(_ context.Context, tx docstore.Tx) error {
		doc, err := tx.Get(sharedspacedb.UserPath(uid))
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrNotMember
		}
		if err != nil {
			return err
		}
		var user sharedspacedb.User
		if err := doc.DataTo(&user); err != nil {
			return err
		}
		if !slices.Contains(user.Groups, groupID) {
			return ErrNotMember
		}
		if user.Groups[0] == groupID {
			return nil
		}
		rest := slices.DeleteFunc(slices.Clone(user.Groups), func(g string) bool { return g == groupID })
		return tx.Update(sharedspacedb.UserPath(uid), []docstore.Update{
			{Path: sharedspacedb.FieldGroups, Value: append([]string{groupID}, rest...)},
		})
	})
	if errors.Is(err, ErrNotMember) {
		return ErrNotMember
	}
	if err != nil {
		slog.ErrorContext(ctx, "membership: selecting group", "uid", uid, "group", groupID, "error", err)
		return fmt.Errorf("membership: selecting group: %w", err)
	}
	m.sess.SelectGroup(groupID)
	return nil
}

// SelectGroup makes groupID current for this session after checking that
// the group exists and lists the caller as a member. Unlike UseGroup it does
// not touch the profile.
func (m *Manager) SelectGroup(ctx context.Context, groupID string) error {
	uid, err := m.sess.UID()
	if err != nil {
		return err
	}
	if groupID == "" {
		return ErrEmptyGroupID
	}
	g, err := m.Group(ctx, groupID)
	if err != nil {
		return err
	}
	if !g.HasMember(uid) {
		return ErrNotMember
	}
	m.sess.SelectGroup(groupID)
	return nil
}

// Group returns a single group.
func (m *Manager) Group(ctx context.Context, groupID string) (sharedspacedb.Group, error) {
	doc, err := m.store.Get(ctx, sharedspacedb.GroupPath(groupID))
	if errors.Is(err, docstore.ErrNotFound) {
		return sharedspacedb.Group{}, ErrGroupNotFound
	}
	if err != nil {
		return sharedspacedb.Group{}, fmt.Errorf("membership: fetching group %s: %w", groupID, err)
	}
	var g sharedspacedb.Group
	if err := doc.DataTo(&g); err != nil {
		return sharedspacedb.Group{}, fmt.Errorf("membership: decoding group %s: %w", groupID, err)
	}
	g.ID = doc.ID
	return g, nil
}

// GroupIDs returns the group IDs listed in the caller's profile, most
// recently used first.
func (m *Manager) GroupIDs(ctx context.Context) ([]string, error) {
	uid, err := m.sess.UID()
	if err != nil {
		return nil, err
	}
	ids, err := m.profileGroups(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("membership: loading profile groups: %w", err)
	}
	return ids, nil
}

// ListUserGroups resolves the caller's profile group list to summaries in
// list order. Groups that no longer exist or fail to load are skipped, so the
// result may be partial. The result is also published to Watch.
func (m *Manager) ListUserGroups(ctx context.Context) ([]Summary, error) {
	uid, err := m.sess.UID()
	if err != nil {
		return nil, err
	}

	ids, err := m.profileGroups(ctx, uid)
	if err != nil {
		slog.ErrorContext(ctx, "membership: loading profile groups", "uid", uid, "error", err)
		m.groups.Set(nil)
		return nil, nil
	}

	found := make([]*Summary, len(ids))
	var eg errgroup.Group
	eg.SetLimit(m.opts.Concurrency)
	for i, id := range ids {
		eg.Go(func() error {
			g, err := m.Group(ctx, id)
			switch {
			case errors.Is(err, ErrGroupNotFound):
			case err != nil:
				slog.WarnContext(ctx, "membership: skipping group", "group", id, "error", err)
			default:
				found[i] = &Summary{ID: g.ID, Name: g.DisplayName(), Members: g.Members}
			}
			return nil
		})
	}
	_ = eg.Wait()

	var out []Summary
	for _, s := range found {
		if s != nil {
			out = append(out, *s)
		}
	}
	m.groups.Set(out)
	return out, nil
}

// Groups returns the last listed groups.
func (m *Manager) Groups() []Summary {
	return m.groups.Get()
}

// Watch calls fn with every newly listed group list.
func (m *Manager) Watch(fn func([]Summary)) func() {
	return m.groups.Watch(fn)
}

func (m *Manager) profileGroups(ctx context.Context, uid string) ([]string, error) {
	doc, err := m.store.Get(ctx, sharedspacedb.UserPath(uid))
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var user sharedspacedb.User
	if err := doc.DataTo(&user); err != nil {
		return nil, err
	}
	return user.Groups, nil
}
