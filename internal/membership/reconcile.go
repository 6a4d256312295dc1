// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

package membership

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/cenkalti/backoff/v5"

	"github.com/skburkard1/SharedSpace/internal/docstore"
	"github.com/skburkard1/SharedSpace/sharedspacedb"
)

// Report lists the repairs made by Reconcile.
type Report struct {
	// AddedToProfile are groups listing the user that were missing from the
	// user's profile.
	AddedToProfile []string

	// AddedToGroup are groups in the user's profile that did not list the
	// user as a member.
	AddedToGroup []string
}

// Reconcile repairs one-sided membership for the caller, which older
// clients could leave behind when one of the two membership writes failed.
// Profile entries for deleted groups are left alone.
func (m *Manager) Reconcile(ctx context.Context) (Report, error) {
	var report Report
	uid, err := m.sess.UID()
	if err != nil {
		return report, err
	}

	profile, err := m.profileGroups(ctx, uid)
	if err != nil {
		return report, fmt.Errorf("membership: loading profile groups: %w", err)
	}

	memberOf, err := m.store.Query(ctx, docstore.Query{
		Collection: sharedspacedb.GroupsCollection,
		Filters: []docstore.Filter{
			{Path: sharedspacedb.FieldMembers, Op: docstore.OpArrayContains, Value: uid},
		},
	})
	if err != nil {
		return report, fmt.Errorf("membership: querying groups: %w", err)
	}

	listed := map[string]bool{}
	for _, doc := range memberOf {
		listed[doc.ID] = true
		if slices.Contains(profile, doc.ID) {
			continue
		}
		if err := m.retry(ctx, func() error {
			return m.store.Merge(ctx, sharedspacedb.UserPath(uid), map[string]any{
				sharedspacedb.FieldGroups: docstore.ArrayUnion(doc.ID),
			})
		}); err != nil {
			return report, fmt.Errorf("membership: adding group %s to profile: %w", doc.ID, err)
		}
		report.AddedToProfile = append(report.AddedToProfile, doc.ID)
	}

	for _, id := range profile {
		if listed[id] {
			continue
		}
		err := m.retry(ctx, func() error {
			return m.store.Update(ctx, sharedspacedb.GroupPath(id), []docstore.Update{
				{Path: sharedspacedb.FieldMembers, Value: docstore.ArrayUnion(uid)},
			})
		})
		if errors.Is(err, docstore.ErrNotFound) {
			continue
		}
		if err != nil {
			return report, fmt.Errorf("membership: adding member to group %s: %w", id, err)
		}
		report.AddedToGroup = append(report.AddedToGroup, id)
	}

	if len(report.AddedToProfile) > 0 || len(report.AddedToGroup) > 0 {
		slog.InfoContext(ctx, "membership: reconciled", "uid", uid,
			"addedToProfile", report.AddedToProfile, "addedToGroup", report.AddedToGroup)
	}
	return report, nil
}

// retry runs an idempotent write until it succeeds. Not-found is permanent.
func (m *Manager) retry(ctx context.Context, write func() error) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := write()
		if errors.Is(err, docstore.ErrNotFound) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(m.opts.BackOff()), backoff.WithMaxTries(uint(m.opts.Retries)))
	return err
}
