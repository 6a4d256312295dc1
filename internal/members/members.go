// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

// Package members resolves a group's member uids to display names.
package members

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/skburkard1/SharedSpace/internal/docstore"
	"github.com/skburkard1/SharedSpace/sharedspacedb"
)

// UnknownName is shown for members without a profile.
const UnknownName = "Unknown"

// MaxBatchSize is the most values Firestore accepts in an "in" filter.
const MaxBatchSize = 30

// ErrGroupNotFound is returned when resolving members of a missing group.
var ErrGroupNotFound = errors.New("members: group does not exist")

// Member is a group member with their display name.
type Member struct {
	UID  string
	Name string
}

func NewResolver(store docstore.Store, batchSize int) *Resolver {
	if batchSize <= 0 || batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}
	return &Resolver{
		store:     store,
		batchSize: batchSize,
		names:     map[string]string{},
	}
}

// Resolver looks up member names and remembers the last resolved name of
// each uid.
type Resolver struct {
	store     docstore.Store
	batchSize int

	mu    sync.RWMutex
	names map[string]string
}

// Resolve returns the members of groupID in group order. Members without a
// profile, or with an empty name, get UnknownName.
func (r *Resolver) Resolve(ctx context.Context, groupID string) ([]Member, error) {
	doc, err := r.store.Get(ctx, sharedspacedb.GroupPath(groupID))
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrGroupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("members: fetching group %s: %w", groupID, err)
	}
	var group sharedspacedb.Group
	if err := doc.DataTo(&group); err != nil {
		return nil, fmt.Errorf("members: decoding group %s: %w", groupID, err)
	}
	return r.ResolveUIDs(ctx, group.Members)
}

// ResolveUIDs resolves uids to members, querying profiles in batches.
func (r *Resolver) ResolveUIDs(ctx context.Context, uids []string) ([]Member, error) {
	if len(uids) == 0 {
		return nil, nil
	}

	var mu sync.Mutex
	names := map[string]string{}

	eg, ctx := errgroup.WithContext(ctx)
	for start := 0; start < len(uids); start += r.batchSize {
		batch := uids[start:min(start+r.batchSize, len(uids))]
		eg.Go(func() error {
			docs, err := r.store.Query(ctx, docstore.Query{
				Collection: sharedspacedb.UsersCollection,
				Filters: []docstore.Filter{
					{Path: docstore.DocumentID, Op: docstore.OpIn, Value: batch},
				},
			})
			if err != nil {
				return fmt.Errorf("members: querying profiles: %w", err)
			}
			mu.Lock()
			defer mu.Unlock()
			for _, doc := range docs {
				var user sharedspacedb.User
				if err := doc.DataTo(&user); err != nil {
					slog.WarnContext(ctx, "members: decoding profile", "uid", doc.ID, "error", err)
					continue
				}
				names[doc.ID] = user.Name
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	out := make([]Member, len(uids))
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, uid := range uids {
		name := names[uid]
		if name == "" {
			name = UnknownName
		}
		out[i] = Member{UID: uid, Name: name}
		r.names[uid] = name
	}
	return out, nil
}

// Name returns the last resolved name of uid.
func (r *Resolver) Name(uid string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.names[uid]
	return name, ok
}

// Invalidate forgets the cached name of uid, e.g. after a profile rename.
func (r *Resolver) Invalidate(uid string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.names, uid)
}
