// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

// Package livesync mirrors a remote collection into observable local state
// through a live query, and writes changes back to it.
//
// A Synchronizer is Idle until Listen attaches it to a scope (usually a group
// ID). Listen on an attached Synchronizer detaches the previous query first,
// and StopListening returns it to Idle. Once either returns, no callback
// from an older query can change the published items.
package livesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/juju/pubsub/v2"

	"github.com/skburkard1/SharedSpace/internal/docstore"
	"github.com/skburkard1/SharedSpace/internal/observable"
)

// ErrEmptyScope is returned when listening or writing without a scope.
var ErrEmptyScope = errors.New("livesync: scope is empty")

// Decoder converts a document into an item. Documents that fail to decode
// are skipped.
type Decoder[T any] func(doc docstore.Doc) (T, error)

type Config[T any] struct {
	// Feature names the synchronizer in logs and metrics.
	Feature string

	Store docstore.Store

	// Collection returns the collection path for a scope.
	Collection func(scope string) string

	// OrderBy is the timestamp field snapshots are sorted by. It is stamped
	// on every add and update.
	OrderBy string

	Decode Decoder[T]

	// Clock stamps writes. Defaults to the wall clock.
	Clock clock.Clock

	// Hub delivers item changes to watchers. Defaults to a private hub.
	Hub *pubsub.SimpleHub

	// Metrics may be nil.
	Metrics *Collector
}

// Options are the shared dependencies of feature synchronizers.
type Options struct {
	Clock   clock.Clock
	Hub     *pubsub.SimpleHub
	Metrics *Collector
}

// NewWith returns a Synchronizer for cfg using the dependencies in opts.
func NewWith[T any](opts Options, cfg Config[T]) *Synchronizer[T] {
	cfg.Clock = opts.Clock
	cfg.Hub = opts.Hub
	cfg.Metrics = opts.Metrics
	return New(cfg)
}

type Synchronizer[T any] struct {
	cfg   Config[T]
	items *observable.Value[[]T]

	mu    sync.Mutex
	gen   uint64
	scope string
	reg   docstore.Registration
	ready chan struct{}

	stampMu   sync.Mutex
	lastStamp time.Time
}

func New[T any](cfg Config[T]) *Synchronizer[T] {
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	return &Synchronizer[T]{
		cfg:   cfg,
		items: observable.NewValue[[]T](cfg.Hub, "livesync."+cfg.Feature, nil),
		ready: make(chan struct{}),
	}
}

// Listen attaches a live query for scope, replacing any previous one. The
// published items are cleared until the first snapshot arrives.
func (s *Synchronizer[T]) Listen(ctx context.Context, scope string) error {
	if scope == "" {
		return ErrEmptyScope
	}

	s.mu.Lock()
	old := s.detachLocked()
	s.gen++
	gen := s.gen
	s.scope = scope
	s.ready = make(chan struct{})
	s.items.Set(nil)
	s.mu.Unlock()
	s.stop(old)

	reg, err := s.cfg.Store.Listen(ctx, docstore.Query{
		Collection: s.cfg.Collection(scope),
		OrderBy:    s.cfg.OrderBy,
	}, func(docs []docstore.Doc, err error) {
		s.apply(ctx, gen, docs, err)
	})
	if err != nil {
		s.mu.Lock()
		if s.gen == gen {
			s.scope = ""
		}
		s.mu.Unlock()
		return fmt.Errorf("livesync: listening to %s: %w", s.cfg.Feature, err)
	}

	s.mu.Lock()
	if s.gen != gen {
		// Superseded by a concurrent Listen or StopListening.
		s.mu.Unlock()
		reg.Stop()
		return nil
	}
	s.reg = reg
	s.mu.Unlock()
	s.cfg.Metrics.attached(s.cfg.Feature, 1)

	slog.DebugContext(ctx, "livesync: listening", "feature", s.cfg.Feature, "scope", scope)
	return nil
}

// StopListening detaches the live query. Published items are kept.
func (s *Synchronizer[T]) StopListening() {
	s.mu.Lock()
	old := s.detachLocked()
	s.gen++
	s.mu.Unlock()
	s.stop(old)
}

func (s *Synchronizer[T]) detachLocked() docstore.Registration {
	old := s.reg
	s.reg = nil
	s.scope = ""
	return old
}

// stop runs outside s.mu so a callback waiting on the lock can finish.
func (s *Synchronizer[T]) stop(reg docstore.Registration) {
	if reg == nil {
		return
	}
	reg.Stop()
	s.cfg.Metrics.attached(s.cfg.Feature, -1)
}

func (s *Synchronizer[T]) apply(ctx context.Context, gen uint64, docs []docstore.Doc, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}

	if err != nil {
		s.cfg.Metrics.listenerError(s.cfg.Feature)
		slog.WarnContext(ctx, "livesync: listener error", "feature", s.cfg.Feature, "scope", s.scope, "error", err)
		return
	}

	items := make([]T, 0, len(docs))
	for _, doc := range docs {
		item, err := s.cfg.Decode(doc)
		if err != nil {
			s.cfg.Metrics.decodeError(s.cfg.Feature)
			slog.WarnContext(ctx, "livesync: skipping document", "feature", s.cfg.Feature, "path", doc.Path, "error", err)
			continue
		}
		items = append(items, item)
	}
	s.items.Set(items)
	s.cfg.Metrics.snapshot(s.cfg.Feature, len(items))

	select {
	case <-s.ready:
	default:
		close(s.ready)
	}
}

// Items returns the last published items. The slice must not be modified.
func (s *Synchronizer[T]) Items() []T {
	return s.items.Get()
}

// Watch calls fn with every newly published item list.
func (s *Synchronizer[T]) Watch(fn func([]T)) func() {
	return s.items.Watch(fn)
}

// Scope returns the attached scope, or "" when idle.
func (s *Synchronizer[T]) Scope() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scope
}

// WaitReady blocks until the current query delivered its first snapshot.
func (s *Synchronizer[T]) WaitReady(ctx context.Context) error {
	s.mu.Lock()
	ready := s.ready
	s.mu.Unlock()
	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stamp returns a strictly increasing write timestamp at the store's
// microsecond precision.
func (s *Synchronizer[T]) stamp() time.Time {
	s.stampMu.Lock()
	defer s.stampMu.Unlock()
	now := s.cfg.Clock.Now().UTC().Truncate(time.Microsecond)
	if !now.After(s.lastStamp) {
		now = s.lastStamp.Add(time.Microsecond)
	}
	s.lastStamp = now
	return now
}

// Add creates a document in scope with a fresh ID.
func (s *Synchronizer[T]) Add(ctx context.Context, scope string, data map[string]any) (string, error) {
	if scope == "" {
		return "", ErrEmptyScope
	}
	fields := make(map[string]any, len(data)+1)
	for k, v := range data {
		fields[k] = v
	}
	if s.cfg.OrderBy != "" {
		fields[s.cfg.OrderBy] = s.stamp()
	}

	id, err := s.cfg.Store.Add(ctx, s.cfg.Collection(scope), fields)
	s.cfg.Metrics.mutation(s.cfg.Feature, "add", err)
	if err != nil {
		slog.ErrorContext(ctx, "livesync: adding document", "feature", s.cfg.Feature, "scope", scope, "error", err)
		return "", fmt.Errorf("livesync: adding %s: %w", s.cfg.Feature, err)
	}
	return id, nil
}

// Update writes only the given fields of an existing document.
func (s *Synchronizer[T]) Update(ctx context.Context, scope, id string, fields map[string]any) error {
	if scope == "" {
		return ErrEmptyScope
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	updates := make([]docstore.Update, 0, len(fields)+1)
	for _, k := range keys {
		updates = append(updates, docstore.Update{Path: k, Value: fields[k]})
	}
	if s.cfg.OrderBy != "" {
		updates = append(updates, docstore.Update{Path: s.cfg.OrderBy, Value: s.stamp()})
	}

	err := s.cfg.Store.Update(ctx, s.docPath(scope, id), updates)
	s.cfg.Metrics.mutation(s.cfg.Feature, "update", err)
	if err != nil {
		slog.ErrorContext(ctx, "livesync: updating document", "feature", s.cfg.Feature, "scope", scope, "id", id, "error", err)
		return fmt.Errorf("livesync: updating %s %s: %w", s.cfg.Feature, id, err)
	}
	return nil
}

func (s *Synchronizer[T]) Delete(ctx context.Context, scope, id string) error {
	if scope == "" {
		return ErrEmptyScope
	}
	err := s.cfg.Store.Delete(ctx, s.docPath(scope, id))
	s.cfg.Metrics.mutation(s.cfg.Feature, "delete", err)
	if err != nil {
		slog.ErrorContext(ctx, "livesync: deleting document", "feature", s.cfg.Feature, "scope", scope, "id", id, "error", err)
		return fmt.Errorf("livesync: deleting %s %s: %w", s.cfg.Feature, id, err)
	}
	return nil
}

func (s *Synchronizer[T]) docPath(scope, id string) string {
	return path.Join(s.cfg.Collection(scope), id)
}
