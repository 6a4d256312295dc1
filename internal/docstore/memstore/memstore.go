// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

// Package memstore is an in-process docstore.Store with live queries. It
// backs tests and local runs without a Firestore project.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/skburkard1/SharedSpace/internal/docstore"
)

// Op names an operation for fault injection.
type Op string

const (
	OpGet    Op = "get"
	OpQuery  Op = "query"
	OpSet    Op = "set"
	OpMerge  Op = "merge"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

var errReadAfterWrite = errors.New("memstore: transaction read after write")

var _ docstore.Store = (*Store)(nil)

// Store holds documents in memory.
type Store struct {
	mu        sync.Mutex
	docs      map[string]map[string]any
	listeners map[*listener]struct{}
	writes    int
	fault     func(op Op, path string) error

	// txMu serializes transactions against each other.
	txMu sync.Mutex
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		docs:      map[string]map[string]any{},
		listeners: map[*listener]struct{}{},
	}
}

// SetFault installs fn to be consulted before every operation. A non-nil
// return fails the operation with that error. Pass nil to clear.
func (s *Store) SetFault(fn func(op Op, path string) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = fn
}

// Writes returns the number of document writes applied so far.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Listeners returns the number of live queries currently registered.
func (s *Store) Listeners() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

// FailListeners delivers err to every live query registered on collection.
func (s *Store) FailListeners(collection string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for l := range s.listeners {
		if l.q.Collection != collection {
			continue
		}
		select {
		case l.errs <- err:
		default:
		}
	}
}

func (s *Store) checkFault(op Op, p string) error {
	s.mu.Lock()
	fault := s.fault
	s.mu.Unlock()
	if fault == nil {
		return nil
	}
	return fault(op, p)
}

func (s *Store) Get(ctx context.Context, p string) (docstore.Doc, error) {
	if err := ctx.Err(); err != nil {
		return docstore.Doc{}, err
	}
	if _, _, err := docstore.SplitPath(p); err != nil {
		return docstore.Doc{}, err
	}
	if err := s.checkFault(OpGet, p); err != nil {
		return docstore.Doc{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(p)
}

func (s *Store) getLocked(p string) (docstore.Doc, error) {
	p = strings.Trim(p, "/")
	data, ok := s.docs[p]
	if !ok {
		return docstore.Doc{}, fmt.Errorf("memstore: get %s: %w", p, docstore.ErrNotFound)
	}
	return docstore.Doc{ID: path.Base(p), Path: p, Data: copyMap(data)}, nil
}

func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validCollection(q.Collection); err != nil {
		return nil, err
	}
	if err := s.checkFault(OpQuery, q.Collection); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryLocked(q)
}

func (s *Store) queryLocked(q docstore.Query) ([]docstore.Doc, error) {
	coll := strings.Trim(q.Collection, "/")
	var out []docstore.Doc
	for p, data := range s.docs {
		if path.Dir(p) != coll {
			continue
		}
		id := path.Base(p)
		ok, err := matches(id, data, q.Filters)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if q.OrderBy != "" {
			if _, has := getPath(data, q.OrderBy); !has {
				continue
			}
		}
		out = append(out, docstore.Doc{ID: id, Path: p, Data: copyMap(data)})
	}
	sort.Slice(out, func(i, j int) bool {
		if q.OrderBy != "" {
			a, _ := getPath(out[i].Data, q.OrderBy)
			b, _ := getPath(out[j].Data, q.OrderBy)
			if c := compare(a, b); c != 0 {
				return c < 0
			}
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) NewID(string) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (s *Store) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	if err := validCollection(collection); err != nil {
		return "", err
	}
	id := s.NewID(collection)
	if err := s.Set(ctx, path.Join(collection, id), data); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Set(ctx context.Context, p string, data map[string]any) error {
	return s.apply(ctx, []write{{op: OpSet, path: p, data: data}})
}

func (s *Store) Merge(ctx context.Context, p string, data map[string]any) error {
	return s.apply(ctx, []write{{op: OpMerge, path: p, data: data}})
}

func (s *Store) Update(ctx context.Context, p string, updates []docstore.Update) error {
	return s.apply(ctx, []write{{op: OpUpdate, path: p, updates: updates}})
}

func (s *Store) Delete(ctx context.Context, p string) error {
	return s.apply(ctx, []write{{op: OpDelete, path: p}})
}

type write struct {
	op      Op
	path    string
	data    map[string]any
	updates []docstore.Update
}

// apply runs writes atomically: either all of them are visible or none.
func (s *Store) apply(ctx context.Context, writes []write) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for i, w := range writes {
		if _, _, err := docstore.SplitPath(w.path); err != nil {
			return err
		}
		writes[i].path = strings.Trim(w.path, "/")
		if err := s.checkFault(w.op, writes[i].path); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A nil entry marks a deleted document.
	staged := map[string]map[string]any{}
	current := func(p string) (map[string]any, bool) {
		if d, ok := staged[p]; ok {
			return d, d != nil
		}
		d, ok := s.docs[p]
		return d, ok
	}

	for _, w := range writes {
		cur, exists := current(w.path)
		switch w.op {
		case OpSet:
			next := map[string]any{}
			mergeInto(next, w.data)
			staged[w.path] = next
		case OpMerge:
			next := map[string]any{}
			if exists {
				next = copyMap(cur)
			}
			mergeInto(next, w.data)
			staged[w.path] = next
		case OpUpdate:
			if !exists {
				return fmt.Errorf("memstore: update %s: %w", w.path, docstore.ErrNotFound)
			}
			next := copyMap(cur)
			for _, u := range w.updates {
				old, _ := getPath(next, u.Path)
				setPath(next, u.Path, resolve(old, u.Value))
			}
			staged[w.path] = next
		case OpDelete:
			staged[w.path] = nil
		}
	}

	touched := map[string]struct{}{}
	for p, d := range staged {
		if d == nil {
			delete(s.docs, p)
		} else {
			s.docs[p] = d
		}
		touched[path.Dir(p)] = struct{}{}
	}
	s.writes += len(writes)

	for l := range s.listeners {
		if _, ok := touched[strings.Trim(l.q.Collection, "/")]; ok {
			l.signal()
		}
	}
	return nil
}

type listener struct {
	q      docstore.Query
	fn     docstore.Listener
	notify chan struct{}
	errs   chan error
	cancel context.CancelFunc
	done   chan struct{}
}

func (l *listener) signal() {
	select {
	case l.notify <- struct{}{}:
	default:
	}
}

func (l *listener) Stop() {
	l.cancel()
	<-l.done
}

// Listen delivers snapshots from a dedicated goroutine. Bursts of writes may
// be coalesced into a single snapshot of the latest state.
func (s *Store) Listen(ctx context.Context, q docstore.Query, fn docstore.Listener) (docstore.Registration, error) {
	if err := validCollection(q.Collection); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	l := &listener{
		q:      q,
		fn:     fn,
		notify: make(chan struct{}, 1),
		errs:   make(chan error, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	s.listeners[l] = struct{}{}
	s.mu.Unlock()

	l.signal()
	go s.deliver(ctx, l)
	return l, nil
}

func (s *Store) deliver(ctx context.Context, l *listener) {
	defer close(l.done)
	defer func() {
		s.mu.Lock()
		delete(s.listeners, l)
		s.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-l.errs:
			l.fn(nil, err)
		case <-l.notify:
			if err := s.checkFault(OpQuery, l.q.Collection); err != nil {
				l.fn(nil, err)
				continue
			}
			s.mu.Lock()
			docs, err := s.queryLocked(l.q)
			s.mu.Unlock()
			if ctx.Err() != nil {
				return
			}
			l.fn(docs, err)
		}
	}
}

func validCollection(p string) error {
	p = strings.Trim(p, "/")
	if p == "" || len(strings.Split(p, "/"))%2 != 1 {
		return fmt.Errorf("memstore: %q is not a collection path", p)
	}
	return nil
}
