// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

// Package firestoredb implements docstore.Store on Cloud Firestore.
package firestoredb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/cenkalti/backoff/v5"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/skburkard1/SharedSpace/internal/docstore"
)

var _ docstore.Store = (*Store)(nil)

func New(client *firestore.Client) *Store {
	return &Store{
		client: client,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 30 * time.Second
			return b
		},
	}
}

type Store struct {
	client *firestore.Client

	// newBackOff paces re-subscription after a live query fails.
	newBackOff func() backoff.BackOff
}

func (s *Store) doc(p string) (*firestore.DocumentRef, error) {
	ref := s.client.Doc(strings.Trim(p, "/"))
	if ref == nil {
		return nil, fmt.Errorf("firestoredb: %q is not a document path", p)
	}
	return ref, nil
}

func (s *Store) collection(p string) (*firestore.CollectionRef, error) {
	ref := s.client.Collection(strings.Trim(p, "/"))
	if ref == nil {
		return nil, fmt.Errorf("firestoredb: %q is not a collection path", p)
	}
	return ref, nil
}

func (s *Store) Get(ctx context.Context, p string) (docstore.Doc, error) {
	ref, err := s.doc(p)
	if err != nil {
		return docstore.Doc{}, err
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		return docstore.Doc{}, fmt.Errorf("firestoredb: get %s: %w", p, translate(err))
	}
	return toDoc(snap), nil
}

func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Doc, error) {
	query, err := s.query(q)
	if err != nil {
		return nil, err
	}
	iter := query.Documents(ctx)
	defer iter.Stop()

	var docs []docstore.Doc
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestoredb: querying %s: %w", q.Collection, translate(err))
		}
		docs = append(docs, toDoc(snap))
	}
	return docs, nil
}

func (s *Store) query(q docstore.Query) (firestore.Query, error) {
	coll, err := s.collection(q.Collection)
	if err != nil {
		return firestore.Query{}, err
	}
	query := coll.Query
	for _, f := range q.Filters {
		value := f.Value
		if f.Path == docstore.DocumentID {
			value, err = documentRefs(coll, f.Value)
			if err != nil {
				return firestore.Query{}, err
			}
		}
		query = query.WhereEntity(firestore.PropertyFilter{
			Path:     f.Path,
			Operator: f.Op,
			Value:    value,
		})
	}
	if q.OrderBy != "" {
		query = query.OrderBy(q.OrderBy, firestore.Asc)
	}
	return query, nil
}

// documentRefs converts document IDs to the references Firestore requires
// when filtering on the document ID.
func documentRefs(coll *firestore.CollectionRef, v any) (any, error) {
	switch v := v.(type) {
	case string:
		return coll.Doc(v), nil
	case []string:
		refs := make([]*firestore.DocumentRef, len(v))
		for i, id := range v {
			refs[i] = coll.Doc(id)
		}
		return refs, nil
	}
	return nil, fmt.Errorf("firestoredb: unsupported document ID filter value %T", v)
}

func (s *Store) NewID(collection string) string {
	coll, err := s.collection(collection)
	if err != nil {
		return ""
	}
	return coll.NewDoc().ID
}

func (s *Store) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	coll, err := s.collection(collection)
	if err != nil {
		return "", err
	}
	ref := coll.NewDoc()
	if _, err := ref.Set(ctx, toFirestore(data)); err != nil {
		return "", fmt.Errorf("firestoredb: adding to %s: %w", collection, translate(err))
	}
	return ref.ID, nil
}

func (s *Store) Set(ctx context.Context, p string, data map[string]any) error {
	ref, err := s.doc(p)
	if err != nil {
		return err
	}
	if _, err := ref.Set(ctx, toFirestore(data)); err != nil {
		return fmt.Errorf("firestoredb: set %s: %w", p, translate(err))
	}
	return nil
}

func (s *Store) Merge(ctx context.Context, p string, data map[string]any) error {
	ref, err := s.doc(p)
	if err != nil {
		return err
	}
	if _, err := ref.Set(ctx, toFirestore(data), firestore.MergeAll); err != nil {
		return fmt.Errorf("firestoredb: merge %s: %w", p, translate(err))
	}
	return nil
}

func (s *Store) Update(ctx context.Context, p string, updates []docstore.Update) error {
	ref, err := s.doc(p)
	if err != nil {
		return err
	}
	if _, err := ref.Update(ctx, toUpdates(updates)); err != nil {
		return fmt.Errorf("firestoredb: update %s: %w", p, translate(err))
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, p string) error {
	ref, err := s.doc(p)
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil {
		return fmt.Errorf("firestoredb: delete %s: %w", p, translate(err))
	}
	return nil
}

// translate maps Firestore status codes onto docstore errors.
func translate(err error) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%w: %w", docstore.ErrNotFound, err)
	}
	return err
}

func toDoc(snap *firestore.DocumentSnapshot) docstore.Doc {
	p := snap.Ref.Path
	if _, rel, ok := strings.Cut(p, "/documents/"); ok {
		p = rel
	}
	return docstore.Doc{ID: snap.Ref.ID, Path: p, Data: snap.Data()}
}

func toFirestore(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = toFirestoreValue(v)
	}
	return out
}

func toFirestoreValue(v any) any {
	switch v := v.(type) {
	case docstore.ArrayUnionValue:
		return firestore.ArrayUnion(v.Elems...)
	case map[string]any:
		return toFirestore(v)
	}
	return v
}

func toUpdates(updates []docstore.Update) []firestore.Update {
	out := make([]firestore.Update, len(updates))
	for i, u := range updates {
		out[i] = firestore.Update{Path: u.Path, Value: toFirestoreValue(u.Value)}
	}
	return out
}

type registration struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (r *registration) Stop() {
	r.cancel()
	<-r.done
}

// Listen streams query snapshots. When the stream fails the error is
// delivered and the query is re-established with exponential backoff until
// the registration is stopped.
func (s *Store) Listen(ctx context.Context, q docstore.Query, fn docstore.Listener) (docstore.Registration, error) {
	query, err := s.query(q)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	reg := &registration{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(reg.done)
		b := s.newBackOff()
		for {
			err := stream(ctx, query, fn, b)
			if ctx.Err() != nil {
				return
			}
			fn(nil, fmt.Errorf("firestoredb: listening to %s: %w", q.Collection, err))

			wait := b.NextBackOff()
			slog.DebugContext(ctx, "firestoredb: resubscribing", "collection", q.Collection, "wait", wait)
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
		}
	}()
	return reg, nil
}

func stream(ctx context.Context, query firestore.Query, fn docstore.Listener, b backoff.BackOff) error {
	iter := query.Snapshots(ctx)
	defer iter.Stop()

	for {
		snap, err := iter.Next()
		if err != nil {
			return err
		}
		snaps, err := snap.Documents.GetAll()
		if err != nil {
			return err
		}
		b.Reset()
		docs := make([]docstore.Doc, len(snaps))
		for i, d := range snaps {
			docs[i] = toDoc(d)
		}
		fn(docs, nil)
	}
}

func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error) error {
	err := s.client.RunTransaction(ctx, func(ctx context.Context, t *firestore.Transaction) error {
		return fn(ctx, &tx{s: s, t: t})
	})
	if err != nil {
		return fmt.Errorf("firestoredb: transaction: %w", err)
	}
	return nil
}

type tx struct {
	s *Store
	t *firestore.Transaction
}

func (t *tx) Get(p string) (docstore.Doc, error) {
	ref, err := t.s.doc(p)
	if err != nil {
		return docstore.Doc{}, err
	}
	snap, err := t.t.Get(ref)
	if err != nil {
		return docstore.Doc{}, fmt.Errorf("firestoredb: get %s: %w", p, translate(err))
	}
	return toDoc(snap), nil
}

func (t *tx) Set(p string, data map[string]any) error {
	ref, err := t.s.doc(p)
	if err != nil {
		return err
	}
	return t.t.Set(ref, toFirestore(data))
}

func (t *tx) Merge(p string, data map[string]any) error {
	ref, err := t.s.doc(p)
	if err != nil {
		return err
	}
	return t.t.Set(ref, toFirestore(data), firestore.MergeAll)
}

func (t *tx) Update(p string, updates []docstore.Update) error {
	ref, err := t.s.doc(p)
	if err != nil {
		return err
	}
	return t.t.Update(ref, toUpdates(updates))
}
