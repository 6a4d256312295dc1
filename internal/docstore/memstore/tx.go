// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

package memstore

import (
	"context"
	"strings"

	"github.com/skburkard1/SharedSpace/internal/docstore"
)

type tx struct {
	s      *Store
	writes []write
}

func (t *tx) Get(p string) (docstore.Doc, error) {
	if len(t.writes) > 0 {
		return docstore.Doc{}, errReadAfterWrite
	}
	if _, _, err := docstore.SplitPath(p); err != nil {
		return docstore.Doc{}, err
	}
	if err := t.s.checkFault(OpGet, strings.Trim(p, "/")); err != nil {
		return docstore.Doc{}, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.s.getLocked(p)
}

func (t *tx) Set(p string, data map[string]any) error {
	t.writes = append(t.writes, write{op: OpSet, path: p, data: data})
	return nil
}

func (t *tx) Merge(p string, data map[string]any) error {
	t.writes = append(t.writes, write{op: OpMerge, path: p, data: data})
	return nil
}

func (t *tx) Update(p string, updates []docstore.Update) error {
	t.writes = append(t.writes, write{op: OpUpdate, path: p, updates: updates})
	return nil
}

// RunTransaction runs fn with other transactions excluded and applies its
// buffered writes atomically once fn returns nil. Plain writes outside a
// transaction are not excluded.
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	t := &tx{s: s}
	if err := fn(ctx, t); err != nil {
		return err
	}
	if len(t.writes) == 0 {
		return nil
	}
	return s.apply(ctx, t.writes)
}
