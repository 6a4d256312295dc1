// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

package grocery

import (
	"context"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skburkard1/SharedSpace/internal/docstore/memstore"
	"github.com/skburkard1/SharedSpace/internal/livesync"
	"github.com/skburkard1/SharedSpace/internal/session"
	"github.com/skburkard1/SharedSpace/sharedspacedb"
)

type fakeSession struct{ uid string }

func (f fakeSession) UID() (string, error) {
	if f.uid == "" {
		return "", session.ErrUnauthenticated
	}
	return f.uid, nil
}

func newList(t *testing.T, uid string) (*List, *memstore.Store, *testclock.Clock) {
	t.Helper()
	store := memstore.New()
	clk := testclock.NewClock(time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC))
	l := New(store, fakeSession{uid: uid}, livesync.Options{Clock: clk})
	t.Cleanup(l.StopListening)
	return l, store, clk
}

func listen(t *testing.T, l *List, groupID string) {
	t.Helper()
	require.NoError(t, l.Listen(context.Background(), groupID))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, l.WaitReady(ctx))
}

func names(items []Item) []string {
	out := []string{}
	for _, i := range items {
		out = append(out, i.Name)
	}
	return out
}

func TestAddAndSections(t *testing.T) {
	ctx := context.Background()
	l, store, clk := newList(t, "a")
	listen(t, l, "g1")

	_, err := l.Add(ctx, "g1", "milk", 2, "")
	require.NoError(t, err)
	clk.Advance(time.Second)
	_, err = l.Add(ctx, "g1", "rice", 1, sharedspacedb.SectionInventory)
	require.NoError(t, err)
	clk.Advance(time.Second)
	// Written by some other client with a section this one does not know.
	require.NoError(t, store.Set(ctx, "groups/g1/grocery/x", map[string]any{
		"name": "candles", "quantity": 3, "section": "party", "updatedAt": clk.Now(),
	}))

	require.Eventually(t, func() bool { return len(l.Items()) == 3 }, 2*time.Second, time.Millisecond)
	assert.Equal(t, []string{"milk"}, names(l.ToBuy()))
	assert.Equal(t, []string{"rice"}, names(l.Inventory()))
	assert.Equal(t, []string{"candles"}, names(l.Sections()["party"]))

	milk := l.ToBuy()[0]
	assert.Equal(t, int64(2), milk.Quantity)
	assert.Equal(t, "a", milk.AddedBy)
	assert.NotEmpty(t, milk.ID)
}

func TestMissingSectionDefaultsToBuy(t *testing.T) {
	ctx := context.Background()
	l, store, clk := newList(t, "a")
	require.NoError(t, store.Set(ctx, "groups/g1/grocery/old", map[string]any{"name": "bread", "updatedAt": clk.Now()}))
	listen(t, l, "g1")
	assert.Equal(t, []string{"bread"}, names(l.ToBuy()))
}

func TestAddValidation(t *testing.T) {
	ctx := context.Background()
	l, store, _ := newList(t, "a")
	_, err := l.Add(ctx, "g1", " ", 1, "")
	require.ErrorIs(t, err, ErrEmptyName)
	_, err = l.Add(ctx, "g1", "milk", -1, "")
	require.ErrorIs(t, err, ErrInvalidQuantity)
	assert.Zero(t, store.Writes())

	anon, _, _ := newList(t, "")
	_, err = anon.Add(ctx, "g1", "milk", 1, "")
	require.ErrorIs(t, err, session.ErrUnauthenticated)
	require.ErrorIs(t, anon.Delete(ctx, "g1", "x"), session.ErrUnauthenticated)
}

func TestUpdateToZeroKeepsItem(t *testing.T) {
	ctx := context.Background()
	l, store, clk := newList(t, "a")
	id, err := l.Add(ctx, "g1", "milk", 2, "")
	require.NoError(t, err)
	before, err := store.Get(ctx, "groups/g1/grocery/"+id)
	require.NoError(t, err)

	clk.Advance(time.Minute)
	zero := int64(0)
	require.NoError(t, l.Update(ctx, "g1", id, ItemUpdate{Quantity: &zero}))

	after, err := store.Get(ctx, "groups/g1/grocery/"+id)
	require.NoError(t, err)
	assert.Equal(t, int64(0), after.Data["quantity"])
	assert.Equal(t, "milk", after.Data["name"])
	assert.True(t, after.Data["updatedAt"].(time.Time).After(before.Data["updatedAt"].(time.Time)))
}

func TestUpdateValidationAndNoop(t *testing.T) {
	ctx := context.Background()
	l, store, _ := newList(t, "a")
	id, err := l.Add(ctx, "g1", "milk", 2, "")
	require.NoError(t, err)
	writes := store.Writes()

	neg := int64(-3)
	require.ErrorIs(t, l.Update(ctx, "g1", id, ItemUpdate{Quantity: &neg}), ErrInvalidQuantity)
	blank := ""
	require.ErrorIs(t, l.Update(ctx, "g1", id, ItemUpdate{Name: &blank}), ErrEmptyName)
	require.NoError(t, l.Update(ctx, "g1", id, ItemUpdate{}))
	assert.Equal(t, writes, store.Writes())
}

func TestMoveAndDelete(t *testing.T) {
	ctx := context.Background()
	l, _, clk := newList(t, "a")
	listen(t, l, "g1")
	id, err := l.Add(ctx, "g1", "eggs", 12, "")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(l.ToBuy()) == 1 }, 2*time.Second, time.Millisecond)

	clk.Advance(time.Second)
	require.NoError(t, l.Move(ctx, "g1", id, sharedspacedb.SectionInventory))
	require.Eventually(t, func() bool { return len(l.Inventory()) == 1 && len(l.ToBuy()) == 0 }, 2*time.Second, time.Millisecond)

	require.NoError(t, l.Delete(ctx, "g1", id))
	require.Eventually(t, func() bool { return len(l.Items()) == 0 }, 2*time.Second, time.Millisecond)
}
