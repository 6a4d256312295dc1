// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

package chores

import (
	"context"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skburkard1/SharedSpace/internal/docstore/memstore"
	"github.com/skburkard1/SharedSpace/internal/livesync"
	"github.com/skburkard1/SharedSpace/internal/members"
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

type fixture struct {
	store *memstore.Store
	clock *testclock.Clock
	list  *List
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		store: memstore.New(),
		clock: testclock.NewClock(time.Date(2024, 4, 1, 7, 0, 0, 0, time.UTC)),
	}
	require.NoError(t, f.store.Set(ctx, "groups/g1", map[string]any{"name": "Flat", "members": []string{"a", "b"}}))
	require.NoError(t, f.store.Set(ctx, "users/a", map[string]any{"name": "Ann"}))
	require.NoError(t, f.store.Set(ctx, "users/b", map[string]any{"name": "Bo"}))

	f.list = New(f.store, fakeSession{uid: "a"}, members.NewResolver(f.store, 30), livesync.Options{Clock: f.clock})
	t.Cleanup(f.list.StopListening)
	return f
}

func (f *fixture) listen(t *testing.T) {
	t.Helper()
	require.NoError(t, f.list.Listen(context.Background(), "g1"))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.list.WaitReady(ctx))
}

func (f *fixture) chore(t *testing.T, id string) map[string]any {
	t.Helper()
	doc, err := f.store.Get(context.Background(), "groups/g1/chores/"+id)
	require.NoError(t, err)
	return doc.Data
}

func TestIcon(t *testing.T) {
	assert.Equal(t, "dishes", Icon("Dishes"))
	assert.Equal(t, "vacuum", Icon("vacuuming"))
	assert.Equal(t, "cleaning", Icon(sharedspacedb.DefaultType))
	assert.Equal(t, GenericIcon, Icon("Taxes"))
	assert.Equal(t, GenericIcon, Icon(""))
	for _, typ := range TypeOptions {
		assert.NotEqual(t, GenericIcon, Icon(typ), typ)
	}
}

func TestListenLoadsMembers(t *testing.T) {
	f := newFixture(t)
	f.listen(t)
	assert.Equal(t, []members.Member{{UID: "a", Name: "Ann"}, {UID: "b", Name: "Bo"}}, f.list.Members())
}

func TestAddAssigned(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.listen(t)

	id, err := f.list.Add(ctx, "g1", NewChore{Name: "Dishes", AssigneeUID: "b", Repeat: "Daily", Type: "Dishes"})
	require.NoError(t, err)
	data := f.chore(t, id)
	assert.Equal(t, "Bo", data["assignedToName"])
	assert.Equal(t, "b", data["assignedToId"])
	assert.Equal(t, false, data["isDone"])
	assert.Equal(t, f.clock.Now(), data["updatedAt"])

	require.Eventually(t, func() bool { return len(f.list.AssignedTo("b")) == 1 }, 2*time.Second, time.Millisecond)
	assert.Empty(t, f.list.AssignedTo("a"))
}

func TestAddDefaults(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id, err := f.list.Add(ctx, "g1", NewChore{Name: "Sweep"})
	require.NoError(t, err)
	data := f.chore(t, id)
	assert.Equal(t, sharedspacedb.UnassignedName, data["assignedToName"])
	assert.Equal(t, "", data["assignedToId"])
	assert.Equal(t, sharedspacedb.DefaultRepeat, data["repeat"])
	assert.Equal(t, sharedspacedb.DefaultType, data["type"])

	// No members loaded, so the assignee is resolved on demand.
	id, err = f.list.Add(ctx, "g1", NewChore{Name: "Trash", AssigneeUID: "a"})
	require.NoError(t, err)
	assert.Equal(t, "Ann", f.chore(t, id)["assignedToName"])

	id, err = f.list.Add(ctx, "g1", NewChore{Name: "Trash", AssigneeUID: "stranger"})
	require.NoError(t, err)
	assert.Equal(t, members.UnknownName, f.chore(t, id)["assignedToName"])

	_, err = f.list.Add(ctx, "g1", NewChore{Name: "  "})
	require.ErrorIs(t, err, ErrEmptyName)
}

func TestDecodeDefaults(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.Set(ctx, "groups/g1/chores/legacy", map[string]any{"name": "Mop", "updatedAt": f.clock.Now()}))
	f.listen(t)

	items := f.list.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "legacy", items[0].ID)
	assert.Equal(t, sharedspacedb.UnassignedName, items[0].AssignedToName)
	assert.Equal(t, sharedspacedb.DefaultRepeat, items[0].Repeat)
	assert.Equal(t, sharedspacedb.DefaultType, items[0].Type)
	assert.False(t, items[0].IsDone)
}

func TestToggleTwice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id, err := f.list.Add(ctx, "g1", NewChore{Name: "Laundry"})
	require.NoError(t, err)
	created := f.chore(t, id)["updatedAt"].(time.Time)

	require.NoError(t, f.list.Toggle(ctx, "g1", id, false))
	first := f.chore(t, id)
	assert.Equal(t, true, first["isDone"])

	require.NoError(t, f.list.Toggle(ctx, "g1", id, true))
	second := f.chore(t, id)
	assert.Equal(t, false, second["isDone"])

	s1 := first["updatedAt"].(time.Time)
	s2 := second["updatedAt"].(time.Time)
	assert.True(t, s1.After(created))
	assert.True(t, s2.After(s1))
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.listen(t)
	id, err := f.list.Add(ctx, "g1", NewChore{Name: "Mow", AssigneeUID: "a"})
	require.NoError(t, err)

	b := "b"
	weekly := "Weekly"
	require.NoError(t, f.list.Update(ctx, "g1", id, ChoreUpdate{AssigneeUID: &b, Repeat: &weekly}))
	data := f.chore(t, id)
	assert.Equal(t, "Bo", data["assignedToName"])
	assert.Equal(t, "Weekly", data["repeat"])
	assert.Equal(t, "Mow", data["name"])

	writes := f.store.Writes()
	require.NoError(t, f.list.Update(ctx, "g1", id, ChoreUpdate{}))
	assert.Equal(t, writes, f.store.Writes())

	require.NoError(t, f.list.Delete(ctx, "g1", id))
	require.Eventually(t, func() bool { return len(f.list.Items()) == 0 }, 2*time.Second, time.Millisecond)
}

func TestRefreshAssigneeNames(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.listen(t)
	_, err := f.list.Add(ctx, "g1", NewChore{Name: "Dishes", AssigneeUID: "a"})
	require.NoError(t, err)
	_, err = f.list.Add(ctx, "g1", NewChore{Name: "Trash", AssigneeUID: "a"})
	require.NoError(t, err)
	other, err := f.list.Add(ctx, "g1", NewChore{Name: "Cat", AssigneeUID: "b"})
	require.NoError(t, err)

	n, err := f.list.RefreshAssigneeNames(ctx, "g1", "a", "Annie")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "Bo", f.chore(t, other)["assignedToName"])

	require.Eventually(t, func() bool {
		for _, c := range f.list.AssignedTo("a") {
			if c.AssignedToName != "Annie" {
				return false
			}
		}
		return len(f.list.AssignedTo("a")) == 2
	}, 2*time.Second, time.Millisecond)

	n, err = f.list.RefreshAssigneeNames(ctx, "g1", "a", "Annie")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUnauthenticated(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	l := New(store, fakeSession{}, members.NewResolver(store, 30), livesync.Options{})
	_, err := l.Add(ctx, "g1", NewChore{Name: "x"})
	require.ErrorIs(t, err, session.ErrUnauthenticated)
	require.ErrorIs(t, l.Toggle(ctx, "g1", "x", false), session.ErrUnauthenticated)
	require.ErrorIs(t, l.Delete(ctx, "g1", "x"), session.ErrUnauthenticated)
	assert.Zero(t, store.Writes())
}
