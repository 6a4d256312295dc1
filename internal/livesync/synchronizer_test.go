// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

package livesync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/skburkard1/SharedSpace/internal/docstore"
	"github.com/skburkard1/SharedSpace/internal/docstore/memstore"
)

type note struct {
	ID        string    `firestore:"-"`
	Text      string    `firestore:"text"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

var errBadNote = errors.New("bad note")

func decodeNote(doc docstore.Doc) (note, error) {
	var n note
	if err := doc.DataTo(&n); err != nil {
		return note{}, err
	}
	if n.Text == "bad" {
		return note{}, errBadNote
	}
	n.ID = doc.ID
	return n, nil
}

type fixture struct {
	store   *memstore.Store
	clock   *testclock.Clock
	metrics *Collector
	sync    *Synchronizer[note]
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   memstore.New(),
		clock:   testclock.NewClock(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)),
		metrics: NewCollector(),
	}
	prometheus.NewRegistry().MustRegister(f.metrics)
	f.sync = New(Config[note]{
		Feature:    "notes",
		Store:      f.store,
		Collection: func(scope string) string { return "groups/" + scope + "/notes" },
		OrderBy:    "updatedAt",
		Decode:     decodeNote,
		Clock:      f.clock,
		Metrics:    f.metrics,
	})
	t.Cleanup(f.sync.StopListening)
	return f
}

func (f *fixture) listen(t *testing.T, scope string) {
	t.Helper()
	require.NoError(t, f.sync.Listen(context.Background(), scope))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.sync.WaitReady(ctx))
}

func (f *fixture) eventuallyTexts(t *testing.T, want ...string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual(want, texts(f.sync.Items()))
	}, 2*time.Second, time.Millisecond, "want %v, have %v", want, texts(f.sync.Items()))
}

func texts(items []note) []string {
	out := []string{}
	for _, n := range items {
		out = append(out, n.Text)
	}
	return out
}

func TestListenAndMutate(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	f := newFixture(t)
	f.listen(t, "g1")
	assert.Empty(t, f.sync.Items())
	assert.Equal(t, "g1", f.sync.Scope())

	id, err := f.sync.Add(ctx, "g1", map[string]any{"text": "first"})
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	_, err = f.sync.Add(ctx, "g1", map[string]any{"text": "second"})
	require.NoError(t, err)
	f.eventuallyTexts(t, "first", "second")

	// Updating moves the item to the end since it is now the newest.
	f.clock.Advance(time.Second)
	require.NoError(t, f.sync.Update(ctx, "g1", id, map[string]any{"text": "first again"}))
	f.eventuallyTexts(t, "second", "first again")
	items := f.sync.Items()
	assert.True(t, f.clock.Now().Equal(items[1].UpdatedAt))

	require.NoError(t, f.sync.Delete(ctx, "g1", id))
	f.eventuallyTexts(t, "second")

	f.sync.StopListening()
	assert.Equal(t, "", f.sync.Scope())
	assert.Equal(t, 0, f.store.Listeners())
	assert.Equal(t, float64(0), testutil.ToFloat64(f.metrics.listeners.WithLabelValues("notes")))
	assert.Equal(t, float64(2), testutil.ToFloat64(f.metrics.mutations.WithLabelValues("notes", "add", "ok")))
}

func TestUpdateWritesOnlyGivenFields(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.Set(ctx, "groups/g1/notes/n1", map[string]any{"text": "keep", "color": "red"}))

	require.NoError(t, f.sync.Update(ctx, "g1", "n1", map[string]any{"color": "blue"}))
	doc, err := f.store.Get(ctx, "groups/g1/notes/n1")
	require.NoError(t, err)
	assert.Equal(t, "keep", doc.Data["text"])
	assert.Equal(t, "blue", doc.Data["color"])
	assert.Equal(t, f.clock.Now(), doc.Data["updatedAt"])
}

func TestUpdateMissing(t *testing.T) {
	f := newFixture(t)
	err := f.sync.Update(context.Background(), "g1", "nope", map[string]any{"text": "x"})
	require.ErrorIs(t, err, docstore.ErrNotFound)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.mutations.WithLabelValues("notes", "update", "error")))
}

func TestWriteFailureReturned(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("boom")
	f.store.SetFault(func(op memstore.Op, _ string) error {
		if op != memstore.OpQuery {
			return boom
		}
		return nil
	})
	_, err := f.sync.Add(context.Background(), "g1", map[string]any{"text": "x"})
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, f.sync.Delete(context.Background(), "g1", "x"), boom)
}

func TestEmptyScope(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.ErrorIs(t, f.sync.Listen(ctx, ""), ErrEmptyScope)
	_, err := f.sync.Add(ctx, "", nil)
	require.ErrorIs(t, err, ErrEmptyScope)
	require.ErrorIs(t, f.sync.Update(ctx, "", "x", nil), ErrEmptyScope)
	require.ErrorIs(t, f.sync.Delete(ctx, "", "x"), ErrEmptyScope)
	assert.Zero(t, f.store.Writes())
}

func TestSwitchScope(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.Set(ctx, "groups/g1/notes/a", map[string]any{"text": "g1 note", "updatedAt": f.clock.Now()}))
	require.NoError(t, f.store.Set(ctx, "groups/g2/notes/b", map[string]any{"text": "g2 note", "updatedAt": f.clock.Now()}))

	f.listen(t, "g1")
	f.eventuallyTexts(t, "g1 note")

	f.listen(t, "g2")
	f.eventuallyTexts(t, "g2 note")
	assert.Equal(t, 1, f.store.Listeners())
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.listeners.WithLabelValues("notes")))

	require.NoError(t, f.store.Set(ctx, "groups/g1/notes/c", map[string]any{"text": "late", "updatedAt": f.clock.Now()}))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []string{"g2 note"}, texts(f.sync.Items()))

	f.sync.StopListening()
}

func TestStaleCallbackDropped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.listen(t, "g1")

	f.sync.mu.Lock()
	oldGen := f.sync.gen
	f.sync.mu.Unlock()

	f.listen(t, "g2")
	f.sync.apply(ctx, oldGen, []docstore.Doc{{ID: "x", Path: "groups/g1/notes/x", Data: map[string]any{"text": "stale"}}}, nil)
	assert.Empty(t, f.sync.Items())

	f.sync.StopListening()
	f.sync.mu.Lock()
	stoppedGen := f.sync.gen
	f.sync.mu.Unlock()
	f.sync.apply(ctx, stoppedGen-1, []docstore.Doc{{ID: "y", Data: map[string]any{"text": "after stop"}}}, nil)
	assert.Empty(t, f.sync.Items())
}

func TestReplayIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.listen(t, "g1")
	f.sync.mu.Lock()
	gen := f.sync.gen
	f.sync.mu.Unlock()

	docs := []docstore.Doc{
		{ID: "a", Path: "groups/g1/notes/a", Data: map[string]any{"text": "one"}},
		{ID: "b", Path: "groups/g1/notes/b", Data: map[string]any{"text": "two"}},
	}
	f.sync.apply(ctx, gen, docs, nil)
	first := f.sync.Items()
	f.sync.apply(ctx, gen, docs, nil)
	assert.Equal(t, first, f.sync.Items())
	assert.Equal(t, []string{"one", "two"}, texts(first))
}

func TestListenerErrorKeepsState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.Set(ctx, "groups/g1/notes/a", map[string]any{"text": "kept", "updatedAt": f.clock.Now()}))
	f.listen(t, "g1")
	f.eventuallyTexts(t, "kept")

	f.store.FailListeners("groups/g1/notes", errors.New("permission denied"))
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(f.metrics.listenerErrors.WithLabelValues("notes")) == 1
	}, 2*time.Second, time.Millisecond)
	assert.Equal(t, []string{"kept"}, texts(f.sync.Items()))
}

func TestUndecodableSkipped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.Set(ctx, "groups/g1/notes/a", map[string]any{"text": "bad", "updatedAt": f.clock.Now()}))
	require.NoError(t, f.store.Set(ctx, "groups/g1/notes/b", map[string]any{"text": "good", "updatedAt": f.clock.Now()}))
	f.listen(t, "g1")
	f.eventuallyTexts(t, "good")
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.decodeErrors.WithLabelValues("notes")))
}

func TestWatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	got := make(chan []note, 8)
	unwatch := f.sync.Watch(func(items []note) { got <- items })
	defer unwatch()

	f.listen(t, "g1")
	_, err := f.sync.Add(ctx, "g1", map[string]any{"text": "hello"})
	require.NoError(t, err)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case items := <-got:
			if len(items) == 1 && items[0].Text == "hello" {
				return
			}
		case <-deadline:
			t.Fatal("no delivery")
		}
	}
}

func TestStampStrictlyIncreasing(t *testing.T) {
	f := newFixture(t)
	a := f.sync.stamp()
	b := f.sync.stamp()
	assert.True(t, b.After(a))
	f.clock.Advance(time.Hour)
	c := f.sync.stamp()
	assert.True(t, f.clock.Now().Equal(c))
}
