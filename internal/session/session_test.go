// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/skburkard1/SharedSpace/internal/docstore/memstore"
	"github.com/skburkard1/SharedSpace/internal/identity/identitytest"
)

func newManager(t *testing.T) (*Manager, *identitytest.Provider, *memstore.Store) {
	t.Helper()
	provider := identitytest.New()
	store := memstore.New()
	m := New(provider, store, nil)
	t.Cleanup(m.Close)
	return m, provider, store
}

func TestSignedOut(t *testing.T) {
	ctx := context.Background()
	m, _, store := newManager(t)
	require.NoError(t, m.Start(ctx))

	assert.False(t, m.State().SignedIn())
	_, err := m.UID()
	require.ErrorIs(t, err, ErrUnauthenticated)
	require.ErrorIs(t, m.SaveName(ctx, "Ann"), ErrUnauthenticated)
	require.ErrorIs(t, m.LoadProfile(ctx), ErrUnauthenticated)
	assert.Zero(t, store.Writes())
}

func TestStartLoadsProfile(t *testing.T) {
	ctx := context.Background()
	m, provider, store := newManager(t)
	require.NoError(t, store.Set(ctx, "users/u1", map[string]any{
		"name":   "Ann",
		"email":  "ann@example.com",
		"groups": []string{"g1", "g2"},
	}))
	provider.SignInAs("u1", "ann@example.com")

	require.NoError(t, m.Start(ctx))
	assert.Equal(t, State{UID: "u1", Email: "ann@example.com", Name: "Ann", CurrentGroupID: "g1"}, m.State())
}

func TestMissingProfileFallsBack(t *testing.T) {
	ctx := context.Background()
	m, provider, _ := newManager(t)
	provider.SignInAs("u1", "ann@example.com")

	require.NoError(t, m.Start(ctx))
	st := m.State()
	assert.Equal(t, "u1", st.UID)
	assert.Empty(t, st.Name)
	assert.Empty(t, st.CurrentGroupID)
}

func TestLoadProfileError(t *testing.T) {
	ctx := context.Background()
	m, provider, store := newManager(t)
	provider.SignInAs("u1", "ann@example.com")
	boom := errors.New("boom")
	store.SetFault(func(memstore.Op, string) error { return boom })

	require.ErrorIs(t, m.Start(ctx), boom)
	assert.Equal(t, "u1", m.State().UID)
}

func TestFollowsSessionChanges(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	provider := identitytest.New()
	store := memstore.New()
	require.NoError(t, store.Set(ctx, "users/u2", map[string]any{"name": "Bo", "groups": []string{"g9"}}))

	m := New(provider, store, nil)
	require.NoError(t, m.Start(ctx))
	defer m.Close()

	provider.SignInAs("u2", "bo@example.com")
	require.Eventually(t, func() bool {
		return m.State().Name == "Bo"
	}, 2*time.Second, time.Millisecond)
	assert.Equal(t, "g9", m.State().CurrentGroupID)

	provider.SignOut()
	require.Eventually(t, func() bool {
		return !m.State().SignedIn()
	}, 2*time.Second, time.Millisecond)
}

func TestSaveNameKeepsGroups(t *testing.T) {
	ctx := context.Background()
	m, provider, store := newManager(t)
	require.NoError(t, store.Set(ctx, "users/u1", map[string]any{"groups": []string{"g1"}}))
	provider.SignInAs("u1", "ann@example.com")
	require.NoError(t, m.Start(ctx))

	require.NoError(t, m.SaveName(ctx, "  Ann  "))
	assert.Equal(t, "Ann", m.State().Name)

	doc, err := store.Get(ctx, "users/u1")
	require.NoError(t, err)
	assert.Equal(t, "Ann", doc.Data["name"])
	assert.Equal(t, "ann@example.com", doc.Data["email"])
	assert.Equal(t, []any{"g1"}, doc.Data["groups"])
}

func TestSaveNameWriteFailure(t *testing.T) {
	ctx := context.Background()
	m, provider, store := newManager(t)
	provider.SignInAs("u1", "ann@example.com")
	require.NoError(t, m.Start(ctx))

	boom := errors.New("boom")
	store.SetFault(func(op memstore.Op, _ string) error {
		if op == memstore.OpMerge {
			return boom
		}
		return nil
	})
	require.ErrorIs(t, m.SaveName(ctx, "Ann"), boom)
	assert.Empty(t, m.State().Name)
}

func TestSignInAndCreateAccount(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newManager(t)
	require.NoError(t, m.Start(ctx))

	require.NoError(t, m.CreateAccount(ctx, "ann@example.com", "pw"))
	uid, err := m.UID()
	require.NoError(t, err)
	assert.NotEmpty(t, uid)

	m.SignOut()
	assert.False(t, m.State().SignedIn())

	require.Error(t, m.SignIn(ctx, "ann@example.com", "wrong"))
	require.NoError(t, m.SignIn(ctx, "ann@example.com", "pw"))
	assert.Equal(t, uid, m.State().UID)
}

func TestSelectGroup(t *testing.T) {
	m, provider, _ := newManager(t)
	provider.SignInAs("u1", "")
	require.NoError(t, m.Start(context.Background()))
	m.SelectGroup("g7")
	assert.Equal(t, "g7", m.State().CurrentGroupID)
}
