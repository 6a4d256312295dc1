// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skburkard1/SharedSpace/internal/app"
	"github.com/skburkard1/SharedSpace/internal/config"
	"github.com/skburkard1/SharedSpace/internal/docstore/memstore"
	"github.com/skburkard1/SharedSpace/internal/identity/identitytest"
)

type harness struct {
	store    *memstore.Store
	provider *identitytest.Provider
}

func newHarness() *harness {
	return &harness{store: memstore.New(), provider: identitytest.New()}
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand(Options{
		Conf: &config.Config{},
		Open: func(context.Context) (*app.App, func(), error) {
			a := app.New(app.Deps{Store: h.store, Identity: h.provider})
			return a, a.Close, nil
		},
	})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *harness) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := h.run(t, args...)
	require.NoError(t, err, out)
	return out
}

func TestHelp(t *testing.T) {
	out := newHarness().mustRun(t)
	assert.Contains(t, out, "Usage:")
	for _, sub := range []string{"signup", "profile", "group", "grocery", "chore", "landmark", "message", "bill"} {
		assert.Contains(t, out, sub)
	}
}

func TestNotSignedIn(t *testing.T) {
	out, err := newHarness().run(t, "group", "list")
	require.Error(t, err)
	assert.Contains(t, out, "not signed in")
}

func TestNoGroup(t *testing.T) {
	h := newHarness()
	h.mustRun(t, "signup", "--email", "ann@example.com", "--password", "pw", "--name", "Ann")
	out, err := h.run(t, "grocery", "list")
	require.Error(t, err)
	assert.Contains(t, out, "no group selected")
}

func TestSession(t *testing.T) {
	h := newHarness()
	creds := []string{"--email", "ann@example.com", "--password", "pw"}

	out := h.mustRun(t, append([]string{"signup", "--name", "Ann"}, creds...)...)
	assert.Contains(t, out, "Created account ann@example.com")

	out, err := h.run(t, append([]string{"signup"}, creds...)...)
	require.Error(t, err)
	assert.Contains(t, out, "email already in use")

	h.provider.SignOut()
	out = h.mustRun(t, append([]string{"profile"}, creds...)...)
	assert.Contains(t, out, "name:  Ann")

	out = h.mustRun(t, "group", "create", "The", "Flat")
	assert.Contains(t, out, "Created group")
	out = h.mustRun(t, "group", "list")
	assert.Contains(t, out, "The Flat")
	assert.Contains(t, out, "(1 members)")
	out = h.mustRun(t, "group", "members")
	assert.Contains(t, out, "Ann")

	h.mustRun(t, "grocery", "add", "milk", "-q", "2")
	h.mustRun(t, "grocery", "add", "rice", "-s", "inventory")
	out = h.mustRun(t, "grocery", "list")
	assert.Contains(t, out, "toBuy")
	assert.Contains(t, out, "milk x2")
	assert.Contains(t, out, "rice x1")

	out = h.mustRun(t, "chore", "add", "Dishes", "--type", "Dishes")
	assert.Contains(t, out, "Added Dishes")
	out = h.mustRun(t, "chore", "list")
	assert.Contains(t, out, "[ ]")
	assert.Contains(t, out, "Dishes (dishes)")

	out = h.mustRun(t, "landmark", "add", "Bakery", "--lat", "48.85", "--lng", "2.35")
	assert.Contains(t, out, "Saved Bakery")
	out = h.mustRun(t, "landmark", "list")
	assert.Contains(t, out, "General")
	assert.Contains(t, out, "added by Ann")

	h.mustRun(t, "message", "send", "hello", "all")
	out = h.mustRun(t, "message", "list")
	assert.Contains(t, out, "Ann: hello all")

	h.mustRun(t, "bill", "add", "Rent", "--amount", "20")
	out = h.mustRun(t, "bill", "list")
	assert.Contains(t, out, "Rent 20.00 paid by Ann, split among everyone")
	out = h.mustRun(t, "bill", "balances")
	assert.Contains(t, out, "All square.")

	out = h.mustRun(t, "group", "reconcile")
	assert.Contains(t, out, "Nothing to repair.")

	out, err = h.run(t, "group", "join", "missing")
	require.Error(t, err)
	assert.Contains(t, out, "group not found")

	out, err = h.run(t, "group", "use", "missing")
	require.Error(t, err)
	assert.Contains(t, out, "not a member of missing")
}

func createdGroupID(t *testing.T, out string) string {
	t.Helper()
	_, rest, ok := strings.Cut(out, "Created group ")
	require.True(t, ok, out)
	id, _, ok := strings.Cut(rest, ".")
	require.True(t, ok, out)
	return id
}

func TestGroupFlag(t *testing.T) {
	h := newHarness()
	h.mustRun(t, "signup", "--email", "ann@example.com", "--password", "pw", "--name", "Ann")
	h.mustRun(t, "group", "create", "One")
	two := createdGroupID(t, h.mustRun(t, "group", "create", "Two"))

	h.mustRun(t, "grocery", "add", "milk", "-g", two)
	out := h.mustRun(t, "grocery", "list", "-g", two)
	assert.Contains(t, out, "milk")
	out = h.mustRun(t, "grocery", "list")
	assert.NotContains(t, out, "milk")

	out, err := h.run(t, "grocery", "list", "-g", "missing")
	require.Error(t, err)
	assert.True(t, Reported(err))
	assert.Contains(t, out, "cannot use group missing")

	h.provider.SignOut()
	h.mustRun(t, "signup", "--email", "bo@example.com", "--password", "pw", "--name", "Bo")
	out, err = h.run(t, "grocery", "list", "-g", two)
	require.Error(t, err)
	assert.Contains(t, out, "cannot use group "+two)
}

func TestReported(t *testing.T) {
	_, err := newHarness().run(t, "profile")
	require.Error(t, err)
	assert.True(t, Reported(err))
	assert.False(t, Reported(assert.AnError))
}
