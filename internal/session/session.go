// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

// Package session tracks the signed-in user, their profile name and the
// group they are currently working in.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/juju/pubsub/v2"

	"github.com/skburkard1/SharedSpace/internal/docstore"
	"github.com/skburkard1/SharedSpace/internal/identity"
	"github.com/skburkard1/SharedSpace/internal/observable"
	"github.com/skburkard1/SharedSpace/sharedspacedb"
)

// ErrUnauthenticated is returned by operations that need a signed-in user
// when there is none.
var ErrUnauthenticated = errors.New("session: not signed in")

// State is a snapshot of the session. Empty strings mean unknown.
type State struct {
	UID            string
	Email          string
	Name           string
	CurrentGroupID string
}

// SignedIn reports whether the state has a user.
func (s State) SignedIn() bool {
	return s.UID != ""
}

func New(provider identity.Provider, store docstore.Store, hub *pubsub.SimpleHub) *Manager {
	return &Manager{
		provider: provider,
		store:    store,
		state:    observable.NewValue(hub, "session.state", State{}),
	}
}

type Manager struct {
	provider identity.Provider
	store    docstore.Store
	state    *observable.Value[State]

	mu     sync.Mutex
	ctx    context.Context
	cancel func()
}

// Start applies the provider's current user and follows later session
// changes until Close.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return errors.New("session: already started")
	}
	m.ctx = ctx
	// Events can arrive after a synchronous SignIn already applied a newer
	// user, so always apply the provider's current user.
	m.cancel = m.provider.OnSessionChanged(func(*identity.User) {
		_ = m.apply(m.ctx, m.provider.CurrentUser())
	})
	m.mu.Unlock()

	return m.apply(ctx, m.provider.CurrentUser())
}

// Close stops following session changes.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

func (m *Manager) apply(ctx context.Context, u *identity.User) error {
	if u == nil {
		m.state.Set(State{})
		return nil
	}
	if cur := m.state.Get(); cur.UID == u.UID {
		return nil
	}
	m.state.Set(State{UID: u.UID, Email: u.Email})
	return m.LoadProfile(ctx)
}

func (m *Manager) State() State {
	return m.state.Get()
}

// Watch calls fn with each new state.
func (m *Manager) Watch(fn func(State)) func() {
	return m.state.Watch(fn)
}

// UID returns the signed-in user's ID or ErrUnauthenticated.
func (m *Manager) UID() (string, error) {
	uid := m.state.Get().UID
	if uid == "" {
		return "", ErrUnauthenticated
	}
	return uid, nil
}

// LoadProfile fetches the profile once and fills in the name and current
// group. A missing profile leaves both empty.
func (m *Manager) LoadProfile(ctx context.Context) error {
	uid, err := m.UID()
	if err != nil {
		return err
	}

	var user sharedspacedb.User
	doc, err := m.store.Get(ctx, sharedspacedb.UserPath(uid))
	switch {
	case errors.Is(err, docstore.ErrNotFound):
	case err != nil:
		slog.ErrorContext(ctx, "session: loading profile", "uid", uid, "error", err)
		return fmt.Errorf("session: loading profile: %w", err)
	default:
		if err := doc.DataTo(&user); err != nil {
			slog.WarnContext(ctx, "session: decoding profile", "uid", uid, "error", err)
		}
	}

	m.state.Update(func(s State) State {
		if s.UID != uid {
			return s
		}
		s.Name = user.Name
		s.CurrentGroupID = ""
		if len(user.Groups) > 0 {
			s.CurrentGroupID = user.Groups[0]
		}
		return s
	})
	return nil
}

// SaveName stores name with the user's email on their profile.
func (m *Manager) SaveName(ctx context.Context, name string) error {
	st := m.state.Get()
	if st.UID == "" {
		return ErrUnauthenticated
	}
	name = strings.TrimSpace(name)

	if err := m.store.Merge(ctx, sharedspacedb.UserPath(st.UID), map[string]any{
		sharedspacedb.FieldName:  name,
		sharedspacedb.FieldEmail: st.Email,
	}); err != nil {
		slog.ErrorContext(ctx, "session: saving name", "uid", st.UID, "error", err)
		return fmt.Errorf("session: saving name: %w", err)
	}

	m.state.Update(func(s State) State {
		if s.UID == st.UID {
			s.Name = name
		}
		return s
	})
	return nil
}

// SelectGroup makes groupID the current group.
func (m *Manager) SelectGroup(groupID string) {
	m.state.Update(func(s State) State {
		s.CurrentGroupID = groupID
		return s
	})
}

func (m *Manager) SignIn(ctx context.Context, email, password string) error {
	u, err := m.provider.SignIn(ctx, email, password)
	if err != nil {
		return fmt.Errorf("session: signing in: %w", err)
	}
	return m.apply(ctx, u)
}

func (m *Manager) CreateAccount(ctx context.Context, email, password string) error {
	u, err := m.provider.CreateAccount(ctx, email, password)
	if err != nil {
		return fmt.Errorf("session: creating account: %w", err)
	}
	return m.apply(ctx, u)
}

func (m *Manager) SignOut() {
	m.provider.SignOut()
	m.state.Set(State{})
}
