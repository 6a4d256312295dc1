// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

// Package identitytest provides an in-memory identity.Provider.
package identitytest

import (
	"context"
	"fmt"
	"sync"

	"github.com/skburkard1/SharedSpace/internal/identity"
	"github.com/skburkard1/SharedSpace/internal/observable"
)

var _ identity.Provider = (*Provider)(nil)

type account struct {
	uid      string
	password string
}

// Provider keeps accounts in memory.
type Provider struct {
	mu       sync.Mutex
	accounts map[string]account
	current  *observable.Value[*identity.User]
}

func New() *Provider {
	return &Provider{
		accounts: map[string]account{},
		current:  observable.NewValue[*identity.User](nil, "identitytest.session", nil),
	}
}

// SignInAs starts a session for uid without checking credentials.
func (p *Provider) SignInAs(uid, email string) *identity.User {
	u := &identity.User{UID: uid, Email: email}
	p.current.Set(u)
	return u
}

func (p *Provider) CurrentUser() *identity.User {
	return p.current.Get()
}

func (p *Provider) OnSessionChanged(fn func(*identity.User)) func() {
	return p.current.Watch(fn)
}

func (p *Provider) SignIn(_ context.Context, email, password string) (*identity.User, error) {
	p.mu.Lock()
	acct, ok := p.accounts[email]
	p.mu.Unlock()
	if !ok || acct.password != password {
		return nil, identity.ErrInvalidCredentials
	}
	return p.SignInAs(acct.uid, email), nil
}

func (p *Provider) CreateAccount(ctx context.Context, email, password string) (*identity.User, error) {
	p.mu.Lock()
	if _, ok := p.accounts[email]; ok {
		p.mu.Unlock()
		return nil, identity.ErrEmailInUse
	}
	p.accounts[email] = account{uid: fmt.Sprintf("uid-%d", len(p.accounts)+1), password: password}
	p.mu.Unlock()
	return p.SignIn(ctx, email, password)
}

func (p *Provider) SignOut() {
	p.current.Set(nil)
}
