// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

// Package identity abstracts the authentication service that establishes
// which user is signed in.
package identity

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidCredentials is returned when sign-in is rejected.
	ErrInvalidCredentials = errors.New("identity: invalid email or password")

	// ErrEmailInUse is returned when creating an account for a taken email.
	ErrEmailInUse = errors.New("identity: email already in use")
)

// User is an authenticated principal.
type User struct {
	// UID is the stable user ID assigned by the provider.
	UID string

	Email string

	// IDToken is the bearer token proving the session, when the provider
	// issues one.
	IDToken string

	// ExpiresAt is when IDToken expires. Zero when unknown.
	ExpiresAt time.Time
}

// Provider is an authentication service.
type Provider interface {
	// CurrentUser returns the signed-in user or nil.
	CurrentUser() *User

	// OnSessionChanged calls fn with the new user, or nil after sign-out,
	// every time the session changes. The returned func unregisters fn.
	OnSessionChanged(fn func(*User)) (cancel func())

	SignIn(ctx context.Context, email, password string) (*User, error)

	// CreateAccount registers a new account and signs it in.
	CreateAccount(ctx context.Context, email, password string) (*User, error)

	SignOut()
}
