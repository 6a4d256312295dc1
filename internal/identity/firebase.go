// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/juju/pubsub/v2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"

	"github.com/skburkard1/SharedSpace/internal/observable"
)

var _ Provider = (*Firebase)(nil)

// NewToolkit returns an Identity Toolkit client authenticating with the
// Firebase web API key. endpoint overrides the service URL when set.
func NewToolkit(ctx context.Context, apiKey, endpoint string) (*identitytoolkit.Service, error) {
	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	svc, err := identitytoolkit.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("identity: creating identity toolkit client: %w", err)
	}
	return svc, nil
}

// NewFirebase returns a Provider backed by Firebase Auth. Accounts are
// created with the admin client and passwords verified with the toolkit.
func NewFirebase(authClient *auth.Client, toolkit *identitytoolkit.Service, hub *pubsub.SimpleHub) *Firebase {
	return &Firebase{
		auth:    authClient,
		toolkit: toolkit,
		current: observable.NewValue[*User](hub, "identity.session", nil),
	}
}

type Firebase struct {
	auth    *auth.Client
	toolkit *identitytoolkit.Service
	current *observable.Value[*User]
}

func (f *Firebase) CurrentUser() *User {
	return f.current.Get()
}

func (f *Firebase) OnSessionChanged(fn func(*User)) func() {
	return f.current.Watch(fn)
}

func (f *Firebase) SignIn(ctx context.Context, email, password string) (*User, error) {
	resp, err := f.toolkit.Relyingparty.VerifyPassword(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusBadRequest {
			return nil, fmt.Errorf("%w: %s", ErrInvalidCredentials, gerr.Message)
		}
		return nil, fmt.Errorf("identity: verifying password: %w", err)
	}

	u := &User{
		UID:       resp.LocalId,
		Email:     resp.Email,
		IDToken:   resp.IdToken,
		ExpiresAt: tokenExpiry(resp.IdToken),
	}
	f.current.Set(u)
	return u, nil
}

func (f *Firebase) CreateAccount(ctx context.Context, email, password string) (*User, error) {
	if _, err := f.auth.CreateUser(ctx, (&auth.UserToCreate{}).Email(email).Password(password)); err != nil {
		if auth.IsEmailAlreadyExists(err) {
			return nil, ErrEmailInUse
		}
		return nil, fmt.Errorf("identity: creating user: %w", err)
	}
	return f.SignIn(ctx, email, password)
}

func (f *Firebase) SignOut() {
	f.current.Set(nil)
}

// tokenExpiry reads the exp claim of an ID token. The signature is not
// checked since the token came straight from the issuer.
func tokenExpiry(token string) time.Time {
	if token == "" {
		return time.Time{}
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
