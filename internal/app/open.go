// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

package app

import (
	"context"
	"fmt"
	"log/slog"

	firebase "firebase.google.com/go/v4"

	"github.com/skburkard1/SharedSpace/internal/config"
	"github.com/skburkard1/SharedSpace/internal/docstore/firestoredb"
	"github.com/skburkard1/SharedSpace/internal/identity"
)

// Open connects to the Firebase project in conf and returns an App on
// Firestore and Firebase Auth. The returned func releases the clients.
func Open(ctx context.Context, conf *config.Config) (*App, func(), error) {
	fbApp, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: conf.Google.Project})
	if err != nil {
		return nil, nil, fmt.Errorf("app: create firebase app: %w", err)
	}

	fbAuth, err := fbApp.Auth(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("app: create firebase auth client: %w", err)
	}

	toolkit, err := identity.NewToolkit(ctx, conf.Identity.APIKey, conf.Identity.Endpoint)
	if err != nil {
		return nil, nil, err
	}

	firestore, err := fbApp.Firestore(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("app: create firestore client: %w", err)
	}

	a := New(Deps{
		Store:     firestoredb.New(firestore),
		Identity:  identity.NewFirebase(fbAuth, toolkit, nil),
		BatchSize: conf.Members.BatchSize,
		Retries:   conf.Membership.Retries,
	})
	closeFn := func() {
		a.Close()
		if err := firestore.Close(); err != nil {
			slog.ErrorContext(ctx, "app: close firestore client", "error", err)
		}
	}
	return a, closeFn, nil
}
