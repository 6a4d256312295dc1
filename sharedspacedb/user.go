// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

package sharedspacedb

import (
	"slices"
	"time"
)

// User is a user profile stored at users/{uid}.
type User struct {
	// Name is the display name chosen by the user.
	Name string `firestore:"name"`

	// Email is the email address the user signed up with.
	Email string `firestore:"email"`

	// Groups is the list of group IDs the user belongs to. The first entry is
	// treated as the user's current group when a session starts.
	Groups []string `firestore:"groups"`
}

// Group is a shared household stored at groups/{groupId}.
type Group struct {
	// ID is the document ID of the group.
	ID string `firestore:"-"`

	// Name is the display name of the group.
	Name string `firestore:"name"`

	// CreatedBy is the uid of the user who created the group.
	CreatedBy string `firestore:"createdBy"`

	// Members is the list of uids belonging to the group.
	Members []string `firestore:"members"`

	// CreatedAt is when the group was created. Zero for groups created
	// before the field existed.
	CreatedAt time.Time `firestore:"createdAt"`
}

// UnnamedGroup is shown for groups without a name.
const UnnamedGroup = "(Unnamed)"

// DisplayName returns the group name, or UnnamedGroup when it is empty.
func (g Group) DisplayName() string {
	if g.Name == "" {
		return UnnamedGroup
	}
	return g.Name
}

// HasMember reports whether uid is listed in the group's members.
func (g Group) HasMember(uid string) bool {
	return slices.Contains(g.Members, uid)
}
