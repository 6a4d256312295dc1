// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

package sharedspacedb

import "time"

const (
	FieldDescription = "description"
	FieldCollection  = "collection"
	FieldLatitude    = "latitude"
	FieldLongitude   = "longitude"
	FieldAddedByName = "addedByName"
)

// DefaultLandmarkCollection is the collection of landmarks saved without one.
const DefaultLandmarkCollection = "General"

// LandmarkItem is a saved place stored at groups/{groupId}/landmarks/{landmarkId}.
type LandmarkItem struct {
	ID string `firestore:"-"`

	Name        string `firestore:"name"`
	Description string `firestore:"description"`

	// Collection is a user-chosen folder for the landmark.
	Collection string `firestore:"collection"`

	Latitude  float64 `firestore:"latitude"`
	Longitude float64 `firestore:"longitude"`

	// AddedBy is the uid of the member who saved the landmark and AddedByName
	// their display name at that time.
	AddedBy     string `firestore:"addedBy"`
	AddedByName string `firestore:"addedByName"`

	UpdatedAt time.Time `firestore:"updatedAt"`
}

func (l *LandmarkItem) Normalize() {
	if l.Collection == "" {
		l.Collection = DefaultLandmarkCollection
	}
}
