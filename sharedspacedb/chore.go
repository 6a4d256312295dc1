// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

package sharedspacedb

import "time"

const (
	FieldAssignedToName = "assignedToName"
	FieldAssignedToID   = "assignedToId"
	FieldRepeat         = "repeat"
	FieldIsDone         = "isDone"
	FieldType           = "type"
)

// Defaults applied to chore documents missing a field.
const (
	UnassignedName = "Unassigned"
	DefaultRepeat  = "One-time"
	DefaultType    = "cleaning"
)

// ChoreItem is a chore of a group stored at groups/{groupId}/chores/{choreId}.
type ChoreItem struct {
	// ID is the document ID of the chore.
	ID string `firestore:"-"`

	// Name is the name of the chore.
	Name string `firestore:"name"`

	// AssignedToName is the assignee's display name, copied from their
	// profile when the chore was assigned.
	AssignedToName string `firestore:"assignedToName"`

	// AssignedToID is the uid of the assignee.
	AssignedToID string `firestore:"assignedToId"`

	// Repeat is how often the chore recurs, e.g. "Weekly".
	Repeat string `firestore:"repeat"`

	// IsDone is whether the chore has been completed.
	IsDone bool `firestore:"isDone"`

	// Type is the category of the chore, e.g. "Dishes".
	Type string `firestore:"type"`

	// UpdatedAt is when the chore was last written.
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func (c *ChoreItem) Normalize() {
	if c.AssignedToName == "" {
		c.AssignedToName = UnassignedName
	}
	if c.Repeat == "" {
		c.Repeat = DefaultRepeat
	}
	if c.Type == "" {
		c.Type = DefaultType
	}
}
