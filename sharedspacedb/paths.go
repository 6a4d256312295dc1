// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

package sharedspacedb

import "path"

// Top-level collections.
const (
	UsersCollection         = "users"
	GroupsCollection        = "groups"
	ConversationsCollection = "conversations"
)

// Per-group sub-collections.
const (
	GrocerySubcollection   = "grocery"
	ChoresSubcollection    = "chores"
	LandmarksSubcollection = "landmarks"
	BillsSubcollection     = "bills"
	MessagesSubcollection  = "messages"
)

// Field names shared by several document kinds.
const (
	FieldName      = "name"
	FieldEmail     = "email"
	FieldGroups    = "groups"
	FieldMembers   = "members"
	FieldCreatedBy = "createdBy"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// UserPath returns the document path of a user profile.
func UserPath(uid string) string {
	return path.Join(UsersCollection, uid)
}

// GroupPath returns the document path of a group.
func GroupPath(groupID string) string {
	return path.Join(GroupsCollection, groupID)
}

// GroupCollection returns the path of a sub-collection of a group.
func GroupCollection(groupID, sub string) string {
	return path.Join(GroupsCollection, groupID, sub)
}

// MessagesCollection returns the path of the messages of a conversation.
func MessagesCollection(conversationID string) string {
	return path.Join(ConversationsCollection, conversationID, MessagesSubcollection)
}
