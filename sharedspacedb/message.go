// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

package sharedspacedb

import "time"

const (
	FieldFromUID     = "fromUid"
	FieldMessageText = "messageText"
	FieldSentAt      = "sentAt"
)

// Message is a chat message stored at
// conversations/{conversationId}/messages/{messageId}.
type Message struct {
	// ID is the document ID of the message.
	ID string `firestore:"-"`

	// FromUID is the uid of the sender.
	FromUID string `firestore:"fromUid"`

	// MessageText is the text content of the message.
	MessageText string `firestore:"messageText"`

	// SentAt is when the message was sent. Messages are ordered by it.
	SentAt time.Time `firestore:"sentAt"`
}
