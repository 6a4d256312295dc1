// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

// Package messaging syncs group and direct conversations.
package messaging

import (
	"context"
	"errors"
	"strings"

	"github.com/skburkard1/SharedSpace/internal/docstore"
	"github.com/skburkard1/SharedSpace/internal/livesync"
	"github.com/skburkard1/SharedSpace/sharedspacedb"
)

var (
	ErrEmptyMessage = errors.New("messaging: message is empty")
	ErrSelfMessage  = errors.New("messaging: cannot start a direct conversation with yourself")
	ErrInvalidUID   = errors.New("messaging: user ID is empty or contains " + directSeparator)
)

const directSeparator = "_"

// GroupConversationID returns the conversation of a whole group, which is
// keyed by the group ID.
func GroupConversationID(groupID string) string {
	return groupID
}

// DirectConversationID returns the conversation between two users. The ID
// is the same whichever user starts it. IDs are only unique when neither uid
// contains "_", which holds for Firebase Auth uids.
func DirectConversationID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + directSeparator + b
}

type Message = sharedspacedb.Message

type Session interface {
	UID() (string, error)
}

func New(store docstore.Store, sess Session, opts livesync.Options) *Thread {
	return &Thread{
		sess: sess,
		sync: livesync.NewWith(opts, livesync.Config[Message]{
			Feature:    "messages",
			Store:      store,
			Collection: sharedspacedb.MessagesCollection,
			OrderBy:    sharedspacedb.FieldSentAt,
			Decode:     decode,
		}),
	}
}

// Thread is the live message list of one conversation at a time.
type Thread struct {
	sess Session
	sync *livesync.Synchronizer[Message]
}

func decode(doc docstore.Doc) (Message, error) {
	var msg Message
	if err := doc.DataTo(&msg); err != nil {
		return Message{}, err
	}
	msg.ID = doc.ID
	return msg, nil
}

// Direct returns the conversation between the signed-in user and otherUID.
func (t *Thread) Direct(otherUID string) (string, error) {
	uid, err := t.sess.UID()
	if err != nil {
		return "", err
	}
	if !validUID(uid) || !validUID(otherUID) {
		return "", ErrInvalidUID
	}
	if otherUID == uid {
		return "", ErrSelfMessage
	}
	return DirectConversationID(uid, otherUID), nil
}

func validUID(uid string) bool {
	return uid != "" && !strings.Contains(uid, directSeparator)
}

func (t *Thread) Listen(ctx context.Context, conversationID string) error {
	return t.sync.Listen(ctx, conversationID)
}

func (t *Thread) StopListening() {
	t.sync.StopListening()
}

func (t *Thread) WaitReady(ctx context.Context) error {
	return t.sync.WaitReady(ctx)
}

// Messages returns the messages oldest first.
func (t *Thread) Messages() []Message {
	return t.sync.Items()
}

func (t *Thread) Watch(fn func([]Message)) func() {
	return t.sync.Watch(fn)
}

// Send posts text to conversationID from the signed-in user.
func (t *Thread) Send(ctx context.Context, conversationID, text string) (string, error) {
	uid, err := t.sess.UID()
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyMessage
	}
	return t.sync.Add(ctx, conversationID, map[string]any{
		sharedspacedb.FieldFromUID:     uid,
		sharedspacedb.FieldMessageText: text,
	})
}
