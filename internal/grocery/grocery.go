// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

// Package grocery syncs a group's shopping list and pantry inventory.
package grocery

import (
	"context"
	"errors"
	"strings"

	"github.com/skburkard1/SharedSpace/internal/docstore"
	"github.com/skburkard1/SharedSpace/internal/livesync"
	"github.com/skburkard1/SharedSpace/sharedspacedb"
)

var (
	ErrEmptyName       = errors.New("grocery: item name is empty")
	ErrInvalidQuantity = errors.New("grocery: quantity must not be negative")
)

type Item = sharedspacedb.GroceryItem

type Session interface {
	UID() (string, error)
}

func New(store docstore.Store, sess Session, opts livesync.Options) *List {
	return &List{
		sess: sess,
		sync: livesync.NewWith(opts, livesync.Config[Item]{
			Feature: "grocery",
			Store:   store,
			Collection: func(groupID string) string {
				return sharedspacedb.GroupCollection(groupID, sharedspacedb.GrocerySubcollection)
			},
			OrderBy: sharedspacedb.FieldUpdatedAt,
			Decode:  decode,
		}),
	}
}

// List is the live grocery list of one group at a time.
type List struct {
	sess Session
	sync *livesync.Synchronizer[Item]
}

func decode(doc docstore.Doc) (Item, error) {
	var item Item
	if err := doc.DataTo(&item); err != nil {
		return Item{}, err
	}
	item.ID = doc.ID
	item.Normalize()
	return item, nil
}

func (l *List) Listen(ctx context.Context, groupID string) error {
	return l.sync.Listen(ctx, groupID)
}

func (l *List) StopListening() {
	l.sync.StopListening()
}

func (l *List) WaitReady(ctx context.Context) error {
	return l.sync.WaitReady(ctx)
}

// Items returns all items ordered by last update.
func (l *List) Items() []Item {
	return l.sync.Items()
}

func (l *List) Watch(fn func([]Item)) func() {
	return l.sync.Watch(fn)
}

// ToBuy returns the items still to be bought.
func (l *List) ToBuy() []Item {
	return l.Sections()[sharedspacedb.SectionToBuy]
}

// Inventory returns the items in stock.
func (l *List) Inventory() []Item {
	return l.Sections()[sharedspacedb.SectionInventory]
}

// Sections groups items by section, keeping order within each. Sections
// other than the known two are kept under their own name.
func (l *List) Sections() map[string][]Item {
	out := map[string][]Item{}
	for _, item := range l.sync.Items() {
		out[item.Section] = append(out[item.Section], item)
	}
	return out
}

// Add puts a new item on the list. An empty section means to buy.
func (l *List) Add(ctx context.Context, groupID, name string, quantity int64, section string) (string, error) {
	uid, err := l.sess.UID()
	if err != nil {
		return "", err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	if quantity < 0 {
		return "", ErrInvalidQuantity
	}
	if section == "" {
		section = sharedspacedb.SectionToBuy
	}
	return l.sync.Add(ctx, groupID, map[string]any{
		sharedspacedb.FieldName:     name,
		sharedspacedb.FieldQuantity: quantity,
		sharedspacedb.FieldSection:  section,
		sharedspacedb.FieldAddedBy:  uid,
	})
}

// ItemUpdate lists the fields to change. Nil fields are left as they are.
type ItemUpdate struct {
	Name     *string
	Quantity *int64
	Section  *string
}

// Update changes the given fields of an item. A zero quantity keeps the item.
func (l *List) Update(ctx context.Context, groupID, itemID string, u ItemUpdate) error {
	if _, err := l.sess.UID(); err != nil {
		return err
	}
	fields := map[string]any{}
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		if name == "" {
			return ErrEmptyName
		}
		fields[sharedspacedb.FieldName] = name
	}
	if u.Quantity != nil {
		if *u.Quantity < 0 {
			return ErrInvalidQuantity
		}
		fields[sharedspacedb.FieldQuantity] = *u.Quantity
	}
	if u.Section != nil {
		section := *u.Section
		if section == "" {
			section = sharedspacedb.SectionToBuy
		}
		fields[sharedspacedb.FieldSection] = section
	}
	if len(fields) == 0 {
		return nil
	}
	return l.sync.Update(ctx, groupID, itemID, fields)
}

// Move puts an item into another section, e.g. after buying it.
func (l *List) Move(ctx context.Context, groupID, itemID, section string) error {
	return l.Update(ctx, groupID, itemID, ItemUpdate{Section: &section})
}

func (l *List) Delete(ctx context.Context, groupID, itemID string) error {
	if _, err := l.sess.UID(); err != nil {
		return err
	}
	return l.sync.Delete(ctx, groupID, itemID)
}
