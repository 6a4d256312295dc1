// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

// Package chores syncs a group's chore list and the members chores can be
// assigned to.
package chores

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/skburkard1/SharedSpace/internal/docstore"
	"github.com/skburkard1/SharedSpace/internal/livesync"
	"github.com/skburkard1/SharedSpace/internal/members"
	"github.com/skburkard1/SharedSpace/internal/observable"
	"github.com/skburkard1/SharedSpace/sharedspacedb"
)

var ErrEmptyName = errors.New("chores: chore name is empty")

type Item = sharedspacedb.ChoreItem

// RepeatOptions are the recurrences offered when creating a chore.
var RepeatOptions = []string{"One-time", "Daily", "Twice weekly", "Weekly", "Every two weeks", "Monthly"}

// TypeOptions are the chore categories that have an icon.
var TypeOptions = []string{"Cleaning", "Dishes", "Trash", "Laundry", "Vacuuming", "Watering", "Mowing", "Dog", "Cat"}

// GenericIcon is the icon of chores with an unknown type.
const GenericIcon = "chore"

var icons = map[string]string{
	"cleaning":  "cleaning",
	"dishes":    "dishes",
	"trash":     "trash",
	"laundry":   "laundry",
	"vacuuming": "vacuum",
	"watering":  "watering",
	"mowing":    "mowing",
	"dog":       "dog",
	"cat":       "cat",
}

// Icon returns the icon name for a chore type, ignoring case.
func Icon(choreType string) string {
	if icon, ok := icons[strings.ToLower(strings.TrimSpace(choreType))]; ok {
		return icon
	}
	return GenericIcon
}

type Session interface {
	UID() (string, error)
}

func New(store docstore.Store, sess Session, resolver *members.Resolver, opts livesync.Options) *List {
	return &List{
		store:    store,
		sess:     sess,
		resolver: resolver,
		members:  observable.NewValue[[]members.Member](opts.Hub, "chores.members", nil),
		sync: livesync.NewWith(opts, livesync.Config[Item]{
			Feature:    "chores",
			Store:      store,
			Collection: collection,
			OrderBy:    sharedspacedb.FieldUpdatedAt,
			Decode:     decode,
		}),
	}
}

type List struct {
	store    docstore.Store
	sess     Session
	resolver *members.Resolver
	members  *observable.Value[[]members.Member]
	sync     *livesync.Synchronizer[Item]
}

func collection(groupID string) string {
	return sharedspacedb.GroupCollection(groupID, sharedspacedb.ChoresSubcollection)
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

// Listen attaches the chore list of groupID and loads its members for
// assignment. Failing to load members is logged and leaves the member list
// empty.
func (l *List) Listen(ctx context.Context, groupID string) error {
	if err := l.sync.Listen(ctx, groupID); err != nil {
		return err
	}
	if err := l.RefreshMembers(ctx, groupID); err != nil {
		slog.WarnContext(ctx, "chores: loading members", "group", groupID, "error", err)
	}
	return nil
}

// RefreshMembers reloads the members chores can be assigned to.
func (l *List) RefreshMembers(ctx context.Context, groupID string) error {
	ms, err := l.resolver.Resolve(ctx, groupID)
	if err != nil {
		l.members.Set(nil)
		return fmt.Errorf("chores: resolving members: %w", err)
	}
	l.members.Set(ms)
	return nil
}

func (l *List) StopListening() {
	l.sync.StopListening()
}

func (l *List) WaitReady(ctx context.Context) error {
	return l.sync.WaitReady(ctx)
}

func (l *List) Items() []Item {
	return l.sync.Items()
}

func (l *List) Watch(fn func([]Item)) func() {
	return l.sync.Watch(fn)
}

// Members returns the members of the attached group.
func (l *List) Members() []members.Member {
	return l.members.Get()
}

// AssignedTo returns the chores assigned to uid.
func (l *List) AssignedTo(uid string) []Item {
	var out []Item
	for _, c := range l.sync.Items() {
		if c.AssignedToID == uid {
			out = append(out, c)
		}
	}
	return out
}

// NewChore describes a chore to create. An empty AssigneeUID leaves the
// chore unassigned.
type NewChore struct {
	Name        string
	AssigneeUID string
	Repeat      string
	Type        string
}

func (l *List) Add(ctx context.Context, groupID string, c NewChore) (string, error) {
	if _, err := l.sess.UID(); err != nil {
		return "", err
	}
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return "", ErrEmptyName
	}
	if c.Repeat == "" {
		c.Repeat = sharedspacedb.DefaultRepeat
	}
	if c.Type == "" {
		c.Type = sharedspacedb.DefaultType
	}
	assigneeName, err := l.assigneeName(ctx, c.AssigneeUID)
	if err != nil {
		return "", err
	}
	return l.sync.Add(ctx, groupID, map[string]any{
		sharedspacedb.FieldName:           name,
		sharedspacedb.FieldAssignedToID:   c.AssigneeUID,
		sharedspacedb.FieldAssignedToName: assigneeName,
		sharedspacedb.FieldRepeat:         c.Repeat,
		sharedspacedb.FieldType:           c.Type,
		sharedspacedb.FieldIsDone:         false,
	})
}

// assigneeName looks the name up among the loaded members first, then
// through the resolver.
func (l *List) assigneeName(ctx context.Context, uid string) (string, error) {
	if uid == "" {
		return sharedspacedb.UnassignedName, nil
	}
	for _, m := range l.members.Get() {
		if m.UID == uid {
			return m.Name, nil
		}
	}
	ms, err := l.resolver.ResolveUIDs(ctx, []string{uid})
	if err != nil {
		return "", fmt.Errorf("chores: resolving assignee: %w", err)
	}
	return ms[0].Name, nil
}

// Toggle flips a chore's done state from current.
func (l *List) Toggle(ctx context.Context, groupID, choreID string, current bool) error {
	if _, err := l.sess.UID(); err != nil {
		return err
	}
	return l.sync.Update(ctx, groupID, choreID, map[string]any{
		sharedspacedb.FieldIsDone: !current,
	})
}

// ChoreUpdate lists the fields to change. Nil fields are left as they are.
type ChoreUpdate struct {
	Name        *string
	AssigneeUID *string
	Repeat      *string
	Type        *string
	IsDone      *bool
}

func (l *List) Update(ctx context.Context, groupID, choreID string, u ChoreUpdate) error {
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
	if u.AssigneeUID != nil {
		name, err := l.assigneeName(ctx, *u.AssigneeUID)
		if err != nil {
			return err
		}
		fields[sharedspacedb.FieldAssignedToID] = *u.AssigneeUID
		fields[sharedspacedb.FieldAssignedToName] = name
	}
	if u.Repeat != nil {
		fields[sharedspacedb.FieldRepeat] = *u.Repeat
	}
	if u.Type != nil {
		fields[sharedspacedb.FieldType] = *u.Type
	}
	if u.IsDone != nil {
		fields[sharedspacedb.FieldIsDone] = *u.IsDone
	}
	if len(fields) == 0 {
		return nil
	}
	return l.sync.Update(ctx, groupID, choreID, fields)
}

func (l *List) Delete(ctx context.Context, groupID, choreID string) error {
	if _, err := l.sess.UID(); err != nil {
		return err
	}
	return l.sync.Delete(ctx, groupID, choreID)
}

// RefreshAssigneeNames rewrites the cached assignee name of uid's chores in
// groupID to name. It returns the number of chores changed.
func (l *List) RefreshAssigneeNames(ctx context.Context, groupID, uid, name string) (int, error) {
	docs, err := l.store.Query(ctx, docstore.Query{
		Collection: collection(groupID),
		Filters: []docstore.Filter{
			{Path: sharedspacedb.FieldAssignedToID, Op: docstore.OpEqual, Value: uid},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("chores: querying assigned chores: %w", err)
	}
	changed := 0
	for _, doc := range docs {
		item, err := decode(doc)
		if err != nil || item.AssignedToName == name {
			continue
		}
		if err := l.sync.Update(ctx, groupID, doc.ID, map[string]any{
			sharedspacedb.FieldAssignedToName: name,
		}); err != nil {
			return changed, err
		}
		changed++
	}
	return changed, nil
}
