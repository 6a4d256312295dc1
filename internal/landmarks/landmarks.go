// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

// Package landmarks syncs the places a group has saved on its shared map.
package landmarks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/skburkard1/SharedSpace/internal/docstore"
	"github.com/skburkard1/SharedSpace/internal/livesync"
	"github.com/skburkard1/SharedSpace/internal/members"
	"github.com/skburkard1/SharedSpace/internal/session"
	"github.com/skburkard1/SharedSpace/sharedspacedb"
)

var (
	ErrEmptyName       = errors.New("landmarks: landmark name is empty")
	ErrInvalidLocation = errors.New("landmarks: latitude must be within [-90, 90] and longitude within [-180, 180]")
)

type Item = sharedspacedb.LandmarkItem

type Session interface {
	State() session.State
}

func New(store docstore.Store, sess Session, opts livesync.Options) *Map {
	return &Map{
		store: store,
		sess:  sess,
		sync: livesync.NewWith(opts, livesync.Config[Item]{
			Feature:    "landmarks",
			Store:      store,
			Collection: collection,
			OrderBy:    sharedspacedb.FieldUpdatedAt,
			Decode:     decode,
		}),
	}
}

// Map is the live landmark list of one group at a time.
type Map struct {
	store docstore.Store
	sess  Session
	sync  *livesync.Synchronizer[Item]
}

func collection(groupID string) string {
	return sharedspacedb.GroupCollection(groupID, sharedspacedb.LandmarksSubcollection)
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

func validLocation(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

func (m *Map) Listen(ctx context.Context, groupID string) error {
	return m.sync.Listen(ctx, groupID)
}

func (m *Map) StopListening() {
	m.sync.StopListening()
}

func (m *Map) WaitReady(ctx context.Context) error {
	return m.sync.WaitReady(ctx)
}

func (m *Map) Items() []Item {
	return m.sync.Items()
}

func (m *Map) Watch(fn func([]Item)) func() {
	return m.sync.Watch(fn)
}

// ByCollection groups landmarks by their collection.
func (m *Map) ByCollection() map[string][]Item {
	out := map[string][]Item{}
	for _, l := range m.sync.Items() {
		out[l.Collection] = append(out[l.Collection], l)
	}
	return out
}

// Collections returns the collection names in use, sorted.
func (m *Map) Collections() []string {
	var out []string
	for name := range m.ByCollection() {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

type NewLandmark struct {
	Name        string
	Description string
	// Collection defaults to General.
	Collection string
	Latitude   float64
	Longitude  float64
}

// Add saves a landmark credited to the signed-in user.
func (m *Map) Add(ctx context.Context, groupID string, l NewLandmark) (string, error) {
	st := m.sess.State()
	if !st.SignedIn() {
		return "", session.ErrUnauthenticated
	}
	name := strings.TrimSpace(l.Name)
	if name == "" {
		return "", ErrEmptyName
	}
	if !validLocation(l.Latitude, l.Longitude) {
		return "", ErrInvalidLocation
	}
	coll := strings.TrimSpace(l.Collection)
	if coll == "" {
		coll = sharedspacedb.DefaultLandmarkCollection
	}
	adder := st.Name
	if adder == "" {
		adder = members.UnknownName
	}
	return m.sync.Add(ctx, groupID, map[string]any{
		sharedspacedb.FieldName:        name,
		sharedspacedb.FieldDescription: strings.TrimSpace(l.Description),
		sharedspacedb.FieldCollection:  coll,
		sharedspacedb.FieldLatitude:    l.Latitude,
		sharedspacedb.FieldLongitude:   l.Longitude,
		sharedspacedb.FieldAddedBy:     st.UID,
		sharedspacedb.FieldAddedByName: adder,
	})
}

// LandmarkUpdate lists the fields to change. Latitude and Longitude must be
// set together.
type LandmarkUpdate struct {
	Name        *string
	Description *string
	Collection  *string
	Latitude    *float64
	Longitude   *float64
}

func (m *Map) Update(ctx context.Context, groupID, landmarkID string, u LandmarkUpdate) error {
	if !m.sess.State().SignedIn() {
		return session.ErrUnauthenticated
	}
	fields := map[string]any{}
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		if name == "" {
			return ErrEmptyName
		}
		fields[sharedspacedb.FieldName] = name
	}
	if u.Description != nil {
		fields[sharedspacedb.FieldDescription] = strings.TrimSpace(*u.Description)
	}
	if u.Collection != nil {
		coll := strings.TrimSpace(*u.Collection)
		if coll == "" {
			coll = sharedspacedb.DefaultLandmarkCollection
		}
		fields[sharedspacedb.FieldCollection] = coll
	}
	if (u.Latitude == nil) != (u.Longitude == nil) {
		return ErrInvalidLocation
	}
	if u.Latitude != nil {
		if !validLocation(*u.Latitude, *u.Longitude) {
			return ErrInvalidLocation
		}
		fields[sharedspacedb.FieldLatitude] = *u.Latitude
		fields[sharedspacedb.FieldLongitude] = *u.Longitude
	}
	if len(fields) == 0 {
		return nil
	}
	return m.sync.Update(ctx, groupID, landmarkID, fields)
}

func (m *Map) Delete(ctx context.Context, groupID, landmarkID string) error {
	if !m.sess.State().SignedIn() {
		return session.ErrUnauthenticated
	}
	return m.sync.Delete(ctx, groupID, landmarkID)
}

// RefreshAdderNames rewrites the cached adder name on landmarks uid saved in
// groupID. It returns the number of landmarks changed.
func (m *Map) RefreshAdderNames(ctx context.Context, groupID, uid, name string) (int, error) {
	docs, err := m.store.Query(ctx, docstore.Query{
		Collection: collection(groupID),
		Filters: []docstore.Filter{
			{Path: sharedspacedb.FieldAddedBy, Op: docstore.OpEqual, Value: uid},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("landmarks: querying saved landmarks: %w", err)
	}
	changed := 0
	for _, doc := range docs {
		if cur, _ := doc.Data[sharedspacedb.FieldAddedByName].(string); cur == name {
			continue
		}
		if err := m.sync.Update(ctx, groupID, doc.ID, map[string]any{
			sharedspacedb.FieldAddedByName: name,
		}); err != nil {
			return changed, err
		}
		changed++
	}
	return changed, nil
}
