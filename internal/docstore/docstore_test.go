// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

package docstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	ID       string    `firestore:"-"`
	Name     string    `firestore:"name"`
	Quantity int64     `firestore:"quantity"`
	Done     bool      `firestore:"isDone"`
	Tags     []string  `firestore:"tags"`
	At       time.Time `firestore:"at"`
}

func TestDataTo(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	doc := Doc{
		ID:   "d1",
		Path: "things/d1",
		Data: map[string]any{
			"name":     "milk",
			"quantity": float64(3),
			"isDone":   true,
			"tags":     []any{"a", "b"},
			"at":       at,
			"extra":    "ignored",
		},
	}

	var s sample
	require.NoError(t, doc.DataTo(&s))
	assert.Equal(t, "milk", s.Name)
	assert.Equal(t, int64(3), s.Quantity)
	assert.True(t, s.Done)
	assert.Equal(t, []string{"a", "b"}, s.Tags)
	assert.True(t, at.Equal(s.At))
	assert.Empty(t, s.ID)
}

func TestDataToMissingFields(t *testing.T) {
	var s sample
	require.NoError(t, Doc{Path: "things/x", Data: map[string]any{}}.DataTo(&s))
	assert.Equal(t, sample{}, s)
}

func TestDataToBadType(t *testing.T) {
	var s sample
	err := Doc{Path: "things/x", Data: map[string]any{"tags": map[string]any{"k": 1}}}.DataTo(&s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "things/x")
}

func TestSplitPath(t *testing.T) {
	tests := []struct {
		in   string
		coll string
		id   string
		err  bool
	}{
		{in: "users/u1", coll: "users", id: "u1"},
		{in: "groups/g1/grocery/i1", coll: "groups/g1/grocery", id: "i1"},
		{in: "/users/u1/", coll: "users", id: "u1"},
		{in: "users", err: true},
		{in: "", err: true},
		{in: "groups/g1/grocery", err: true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			coll, id, err := SplitPath(tc.in)
			if tc.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.coll, coll)
			assert.Equal(t, tc.id, id)
		})
	}
}
