// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

// Package docstore defines the document database operations the sync layer
// needs. Paths are slash separated, with collections at odd depths and
// documents at even depths, e.g. groups/{groupId}/grocery/{itemId}.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("docstore: document not found")

// DocumentID is the special filter path matching a document's ID.
const DocumentID = "__name__"

// Filter operators.
const (
	OpEqual         = "=="
	OpArrayContains = "array-contains"
	OpIn            = "in"
)

// Doc is a snapshot of a single document.
type Doc struct {
	// ID is the last path segment of the document.
	ID string

	// Path is the full path of the document.
	Path string

	// Data holds the document fields.
	Data map[string]any
}

// DataTo decodes the document fields into v, a pointer to a struct with
// firestore tags. Numeric types are converted as needed.
func (d Doc) DataTo(v any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "firestore",
		WeaklyTypedInput: true,
		Result:           v,
	})
	if err != nil {
		return fmt.Errorf("docstore: creating decoder: %w", err)
	}
	if err := dec.Decode(d.Data); err != nil {
		return fmt.Errorf("docstore: decoding %s: %w", d.Path, err)
	}
	return nil
}

// Update sets a single field of an existing document.
type Update struct {
	Path  string
	Value any
}

// ArrayUnionValue is a write value that adds elements to an array field,
// skipping ones already present.
type ArrayUnionValue struct {
	Elems []any
}

// ArrayUnion returns a value that adds elems to an array field when written.
func ArrayUnion(elems ...any) ArrayUnionValue {
	return ArrayUnionValue{Elems: elems}
}

// Filter restricts a query.
type Filter struct {
	Path  string
	Op    string
	Value any
}

// Query selects documents of a single collection.
type Query struct {
	// Collection is the path of the collection to read.
	Collection string

	// Filters are ANDed together.
	Filters []Filter

	// OrderBy is a field to sort ascending by. Documents missing the field
	// are not returned, matching Firestore.
	OrderBy string
}

// Listener receives each snapshot of a live query in order. Exactly one of
// docs or err is set.
type Listener func(docs []Doc, err error)

// Registration is a live query subscription.
type Registration interface {
	// Stop detaches the listener and waits for its delivery goroutine to
	// exit. It must not be called from within the Listener.
	Stop()
}

// Store is a document database.
type Store interface {
	// Get returns the document at path or ErrNotFound.
	Get(ctx context.Context, path string) (Doc, error)

	// Query runs a one-shot query.
	Query(ctx context.Context, q Query) ([]Doc, error)

	// NewID returns a fresh document ID for collection.
	NewID(collection string) string

	// Add creates a document with a fresh ID in collection.
	Add(ctx context.Context, collection string, data map[string]any) (string, error)

	// Set replaces the document at path.
	Set(ctx context.Context, path string, data map[string]any) error

	// Merge writes the given fields, creating the document when missing and
	// keeping fields not mentioned.
	Merge(ctx context.Context, path string, data map[string]any) error

	// Update writes the given fields of an existing document, or returns
	// ErrNotFound.
	Update(ctx context.Context, path string, updates []Update) error

	// Delete removes the document at path. Deleting a missing document
	// succeeds.
	Delete(ctx context.Context, path string) error

	// Listen starts a live query. The initial result is delivered as the first
	// snapshot.
	Listen(ctx context.Context, q Query, fn Listener) (Registration, error)

	// RunTransaction runs fn atomically. All reads must happen before writes.
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is a transaction. Writes are applied when the transaction function
// returns nil.
type Tx interface {
	Get(path string) (Doc, error)
	Set(path string, data map[string]any) error
	Merge(path string, data map[string]any) error
	Update(path string, updates []Update) error
}

// SplitPath splits a document path into its parent collection and ID.
func SplitPath(docPath string) (collection, id string, err error) {
	docPath = strings.Trim(docPath, "/")
	segs := strings.Split(docPath, "/")
	if docPath == "" || len(segs)%2 != 0 {
		return "", "", fmt.Errorf("docstore: %q is not a document path", docPath)
	}
	return path.Dir(docPath), path.Base(docPath), nil
}
