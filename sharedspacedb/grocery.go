// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

package sharedspacedb

import "time"

// Known grocery sections. Other values are kept as-is.
const (
	SectionToBuy     = "toBuy"
	SectionInventory = "inventory"
)

const (
	FieldQuantity = "quantity"
	FieldSection  = "section"
	FieldAddedBy  = "addedBy"
)

// GroceryItem is an entry of a group's grocery list stored at
// groups/{groupId}/grocery/{itemId}.
type GroceryItem struct {
	// ID is the document ID of the item.
	ID string `firestore:"-"`

	// Name is the name of the item.
	Name string `firestore:"name"`

	// Quantity is how many of the item to buy or are in stock. Never negative.
	Quantity int64 `firestore:"quantity"`

	// Section is the list the item belongs to, usually SectionToBuy or
	// SectionInventory.
	Section string `firestore:"section"`

	// AddedBy is the uid of the user who added the item.
	AddedBy string `firestore:"addedBy"`

	// UpdatedAt is when the item was last written.
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// Normalize fills fields missing from older documents.
func (g *GroceryItem) Normalize() {
	if g.Section == "" {
		g.Section = SectionToBuy
	}
}
