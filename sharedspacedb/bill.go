// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

package sharedspacedb

import "time"

const (
	FieldAmount     = "amount"
	FieldPaidBy     = "paidBy"
	FieldPaidByName = "paidByName"
	FieldSplitAmong = "splitAmong"
)

// Bill is a shared expense stored at groups/{groupId}/bills/{billId}.
type Bill struct {
	// ID is the document ID of the bill.
	ID string `firestore:"-"`

	// Name describes the expense, e.g. "Electricity".
	Name string `firestore:"name"`

	// Amount is the total paid. Always positive.
	Amount float64 `firestore:"amount"`

	// PaidBy is the uid of the member who paid and PaidByName their display
	// name at that time.
	PaidBy     string `firestore:"paidBy"`
	PaidByName string `firestore:"paidByName"`

	// SplitAmong lists the uids sharing the bill equally. Empty means every
	// member of the group.
	SplitAmong []string `firestore:"splitAmong"`

	UpdatedAt time.Time `firestore:"updatedAt"`
}
