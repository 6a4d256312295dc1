// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

// Package bills syncs a group's shared expenses and works out who owes whom.
package bills

import (
	"context"
	"errors"
	"math"
	"slices"
	"strings"

	"github.com/skburkard1/SharedSpace/internal/docstore"
	"github.com/skburkard1/SharedSpace/internal/livesync"
	"github.com/skburkard1/SharedSpace/internal/members"
	"github.com/skburkard1/SharedSpace/internal/session"
	"github.com/skburkard1/SharedSpace/sharedspacedb"
)

var (
	ErrEmptyName     = errors.New("bills: bill name is empty")
	ErrInvalidAmount = errors.New("bills: amount must be positive")
)

type Bill = sharedspacedb.Bill

type Session interface {
	State() session.State
}

func New(store docstore.Store, sess Session, opts livesync.Options) *Ledger {
	return &Ledger{
		sess: sess,
		sync: livesync.NewWith(opts, livesync.Config[Bill]{
			Feature: "bills",
			Store:   store,
			Collection: func(groupID string) string {
				return sharedspacedb.GroupCollection(groupID, sharedspacedb.BillsSubcollection)
			},
			OrderBy: sharedspacedb.FieldUpdatedAt,
			Decode:  decode,
		}),
	}
}

// Ledger is the live bill list of one group at a time.
type Ledger struct {
	sess Session
	sync *livesync.Synchronizer[Bill]
}

func decode(doc docstore.Doc) (Bill, error) {
	var b Bill
	if err := doc.DataTo(&b); err != nil {
		return Bill{}, err
	}
	b.ID = doc.ID
	return b, nil
}

func (l *Ledger) Listen(ctx context.Context, groupID string) error {
	return l.sync.Listen(ctx, groupID)
}

func (l *Ledger) StopListening() {
	l.sync.StopListening()
}

func (l *Ledger) WaitReady(ctx context.Context) error {
	return l.sync.WaitReady(ctx)
}

func (l *Ledger) Bills() []Bill {
	return l.sync.Items()
}

func (l *Ledger) Watch(fn func([]Bill)) func() {
	return l.sync.Watch(fn)
}

func validAmount(a float64) bool {
	return a > 0 && !math.IsInf(a, 0) && !math.IsNaN(a)
}

// NewBill describes an expense paid by the signed-in user. An empty
// SplitAmong splits it among all members.
type NewBill struct {
	Name       string
	Amount     float64
	SplitAmong []string
}

func (l *Ledger) Add(ctx context.Context, groupID string, b NewBill) (string, error) {
	st := l.sess.State()
	if !st.SignedIn() {
		return "", session.ErrUnauthenticated
	}
	name := strings.TrimSpace(b.Name)
	if name == "" {
		return "", ErrEmptyName
	}
	if !validAmount(b.Amount) {
		return "", ErrInvalidAmount
	}
	payer := st.Name
	if payer == "" {
		payer = members.UnknownName
	}
	split := b.SplitAmong
	if split == nil {
		split = []string{}
	}
	return l.sync.Add(ctx, groupID, map[string]any{
		sharedspacedb.FieldName:       name,
		sharedspacedb.FieldAmount:     b.Amount,
		sharedspacedb.FieldPaidBy:     st.UID,
		sharedspacedb.FieldPaidByName: payer,
		sharedspacedb.FieldSplitAmong: split,
	})
}

type BillUpdate struct {
	Name       *string
	Amount     *float64
	SplitAmong *[]string
}

func (l *Ledger) Update(ctx context.Context, groupID, billID string, u BillUpdate) error {
	if !l.sess.State().SignedIn() {
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
	if u.Amount != nil {
		if !validAmount(*u.Amount) {
			return ErrInvalidAmount
		}
		fields[sharedspacedb.FieldAmount] = *u.Amount
	}
	if u.SplitAmong != nil {
		split := *u.SplitAmong
		if split == nil {
			split = []string{}
		}
		fields[sharedspacedb.FieldSplitAmong] = split
	}
	if len(fields) == 0 {
		return nil
	}
	return l.sync.Update(ctx, groupID, billID, fields)
}

func (l *Ledger) Delete(ctx context.Context, groupID, billID string) error {
	if !l.sess.State().SignedIn() {
		return session.ErrUnauthenticated
	}
	return l.sync.Delete(ctx, groupID, billID)
}

// Balances summarizes the listened bills for groupMembers.
func (l *Ledger) Balances(groupMembers []string) ([]Balance, []Settlement) {
	return Settle(l.sync.Items(), groupMembers)
}

// Balance is one member's position across all bills. A positive Net means
// the member is owed money.
type Balance struct {
	UID  string
	Paid float64
	Owed float64
	Net  float64
}

// Settlement is a payment that clears debt between two members.
type Settlement struct {
	From   string
	To     string
	Amount float64
}

func toCents(a float64) int64 {
	return int64(math.Round(a * 100))
}

func fromCents(c int64) float64 {
	return float64(c) / 100
}

// Settle splits each bill equally among its participants and returns every
// member's balance, sorted by uid, along with the payments that settle them.
// Remainder cents go to the first participants by uid. Bills without a payer
// or participants are ignored.
func Settle(bills []Bill, groupMembers []string) ([]Balance, []Settlement) {
	paid := map[string]int64{}
	owed := map[string]int64{}
	track := func(uid string) {
		if _, ok := paid[uid]; !ok {
			paid[uid] = 0
			owed[uid] = 0
		}
	}
	for _, uid := range groupMembers {
		track(uid)
	}

	for _, b := range bills {
		participants := b.SplitAmong
		if len(participants) == 0 {
			participants = groupMembers
		}
		if b.PaidBy == "" || len(participants) == 0 || !validAmount(b.Amount) {
			continue
		}
		participants = slices.Clone(participants)
		slices.Sort(participants)
		participants = slices.Compact(participants)

		total := toCents(b.Amount)
		n := int64(len(participants))
		share, rem := total/n, total%n

		track(b.PaidBy)
		paid[b.PaidBy] += total
		for i, uid := range participants {
			s := share
			if int64(i) < rem {
				s++
			}
			track(uid)
			owed[uid] += s
		}
	}

	uids := make([]string, 0, len(paid))
	for uid := range paid {
		uids = append(uids, uid)
	}
	slices.Sort(uids)

	type position struct {
		uid   string
		cents int64
	}
	var creditors, debtors []position
	balances := make([]Balance, len(uids))
	for i, uid := range uids {
		net := paid[uid] - owed[uid]
		balances[i] = Balance{UID: uid, Paid: fromCents(paid[uid]), Owed: fromCents(owed[uid]), Net: fromCents(net)}
		switch {
		case net > 0:
			creditors = append(creditors, position{uid, net})
		case net < 0:
			debtors = append(debtors, position{uid, -net})
		}
	}

	// Greedy matching of the largest debts with the largest credits.
	byAmount := func(a, b position) int {
		if a.cents != b.cents {
			if a.cents > b.cents {
				return -1
			}
			return 1
		}
		return strings.Compare(a.uid, b.uid)
	}
	slices.SortFunc(creditors, byAmount)
	slices.SortFunc(debtors, byAmount)

	var settlements []Settlement
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		amount := min(debtors[i].cents, creditors[j].cents)
		settlements = append(settlements, Settlement{From: debtors[i].uid, To: creditors[j].uid, Amount: fromCents(amount)})
		debtors[i].cents -= amount
		creditors[j].cents -= amount
		if debtors[i].cents == 0 {
			i++
		}
		if creditors[j].cents == 0 {
			j++
		}
	}
	return balances, settlements
}
