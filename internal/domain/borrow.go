package domain

import (
	"fmt"
	"math"
	"time"
)

type BorrowStatus string

const (
	BorrowStatusPending  BorrowStatus = "pending"
	BorrowStatusApproved BorrowStatus = "approved"
	BorrowStatusRejected BorrowStatus = "rejected"
	BorrowStatusBorrowed BorrowStatus = "borrowed"
	BorrowStatusReturned BorrowStatus = "returned"
	BorrowStatusOverdue  BorrowStatus = "overdue"
)

// AllBorrowStatuses lists every persisted status value.
var AllBorrowStatuses = []BorrowStatus{
	BorrowStatusPending,
	BorrowStatusApproved,
	BorrowStatusRejected,
	BorrowStatusBorrowed,
	BorrowStatusReturned,
	BorrowStatusOverdue,
}

func ParseBorrowStatus(s string) (BorrowStatus, error) {
	for _, st := range AllBorrowStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", NewValidationError("status", fmt.Sprintf("unknown status %q", s))
}

// Terminal reports whether no transition leaves s.
func (s BorrowStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

// Trigger says who is asking for a transition.
type Trigger int

const (
	TriggerAdmin Trigger = iota
	TriggerAutomatic
)

func (t Trigger) String() string {
	if t == TriggerAutomatic {
		return "automatic"
	}
	return "admin"
}

// transitions is the whole borrow lifecycle. Anything not listed is rejected.
var transitions = map[BorrowStatus]map[BorrowStatus]Trigger{
	BorrowStatusPending: {
		BorrowStatusApproved: TriggerAdmin,
		BorrowStatusRejected: TriggerAdmin,
	},
	BorrowStatusApproved: {
		BorrowStatusBorrowed: TriggerAdmin,
		BorrowStatusReturned: TriggerAdmin,
	},
	BorrowStatusBorrowed: {
		BorrowStatusReturned: TriggerAdmin,
		BorrowStatusOverdue:  TriggerAutomatic,
	},
	BorrowStatusOverdue: {
		BorrowStatusReturned: TriggerAdmin,
	},
}

// CheckTransition validates from -> to for the given trigger against the
// lifecycle table.
func CheckTransition(from, to BorrowStatus, by Trigger) error {
	want, ok := transitions[from][to]
	if !ok {
		return &InvalidTransitionError{From: from, To: to}
	}
	if want != by {
		return &InvalidTransitionError{From: from, To: to, Reason: "only reachable by " + want.String() + " trigger"}
	}
	return nil
}

// LineItem is one item entry inside a borrow.
type LineItem struct {
	ItemID    string        `json:"item_id"`
	Condition ItemCondition `json:"condition"`
	Notes     string        `json:"notes,omitempty"`
}

// BorrowRecord is the reference-only borrow as stored: user, items and
// approver are ids. See BorrowDetails for the hydrated form.
type BorrowRecord struct {
	ID              string        `json:"id"`
	Code            string        `json:"borrow_code"`
	UserID          string        `json:"user_id"`
	Items           []LineItem    `json:"items"`
	BorrowDate      time.Time     `json:"borrow_date"`
	DueDate         time.Time     `json:"due_date"`
	Status          BorrowStatus  `json:"status"`
	ApprovedBy      *string       `json:"approved_by,omitempty"`
	ReturnDate      *time.Time    `json:"return_date,omitempty"`
	ReturnCondition ItemCondition `json:"return_condition,omitempty"`
	ReturnNotes     string        `json:"return_notes,omitempty"`
	Purpose         string        `json:"purpose"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// ItemIDs returns the referenced item ids in line order.
func (b *BorrowRecord) ItemIDs() []string {
	ids := make([]string, 0, len(b.Items))
	for _, li := range b.Items {
		ids = append(ids, li.ItemID)
	}
	return ids
}

// IsLate is true while the borrow is not returned and its due date has passed.
func (b *BorrowRecord) IsLate(now time.Time) bool {
	return b.ReturnDate == nil && b.DueDate.Before(now)
}

// Duration is the number of started days between borrowing and return (or now).
func (b *BorrowRecord) Duration(now time.Time) int {
	end := now
	if b.ReturnDate != nil {
		end = *b.ReturnDate
	}
	days := end.Sub(b.BorrowDate).Hours() / 24
	return int(math.Ceil(days))
}

// Clone returns a deep copy so stores never share slices or pointers with callers.
func (b *BorrowRecord) Clone() *BorrowRecord {
	c := *b
	c.Items = append([]LineItem(nil), b.Items...)
	if b.ApprovedBy != nil {
		v := *b.ApprovedBy
		c.ApprovedBy = &v
	}
	if b.ReturnDate != nil {
		v := *b.ReturnDate
		c.ReturnDate = &v
	}
	return &c
}

// GenerateBorrowCode derives a borrow code from the last eight digits of the
// millisecond timestamp.
func GenerateBorrowCode(t time.Time) string {
	ms := fmt.Sprintf("%d", t.UnixMilli())
	if len(ms) > 8 {
		ms = ms[len(ms)-8:]
	}
	return "BRW" + ms
}

// GenerateItemCode mirrors GenerateBorrowCode for inventory items.
func GenerateItemCode(t time.Time) string {
	return "ITM" + GenerateBorrowCode(t)[3:]
}

// BorrowedItem is a line item with its item resolved.
type BorrowedItem struct {
	Item      Item          `json:"item"`
	Condition ItemCondition `json:"condition"`
	Notes     string        `json:"notes,omitempty"`
}

// BorrowDetails is a fully hydrated borrow: borrower, items and approver
// resolved, plus the derived lateness and duration at hydration time.
type BorrowDetails struct {
	Record   BorrowRecord   `json:"record"`
	User     User           `json:"user"`
	Items    []BorrowedItem `json:"items"`
	Approver *User          `json:"approver,omitempty"`
	IsLate   bool           `json:"is_late"`
	Duration int            `json:"duration"`
}

// ItemNames renders the borrowed items as "name (code)" entries.
func (d *BorrowDetails) ItemNames() []string {
	names := make([]string, 0, len(d.Items))
	for _, bi := range d.Items {
		names = append(names, fmt.Sprintf("%s (%s)", bi.Item.Name, bi.Item.Code))
	}
	return names
}

// BorrowFilter narrows borrow listings. Zero values mean "any".
type BorrowFilter struct {
	Status BorrowStatus
	UserID string
	From   *time.Time
	To     *time.Time
	Page   int
	Limit  int
}

// StatusCount aggregates borrows sharing one status.
type StatusCount struct {
	Status BorrowStatus `json:"status"`
	Count  int          `json:"count"`
	Items  int          `json:"items"`
}

type BorrowStats struct {
	ByStatus    []StatusCount `json:"stats"`
	Overdue     int           `json:"overdue"`
	ReturnToday int           `json:"return_today"`
}
