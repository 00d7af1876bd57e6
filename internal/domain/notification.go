package domain

type NotificationKind string

const (
	NotificationNewBorrow     NotificationKind = "new_borrow"
	NotificationStatusChanged NotificationKind = "status_changed"
	NotificationDueReminder   NotificationKind = "due_reminder"
	NotificationOverdue       NotificationKind = "overdue"
)

// NotificationEvent is what the borrow lifecycle hands to the dispatcher.
// It only carries the stored record; hydration happens off the request path.
type NotificationEvent struct {
	Kind           NotificationKind
	Record         BorrowRecord
	PreviousStatus BorrowStatus
}

// NotificationIntent is a resolved event ready for a mail transport.
type NotificationIntent struct {
	Kind           NotificationKind
	Borrow         BorrowDetails
	PreviousStatus BorrowStatus
}
