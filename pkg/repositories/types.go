package repositories

// LedgerEntry is the durable record for one remote item index. At most one
// applied entry exists per remote index.
type LedgerEntry struct {
	RemoteIndex int64
	TemplateID  string
	Player      string
	Applied     bool
	InstanceID  string
	AppliedAt   int64
}

// CheckRecord is the durable record for one location check. Reported checks
// are never re-sent; unreported checks survive reconnects and restarts.
// Converted marks a shop placeholder whose real item has been granted.
type CheckRecord struct {
	CheckID   int64
	Reported  bool
	Converted bool
	QueuedAt  int64
}

type ErrNotFound struct {
}

func (e *ErrNotFound) Error() string {
	return "not found"
}

func IsNotFound(err error) bool {
	_, ok := err.(*ErrNotFound)
	return ok
}
