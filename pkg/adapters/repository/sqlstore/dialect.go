package sqlstore

import sq "github.com/Masterminds/squirrel"

// Dialect carries what differs between the SQL backends sharing this store.
type Dialect struct {
	Name        string
	Placeholder sq.PlaceholderFormat

	// IsUniqueViolation reports a UNIQUE constraint failure.
	IsUniqueViolation func(error) bool
	// IsForeignKeyViolation reports a FOREIGN KEY constraint failure.
	IsForeignKeyViolation func(error) bool

	// LockRows appends FOR UPDATE to the owner read inside Delete.
	LockRows bool
}
