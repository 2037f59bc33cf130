package firm

import (
	"github.com/google/uuid"
)

// ID is a globally unique token used to cross-reference objects.
// IDs serialize as plain tagged values and never take part in anchor/alias
// tracking, so the same ID may appear any number of times in a document.
type ID uuid.UUID

// NilID is the zero ID.
var NilID ID

// NewID returns a new random ID.
func NewID() ID {
	return ID(uuid.New())
}

// ParseID parses the canonical string form of an ID.
func ParseID(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return NilID, err
	}
	return ID(u), nil
}

// IsZero reports whether id is the zero ID.
func (id ID) IsZero() bool {
	return id == NilID
}

func (id ID) String() string {
	return uuid.UUID(id).String()
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(data []byte) error {
	var u uuid.UUID
	if err := u.UnmarshalText(data); err != nil {
		return err
	}
	*id = ID(u)
	return nil
}
