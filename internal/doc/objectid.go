package doc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrInvalidObjectID is returned when a value cannot be coerced to an ObjectID.
var ErrInvalidObjectID = errors.New("invalid object id")

// ObjectID identifies a document inside a collection.
//
// ObjectIDs are UUIDv7 values: the leading bits carry a millisecond
// timestamp, so IDs generated by one process sort by creation time.
type ObjectID uuid.UUID

// NilObjectID is the zero ObjectID.
var NilObjectID ObjectID

// NewObjectID returns a fresh time-ordered ObjectID.
func NewObjectID() ObjectID {
	return ObjectID(uuid.Must(uuid.NewV7()))
}

// ParseObjectID parses the hyphenated form produced by ObjectID.String.
func ParseObjectID(s string) (ObjectID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return NilObjectID, fmt.Errorf("%w: %q", ErrInvalidObjectID, s)
	}
	return ObjectID(u), nil
}

// MustParseObjectID is like ParseObjectID but panics on error.
// Use only in tests or with constant inputs.
func MustParseObjectID(s string) ObjectID {
	id, err := ParseObjectID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// ToObjectID coerces an ORM identifier into an ObjectID.
//
// Accepted inputs: ObjectID, *ObjectID, uuid.UUID, [16]byte and strings in
// any form accepted by uuid.Parse. Everything else is ErrInvalidObjectID.
func ToObjectID(v any) (ObjectID, error) {
	switch id := v.(type) {
	case ObjectID:
		return id, nil
	case *ObjectID:
		if id == nil {
			return NilObjectID, fmt.Errorf("%w: nil pointer", ErrInvalidObjectID)
		}
		return *id, nil
	case uuid.UUID:
		return ObjectID(id), nil
	case [16]byte:
		return ObjectID(id), nil
	case string:
		return ParseObjectID(id)
	case fmt.Stringer:
		return ParseObjectID(id.String())
	case nil:
		return NilObjectID, fmt.Errorf("%w: nil", ErrInvalidObjectID)
	default:
		return NilObjectID, fmt.Errorf("%w: unsupported type %T", ErrInvalidObjectID, v)
	}
}

// String returns the hyphenated UUID form.
func (id ObjectID) String() string {
	return uuid.UUID(id).String()
}

// IsZero reports whether id is the zero ObjectID.
func (id ObjectID) IsZero() bool {
	return id == NilObjectID
}

// MarshalText implements encoding.TextMarshaler.
func (id ObjectID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ObjectID) UnmarshalText(data []byte) error {
	parsed, err := ParseObjectID(string(data))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// MarshalJSON implements json.Marshaler.
func (id ObjectID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}
