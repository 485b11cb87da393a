package event

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyName is returned when a [Descriptor] has no name.
	ErrEmptyName = errors.New("event name is empty")
	// ErrReservedField is returned when a payload field uses a name reserved for event metadata.
	ErrReservedField = errors.New("field name is reserved")
)

// Descriptor holds the metadata shared by all events of one kind, such as all start and stop
// events for an activity type.
type Descriptor struct {
	Name    string
	Keyword Keyword
	Level   Level
}

// Validate checks that the descriptor is named, and that none of the fields override event
// metadata.
func (d Descriptor) Validate(fields ...Field) error {
	if d.Name == "" {
		return ErrEmptyName
	}
	return ValidateFields(fields...)
}

// ValidateFields checks that none of the fields override event metadata.
func ValidateFields(fields ...Field) error {
	for _, f := range fields {
		if f.Name == "" {
			return fmt.Errorf("field with value %v: %w", f.Value, ErrEmptyName)
		}
		if _, ok := reservedFields[f.Name]; ok {
			return fmt.Errorf("field %q: %w", f.Name, ErrReservedField)
		}
	}
	return nil
}
