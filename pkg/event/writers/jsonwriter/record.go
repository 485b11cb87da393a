package jsonwriter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Microsoft/go-winio/pkg/guid"

	"github.com/Microsoft/go-activity/pkg/event"
)

// Record is the JSON representation of an [event.Event].
//
// Field values are encoded with [encoding/json], so types that implement [encoding.TextMarshaler]
// (such as status codes) are written as strings.
type Record struct {
	Time              time.Time `json:"time"`
	Provider          string    `json:"provider,omitempty"`
	Name              string    `json:"name"`
	Opcode            string    `json:"opcode"`
	Level             string    `json:"level"`
	Keyword           string    `json:"keyword"`
	ActivityID        string    `json:"activityId,omitempty"`
	RelatedActivityID string    `json:"relatedActivityId,omitempty"`
	Fields            []Field   `json:"fields,omitempty"`
}

// Field is a named value. A slice of fields keeps the event's field order, which a JSON object
// would not.
type Field struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// FromEvent converts an event to its JSON representation.
func FromEvent(e *event.Event) Record {
	r := Record{
		Time:     e.Time,
		Provider: e.Provider,
		Name:     e.Name,
		Opcode:   e.Opcode.String(),
		Level:    e.Level.String(),
		Keyword:  e.Keyword.String(),
		Fields:   make([]Field, 0, len(e.Fields)),
	}
	if e.ActivityID != (guid.GUID{}) {
		r.ActivityID = e.ActivityID.String()
	}
	if e.RelatedActivityID != (guid.GUID{}) {
		r.RelatedActivityID = e.RelatedActivityID.String()
	}
	for _, f := range e.Fields {
		r.Fields = append(r.Fields, Field{Name: f.Name, Value: f.Value})
	}
	return r
}

// Field returns the value of the first field named name.
func (r *Record) Field(name string) (any, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// StringField returns the value of the first field named name if it is a string, or "" otherwise.
func (r *Record) StringField(name string) string {
	v, _ := r.Field(name)
	s, _ := v.(string)
	return s
}

// Decoder reads records written by a [Writer].
type Decoder struct {
	j *json.Decoder
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{j: json.NewDecoder(r)}
}

// Next returns the next record, or [io.EOF] if there are none left.
func (d *Decoder) Next() (Record, error) {
	var r Record
	if err := d.j.Decode(&r); err != nil {
		if errors.Is(err, io.EOF) {
			return r, io.EOF
		}
		return r, fmt.Errorf("decode event record: %w", err)
	}
	return r, nil
}
