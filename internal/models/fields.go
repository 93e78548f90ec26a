package models

import (
	"fmt"
	"strings"
)

// Field names a value that may be included in a result's structured output.
type Field string

const (
	FieldQuestion  Field = "question"
	FieldAnswer    Field = "answer"
	FieldDomain    Field = "domain"
	FieldModel     Field = "model"
	FieldTimestamp Field = "timestamp"
	FieldKnowledge Field = "knowledge"
)

// AllFields is the allow-list of structured output fields, in display order.
var AllFields = []Field{
	FieldQuestion,
	FieldAnswer,
	FieldDomain,
	FieldModel,
	FieldTimestamp,
	FieldKnowledge,
}

// DefaultFields mirrors the fields the chat view has always shown.
var DefaultFields = []Field{
	FieldQuestion,
	FieldAnswer,
	FieldDomain,
	FieldTimestamp,
}

func (f Field) Valid() bool {
	for _, known := range AllFields {
		if f == known {
			return true
		}
	}
	return false
}

type FieldSet map[Field]struct{}

func NewFieldSet(fields ...Field) FieldSet {
	set := make(FieldSet, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// ParseFields validates names against AllFields. Blank names are ignored.
func ParseFields(names []string) (FieldSet, error) {
	set := make(FieldSet, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		f := Field(name)
		if !f.Valid() {
			return nil, fmt.Errorf("unknown output field %q", name)
		}
		set[f] = struct{}{}
	}
	return set, nil
}

func (s FieldSet) Has(f Field) bool {
	_, ok := s[f]
	return ok
}

// List returns the set in AllFields order.
func (s FieldSet) List() []Field {
	out := make([]Field, 0, len(s))
	for _, f := range AllFields {
		if s.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

func (s FieldSet) Strings() []string {
	list := s.List()
	out := make([]string, len(list))
	for i, f := range list {
		out[i] = string(f)
	}
	return out
}
