// Package record provides the unit of data flowing through a refinement pipeline.
package record

import (
	"errors"
	"fmt"
)

// Default field keys for question/answer style datasets.
const (
	DefaultQueryKey    = "query"
	DefaultResponseKey = "response"
)

// ErrFieldMissing indicates a record does not contain the requested field.
var ErrFieldMissing = errors.New("field missing")

// ErrFieldNotString indicates a record field holds a non-string value.
var ErrFieldNotString = errors.New("field is not a string")

// Record is one sample of a dataset: named fields with arbitrary values.
// Ops mutate records in place via Set; reads of text fields go through
// String so that a missing field surfaces as an error at the access site.
type Record struct {
	fields map[string]any
}

// New creates an empty Record.
func New() *Record {
	return &Record{fields: map[string]any{}}
}

// FromMap creates a Record backed by a copy of the given fields.
func FromMap(fields map[string]any) *Record {
	m := make(map[string]any, len(fields))
	for k, v := range fields {
		m[k] = v
	}
	return &Record{fields: m}
}

// String returns the string value of the named field.
func (r *Record) String(key string) (string, error) {
	v, ok := r.fields[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrFieldMissing, key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s (%T)", ErrFieldNotString, key, v)
	}
	return s, nil
}

// Get returns the raw value of the named field.
func (r *Record) Get(key string) (any, bool) {
	v, ok := r.fields[key]
	return v, ok
}

// Set writes the named field in place.
func (r *Record) Set(key string, value any) {
	r.fields[key] = value
}

// Has reports whether the named field exists.
func (r *Record) Has(key string) bool {
	_, ok := r.fields[key]
	return ok
}

// Len returns the number of fields.
func (r *Record) Len() int {
	return len(r.fields)
}

// Fields returns a copy of the underlying field map.
func (r *Record) Fields() map[string]any {
	m := make(map[string]any, len(r.fields))
	for k, v := range r.fields {
		m[k] = v
	}
	return m
}
