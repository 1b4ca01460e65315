/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package model

import (
	"reflect"
	"sort"
)

// ChangeTracker records which fields of one document were written during a
// job so the commit only touches changed documents.
type ChangeTracker struct {
	fields map[string]struct{}
}

// Mark flags field as changed.
func (c *ChangeTracker) Mark(field string) {
	if c.fields == nil {
		c.fields = make(map[string]struct{})
	}
	c.fields[field] = struct{}{}
}

// HasChanges reports whether any field was flagged.
func (c *ChangeTracker) HasChanges() bool {
	return len(c.fields) > 0
}

// ChangedFields returns the flagged field names, sorted.
func (c *ChangeTracker) ChangedFields() []string {
	out := make([]string, 0, len(c.fields))
	for f := range c.fields {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// ClearChangedFlag resets the tracker after a commit.
func (c *ChangeTracker) ClearChangedFlag() {
	c.fields = nil
}

// SetValue writes v unconditionally and flags field.
func SetValue[T any](c *ChangeTracker, field string, dst *T, v T) {
	*dst = v
	c.Mark(field)
}

// CompareAndSet writes v only when it differs from *dst by ==.
func CompareAndSet[T comparable](c *ChangeTracker, field string, dst *T, v T) bool {
	if *dst == v {
		return false
	}
	*dst = v
	c.Mark(field)
	return true
}

// CompareAndSetDeep writes v only when it differs from *dst structurally.
// Use it for pointers, slices, maps and nested structs.
func CompareAndSetDeep[T any](c *ChangeTracker, field string, dst *T, v T) bool {
	if reflect.DeepEqual(*dst, v) {
		return false
	}
	*dst = v
	c.Mark(field)
	return true
}
