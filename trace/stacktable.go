// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trace

// StackTable interns call-stack text so that an allocation and its
// later matching free can share the same backing string without
// either owning a reference-counted pointer to the other (design
// note: model shared strings as an opaque id into a single owning
// table, not as Rc-style shared pointers).
type StackTable struct {
	strs []string
	ids  map[string]StackID
}

// NewStackTable returns an empty stack table.
func NewStackTable() *StackTable {
	return &StackTable{ids: make(map[string]StackID)}
}

// Intern returns the StackID for s, allocating a new one if s hasn't
// been seen before. An empty string interns to NoStack.
func (t *StackTable) Intern(s string) StackID {
	if s == "" {
		return NoStack
	}
	if id, ok := t.ids[s]; ok {
		return id
	}
	id := StackID(len(t.strs))
	t.strs = append(t.strs, s)
	t.ids[s] = id
	return id
}

// Text returns the interned text for id, or "" for NoStack or an
// unknown id.
func (t *StackTable) Text(id StackID) string {
	if id < 0 || int(id) >= len(t.strs) {
		return ""
	}
	return t.strs[id]
}
