// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trace

// Wire is the structured, serializable form of an Event (spec.md §6:
// "not normative", but stable enough for a host to memoize a build).
// Stack is the resolved call-stack text rather than an id, since a
// StackID is only meaningful relative to the StackTable that minted
// it.
type Wire struct {
	Kind        EventKind `json:"kind"`
	Address     uint64    `json:"address"`
	Size        uint64    `json:"size"`
	Stack       string    `json:"stack"`
	OpIndex     uint64    `json:"opIndex"`
	WallClockUS int64     `json:"wallClockUs"`
}

// ToWire resolves ev's interned stack against stacks and returns its
// serializable form.
func ToWire(ev Event, stacks *StackTable) Wire {
	return Wire{
		Kind:        ev.Kind,
		Address:     ev.Address,
		Size:        ev.Size,
		Stack:       stacks.Text(ev.Stack),
		OpIndex:     ev.OpIndex,
		WallClockUS: ev.WallClockUS,
	}
}

// FromWire interns w.Stack into stacks and returns the reconstructed
// Event. ToWire then FromWire round-trips every field of an Event;
// Stack comes back as an id in stacks for the same text, which need
// not equal the original id.
func FromWire(w Wire, stacks *StackTable) Event {
	return Event{
		Kind:        w.Kind,
		Address:     w.Address,
		Size:        w.Size,
		Stack:       stacks.Intern(w.Stack),
		OpIndex:     w.OpIndex,
		WallClockUS: w.WallClockUS,
	}
}
