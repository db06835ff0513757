// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package symbolize

import (
	"debug/dwarf"
	"testing"
)

func TestLongestCommonPrefix(t *testing.T) {
	tests := []struct {
		paths []string
		want  string
	}{
		{nil, ""},
		{[]string{"/a/b/c.c", "/a/b/d.c"}, "/a/b/"},
		{[]string{"/a/b/c.c"}, "/a/b/c.c"},
		{[]string{"/a/b/c.c", "/a/x/d.c"}, "/a/"},
		{[]string{"rel.c", "/a/b/c.c"}, "/a/b/c.c"},
	}
	for _, tc := range tests {
		if got := longestCommonPrefix(tc.paths); got != tc.want {
			t.Errorf("longestCommonPrefix(%v) = %q, want %q", tc.paths, got, tc.want)
		}
	}
}

func TestLookupFallsBackToInvalidSymbol(t *testing.T) {
	s := &Symbolizer{}
	if got := s.Lookup(0x1234); got != InvalidSymbol {
		t.Errorf("Lookup on empty symbolizer = %q, want %q", got, InvalidSymbol)
	}
}

func TestLookupResolvesLineEntry(t *testing.T) {
	file := &dwarf.LineFile{Name: "/src/a/main.c"}
	s := &Symbolizer{
		functab: []funcRange{{name: "main", lowpc: 0x1000, highpc: 0x2000}},
		linetab: []dwarf.LineEntry{
			{Address: 0x1000, File: file, Line: 10},
			{Address: 0x1010, File: file, Line: 12},
		},
		prefix: "/src/a/",
	}
	if got, want := s.Lookup(0x1005), "main.c:10"; got != want {
		t.Errorf("Lookup(0x1005) = %q, want %q", got, want)
	}
	if got, want := s.Lookup(0x1500), "main.c:12"; got != want {
		t.Errorf("Lookup(0x1500) = %q, want %q", got, want)
	}
}
