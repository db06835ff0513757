// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package symbolize resolves instruction addresses found in an
// embedded trace's stack-trace lines to short "file:line" strings,
// using the DWARF debug information in a companion binary.
package symbolize

import (
	"debug/dwarf"
	"debug/elf"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ianlancetaylor/demangle"
)

// InvalidSymbol is returned by Lookup for an address that couldn't be
// resolved.
const InvalidSymbol = "[INVALID_SYMBOL]"

// Symbolizer resolves addresses against one binary's DWARF info.
type Symbolizer struct {
	functab []funcRange
	linetab []dwarf.LineEntry
	prefix  string
}

type funcRange struct {
	name          string
	lowpc, highpc uint64
}

// Open loads ELF and DWARF debug info from path. A missing file or
// unparseable DWARF is a fatal initialization error (spec.md §7:
// BinaryIoError / DwarfError).
func Open(path string) (*Symbolizer, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("symbolize: opening %s: %w", path, err)
	}
	defer f.Close()

	if f.Section(".debug_info") == nil {
		return nil, fmt.Errorf("symbolize: %s has no DWARF debug info", path)
	}
	d, err := f.DWARF()
	if err != nil {
		return nil, fmt.Errorf("symbolize: loading DWARF from %s: %w", path, err)
	}

	functab, err := dwarfFuncTable(d)
	if err != nil {
		return nil, fmt.Errorf("symbolize: reading DWARF function table: %w", err)
	}
	linetab, err := dwarfLineTable(d)
	if err != nil {
		return nil, fmt.Errorf("symbolize: reading DWARF line table: %w", err)
	}

	return &Symbolizer{
		functab: functab,
		linetab: linetab,
	}, nil
}

// SetPrefixFromAddrs resolves every address in addrs (typically the set
// extracted from a trace's stack-frame lines) and sets the
// symbolizer's common-prefix so that Lookup returns paths relative to
// the longest shared directory.
func (s *Symbolizer) SetPrefixFromAddrs(addrs []uint64) {
	var paths []string
	for _, a := range addrs {
		if _, l := s.findIP(a); l != nil && l.File != nil {
			paths = append(paths, l.File.Name)
		}
	}
	s.prefix = longestCommonPrefix(paths)
}

// Lookup resolves ip to a "file:line" string, stripped of the common
// path prefix set by SetPrefixFromAddrs (none until it is called).
// An address with a function but no line entry returns the demangled
// function name; unresolved addresses return InvalidSymbol.
func (s *Symbolizer) Lookup(ip uint64) string {
	fn, l := s.findIP(ip)
	switch {
	case l != nil && l.File != nil:
		name := strings.TrimPrefix(fmt.Sprintf("%s:%d", l.File.Name, l.Line), s.prefix)
		return name
	case fn != "":
		return demangleName(fn)
	default:
		return InvalidSymbol
	}
}

func (s *Symbolizer) findIP(ip uint64) (fn string, l *dwarf.LineEntry) {
	i := sort.Search(len(s.functab), func(i int) bool {
		return ip < s.functab[i].highpc
	})
	if i < len(s.functab) && s.functab[i].lowpc <= ip && ip < s.functab[i].highpc {
		fn = s.functab[i].name
	}

	i = sort.Search(len(s.linetab), func(i int) bool {
		return ip < s.linetab[i].Address
	})
	if i != 0 && !s.linetab[i-1].EndSequence {
		l = &s.linetab[i-1]
	}
	return
}

func demangleName(name string) string {
	return demangle.Filter(name)
}

func dwarfFuncTable(d *dwarf.Data) ([]funcRange, error) {
	r := d.Reader()
	var out []funcRange
	for {
		ent, err := r.Next()
		if err != nil {
			return nil, err
		}
		if ent == nil {
			break
		}
		switch ent.Tag {
		case dwarf.TagSubprogram:
			r.SkipChildren()
			name, ok := ent.Val(dwarf.AttrName).(string)
			if !ok {
				continue
			}
			lowpc, ok := ent.Val(dwarf.AttrLowpc).(uint64)
			if !ok {
				continue
			}
			var highpc uint64
			switch hp := ent.Val(dwarf.AttrHighpc).(type) {
			case uint64:
				highpc = hp
			case int64:
				highpc = lowpc + uint64(hp)
			default:
				continue
			}
			out = append(out, funcRange{name, lowpc, highpc})
		case dwarf.TagCompileUnit, dwarf.TagModule, dwarf.TagNamespace:
			// Descend into children.
		default:
			r.SkipChildren()
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].lowpc < out[j].lowpc })
	return out, nil
}

func dwarfLineTable(d *dwarf.Data) ([]dwarf.LineEntry, error) {
	var out []dwarf.LineEntry
	dr := d.Reader()
	for {
		ent, err := dr.Next()
		if err != nil {
			return nil, err
		}
		if ent == nil {
			break
		}
		if ent.Tag != dwarf.TagCompileUnit {
			dr.SkipChildren()
			continue
		}
		lr, err := d.LineReader(ent)
		if err != nil {
			return nil, err
		}
		if lr == nil {
			continue
		}
		for {
			var le dwarf.LineEntry
			if err := lr.Next(&le); err != nil {
				if err == io.EOF {
					break
				}
				return nil, err
			}
			out = append(out, le)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out, nil
}

// longestCommonPrefix returns the longest '/'-rooted prefix shared by
// every absolute path in paths (non-absolute paths are ignored for
// the purpose of computing the prefix, matching the approach the
// original implementation takes when a resolved path has no leading
// slash, e.g. a synthetic compiler-generated name).
func longestCommonPrefix(paths []string) string {
	var shortest string
	have := false
	for _, p := range paths {
		if !strings.HasPrefix(p, "/") {
			continue
		}
		if !have || len(p) < len(shortest) {
			shortest = p
			have = true
		}
	}
	if !have {
		return ""
	}

	n := 0
	for ; n < len(shortest); n++ {
		ok := true
		for _, p := range paths {
			if !strings.HasPrefix(p, "/") {
				continue
			}
			if p[n] != shortest[n] {
				ok = false
				break
			}
		}
		if !ok {
			break
		}
	}
	return shortest[:n]
}
