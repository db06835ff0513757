// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trace

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"regexp"
	"strconv"
	"strings"
)

// Symbolizer resolves an instruction address to a short "file:line"
// (or function) string. symbolize.Symbolizer satisfies this.
type Symbolizer interface {
	Lookup(addr uint64) string
}

// ParseError reports a fatal structural violation of the trace
// format (spec: MalformedTrace). Per-line garbage is logged and
// skipped instead of producing a ParseError; only violations that
// leave the parser with no sane recovery (a stack frame as the very
// first record) are reported this way.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("trace:%d: %s", e.Line, e.Msg)
}

var wallClockRE = regexp.MustCompile(`(\d+\.\d+)\s*(us|ms|s)\b`)
var frameAddrRE = regexp.MustCompile(`\[([0-9a-fA-F]+)\]`)

// Parser streams a trace and bakes lines into Events.
type Parser struct {
	sym    Symbolizer
	stacks *StackTable

	sc       *bufio.Scanner
	lineNo   int
	err      error
	opIndex  uint64
	liveSize map[uint64]uint64 // address -> size of most recent live alloc

	pending *pendingEvent

	pools []Pool
}

type pendingEvent struct {
	kind    EventKind
	address uint64
	size    uint64
	wallUS  int64
	frames  []string
}

// NewParser returns a Parser reading trace text from r. sym may be
// nil, in which case stack-frame lines are recorded without
// symbolization (the raw address is kept as text).
func NewParser(r io.Reader, sym Symbolizer) *Parser {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	return &Parser{
		sym:      sym,
		stacks:   NewStackTable(),
		sc:       sc,
		liveSize: make(map[uint64]uint64),
	}
}

// Stacks returns the stack table the parser interned call stacks
// into. Valid to call at any point; it grows as parsing proceeds.
func (p *Parser) Stacks() *StackTable {
	return p.stacks
}

// Pools returns the pool declarations seen so far in the stream.
func (p *Parser) Pools() []Pool {
	return p.pools
}

// EventIter is a pull iterator over the parsed event stream,
// mirroring perffile.File.Records' Next/Record/Err shape.
type EventIter struct {
	p     *Parser
	Event Event
	done  bool
}

// Events returns an iterator over the trace's events in file order.
func (p *Parser) Events() *EventIter {
	return &EventIter{p: p}
}

// Next advances the iterator. It returns false at EOF or on a fatal
// parse error; check Err after Next returns false.
func (it *EventIter) Next() bool {
	if it.done || it.p.err != nil {
		return false
	}
	ev, ok, err := it.p.next()
	if err != nil {
		it.p.err = err
		it.done = true
		return false
	}
	if !ok {
		it.done = true
		return false
	}
	it.Event = ev
	return true
}

// Err returns the first fatal error encountered, if any.
func (it *EventIter) Err() error {
	return it.p.err
}

// next returns the next baked event, reading and classifying lines
// until a bake produces one or the stream is exhausted.
func (p *Parser) next() (Event, bool, error) {
	for p.sc.Scan() {
		p.lineNo++
		line := p.sc.Text()

		if pool, ok := parsePoolDecl(line); ok {
			p.pools = append(p.pools, pool)
			continue
		}

		payload, ok := splitPayload(line)
		if !ok {
			continue // irrelevant line
		}
		fields := strings.Fields(payload)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "+", "-":
			ev, hasPrev := p.startPending(fields, line)
			if hasPrev {
				return ev, true, nil
			}
		case "^":
			if err := p.appendFrame(fields, line); err != nil {
				return Event{}, false, err
			}
		default:
			log.Printf("trace:%d: skipping unrecognized op %q", p.lineNo, fields[0])
		}
	}
	if err := p.sc.Err(); err != nil {
		return Event{}, false, fmt.Errorf("trace: read error: %w", err)
	}
	if p.pending != nil {
		ev := p.bake(p.pending)
		p.pending = nil
		return ev, true, nil
	}
	return Event{}, false, nil
}

// startPending bakes any previously queued record (returning it) and
// begins queuing the new one.
func (p *Parser) startPending(fields []string, rawLine string) (Event, bool) {
	wallUS := extractWallClockUS(rawLine)

	addr, err := strconv.ParseUint(fields[1], 16, 64)
	if err != nil {
		log.Printf("trace:%d: skipping malformed address in %q", p.lineNo, rawLine)
		return Event{}, false
	}

	var next pendingEvent
	switch fields[0] {
	case "+":
		if len(fields) < 3 {
			log.Printf("trace:%d: skipping malformed alloc %q", p.lineNo, rawLine)
			return Event{}, false
		}
		size, err := strconv.ParseUint(fields[2], 16, 64)
		if err != nil || size == 0 {
			log.Printf("trace:%d: skipping malformed alloc size %q", p.lineNo, rawLine)
			return Event{}, false
		}
		next = pendingEvent{kind: EventAlloc, address: addr, size: size, wallUS: wallUS}
	case "-":
		next = pendingEvent{kind: EventFree, address: addr, wallUS: wallUS}
	}

	var baked Event
	var ok bool
	if p.pending != nil {
		baked = p.bake(p.pending)
		ok = true
	}
	p.pending = &next
	return baked, ok
}

// appendFrame appends a symbolized stack frame to the pending record,
// provided the frame's leading address matches the pending record's
// address. Frames that don't match are dropped; a frame that arrives
// with no pending record (before the first alloc/free) is a fatal
// MalformedTrace.
func (p *Parser) appendFrame(fields []string, rawLine string) error {
	if p.pending == nil {
		return &ParseError{Line: p.lineNo, Msg: "stack frame before any allocation or free record"}
	}
	if len(fields) < 2 {
		log.Printf("trace:%d: skipping malformed frame %q", p.lineNo, rawLine)
		return nil
	}
	addr, err := strconv.ParseUint(fields[1], 16, 64)
	if err != nil || addr != p.pending.address {
		return nil // not ours; dropped per spec
	}

	m := frameAddrRE.FindAllStringSubmatch(rawLine, -1)
	if len(m) == 0 {
		return nil
	}
	frameAddrHex := m[len(m)-1][1]
	frameAddr, err := strconv.ParseUint(frameAddrHex, 16, 64)
	if err != nil {
		return nil
	}

	sym := "[INVALID_SYMBOL]"
	if p.sym == nil {
		sym = fmt.Sprintf("%#x", frameAddr)
	} else {
		if s := p.sym.Lookup(frameAddr); s != "" {
			sym = s
		}
	}
	p.pending.frames = append(p.pending.frames, sym)
	return nil
}

// bake converts a queued record into an Event, resolving free sizes
// and advancing the op-index counter.
func (p *Parser) bake(pe *pendingEvent) Event {
	stackID := p.stacks.Intern(strings.Join(pe.frames, "\n"))

	ev := Event{
		Kind:        pe.kind,
		Address:     pe.address,
		Stack:       stackID,
		OpIndex:     p.opIndex,
		WallClockUS: pe.wallUS,
	}
	p.opIndex++

	switch pe.kind {
	case EventAlloc:
		ev.Size = pe.size
		p.liveSize[pe.address] = pe.size
	case EventFree:
		size, live := p.liveSize[pe.address]
		if !live {
			// InconsistentTrace, but only a warning here: the
			// parser substitutes size 0 and keeps going. Fatal
			// treatment is EventCompressor's job.
			log.Printf("trace: free at %#x with no matching live allocation, recording size 0", pe.address)
			size = 0
		} else {
			delete(p.liveSize, pe.address)
		}
		ev.Size = size
	}
	return ev
}

// splitPayload returns the text after the first '>' on the line,
// trimmed, along with whether the line carries a recognized payload
// at all. Lines that don't split into a '>'-delimited payload
// starting with +, -, or ^ are irrelevant and ignored.
func splitPayload(line string) (string, bool) {
	i := strings.IndexByte(line, '>')
	if i < 0 {
		return "", false
	}
	payload := strings.TrimSpace(line[i+1:])
	if payload == "" {
		return "", false
	}
	switch payload[0] {
	case '+', '-', '^':
		return payload, true
	default:
		return "", false
	}
}

// extractWallClockUS pulls the "S.FFF s"/"ms"/"us" field out of line
// and converts it to integer microseconds. It returns 0 if no such
// field is present.
func extractWallClockUS(line string) int64 {
	i := strings.IndexByte(line, '>')
	prefix := line
	if i >= 0 {
		prefix = line[:i]
	}
	m := wallClockRE.FindStringSubmatch(prefix)
	if m == nil {
		return 0
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	var mult float64
	switch m[2] {
	case "s":
		mult = 1e6
	case "ms":
		mult = 1e3
	case "us":
		mult = 1
	}
	return int64(f * mult)
}

// parsePoolDecl recognizes the pool-metadata header convention this
// implementation expects: a line of the form
//
//	POOL name 0xSTART 0xSIZE
//
// appearing anywhere in the stream. If no such lines are present,
// callers fall back to a single synthetic pool (see Partition).
func parsePoolDecl(line string) (Pool, bool) {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) != 4 || !strings.EqualFold(fields[0], "POOL") {
		return Pool{}, false
	}
	start, err1 := strconv.ParseUint(strings.TrimPrefix(fields[2], "0x"), 16, 64)
	size, err2 := strconv.ParseUint(strings.TrimPrefix(fields[3], "0x"), 16, 64)
	if err1 != nil || err2 != nil {
		return Pool{}, false
	}
	return Pool{Name: fields[1], Start: start, Size: size}, true
}
