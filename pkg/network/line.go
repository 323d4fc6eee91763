// Package network implements the line-oriented telnet transport of
// §4.7: a fixed-size array of connection slots, each progressing
// through the state machine described there, fed by a small
// hand-rolled IAC/option-negotiation decoder (no example repo in the
// retrieval pack vendors a telnet library — see DESIGN.md).
//
// Grounded on original_source/src/network.c: the per-line input/output
// buffers that grow in fixed-size chunks, the fair round-robin input
// pump, and the ECHO-refusal negotiation. Structurally informed by
// go-probe's p2p transport callbacks (accept/read callbacks feeding a
// single central loop, rather than one goroutine per connection
// driving domain logic) rather than the teacher (kristofer-smog has no
// networking layer at all).
package network

import (
	"github.com/google/uuid"
)

// Status is a line's place in §4.7's state machine.
type Status int

const (
	Empty Status = iota
	Connecting
	Idle
	HasData
	Disconnecting
)

func (s Status) String() string {
	switch s {
	case Empty:
		return "empty"
	case Connecting:
		return "connecting"
	case Idle:
		return "idle"
	case HasData:
		return "has_data"
	case Disconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// bufChunk is the fixed growth increment for both input and output
// buffers, matching network.c's OUTBUF_LENGTH/INBUF_LENGTH of 16384.
const bufChunk = 16 * 1024

// Line is one connection slot. The array of Lines has fixed size
// (maxconns, §4.7); a slot is reusable once its Status returns to
// Empty.
type Line struct {
	Num       int
	Status    Status
	Address   string
	SessionID uuid.UUID

	in  []byte
	out []byte

	telnet telnetDecoder
}

// reset clears a line back to its Empty state, freeing its buffers —
// the Go equivalent of destroy_line's free() calls.
func (l *Line) reset() {
	l.Status = Empty
	l.Address = ""
	l.SessionID = uuid.UUID{}
	l.in = nil
	l.out = nil
	l.telnet = telnetDecoder{}
}

// appendOut grows the output buffer in bufChunk increments, mirroring
// append_output's "embiggen" loop.
func (l *Line) appendOut(b []byte) {
	l.out = appendChunked(l.out, b)
}

// appendChunked grows dst's capacity in fixed bufChunk increments
// before appending src, the Go analogue of append_output/append_input
// reallocating their backing buffer by whole OUTBUF_LENGTH/INBUF_LENGTH
// steps rather than byte-by-byte.
func appendChunked(dst, src []byte) []byte {
	need := len(dst) + len(src)
	if cap(dst) < need {
		newCap := cap(dst)
		for newCap < need {
			newCap += bufChunk
		}
		grown := make([]byte, len(dst), newCap)
		copy(grown, dst)
		dst = grown
	}
	return append(dst, src...)
}

// DrainOut returns and clears the accumulated output, for the pump's
// once-per-tick flush.
func (l *Line) DrainOut() []byte {
	if len(l.out) == 0 {
		return nil
	}
	out := l.out
	l.out = nil
	return out
}

// Lines is the fixed-capacity connection table of §4.7.
type Lines struct {
	slots []Line
}

// NewLines allocates a table of maxconns empty slots.
func NewLines(maxconns int) *Lines {
	ls := &Lines{slots: make([]Line, maxconns)}
	for i := range ls.slots {
		ls.slots[i].Num = i
		ls.slots[i].Status = Empty
	}
	return ls
}

// Len reports the table's fixed capacity.
func (ls *Lines) Len() int { return len(ls.slots) }

// At returns the line at index i.
func (ls *Lines) At(i int) *Line { return &ls.slots[i] }

// Accept claims the first Empty slot for a new connection, per
// add_line's linear scan. It returns nil if every slot is occupied
// (the "maximum connections exceeded" case).
func (ls *Lines) Accept(address string) *Line {
	for i := range ls.slots {
		if ls.slots[i].Status == Empty {
			l := &ls.slots[i]
			l.Status = Connecting
			l.Address = address
			l.SessionID = uuid.New()
			return l
		}
	}
	return nil
}

// Feed decodes raw bytes received on a line through the telnet layer,
// splitting negotiation from application data, then appends any
// decoded application bytes to the input buffer and flips the line's
// status to HasData whenever that buffer now contains a full line
// (§4.7: "bytes arrive containing \n").
func (ls *Lines) Feed(i int, raw []byte) {
	l := ls.At(i)
	data, replies := l.telnet.decode(raw)
	if len(replies) > 0 {
		l.appendOut(replies)
	}
	if len(data) == 0 {
		return
	}
	l.in = appendChunked(l.in, data)
	if containsNewline(l.in) {
		l.Status = HasData
	}
}

func containsNewline(b []byte) bool {
	for _, c := range b {
		if c == '\n' {
			return true
		}
	}
	return false
}

// NextLine extracts one newline-terminated command from a line's input
// buffer, with the trailing '\n' stripped (§4.7 framing rule). It
// returns ok=false if no complete line is buffered yet. The line
// transitions back to Idle once its buffer holds no further newline.
func (ls *Lines) NextLine(i int) (string, bool) {
	l := ls.At(i)
	for idx, c := range l.in {
		if c == '\n' {
			line := string(l.in[:idx])
			if n := len(line); n > 0 && line[n-1] == '\r' {
				line = line[:n-1]
			}
			l.in = l.in[idx+1:]
			if !containsNewline(l.in) {
				l.Status = Idle
			}
			return line, true
		}
	}
	return "", false
}

// Disconnect marks a line for teardown; the pump completes the
// transition to Empty on its next visit (§4.7's disconnecting->empty
// row).
func (ls *Lines) Disconnect(i int) {
	ls.At(i).Status = Disconnecting
}

// Reap finalizes a Disconnecting line back to Empty, freeing its
// buffers, per the pump-visits row of §4.7's table.
func (ls *Lines) Reap(i int) {
	l := ls.At(i)
	if l.Status == Disconnecting {
		l.reset()
	}
}

// Write enqueues text for line i's output buffer (net.write, §4.4).
func (ls *Lines) Write(i int, text string) bool {
	if i < 0 || i >= len(ls.slots) {
		return false
	}
	ls.At(i).appendOut([]byte(text))
	return true
}
