// The host binary: boot sequencing, the single-threaded event loop of
// §5, the TCP listener feeding pkg/network's line state machine, and
// the concrete pkg/libcall.Host implementation every libcall handler
// calls through.
//
// Grounded on the teacher's cmd/smog/main.go for the overall shape of
// a small os.Args-driven command dispatcher, but retargeted onto
// gopkg.in/urfave/cli.v1 (internal/config) since this binary has a
// real flag surface (§6.1) rather than smog's bare subcommand switch.
package main

import (
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/golang/snappy"

	"github.com/kristofer/sind/internal/logging"
	"github.com/kristofer/sind/pkg/item"
	"github.com/kristofer/sind/pkg/network"
	"github.com/kristofer/sind/pkg/task"
	"github.com/kristofer/sind/pkg/value"
)

// ioEvent is one raw occurrence from a connection-reading goroutine,
// queued for the single event-loop goroutine to apply to Lines. Real
// socket I/O is inherently concurrent (accept/read block on the
// kernel), but §5 requires exactly one logical task to run at a time;
// routing every socket event through this channel keeps all mutation
// of *network.Lines on the one loop goroutine, with the reader
// goroutines doing nothing but blocking reads and channel sends.
type ioEvent struct {
	conn   net.Conn
	addr   string
	data   []byte
	closed bool
	accept bool
}

// Host is the concrete pkg/libcall.Host: it owns the itemstore, the
// task scheduler, the line table, and the TCP plumbing feeding it, and
// is shared by every libcall handler the registry wires.
type Host struct {
	store         *item.Itemstore
	sched         *task.Scheduler
	lines         *network.Lines
	pump          *network.Pump
	log           *logging.Logger
	itemstorePath string

	inputItem string

	conns   map[int]net.Conn
	connsMu sync.Mutex
	events  chan ioEvent

	pendingMu    sync.Mutex
	pendingConns []net.Conn

	shutdownRequested bool
	safeShutdown      bool
}

// NewHost wires a fresh Host over store, with maxconns connection
// slots and input item inputItem (§4.7, §6.1's --input).
func NewHost(store *item.Itemstore, itemstorePath, inputItem string, maxconns int, log *logging.Logger) *Host {
	lines := network.NewLines(maxconns)
	return &Host{
		store:         store,
		sched:         task.New(),
		lines:         lines,
		pump:          network.NewPump(lines),
		log:           log,
		itemstorePath: itemstorePath,
		inputItem:     inputItem,
		conns:         make(map[int]net.Conn),
		events:        make(chan ioEvent, 256),
	}
}

// Backup implements pkg/libcall.Host: snapshot the itemstore to a
// snappy-compressed timestamped sibling file, per §6.3.
func (h *Host) Backup() error {
	if h.itemstorePath == "" {
		return fmt.Errorf("sind: --itemstore not set, nothing to back up")
	}
	stamp := time.Now().Format("20060102-150405")
	path := fmt.Sprintf("%s_%s", h.itemstorePath, stamp)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := snappy.NewBufferedWriter(f)
	if err := item.Save(w, h.store); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// Shutdown implements pkg/libcall.Host: it records that the event loop
// is to stop and whether the stop is safe (sys.shutdown vs sys.abort);
// runServer saves the itemstore after the loop returns only when it is
// (§6.1: "on sys.abort the itemstore is NOT saved").
func (h *Host) Shutdown(safe bool) {
	h.shutdownRequested = true
	h.safeShutdown = safe
}

// NewTask implements pkg/libcall.Host, validating the target item
// exists before scheduling it (task.newgametask's "fails if itemName
// does not name a live item").
func (h *Host) NewTask(itemName string, startDecis, repeatDecis int64) (int64, error) {
	if !h.store.Exists(itemName) {
		return 0, fmt.Errorf("sind: no such item %q", itemName)
	}
	t := h.sched.NewGameTask(itemName, startDecis, repeatDecis)
	return t.ID, nil
}

// KillTask implements pkg/libcall.Host.
func (h *Host) KillTask(id int64) bool {
	return h.sched.Kill(id) == nil
}

// PollInput implements pkg/libcall.Host: advances the fair
// round-robin scanner one step and populates the reserved
// `<input>.line`/`<input>.text` cells (§4.7) before returning the
// event kind net.input() will push.
func (h *Host) PollInput() (kind int, line int, text string) {
	ev, ln, cmd := h.pump.Poll()
	h.store.InsertValueItem(h.inputItem+".line", value.FromInt(int64(ln)))
	h.store.InsertValueItem(h.inputItem+".text", value.FromString(cmd))
	return int(ev), ln, cmd
}

// WriteLine implements pkg/libcall.Host.
func (h *Host) WriteLine(line int, text string) bool {
	return h.lines.Write(line, text)
}

// acceptLoop runs a TCP listener, handing each accepted connection to
// readLoop and reporting the accept itself as an ioEvent. It runs
// until ln.Accept returns an error (listener closed).
func (h *Host) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			h.log.Warn("sind: listener accept failed, stopping", "err", err)
			return
		}
		addr := conn.RemoteAddr().String()
		h.pendingMu.Lock()
		h.pendingConns = append(h.pendingConns, conn)
		h.pendingMu.Unlock()
		h.events <- ioEvent{accept: true, addr: addr}
		go h.readLoop(conn, addr)
	}
}

// readLoop feeds one connection's bytes into h.events until it closes
// or errors, at which point it reports closure. It never resolves its
// own line number: the accept event for this same conn is guaranteed
// (by acceptLoop sending it, then happens-before spawning this
// goroutine) to reach h.events strictly before any event readLoop
// sends, so drainEvents can always resolve conn->line itself, in
// order, with no race against the main loop's own conns map writes.
func (h *Host) readLoop(conn net.Conn, addr string) {
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			h.events <- ioEvent{conn: conn, data: data}
		}
		if err != nil {
			h.events <- ioEvent{conn: conn, closed: true}
			conn.Close()
			return
		}
	}
}

// drainEvents applies every currently queued ioEvent to the line
// table, run once per tick by the single event-loop goroutine. Accept
// events claim a Lines slot and record the conn<->line mapping;
// data/closed events resolve their line through that same mapping,
// which by construction is always already populated by the time they
// are processed.
func (h *Host) drainEvents() {
	for {
		select {
		case ev := <-h.events:
			switch {
			case ev.accept:
				l := h.lines.Accept(ev.addr)
				h.pendingMu.Lock()
				var conn net.Conn
				if len(h.pendingConns) > 0 {
					conn = h.pendingConns[0]
					h.pendingConns = h.pendingConns[1:]
				}
				h.pendingMu.Unlock()
				if l == nil {
					h.log.Warn("sind: connection refused, maxconns reached", "addr", ev.addr)
					if conn != nil {
						conn.Close()
					}
					continue
				}
				if conn != nil {
					h.connsMu.Lock()
					h.conns[l.Num] = conn
					h.connsMu.Unlock()
				}
			case ev.closed:
				if line, ok := h.lineForConn(ev.conn); ok {
					h.lines.Disconnect(line)
				}
			default:
				if line, ok := h.lineForConn(ev.conn); ok {
					h.lines.Feed(line, ev.data)
				}
			}
		default:
			return
		}
	}
}

func (h *Host) lineForConn(conn net.Conn) (int, bool) {
	h.connsMu.Lock()
	defer h.connsMu.Unlock()
	for i, c := range h.conns {
		if c == conn {
			return i, true
		}
	}
	return 0, false
}

// flushOutput writes each line's pending output buffer to its socket,
// once per tick, matching §4.7: "the pump flushes every non-empty
// output buffer once per idle tick."
func (h *Host) flushOutput() {
	h.connsMu.Lock()
	defer h.connsMu.Unlock()
	for i, conn := range h.conns {
		out := h.lines.At(i).DrainOut()
		if len(out) == 0 {
			continue
		}
		if _, err := conn.Write(out); err != nil {
			h.log.Debug("sind: write failed, will be reaped", "line", i, "err", err)
		}
	}
}

// reapClosed drops the conn<->line mapping for any slot the pump
// reaped back to Empty this tick, mirroring the line state machine's
// disconnecting->empty transition (§4.7).
func (h *Host) reapClosed() {
	h.connsMu.Lock()
	defer h.connsMu.Unlock()
	for i, conn := range h.conns {
		if h.lines.At(i).Status == network.Empty {
			conn.Close()
			delete(h.conns, i)
		}
	}
}
