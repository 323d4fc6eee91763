package network

// Event is one outcome of a single net.input() poll, matching the
// integer event kinds lc_net_input pushes (§4.4): 0=none, 1=connected,
// 2=disconnected, 3=data.
type Event int

const (
	EventNone Event = iota
	EventConnected
	EventDisconnected
	EventData
)

// Pump implements the fair round-robin scanner behind net.input(): a
// rotating cursor over the line array so no line can be starved,
// exactly as lc_net_input's config.lastconn walk does.
type Pump struct {
	lines *Lines
	last  int
}

// NewPump creates a pump over the given line table, with the cursor
// positioned so the first Poll starts scanning from slot 0.
func NewPump(lines *Lines) *Pump {
	return &Pump{lines: lines, last: -1}
}

// Poll advances the cursor and returns the first line with activity:
// a newly connecting line (flips to Idle), a disconnecting line
// (reaped to Empty), or a line with a complete buffered command. It
// visits at most one full sweep of the table per call.
func (p *Pump) Poll() (ev Event, lineNum int, text string) {
	n := p.lines.Len()
	if n == 0 {
		return EventNone, 0, ""
	}
	for i := 0; i < n; i++ {
		p.last++
		if p.last >= n {
			p.last = 0
		}
		l := p.lines.At(p.last)
		switch l.Status {
		case Connecting:
			l.Status = Idle
			return EventConnected, p.last, ""
		case Disconnecting:
			ln := p.last
			p.lines.Reap(ln)
			return EventDisconnected, ln, ""
		case HasData:
			if cmd, ok := p.lines.NextLine(p.last); ok {
				return EventData, p.last, cmd
			}
		}
	}
	return EventNone, 0, ""
}
