// Package adminapi implements the read-only management endpoint named
// in SPEC_FULL.md's Domain Stack section: an unauthenticated websocket
// that streams task/line/item-count snapshots for local operators. It
// never mutates the itemstore, by design — spec.md's Non-goal on the
// security of the management interface is honored by simply not
// giving this endpoint any write path, rather than by bolting on auth
// that the spec explicitly declines to scope.
package adminapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kristofer/sind/internal/logging"
	"github.com/kristofer/sind/pkg/item"
	"github.com/kristofer/sind/pkg/network"
	"github.com/kristofer/sind/pkg/task"
)

// Snapshot is one streamed frame: a point-in-time view across the
// three subsystems an operator cares about.
type Snapshot struct {
	Time      time.Time  `json:"time"`
	ItemCount int        `json:"item_count"`
	Tasks     []TaskView `json:"tasks"`
	Lines     []LineView `json:"lines"`
}

// TaskView is one scheduled task's operator-facing fields.
type TaskView struct {
	ID       int64  `json:"id"`
	ItemName string `json:"item_name"`
	DueInMs  int64  `json:"due_in_ms"`
	Repeat   bool   `json:"repeat"`
}

// LineView is one connection slot's operator-facing fields.
type LineView struct {
	Num       int    `json:"num"`
	Status    string `json:"status"`
	Address   string `json:"address"`
	SessionID string `json:"session_id"`
}

// Sources is the read-only view onto the runtime's live state the
// handler snapshots on every streamed frame. It takes the concrete
// types directly (rather than yet another narrow interface) since all
// three are already part of this module.
type Sources struct {
	Store     *item.Itemstore
	Scheduler *task.Scheduler
	Lines     *network.Lines
}

func (s Sources) snapshot() Snapshot {
	tasks := s.Scheduler.Snapshot()
	views := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, TaskView{
			ID:       t.ID,
			ItemName: t.ItemName,
			DueInMs:  s.Scheduler.DueIn(t) * 100,
			Repeat:   t.Decis > 0,
		})
	}

	var lines []LineView
	if s.Lines != nil {
		for i := 0; i < s.Lines.Len(); i++ {
			l := s.Lines.At(i)
			if l.Status == network.Empty {
				continue
			}
			lines = append(lines, LineView{
				Num:       l.Num,
				Status:    l.Status.String(),
				Address:   l.Address,
				SessionID: l.SessionID.String(),
			})
		}
	}

	return Snapshot{
		Time:      time.Now(),
		ItemCount: s.Store.Count(),
		Tasks:     views,
		Lines:     lines,
	}
}

var upgrader = websocket.Upgrader{
	// Local-operator tool only (see the package doc's Non-goal note):
	// no origin check, matching the deliberate absence of auth.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Handler streams one Snapshot every interval over a websocket
// connection until the client disconnects or the request context is
// canceled.
type Handler struct {
	Sources  Sources
	Interval time.Duration
	Log      *logging.Logger
}

// ServeHTTP implements http.Handler.
func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if h.Log != nil {
			h.Log.Warn("adminapi: upgrade failed", "err", err)
		}
		return
	}
	defer conn.Close()

	interval := h.Interval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.writeSnapshot(conn); err != nil {
				if h.Log != nil {
					h.Log.Debug("adminapi: write failed, closing", "err", err)
				}
				return
			}
		}
	}
}

func (h Handler) writeSnapshot(conn *websocket.Conn) error {
	b, err := json.Marshal(h.Sources.snapshot())
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, b)
}

// Mux builds an *http.ServeMux serving h at /admin/ws, the one route
// this package exposes.
func Mux(h Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/admin/ws", h)
	return mux
}

// Serve runs an HTTP server bound to addr hosting Mux(h) until ctx is
// canceled, then shuts down gracefully. It is a thin helper for
// cmd/sind's boot sequence, not a requirement of the package's public
// surface.
func Serve(ctx context.Context, addr string, h Handler) error {
	srv := &http.Server{Addr: addr, Handler: Mux(h)}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
