package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"contentchain/storage/eventlog"
)

const wsWriteTimeout = 10 * time.Second

var errEventLogDisabled = errors.New("event log is not configured")

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeError(w, http.StatusServiceUnavailable, errEventLogDisabled)
		return
	}
	after, err := queryUint(r, "after")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit < 0 {
			s.fail(w, r, invalid(errors.New("limit must be a non-negative integer")))
			return
		}
	}
	records, err := s.events.Query(r.Context(), eventlog.Filter{
		Type:  r.URL.Query().Get("type"),
		After: after,
		Limit: limit,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	entries := make([]eventlog.Entry, 0, len(records))
	for _, rec := range records {
		entry, err := rec.Entry()
		if err != nil {
			s.fail(w, r, err)
			return
		}
		entries = append(entries, entry)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": entries})
}

// handleEventStream upgrades to a websocket, replays records after the
// cursor, then forwards live appends. Records already replayed are skipped
// when they also arrive live.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeError(w, http.StatusServiceUnavailable, errEventLogDisabled)
		return
	}
	cursor, err := queryUint(r, "cursor")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	typ := strings.TrimSpace(r.URL.Query().Get("type"))
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	ctx := conn.CloseRead(r.Context())
	if err := s.streamEvents(ctx, conn, cursor, typ); err != nil {
		if status := websocket.CloseStatus(err); status == -1 && !errors.Is(err, context.Canceled) {
			s.logger.Debug("event stream ended", "request_id", RequestIDFromContext(r.Context()), "error", err)
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (s *Server) streamEvents(ctx context.Context, conn *websocket.Conn, cursor uint64, typ string) error {
	// Subscribe before replaying so nothing appended in between is lost.
	updates, cancel := s.events.Hub().Subscribe(ctx)
	defer cancel()

	stream := &eventStream{
		log:    s.events,
		typ:    typ,
		cursor: cursor,
		write: func(ctx context.Context, rec eventlog.Record) error {
			return writeRecord(ctx, conn, rec)
		},
	}
	if err := stream.catchUp(ctx); err != nil {
		return err
	}
	if head, _ := s.events.Head(); head > stream.seen {
		stream.seen = head
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rec, ok := <-updates:
			if !ok {
				return nil
			}
			if err := stream.forward(ctx, rec); err != nil {
				return err
			}
		}
	}
}

// eventStream delivers log records to one subscriber in sequence order.
type eventStream struct {
	log *eventlog.Log
	typ string
	// cursor is the last record written; seen is the highest sequence known
	// to be in the log.
	cursor uint64
	seen   uint64
	write  func(context.Context, eventlog.Record) error
}

// catchUp writes every matching record after the cursor.
func (st *eventStream) catchUp(ctx context.Context) error {
	for {
		backlog, err := st.log.Query(ctx, eventlog.Filter{Type: st.typ, After: st.cursor, Limit: eventlog.MaxQueryLimit})
		if err != nil {
			return err
		}
		for _, rec := range backlog {
			if err := st.write(ctx, rec); err != nil {
				return err
			}
			st.cursor = rec.Seq
		}
		if len(backlog) < eventlog.MaxQueryLimit {
			break
		}
	}
	if st.cursor > st.seen {
		st.seen = st.cursor
	}
	return nil
}

// forward handles one live record. The hub drops records for subscribers
// that fall behind, so a jump in sequence numbers is filled from the log
// before rec is considered.
func (st *eventStream) forward(ctx context.Context, rec eventlog.Record) error {
	if rec.Seq > st.seen+1 {
		if err := st.catchUp(ctx); err != nil {
			return err
		}
	}
	if rec.Seq > st.seen {
		st.seen = rec.Seq
	}
	if rec.Seq <= st.cursor || (st.typ != "" && rec.Type != st.typ) {
		return nil
	}
	if err := st.write(ctx, rec); err != nil {
		return err
	}
	st.cursor = rec.Seq
	return nil
}

func writeRecord(ctx context.Context, conn *websocket.Conn, rec eventlog.Record) error {
	entry, err := rec.Entry()
	if err != nil {
		return err
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
