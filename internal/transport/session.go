// Package transport bridges the engine to the client channel: a
// gorilla/websocket connection that accepts one JSON graph per run and
// streams back JSON event records until execution_complete or
// execution_error. The connection may be reused for further graphs.
package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ncanvas/flowengine/internal/domain"
	"github.com/ncanvas/flowengine/internal/engine"
	"github.com/ncanvas/flowengine/internal/events"
	"github.com/ncanvas/flowengine/internal/llm"
	"github.com/ncanvas/flowengine/internal/search"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20 // a graph JSON payload can be sizable
	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// SetCheckOrigin installs a CORS origin check, overriding the
// allow-every-origin check set on upgrader above.
func SetCheckOrigin(f func(r *http.Request) bool) {
	upgrader.CheckOrigin = f
}

// Handler upgrades incoming requests to the session's websocket protocol
// and runs each client's graphs against the engine.
type Handler struct {
	LLM                  *llm.Client
	Search               search.Client
	Log                  zerolog.Logger
	DefaultMaxConcurrent int
}

func NewHandler(lmClient *llm.Client, searchClient search.Client, log zerolog.Logger, defaultMaxConcurrent int) *Handler {
	return &Handler{LLM: lmClient, Search: searchClient, Log: log, DefaultMaxConcurrent: defaultMaxConcurrent}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	s := &session{
		conn:   conn,
		send:   make(chan events.Event, sendBufferSize),
		log:    h.Log,
		h:      h,
	}
	go s.writePump()
	s.readLoop()
}

// session owns one client connection for its lifetime: it reads graph
// submissions, runs each to completion against a fresh scheduler, and
// relays that run's events back over send. Disconnect or a read error
// ends the session once no run is in flight; a run already in progress
// is not cancelled by a disconnect.
type session struct {
	conn *websocket.Conn
	send chan events.Event
	log  zerolog.Logger
	h    *Handler
}

// readLoop processes one graph message at a time, sequentially: a graph
// submitted while a prior run is still active would share this
// connection's single send channel, so the spec's "connection may be
// reused" model runs each submission to completion before reading the
// next.
func (s *session) readLoop() {
	defer func() {
		close(s.send)
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.Warn().Err(err).Msg("websocket unexpected close")
			}
			return
		}

		s.runGraph(message)
	}
}

// runGraph validates one submitted graph and, if valid, drives it to
// completion via a fresh Scheduler. ctx is cancelled only when runGraph
// returns; a write failure or a dropped client does not cancel it, so an
// in-flight run is not stopped by a disconnect.
func (s *session) runGraph(message []byte) {
	var wire domain.GraphJSON
	if err := json.Unmarshal(message, &wire); err != nil {
		s.send <- events.Event{Type: events.TypeError, Message: "invalid graph JSON: " + err.Error()}
		return
	}

	graph, err := domain.BuildGraph(wire)
	if err != nil {
		s.send <- events.Event{Type: events.TypeError, Message: err.Error()}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runID := uuid.NewString()
	runLog := s.log.With().Str("run_id", runID).Logger()

	sink := events.NewSink(s.send, runLog)
	go sink.Run(ctx)
	defer sink.Close()

	rc := &engine.RunContext{
		Graph:  graph,
		Sink:   sink,
		LLM:    s.h.LLM,
		Search: s.h.Search,
		State:  engine.NewRunState(),
		APIKey: graph.APIKey,
		Log:    runLog,
	}

	runLog.Info().Int("node_count", len(graph.Nodes)).Msg("starting run")
	scheduler := engine.NewScheduler(rc, s.h.DefaultMaxConcurrent)
	scheduler.Run(ctx)
}

// writePump is the connection's single writer: it drains events queued
// by whatever run is currently active and sends periodic pings to keep
// the connection alive between runs.
func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
