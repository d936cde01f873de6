package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"
)

// Event is an input event sent by a WebSocket client. Which fields matter
// depends on Type.
type Event struct {
	Type    string  `json:"type"`
	X       float64 `json:"x,omitempty"`
	Y       float64 `json:"y,omitempty"`
	Delta   float64 `json:"delta,omitempty"`
	Seconds float64 `json:"seconds,omitempty"`
	Ms      float64 `json:"ms,omitempty"`
	Input   string  `json:"input,omitempty"`
	Enabled bool    `json:"enabled,omitempty"`
}

// outgoing messages
type (
	stateMessage struct {
		Type  string `json:"type"`
		State any    `json:"state"`
	}
	markerMessage struct {
		Type    string  `json:"type"`
		Seconds float64 `json:"seconds"`
	}
	errorMessage struct {
		Type  string `json:"type"`
		Error string `json:"error"`
	}
)

// errUnknownEvent is reported to the client for unrecognised event types.
var errUnknownEvent = errors.New("unknown event type")

// handleWS upgrades the request and runs the event and push loops until
// either side closes.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("server: websocket accept failed", "err", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	s.metrics.ActiveConnections.Add(ctx, 1)
	defer s.metrics.ActiveConnections.Add(context.WithoutCancel(ctx), -1)

	markers := s.subscribe()
	defer s.unsubscribe(markers)

	kick := make(chan struct{}, 1)
	errs := make(chan error, 8)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.readEvents(gctx, conn, kick, errs) })
	g.Go(func() error { return s.pushState(gctx, conn, markers, kick, errs) })

	err = g.Wait()
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return
	}
	if err != nil && ctx.Err() == nil {
		slog.Debug("server: websocket closed", "err", err)
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

// readEvents applies client events to the editor. Failed events are
// reported on errs and never end the connection.
func (s *Server) readEvents(ctx context.Context, conn *websocket.Conn, kick chan<- struct{}, errs chan<- error) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			report(errs, fmt.Errorf("decode event: %w", err))
			continue
		}
		if err := s.apply(ctx, ev); err != nil {
			report(errs, err)
		}

		select {
		case kick <- struct{}{}:
		default:
		}
	}
}

// apply dispatches one event to the editor.
func (s *Server) apply(ctx context.Context, ev Event) error {
	switch ev.Type {
	case "pointerdown":
		s.ed.PointerDown(ev.X, ev.Y)
	case "pointermove":
		s.ed.PointerMove(ev.X)
	case "pointerup":
		s.ed.PointerUp(ev.X)
	case "touchstart":
		s.ed.TouchStart(ev.X, ev.Y)
	case "touchmove":
		s.ed.TouchMove(ev.X)
	case "touchend":
		s.ed.TouchEnd(ev.X)
	case "cancel":
		s.ed.CancelInput()
	case "wheel":
		s.ed.Wheel(ev.Delta)
	case "scrubstart":
		s.ed.BeginScrub()
	case "scrub":
		s.ed.ScrubTo(ev.Seconds)
	case "scrubend":
		s.ed.EndScrub()
	case "zoom-in":
		s.ed.ZoomIn()
	case "zoom-out":
		s.ed.ZoomOut()
	case "focus-marker":
		s.ed.FocusOnMarker()
	case "nudge":
		s.ed.NudgeMarker(ev.Ms)
	case "set-marker":
		s.ed.SetMarkerToCurrentPlayback()
	case "seek":
		_, err := s.ed.Seek(ev.Seconds)
		return err
	case "time-entry":
		_, err := s.ed.DirectTimeEntry(ev.Input)
		return err
	case "play":
		return s.ed.Play(ctx)
	case "pause":
		return s.ed.Pause()
	case "toggle":
		return s.ed.TogglePlay(ctx)
	case "follow":
		s.ed.SetFollowPlayhead(ev.Enabled)
	default:
		return fmt.Errorf("%w: %q", errUnknownEvent, ev.Type)
	}
	return nil
}

// pushState sends the snapshot whenever it changed, checking every
// pushEvery and after each applied event. Marker changes and event errors
// are forwarded as they happen.
func (s *Server) pushState(ctx context.Context, conn *websocket.Conn, markers <-chan float64, kick <-chan struct{}, errs <-chan error) error {
	ticker := time.NewTicker(s.pushEvery)
	defer ticker.Stop()

	var last []byte
	push := func() error {
		data, err := json.Marshal(stateMessage{Type: "state", State: s.ed.Snapshot()})
		if err != nil {
			return fmt.Errorf("server: marshal state: %w", err)
		}
		if bytes.Equal(data, last) {
			return nil
		}
		last = data
		return conn.Write(ctx, websocket.MessageText, data)
	}

	if err := push(); err != nil {
		return err
	}
	for {
		var err error
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			err = push()
		case <-kick:
			err = push()
		case sec := <-markers:
			err = writeMessage(ctx, conn, markerMessage{Type: "marker", Seconds: sec})
		case e := <-errs:
			err = writeMessage(ctx, conn, errorMessage{Type: "error", Error: e.Error()})
		}
		if err != nil {
			return err
		}
	}
}

// writeMessage marshals v and writes it as a text message.
func writeMessage(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("server: marshal: %w", err)
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

// report queues err for the client, dropping it when the queue is full.
func report(errs chan<- error, err error) {
	select {
	case errs <- err:
	default:
	}
}
