package server

import (
	"encoding/json"
	"errors"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/MrWong99/wavecue/internal/decoder"
	"github.com/MrWong99/wavecue/internal/editor"
	"github.com/MrWong99/wavecue/internal/interact"
	"github.com/MrWong99/wavecue/internal/render"
)

// errorBody is the JSON body of every failed request.
type errorBody struct {
	Error string `json:"error"`
}

// request bodies
type (
	secondsBody struct {
		Seconds *float64 `json:"seconds"`
	}
	nudgeBody struct {
		Ms float64 `json:"ms"`
	}
	entryBody struct {
		Input string `json:"input"`
	}
	playBody struct {
		FromMarker bool `json:"from_marker"`
	}
	followBody struct {
		Enabled bool `json:"enabled"`
	}
	openBody struct {
		Key string `json:"key"`
	}
)

// badRequest marks errors caused by the request itself.
type badRequest struct{ err error }

func (b badRequest) Error() string { return b.err.Error() }
func (b badRequest) Unwrap() error { return b.err }

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, indexHTML)
}

// handleFrame serves the latest frame. ?scale=N (1..4) enlarges it with
// nearest-neighbour sampling.
func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	img := s.ed.Frame()
	if v := r.URL.Query().Get("scale"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 4 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "scale must be an integer in [1, 4]"})
			return
		}
		img = render.Scale(img, n)
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(w, img); err != nil {
		slog.Debug("server: write frame failed", "err", err)
	}
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ed.Snapshot())
}

// handleOpen loads the source named by the body's key and answers once it
// is ready or failed.
func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	var body openBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	if body.Key == "" {
		s.writeError(w, badRequest{errors.New("key is required")})
		return
	}
	if err := s.ed.Open(r.Context(), body.Key, s.provider); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ed.Snapshot())
}

// handleUpload opens the raw request body as a source keyed by its content.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxUpload))
	if err != nil {
		s.writeError(w, badRequest{err})
		return
	}
	if err := s.ed.Open(r.Context(), decoder.ContentKey(data), decoder.Static(data)); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ed.Snapshot())
}

// control wraps an editor action: it runs fn and answers with the new
// snapshot or the mapped error.
func (s *Server) control(fn func(r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(r); err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.ed.Snapshot())
	}
}

// setMarker sets the marker to the body's seconds, or to the playhead when
// the body carries none.
func (s *Server) setMarker(r *http.Request) error {
	var body secondsBody
	if err := decodeBody(r, &body); err != nil {
		return err
	}
	if body.Seconds == nil {
		s.ed.SetMarkerToCurrentPlayback()
		return nil
	}
	_, err := s.ed.SetStartPoint(*body.Seconds)
	return err
}

func (s *Server) nudge(r *http.Request) error {
	var body nudgeBody
	if err := decodeBody(r, &body); err != nil {
		return err
	}
	if body.Ms == 0 {
		return badRequest{errors.New("ms must not be zero")}
	}
	s.ed.NudgeMarker(body.Ms)
	return nil
}

func (s *Server) seek(r *http.Request) error {
	var body secondsBody
	if err := decodeBody(r, &body); err != nil {
		return err
	}
	if body.Seconds == nil {
		return badRequest{errors.New("seconds is required")}
	}
	_, err := s.ed.Seek(*body.Seconds)
	return err
}

func (s *Server) timeEntry(r *http.Request) error {
	var body entryBody
	if err := decodeBody(r, &body); err != nil {
		return err
	}
	_, err := s.ed.DirectTimeEntry(body.Input)
	return err
}

func (s *Server) play(r *http.Request) error {
	var body playBody
	if err := decodeBody(r, &body); err != nil {
		return err
	}
	if body.FromMarker {
		return s.ed.PlayFromMarker(r.Context())
	}
	return s.ed.Play(r.Context())
}

func (s *Server) follow(r *http.Request) error {
	var body followBody
	if err := decodeBody(r, &body); err != nil {
		return err
	}
	s.ed.SetFollowPlayhead(body.Enabled)
	return nil
}

// decodeBody reads an optional JSON body into v.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return badRequest{err}
	}
	return nil
}

// statusFor maps editor errors to HTTP status codes.
func statusFor(err error) int {
	var (
		bad       badRequest
		rangeErr  *interact.RangeError
		decodeErr *decoder.DecodeError
		maxBytes  *http.MaxBytesError
	)
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &bad):
		return http.StatusBadRequest
	case errors.Is(err, interact.ErrInvalidFormat), errors.As(err, &rangeErr), errors.As(err, &decodeErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, editor.ErrNoAudio), errors.Is(err, editor.ErrSuperseded):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("server: request failed", "err", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("server: write response failed", "err", err)
	}
}
