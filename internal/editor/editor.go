// Package editor composes the waveform visualizer and start-point editor: it
// loads a source, restores its saved view and marker, routes input to the
// interaction controller, keeps playback in step and renders frames.
//
// All state lives behind one mutex. Every draw works on a snapshot taken
// under that mutex, so input handlers and the frame loop may interleave
// freely without torn reads. Listener callbacks run after the mutex is
// released and may call back into the editor.
package editor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/wavecue/internal/debounce"
	"github.com/MrWong99/wavecue/internal/decoder"
	"github.com/MrWong99/wavecue/internal/interact"
	"github.com/MrWong99/wavecue/internal/observe"
	"github.com/MrWong99/wavecue/internal/playback"
	"github.com/MrWong99/wavecue/internal/render"
	"github.com/MrWong99/wavecue/internal/timeline"
	"github.com/MrWong99/wavecue/pkg/audio"
	"github.com/MrWong99/wavecue/pkg/cache"
)

// ErrSuperseded is returned by [Editor.Open] when another Open started before
// this one finished. The late result is discarded.
var ErrSuperseded = errors.New("editor: source superseded")

// ErrNoAudio is returned by playback controls while no source is loaded.
var ErrNoAudio = errors.New("editor: no audio loaded")

// Loader produces decoded audio for a source key. [*decoder.Decoder]
// implements it.
type Loader interface {
	Load(ctx context.Context, key string, p decoder.BytesProvider) (*audio.DecodedAudio, error)
}

// Option configures an [Editor].
type Option func(*Editor)

// WithCache sets the store used for view and marker persistence.
func WithCache(s cache.Store) Option {
	return func(e *Editor) { e.store = s }
}

// WithMirror keeps a secondary media element in step with the primary.
func WithMirror(m audio.MediaElement) Option {
	return func(e *Editor) { e.mirror = m }
}

// WithMetrics overrides the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Editor) { e.metrics = m }
}

// WithNow overrides the clock used for drift correction.
func WithNow(now func() time.Time) Option {
	return func(e *Editor) { e.now = now }
}

// Editor is the waveform editor for one media element.
type Editor struct {
	loader  Loader
	el      audio.MediaElement
	mirror  audio.MediaElement
	store   cache.Store
	metrics *observe.Metrics
	now     func() time.Time

	markerSave *debounce.Task
	viewSave   *debounce.Task

	draws atomic.Int64

	mu         sync.Mutex
	cfg        Config
	model      *timeline.Model
	syncer     *playback.Synchronizer
	ctrl       *interact.Controller
	host       *host
	baseCtx    context.Context
	key        string
	gen        uint64
	cancelLoad context.CancelFunc
	audio      *audio.DecodedAudio
	loading    bool
	err        error
	lastView   cache.View
	lastReason playback.Reason
	dirty      bool
	active     bool
	closed     bool
	listeners  []func(seconds float64)
	notes      []float64

	frameMu sync.Mutex
	frame   *image.RGBA
}

// New creates an editor that loads audio through loader and drives el. No
// source is open until [Editor.Open] is called.
func New(cfg Config, loader Loader, el audio.MediaElement, opts ...Option) *Editor {
	cfg.applyDefaults()
	e := &Editor{
		loader:  loader,
		el:      el,
		now:     time.Now,
		cfg:     cfg,
		baseCtx: context.Background(),
	}
	for _, o := range opts {
		o(e)
	}
	if e.metrics == nil {
		e.metrics = observe.DefaultMetrics()
	}
	e.markerSave = debounce.New(cfg.MarkerDebounce)
	e.viewSave = debounce.New(cfg.ViewDebounce)

	e.model = timeline.New(0, cfg.InitialZoom)
	syncOpts := []playback.Option{
		playback.WithNow(e.now),
		playback.WithMarkerListener(e.markerChanged),
		playback.WithMarkerSaver(e.scheduleMarkerSave),
	}
	if e.mirror != nil {
		syncOpts = append(syncOpts, playback.WithMirror(e.mirror))
	}
	e.syncer = playback.New(el, e.model, cfg.playbackConfig(), syncOpts...)
	e.host = &host{e: e}
	e.ctrl = interact.NewController(cfg.interactConfig(), e.host)
	return e
}

// OnStartPointChange registers fn to run whenever the marker changes,
// including when it is restored from the cache.
func (e *Editor) OnStartPointChange(fn func(seconds float64)) {
	e.mu.Lock()
	e.listeners = append(e.listeners, fn)
	e.mu.Unlock()
}

// Open loads key and makes it the current source. It blocks until the
// audio is decoded and the saved view and marker are restored.
//
// While the load runs the editor reports IsLoading and draws a placeholder.
// A decode failure leaves the editor in the error state and is also
// returned. Cancelling ctx does not abort the load. If another Open starts
// meanwhile, this one returns [ErrSuperseded] and its result is dropped.
func (e *Editor) Open(ctx context.Context, key string, p decoder.BytesProvider) error {
	ctx, span := observe.StartSpan(ctx, "editor.Open")
	defer span.End()

	// Only a newer Open or Close stops the load; the caller going away does not.
	loadCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	e.flushSaves()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return errors.New("editor: closed")
	}
	if e.cancelLoad != nil {
		e.cancelLoad()
	}
	e.gen++
	gen := e.gen
	e.cancelLoad = cancel
	e.key = key
	e.audio = nil
	e.loading = true
	e.err = nil
	e.dirty = false
	e.syncer.Reset()
	e.ctrl.Cancel()
	e.ctrl.EndScrub()
	e.model.SetDuration(0)
	e.model.Reset(e.cfg.InitialZoom)
	e.mu.Unlock()
	e.resetFrame()

	log := observe.Logger(ctx).With("key", key)
	log.Info("editor: opening source")

	decoded, err := e.loader.Load(loadCtx, key, p)
	if err != nil {
		err = e.fail(gen, key, err)
		observe.FailSpan(span, err, "load failed")
		return err
	}
	view, viewOK, marker, markerOK := e.restore(loadCtx, key)

	e.mu.Lock()
	defer e.unlock()
	if gen != e.gen {
		return ErrSuperseded
	}
	if loader, ok := e.el.(audio.Loader); ok {
		if err := loader.Load(decoded); err != nil {
			e.loading = false
			e.err = fmt.Errorf("editor: load media element: %w", err)
			return e.err
		}
	}
	if e.mirror != nil {
		if loader, ok := e.mirror.(audio.Loader); ok {
			if err := loader.Load(decoded); err != nil {
				slog.Warn("editor: load mirror element failed", "key", key, "err", err)
			}
		}
	}

	e.audio = decoded
	e.loading = false
	e.cancelLoad = nil
	e.model.SetDuration(decoded.Duration())
	if viewOK {
		e.model.SetView(view.ZoomLevel, view.OffsetSeconds)
	}
	e.lastView = e.currentView()
	if markerOK {
		e.syncer.RestoreStartPoint(marker)
	}
	if !e.active {
		e.active = true
		e.metrics.ActiveSources.Add(ctx, 1)
	}
	log.Info("editor: source ready",
		"duration", decoded.Duration(),
		"zoom", e.model.ZoomLevel(),
		"marker", e.syncer.Marker(),
	)
	return nil
}

// fail records a load failure for gen.
func (e *Editor) fail(gen uint64, key string, err error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen {
		return ErrSuperseded
	}
	e.loading = false
	e.cancelLoad = nil
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		// Not loaded, but nothing is wrong with the source either.
		slog.Warn("editor: load abandoned", "key", key, "err", err)
		return err
	}
	e.err = err
	slog.Error("editor: could not load source", "key", key, "err", err)
	return err
}

// restore reads the saved view and marker for key. Cache failures are
// logged and treated as absent.
func (e *Editor) restore(ctx context.Context, key string) (view cache.View, viewOK bool, marker float64, markerOK bool) {
	if e.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, e.cfg.CacheTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rec, found, err := e.store.Get(gctx, cache.KindView, key)
		if e.recordGet(ctx, cache.KindView, key, found, err) {
			view, viewOK = rec.View, true
		}
		return nil
	})
	g.Go(func() error {
		rec, found, err := e.store.Get(gctx, cache.KindMarker, key)
		if e.recordGet(ctx, cache.KindMarker, key, found, err) {
			marker, markerOK = rec.Marker, true
		}
		return nil
	})
	_ = g.Wait()
	return
}

func (e *Editor) recordGet(ctx context.Context, kind cache.Kind, key string, found bool, err error) bool {
	switch {
	case err != nil:
		e.metrics.RecordCacheRequest(ctx, string(kind), "get", "error")
		slog.Warn("editor: cache read failed", "kind", kind, "key", key, "err", err)
		return false
	case !found:
		e.metrics.RecordCacheRequest(ctx, string(kind), "get", "miss")
		return false
	}
	e.metrics.RecordCacheRequest(ctx, string(kind), "get", "ok")
	return true
}

// Close flushes pending saves and cancels an in-flight load. The media
// element is left alone; it belongs to the caller.
func (e *Editor) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.gen++
	if e.cancelLoad != nil {
		e.cancelLoad()
		e.cancelLoad = nil
	}
	if e.active {
		e.active = false
		e.metrics.ActiveSources.Add(context.Background(), -1)
	}
	e.mu.Unlock()

	e.flushSaves()
	return nil
}

// flushSaves runs pending saves now so they land under the key they were
// made for. It must not be called with e.mu held.
func (e *Editor) flushSaves() {
	e.markerSave.Flush()
	e.viewSave.Flush()
}

// unlock releases e.mu after scheduling a view save if the view moved, then
// runs queued marker notifications.
func (e *Editor) unlock() {
	if e.audio != nil {
		if v := e.currentView(); v != e.lastView {
			e.lastView = v
			e.scheduleViewSave(v)
		}
	}
	notes := e.notes
	e.notes = nil
	listeners := e.listeners
	e.mu.Unlock()

	for _, t := range notes {
		for _, fn := range listeners {
			fn(t)
		}
	}
}

func (e *Editor) currentView() cache.View {
	return cache.View{ZoomLevel: e.model.ZoomLevel(), OffsetSeconds: e.model.Offset()}
}

// markerChanged is the synchronizer's listener. It runs with e.mu held.
func (e *Editor) markerChanged(seconds float64, reason playback.Reason) {
	e.lastReason = reason
	e.notes = append(e.notes, seconds)
	e.metrics.RecordMarkerChange(context.Background(), string(reason))
}

// scheduleMarkerSave is the synchronizer's saver. It runs with e.mu held.
func (e *Editor) scheduleMarkerSave(seconds float64) {
	if e.audio == nil {
		return
	}
	e.dirty = true
	rec := cache.MarkerRecord(e.key, seconds)
	e.markerSave.Schedule(func() { e.persist(rec) })
}

// scheduleViewSave queues a view write. Must be called with e.mu held.
func (e *Editor) scheduleViewSave(v cache.View) {
	e.dirty = true
	rec := cache.ViewRecord(e.key, v)
	e.viewSave.Schedule(func() { e.persist(rec) })
}

// persist writes records without holding e.mu. Failures are logged only.
func (e *Editor) persist(records ...cache.Record) {
	if e.store == nil || len(records) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.CacheTimeout)
	defer cancel()
	if err := e.write(ctx, records); err != nil {
		slog.Warn("editor: cache write failed", "key", records[0].Key, "err", err)
	}
}

func (e *Editor) write(ctx context.Context, records []cache.Record) error {
	var err error
	op := "put"
	if len(records) == 1 {
		err = e.store.Put(ctx, records[0])
	} else {
		op = "put_batch"
		err = e.store.PutBatch(ctx, records)
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	for _, r := range records {
		e.metrics.RecordCacheRequest(ctx, string(r.Kind), op, status)
	}
	return err
}

// Autosave writes the current view and marker in one batch if anything
// changed since the last autosave.
func (e *Editor) Autosave(ctx context.Context) error {
	e.mu.Lock()
	if e.store == nil || e.audio == nil || !e.dirty {
		e.mu.Unlock()
		return nil
	}
	gen := e.gen
	records := []cache.Record{
		cache.ViewRecord(e.key, e.currentView()),
		cache.MarkerRecord(e.key, e.syncer.Marker()),
	}
	e.dirty = false
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, e.cfg.CacheTimeout)
	defer cancel()
	if err := e.write(ctx, records); err != nil {
		e.mu.Lock()
		if gen == e.gen {
			e.dirty = true
		}
		e.mu.Unlock()
		return fmt.Errorf("editor: autosave: %w", err)
	}
	return nil
}

// Snapshot is a consistent view of the editor state.
type Snapshot struct {
	Key              string          `json:"key"`
	Loading          bool            `json:"loading"`
	HasError         bool            `json:"has_error"`
	Error            string          `json:"error,omitempty"`
	Duration         float64         `json:"duration"`
	ZoomLevel        int             `json:"zoom_level"`
	OffsetSeconds    float64         `json:"offset_seconds"`
	VisibleDuration  float64         `json:"visible_duration"`
	Playhead         float64         `json:"playhead"`
	Marker           float64         `json:"marker"`
	MarkerReason     playback.Reason `json:"marker_reason,omitempty"`
	Paused           bool            `json:"paused"`
	Mode             string          `json:"mode"`
	FollowPlayhead   bool            `json:"follow_playhead"`
	DriftCorrections int             `json:"drift_corrections"`
	NudgeMs          []float64       `json:"nudge_ms"`
}

// IsLoading reports whether a source is being loaded.
func (e *Editor) IsLoading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loading
}

// HasError reports whether the last load failed.
func (e *Editor) HasError() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err != nil
}

// Err returns the error of the last load, if any.
func (e *Editor) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Snapshot returns the current state.
func (e *Editor) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.model.State()
	snap := Snapshot{
		Key:              e.key,
		Loading:          e.loading,
		HasError:         e.err != nil,
		Duration:         s.Duration,
		ZoomLevel:        s.ZoomLevel,
		OffsetSeconds:    s.OffsetSeconds,
		VisibleDuration:  s.VisibleDuration(),
		Playhead:         e.syncer.Position(),
		Marker:           e.syncer.Marker(),
		MarkerReason:     e.lastReason,
		Paused:           e.audio == nil || e.syncer.Paused(),
		Mode:             e.ctrl.Mode().String(),
		FollowPlayhead:   e.cfg.FollowPlayhead,
		DriftCorrections: e.syncer.DriftCorrections(),
		NudgeMs:          append([]float64(nil), e.cfg.NudgeMs...),
	}
	if e.err != nil {
		snap.Error = e.err.Error()
	}
	return snap
}

// Marker returns the start point in seconds.
func (e *Editor) Marker() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.syncer.Marker()
}

// Timeline returns the current timeline state.
func (e *Editor) Timeline() timeline.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model.State()
}

// Draws returns how many waveform frames were drawn. Placeholders do not
// count.
func (e *Editor) Draws() int64 { return e.draws.Load() }

// Tick pulls the media element's position into the playhead. It does
// nothing while the user drags the view or no audio is loaded.
func (e *Editor) Tick() {
	e.mu.Lock()
	defer e.unlock()
	if e.audio == nil || e.ctrl.Mode() == interact.Dragging {
		return
	}
	before := e.syncer.DriftCorrections()
	e.syncer.Tick()
	if n := e.syncer.DriftCorrections() - before; n > 0 {
		e.metrics.DriftCorrections.Add(context.Background(), int64(n))
	}
}

// DrawFrame renders the current state into dst and reports whether the
// waveform was drawn. While loading, after a failure, or before any source
// is opened a placeholder is drawn instead.
func (e *Editor) DrawFrame(dst *image.RGBA) bool {
	e.mu.Lock()
	frame := render.Frame{
		Audio:    e.audio,
		Timeline: e.model.State(),
		Playhead: e.syncer.Position(),
		Marker:   e.syncer.Marker(),
	}
	opt := e.cfg.renderOptions()
	loading, failed := e.loading, e.err != nil
	e.mu.Unlock()

	switch {
	case loading:
		render.DrawPlaceholder(dst, "Loading audio...", opt.Style)
		return false
	case failed:
		render.DrawPlaceholder(dst, "Could not load audio", opt.Style)
		return false
	case frame.Audio == nil:
		render.DrawPlaceholder(dst, "No audio", opt.Style)
		return false
	}

	start := time.Now()
	render.Draw(dst, frame, opt)
	e.metrics.FrameDuration.Record(context.Background(), time.Since(start).Seconds())
	e.draws.Add(1)
	return true
}

// Render draws a new frame at the configured size and keeps it as the
// latest frame.
func (e *Editor) Render() *image.RGBA {
	e.mu.Lock()
	w, h := e.cfg.Width, e.cfg.Height
	e.mu.Unlock()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	e.DrawFrame(img)
	e.frameMu.Lock()
	e.frame = img
	e.frameMu.Unlock()
	return img
}

// Frame returns the most recent frame drawn by [Editor.Run] or
// [Editor.Render], rendering one if none exists yet. The image must not be
// modified.
func (e *Editor) Frame() *image.RGBA {
	e.frameMu.Lock()
	img := e.frame
	e.frameMu.Unlock()
	if img != nil {
		return img
	}
	return e.Render()
}

func (e *Editor) resetFrame() {
	e.frameMu.Lock()
	e.frame = nil
	e.frameMu.Unlock()
}

// Run drives the frame loop until ctx ends: it ticks and renders at the
// configured frame rate and autosaves at the autosave interval. Pending
// saves are flushed on return.
func (e *Editor) Run(ctx context.Context) error {
	e.mu.Lock()
	e.baseCtx = ctx
	frameEvery := time.Second / time.Duration(e.cfg.FrameRate)
	autosaveEvery := e.cfg.AutosaveInterval
	e.mu.Unlock()

	frames := time.NewTicker(frameEvery)
	defer frames.Stop()
	autosave := time.NewTicker(autosaveEvery)
	defer autosave.Stop()

	for {
		select {
		case <-ctx.Done():
			e.flushSaves()
			return nil
		case <-frames.C:
			e.Tick()
			e.Render()
		case <-autosave.C:
			if err := e.Autosave(ctx); err != nil {
				slog.Warn("editor: autosave failed", "err", err)
			}
		}
	}
}
