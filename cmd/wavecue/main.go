// Command wavecue serves the waveform start-point editor over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/wavecue/internal/config"
	"github.com/MrWong99/wavecue/internal/decoder"
	"github.com/MrWong99/wavecue/internal/editor"
	"github.com/MrWong99/wavecue/internal/health"
	"github.com/MrWong99/wavecue/internal/observe"
	"github.com/MrWong99/wavecue/internal/render"
	"github.com/MrWong99/wavecue/internal/resilience"
	"github.com/MrWong99/wavecue/internal/server"
	"github.com/MrWong99/wavecue/pkg/audio"
	"github.com/MrWong99/wavecue/pkg/audio/clock"
	"github.com/MrWong99/wavecue/pkg/audio/decode"
	otoout "github.com/MrWong99/wavecue/pkg/audio/oto"
	"github.com/MrWong99/wavecue/pkg/cache"
	"github.com/MrWong99/wavecue/pkg/cache/memstore"
	"github.com/MrWong99/wavecue/pkg/cache/postgres"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "", "path to the YAML configuration file; built-in defaults when empty")
	openFlag := flag.String("open", "", "audio file or URL to open at startup (overrides source.path)")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				fmt.Fprintf(os.Stderr, "wavecue: config file %q not found\n", *configPath)
			} else {
				fmt.Fprintf(os.Stderr, "wavecue: %v\n", err)
			}
			return 1
		}
		cfg = loaded
	}
	if *openFlag != "" {
		cfg.Source.Path = *openFlag
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	var level slog.LevelVar
	level.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &level})))

	slog.Info("wavecue starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
		"cache", cfg.Cache.Backend,
		"output", cfg.Playback.Output,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "wavecue",
		Registerer:  promReg,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Backends ──────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltins(reg)

	store, err := reg.CreateStore(ctx, cfg.Cache)
	if err != nil {
		slog.Error("failed to open cache", "backend", cfg.Cache.Backend, "err", err)
		return 1
	}
	onBreaker := func(name string, _, to resilience.State) {
		metrics.RecordBreakerTransition(name, to.String())
	}
	store = resilience.NewGuardedStore(store, resilience.CircuitBreakerConfig{
		Name:          "cache",
		OnStateChange: onBreaker,
	})
	defer store.Close()

	el, err := reg.CreateElement(cfg.Playback)
	if err != nil {
		slog.Error("failed to open playback output", "output", cfg.Playback.Output, "err", err)
		return 1
	}
	if c, ok := el.(interface{ Close() error }); ok {
		defer c.Close()
	}

	checks := []health.Checker{health.PingChecker("cache", store)}
	primitive := buildDecoder(cfg.Decoder, onBreaker)
	if p, ok := primitive.(health.Pinger); ok {
		checks = append(checks, health.PingChecker("decoder", p))
	}
	dec := decoder.New(primitive,
		decoder.WithCache(store),
		decoder.WithMetrics(metrics),
		decoder.WithTargetRate(cfg.Decoder.TargetSampleRate),
		decoder.WithCacheTimeout(cfg.Cache.Timeout),
	)

	// ── Editor and server ─────────────────────────────────────────────────────
	ed := editor.New(editorConfig(cfg), dec, el,
		editor.WithCache(store),
		editor.WithMetrics(metrics),
	)
	defer func() {
		if err := ed.Close(); err != nil {
			slog.Warn("editor close error", "err", err)
		}
	}()

	srv := server.New(ed,
		server.WithMetrics(metrics),
		server.WithHealth(health.New(checks)),
		server.WithMetricsHandler(promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})),
	)

	// ── Run ───────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ed.Run(gctx) })
	g.Go(func() error { return srv.ListenAndServe(gctx, cfg.Server.ListenAddr) })

	if *configPath != "" {
		w, err := config.NewWatcher(*configPath, func(_, new *config.Config, d config.ConfigDiff) {
			applyReload(ed, &level, new, d)
		})
		if err != nil {
			slog.Warn("config hot reload disabled", "err", err)
		} else {
			g.Go(func() error { return w.Run(gctx) })
		}
	}

	if cfg.Source.Path != "" {
		g.Go(func() error {
			if err := ed.Open(gctx, cfg.Source.Path, decoder.AutoProvider{}); err != nil {
				slog.Warn("failed to open startup source", "source", cfg.Source.Path, "err", err)
			}
			return nil
		})
	}

	slog.Info("server ready, press Ctrl+C to shut down")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Backend wiring ────────────────────────────────────────────────────────────

// registerBuiltins registers the cache backends and playback outputs that
// ship with wavecue.
func registerBuiltins(reg *config.Registry) {
	reg.RegisterStore(config.CacheMemory, func(_ context.Context, c config.CacheConfig) (cache.Store, error) {
		return memstore.New(memstore.WithMaxRecords(c.MaxRecords)), nil
	})
	reg.RegisterStore(config.CachePostgres, func(ctx context.Context, c config.CacheConfig) (cache.Store, error) {
		return postgres.NewStore(ctx, c.PostgresDSN, postgres.WithMaxRecords(c.MaxRecords))
	})

	reg.RegisterElement(config.OutputClock, func(config.PlaybackConfig) (audio.MediaElement, error) {
		return clock.New(0), nil
	})
	reg.RegisterElement(config.OutputOto, func(config.PlaybackConfig) (audio.MediaElement, error) {
		out, err := otoout.NewOutput(audio.Format{})
		if err != nil {
			return nil, err
		}
		return out.NewElement(), nil
	})
}

// buildDecoder returns the built-in decoders, backed by ffmpeg unless it is
// disabled.
func buildDecoder(c config.DecoderConfig, onBreaker func(string, resilience.State, resilience.State)) decode.Decoder {
	if c.FFmpegPath == config.FFmpegDisabled {
		return decode.Native{}
	}
	fb := resilience.NewDecoderFallback(decode.Native{}, "native", resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{OnStateChange: onBreaker},
	})
	fb.AddFallback("ffmpeg", &decode.FFmpeg{
		Path:   c.FFmpegPath,
		Format: audio.Format{SampleRate: c.TargetSampleRate},
	})
	return fb
}

// editorConfig maps the file config onto the editor's settings.
func editorConfig(cfg *config.Config) editor.Config {
	opts := render.DefaultOptions
	opts.MinimapHeight = cfg.Canvas.MinimapHeight
	opts.PeakScaleMin = cfg.Canvas.PeakScaleMin
	opts.PeakScaleMax = cfg.Canvas.PeakScaleMax

	return editor.Config{
		Width:               cfg.Canvas.Width,
		Height:              cfg.Canvas.Height,
		InitialZoom:         cfg.Timeline.InitialZoom,
		FrameRate:           cfg.Server.FrameRate,
		Render:              opts,
		DragThreshold:       cfg.Editor.DragThresholdPx,
		WheelSecondsPerUnit: cfg.Editor.WheelSecondsPerUnit,
		NudgeMs:             cfg.Editor.NudgeMs,
		FollowPlayhead:      cfg.Timeline.FollowPlayhead,
		FollowBand:          cfg.Timeline.FollowBand,
		DriftTolerance:      cfg.Playback.DriftTolerance(),
		DriftWindow:         cfg.Playback.DriftWindow(),
		MarkerDebounce:      cfg.Cache.MarkerDebounce,
		ViewDebounce:        cfg.Cache.ViewDebounce,
		AutosaveInterval:    cfg.Cache.AutosaveInterval,
		CacheTimeout:        cfg.Cache.Timeout,
	}
}

// applyReload pushes the hot-reloadable part of a config change into the
// running process.
func applyReload(ed *editor.Editor, level *slog.LevelVar, new *config.Config, d config.ConfigDiff) {
	if d.LogLevelChanged {
		level.Set(slogLevel(d.NewLogLevel))
	}
	if d.NudgeChanged || d.FollowChanged || d.CanvasChanged || d.InputChanged || d.DriftChanged {
		next := editorConfig(new)
		// Follow mode may have been toggled at runtime; keep it unless the
		// file changed it.
		if !d.FollowChanged {
			next.FollowPlayhead = ed.Config().FollowPlayhead
		}
		ed.SetConfig(next)
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes require a restart", "sections", d.RestartRequired)
	}
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// slogLevel maps a config log level to its slog counterpart.
func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
