package viewer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"runtime/debug"
	"sync"
	"time"

	dimaging "github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/detection-viewer/internal/detection"
	"github.com/ironsheep/detection-viewer/internal/loadstate"
	"github.com/ironsheep/detection-viewer/internal/metrics"
	"github.com/ironsheep/detection-viewer/internal/render"
	"github.com/ironsheep/detection-viewer/internal/view"
)

var (
	ErrClosed         = errors.New("viewer closed")
	ErrNoRecord       = errors.New("no record open")
	ErrThresholdRange = errors.New("threshold must be within [0, 1]")
	ErrNoSurface      = errors.New("nothing rendered")
	ErrNoOverlay      = errors.New("current surface is not a vector overlay")
	ErrNoOpener       = errors.New("no URL opener configured")
)

// Loader fetches and decodes an image.
type Loader interface {
	Load(ctx context.Context, src string) (image.Image, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, src string) (image.Image, error)

func (f LoaderFunc) Load(ctx context.Context, src string) (image.Image, error) {
	return f(ctx, src)
}

// Opener hands a URL to something outside the viewer, such as a browser.
type Opener func(url string) error

// Options configures a Viewer. Only RasterLoader is required.
type Options struct {
	Logger  logrus.FieldLogger
	Metrics *metrics.Metrics

	RasterLoader Loader
	// FallbackLoader defaults to RasterLoader.
	FallbackLoader Loader

	// Raster and Overlay default to the render package implementations
	// using Filter.
	Raster  render.Renderer
	Overlay render.Renderer

	Opener Opener

	// Container defaults to 800 x view.DefaultMaxContainerHeight.
	Container view.Size
	// Window defaults to 1920x1080.
	Window view.Size
	// Background fills frame areas the surface does not cover. The zero
	// value means white.
	Background color.NRGBA
	// Filter resamples surfaces. The zero value is nearest neighbor.
	Filter dimaging.ResampleFilter
	// Threshold is the initial confidence threshold.
	Threshold float64
	// MaxSurfacePixels caps the raster surface area for the default Raster
	// renderer; 0 means no cap.
	MaxSurfacePixels int
}

// SurfaceInfo describes the current surface.
type SurfaceInfo struct {
	Kind   render.Kind     `json:"kind"`
	Width  int             `json:"width"`
	Height int             `json:"height"`
	Drawn  []detection.Box `json:"drawn"`
}

// Snapshot is a consistent copy of the viewer state.
type Snapshot struct {
	Token         string       `json:"token,omitempty"`
	Filename      string       `json:"filename,omitempty"`
	ImageURL      string       `json:"imageUrl,omitempty"`
	Threshold     float64      `json:"threshold"`
	View          view.Session `json:"view"`
	Container     view.Size    `json:"container"`
	Window        view.Size    `json:"window"`
	Surface       *SurfaceInfo `json:"surface,omitempty"`
	Info          string       `json:"info,omitempty"`
	Cursor        string       `json:"cursor"`
	Hint          string       `json:"hint,omitempty"`
	ZoomIndicator string       `json:"zoomIndicator,omitempty"`
	Status        Status       `json:"status"`
}

// Viewer is the display engine. A single goroutine owns all state; the
// exported methods are safe for concurrent use and block until the loop
// has applied them.
type Viewer struct {
	log      logrus.FieldLogger
	metrics  *metrics.Metrics
	rasterL  Loader
	elementL Loader
	rasterR  render.Renderer
	overlayR render.Renderer
	opener   Opener
	bg       color.NRGBA
	filter   dimaging.ResampleFilter

	events    chan interface{}
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// Owned by the loop.
	machine     *loadstate.Machine
	ctrl        Controller
	session     view.Session
	container   view.Size
	window      view.Size
	record      detection.Record
	hasRecord   bool
	threshold   float64
	natural     view.Size
	heldRaster  image.Image
	heldElement image.Image
	surface     *render.Surface
	lastErr     error
	cancel      context.CancelFunc
	waiters     []chan struct{}
}

// drawResult is the outcome of one load-and-render attempt.
type drawResult struct {
	tok     loadstate.Token
	img     image.Image
	surface *render.Surface
	err     error
	elapsed time.Duration
}

type (
	evtExec         struct{ fn func() }
	evtRasterDone   struct{ drawResult }
	evtFallbackDone struct{ drawResult }
)

// New starts a viewer's event loop.
func New(opts Options) (*Viewer, error) {
	if opts.RasterLoader == nil {
		return nil, errors.New("raster loader is required")
	}
	if opts.Threshold < 0 || opts.Threshold > 1 || math.IsNaN(opts.Threshold) {
		return nil, fmt.Errorf("%w: %v", ErrThresholdRange, opts.Threshold)
	}

	v := &Viewer{
		log:       opts.Logger,
		metrics:   opts.Metrics,
		rasterL:   opts.RasterLoader,
		elementL:  opts.FallbackLoader,
		rasterR:   opts.Raster,
		overlayR:  opts.Overlay,
		opener:    opts.Opener,
		bg:        opts.Background,
		filter:    opts.Filter,
		events:    make(chan interface{}, 64),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		session:   view.NewSession(),
		container: opts.Container,
		window:    opts.Window,
		threshold: opts.Threshold,
	}
	if v.log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		v.log = l
	}
	if v.elementL == nil {
		v.elementL = v.rasterL
	}
	if v.rasterR == nil {
		v.rasterR = render.NewRaster(opts.Filter, opts.MaxSurfacePixels)
	}
	if v.overlayR == nil {
		v.overlayR = render.NewOverlay(opts.Filter)
	}
	if v.bg.A == 0 {
		v.bg = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	}
	if v.container.Empty() {
		v.container = view.Size{W: 800, H: view.DefaultMaxContainerHeight}
	}
	if v.window.Empty() {
		v.window = view.Size{W: 1920, H: 1080}
	}

	v.machine = loadstate.New()
	v.machine.OnTransition(func(prev, next loadstate.Phase) {
		v.metrics.Transition(prev.String(), next.String())
		v.log.WithFields(logrus.Fields{
			"from": prev.String(),
			"to":   next.String(),
		}).Debug("load phase transition")
	})

	go func() {
		defer close(v.done)
		defer func() {
			if r := recover(); r != nil {
				v.log.WithFields(logrus.Fields{
					"panic": r,
					"stack": string(debug.Stack()),
				}).Error("viewer loop panic")
			}
		}()
		v.loop()
	}()

	return v, nil
}

func (v *Viewer) loop() {
	for {
		select {
		case <-v.quit:
			v.stopLoad()
			return
		case ev := <-v.events:
			switch e := ev.(type) {
			case evtExec:
				e.fn()
			case evtRasterDone:
				v.rasterDone(e)
			case evtFallbackDone:
				v.fallbackDone(e)
			}
			v.releaseWaiters()
		}
	}
}

// exec runs fn on the loop and waits for it.
func (v *Viewer) exec(fn func()) error {
	ran := make(chan struct{})
	select {
	case v.events <- evtExec{fn: func() { fn(); close(ran) }}:
	case <-v.done:
		return ErrClosed
	}
	select {
	case <-ran:
		return nil
	case <-v.done:
		return ErrClosed
	}
}

// post delivers a completion unless the loop has exited.
func (v *Viewer) post(ev interface{}) {
	select {
	case v.events <- ev:
	case <-v.done:
	}
}

// Close stops the loop and cancels any load in flight.
func (v *Viewer) Close() error {
	v.closeOnce.Do(func() { close(v.quit) })
	<-v.done
	return nil
}

// Open displays rec. The view resets to zoom 1 with no pan; the display mode
// is kept.
func (v *Viewer) Open(rec detection.Record) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("failed to open record: %w", err)
	}
	if rec.Filename == "" {
		rec.Filename = detection.FilenameFromURL(rec.ImageURL)
	}

	return v.exec(func() {
		if rec.ImageURL != v.record.ImageURL {
			v.heldRaster, v.heldElement = nil, nil
			v.natural = view.Size{}
		}
		v.record = rec
		v.hasRecord = true
		v.session = v.session.Reset()
		v.ctrl.Reset()
		v.startCycle()
	})
}

// SetThreshold changes the confidence threshold. Values outside [0, 1] are
// rejected.
func (v *Viewer) SetThreshold(t float64) error {
	if t < 0 || t > 1 || math.IsNaN(t) {
		return fmt.Errorf("%w: %v", ErrThresholdRange, t)
	}
	return v.exec(func() {
		if t == v.threshold {
			return
		}
		v.threshold = t
		v.startCycle()
	})
}

// Threshold returns the current confidence threshold.
func (v *Viewer) Threshold() (float64, error) {
	var t float64
	err := v.exec(func() { t = v.threshold })
	return t, err
}

// Dispatch applies a user input event and reports its effect.
func (v *Viewer) Dispatch(ev Event) (Effect, error) {
	if ev == nil {
		return EffectNone, errors.New("nil event")
	}

	var eff Effect
	err := v.exec(func() {
		switch e := ev.(type) {
		case ContainerEvent:
			if !e.Container.Empty() {
				v.container = e.Container
			}
			return
		case ResizeEvent:
			if !e.Window.Empty() {
				v.window = e.Window
			}
		}

		next, effect := v.ctrl.Handle(v.session, ev, v.env())
		v.session = next
		eff = effect
		if effect == EffectRerender {
			v.startCycle()
		}
	})
	return eff, err
}

// RetryRaster restarts the raster path after both paths failed.
func (v *Viewer) RetryRaster() error {
	var opErr error
	err := v.exec(func() {
		tok, err := v.machine.Retry()
		if err != nil {
			opErr = err
			return
		}
		v.heldRaster = nil
		v.lastErr = nil
		v.metrics.CycleStarted()
		v.runRaster(tok)
	})
	if err != nil {
		return err
	}
	return opErr
}

// ForceFallback retries only the image fallback after both paths failed.
func (v *Viewer) ForceFallback() error {
	var opErr error
	err := v.exec(func() {
		tok, err := v.machine.ForceFallback()
		if err != nil {
			opErr = err
			return
		}
		v.heldElement = nil
		v.lastErr = nil
		v.showPlaceholder()
		v.metrics.CycleStarted()
		v.runFallback(tok)
	})
	if err != nil {
		return err
	}
	return opErr
}

// OpenURL hands the current image URL to the configured Opener.
func (v *Viewer) OpenURL() (string, error) {
	var url string
	err := v.exec(func() {
		if v.hasRecord {
			url = v.record.ImageURL
		}
	})
	if err != nil {
		return "", err
	}
	if url == "" {
		return "", ErrNoRecord
	}
	if v.opener == nil {
		return url, ErrNoOpener
	}
	if err := v.opener(url); err != nil {
		return url, fmt.Errorf("failed to open %s: %w", url, err)
	}
	return url, nil
}

// Settled blocks until no load is in flight.
func (v *Viewer) Settled(ctx context.Context) error {
	var wait chan struct{}
	err := v.exec(func() {
		if !v.machine.Phase().Pending() {
			return
		}
		wait = make(chan struct{})
		v.waiters = append(v.waiters, wait)
	})
	if err != nil || wait == nil {
		return err
	}

	select {
	case <-wait:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-v.done:
		return ErrClosed
	}
}

// Snapshot returns the current state.
func (v *Viewer) Snapshot() (Snapshot, error) {
	var snap Snapshot
	err := v.exec(func() { snap = v.snapshot() })
	return snap, err
}

func (v *Viewer) snapshot() Snapshot {
	phase := v.machine.Phase()
	snap := Snapshot{
		Threshold: v.threshold,
		View:      v.session,
		Container: v.container,
		Window:    v.window,
		Cursor:    v.session.Cursor(v.ctrl.Dragging()),
		Status:    statusFor(phase, v.record.Filename, v.record.ImageURL, v.lastErr),
	}
	if phase != loadstate.Idle {
		snap.Token = v.machine.Token().String()
	}
	if v.hasRecord {
		snap.Filename = v.record.Filename
		snap.ImageURL = v.record.ImageURL
	}
	if s := v.surface; s != nil {
		w, h := s.Image.Bounds().Dx(), s.Image.Bounds().Dy()
		snap.Surface = &SurfaceInfo{Kind: s.Kind, Width: w, Height: h, Drawn: s.Drawn}
		if s.Kind != render.KindPlaceholder {
			snap.Info = v.session.InfoLine(displayed(s))
		}
	}
	if v.session.Fullscreen {
		snap.Hint = FullscreenHint
		snap.ZoomIndicator = fmt.Sprintf("Zoom: %d%%", v.session.ZoomPercent())
		if v.session.Zoom >= 1 {
			snap.ZoomIndicator += " (High Resolution)"
		}
	}
	return snap
}

// Frame composes the current surface into a viewport. An empty viewport
// means the container, or the window in fullscreen.
func (v *Viewer) Frame(viewport view.Size) (*image.NRGBA, error) {
	var (
		s   *render.Surface
		pan view.Point
	)
	err := v.exec(func() {
		s = v.surface
		pan = v.session.Pan
		if viewport.Empty() {
			viewport = view.FitViewport(v.container, v.window, v.session.Fullscreen)
		}
	})
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrNoSurface
	}

	frame := render.Compose(s, pan, viewport, v.bg, v.filter)
	v.metrics.Composed()
	return frame, nil
}

// OverlaySVG returns the vector overlay while the image fallback is shown.
func (v *Viewer) OverlaySVG() ([]byte, error) {
	var doc []byte
	err := v.exec(func() {
		if v.surface != nil && v.surface.Kind == render.KindOverlay {
			doc = v.surface.SVG
		}
	})
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrNoOverlay
	}
	return doc, nil
}

func (v *Viewer) env() Env {
	e := Env{Natural: v.natural, Container: v.container, Window: v.window}
	if v.surface != nil && v.surface.Kind != render.KindPlaceholder {
		e.Surface = displayed(v.surface)
	}
	return e
}

// displayed is the on-screen size of s.
func displayed(s *render.Surface) view.Size {
	return s.Size.Scale(s.Scale)
}

func (v *Viewer) request() render.Request {
	return render.Request{
		ImageURL:  v.record.ImageURL,
		Filename:  v.record.Filename,
		Boxes:     v.record.Boxes,
		Threshold: v.threshold,
		View:      v.session,
		Container: v.container,
	}
}

// startCycle begins a render cycle on the raster path, superseding any cycle
// in flight.
func (v *Viewer) startCycle() {
	if !v.hasRecord {
		return
	}
	tok := v.machine.Begin()
	v.lastErr = nil
	v.metrics.CycleStarted()
	v.runRaster(tok)
}

// loadContext cancels the previous load and returns a context for the next.
func (v *Viewer) loadContext() context.Context {
	v.stopLoad()
	ctx, cancel := context.WithCancel(context.Background())
	v.cancel = cancel
	return ctx
}

func (v *Viewer) stopLoad() {
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
}

func (v *Viewer) runRaster(tok loadstate.Token) {
	ctx := v.loadContext()
	req := v.request()
	held := v.heldRaster

	go func() {
		defer v.recoverLoad("raster")
		v.post(evtRasterDone{v.draw(ctx, tok, v.rasterL, v.rasterR, held, req)})
	}()
}

func (v *Viewer) runFallback(tok loadstate.Token) {
	ctx := v.loadContext()
	req := v.request()
	held := v.heldElement

	go func() {
		defer v.recoverLoad("fallback")
		v.post(evtFallbackDone{v.draw(ctx, tok, v.elementL, v.overlayR, held, req)})
	}()
}

// draw loads the image unless one is held, then renders it.
func (v *Viewer) draw(ctx context.Context, tok loadstate.Token, l Loader, r render.Renderer, held image.Image, req render.Request) drawResult {
	started := time.Now()
	res := drawResult{tok: tok, img: held}
	if res.img == nil {
		res.img, res.err = l.Load(ctx, req.ImageURL)
	}
	if res.err == nil {
		res.surface, res.err = r.Draw(ctx, res.img, req)
	}
	res.elapsed = time.Since(started)
	return res
}

func (v *Viewer) recoverLoad(path string) {
	if r := recover(); r != nil {
		v.log.WithFields(logrus.Fields{
			"path":  path,
			"panic": r,
			"stack": string(debug.Stack()),
		}).Error("load goroutine panic")
	}
}

func (v *Viewer) rasterDone(e evtRasterDone) {
	if !v.machine.Current(e.tok) || v.machine.Phase() != loadstate.Loading {
		v.discard(render.KindRaster, e.tok)
		return
	}
	v.stopLoad()
	path := render.KindRaster.String()

	if e.err != nil {
		v.metrics.RenderOutcome(path, metrics.OutcomeFailed)
		v.log.WithError(e.err).WithField("url", v.record.ImageURL).Warn("canvas render failed, trying image fallback")
		v.lastErr = e.err
		v.heldRaster = nil
		if err := v.machine.RasterFailed(e.tok); err != nil {
			v.log.WithError(err).Error("failed to record raster failure")
			return
		}
		v.showPlaceholder()
		v.runFallback(e.tok)
		return
	}

	v.metrics.RenderOutcome(path, metrics.OutcomeOK)
	v.metrics.ObserveLoad(path, e.elapsed)
	v.heldRaster = e.img
	v.natural = e.surface.Natural
	v.surface = e.surface
	if err := v.machine.RasterSucceeded(e.tok); err != nil {
		v.log.WithError(err).Error("failed to record raster success")
		return
	}
	v.log.WithFields(logrus.Fields{
		"filename": v.record.Filename,
		"surface":  e.surface.Size.String(),
		"drawn":    len(e.surface.Drawn),
		"elapsed":  e.elapsed,
	}).Info("image rendered")
}

func (v *Viewer) fallbackDone(e evtFallbackDone) {
	if !v.machine.Current(e.tok) || v.machine.Phase() != loadstate.FallbackLoading {
		v.discard(render.KindOverlay, e.tok)
		return
	}
	v.stopLoad()
	path := render.KindOverlay.String()

	if e.err != nil {
		v.metrics.RenderOutcome(path, metrics.OutcomeFailed)
		v.log.WithError(e.err).WithField("url", v.record.ImageURL).Error("image fallback failed")
		v.lastErr = e.err
		v.heldElement = nil
		v.surface = nil
		if err := v.machine.FallbackFailed(e.tok); err != nil {
			v.log.WithError(err).Error("failed to record fallback failure")
		}
		return
	}

	v.metrics.RenderOutcome(path, metrics.OutcomeOK)
	v.metrics.ObserveLoad(path, e.elapsed)
	v.heldElement = e.img
	v.natural = e.surface.Natural
	v.surface = e.surface
	if err := v.machine.FallbackSucceeded(e.tok); err != nil {
		v.log.WithError(err).Error("failed to record fallback success")
		return
	}
	v.log.WithFields(logrus.Fields{
		"filename": v.record.Filename,
		"drawn":    len(e.surface.Drawn),
		"elapsed":  e.elapsed,
	}).Info("image fallback shown")
}

func (v *Viewer) discard(path render.Kind, tok loadstate.Token) {
	v.metrics.Stale()
	v.log.WithFields(logrus.Fields{
		"path":    path.String(),
		"token":   tok.String(),
		"current": v.machine.Token().String(),
	}).Debug("discarded stale completion")
}

func (v *Viewer) showPlaceholder() {
	ph, err := render.Placeholder(v.record.Filename)
	if err != nil {
		v.log.WithError(err).Warn("failed to draw placeholder")
		v.surface = nil
		return
	}
	v.surface = ph
}

func (v *Viewer) releaseWaiters() {
	if len(v.waiters) == 0 || v.machine.Phase().Pending() {
		return
	}
	for _, w := range v.waiters {
		close(w)
	}
	v.waiters = nil
}
