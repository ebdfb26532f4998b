package capture

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	appLog "auracal/internal/log"
)

// Default capture parameters for the share poster. The width matches the
// poster template (380 CSS px); scale 3 gives a crisp bitmap on phones.
const (
	DefaultWidth      = 380
	DefaultHeight     = 800
	DefaultScale      = 3.0
	DefaultSettle     = 200 * time.Millisecond
	DefaultTimeoutSec = 30
	DefaultSelector   = "#poster"
)

// ErrCaptureInFlight is returned when a capture is requested while another
// one is still running.
var ErrCaptureInFlight = errors.New("capture: poster capture already in progress")

// CaptureOptions defines parameters for a Chromium-based poster capture.
type CaptureOptions struct {
	// HTML is the complete poster document. It is served from a private
	// loopback listener, so the main server's basic auth never applies.
	HTML []byte

	// Selector is the element to rasterize. Defaults to DefaultSelector.
	Selector string

	// Width and Height are the viewport dimensions in CSS pixels.
	Width  int
	Height int

	// Scale is the device scale factor.
	Scale float64

	// Settle is the pause between "ready" and the screenshot, letting
	// images decode and fonts paint.
	Settle time.Duration

	// Timeout bounds the entire capture operation.
	Timeout time.Duration
}

func (o *CaptureOptions) normalize() {
	if o.Selector == "" {
		o.Selector = DefaultSelector
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Scale <= 0 {
		o.Scale = DefaultScale
	}
	if o.Settle < 0 {
		o.Settle = 0
	}
	if o.Timeout <= 0 {
		o.Timeout = time.Duration(DefaultTimeoutSec) * time.Second
	}
}

// CapturePosterPNG launches a headless Chromium instance via chromedp, loads
// opts.HTML, waits until the document signals readiness, waits opts.Settle
// and screenshots the poster element.
//
// Rendering-complete condition: the poster root exposes
// <div data-ready="true" ...>.
func CapturePosterPNG(parentCtx context.Context, opts CaptureOptions) ([]byte, error) {
	if len(opts.HTML) == 0 {
		return nil, fmt.Errorf("capture: HTML is required")
	}
	opts.normalize()

	// Documents with an inlined banner run to megabytes, well past what
	// Chromium accepts as a data: URL.
	url, stop, err := serveDocument(opts.HTML)
	if err != nil {
		return nil, err
	}
	defer stop()

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height), chromedp.EmulateScale(opts.Scale)),
		chromedp.Navigate(url),
		chromedp.WaitVisible(`[data-ready="true"]`, chromedp.ByQuery),
		chromedp.Sleep(opts.Settle),
		chromedp.Screenshot(opts.Selector, &png, chromedp.NodeVisible, chromedp.ByQuery),
	}

	if err := chromedp.Run(ctx, tasks); err != nil {
		return nil, fmt.Errorf("capture: chromedp run failed: %w", err)
	}
	if len(png) == 0 {
		return nil, errors.New("capture: empty screenshot")
	}
	return png, nil
}

// serveDocument serves html at the root of an ephemeral 127.0.0.1 listener
// and returns its URL. stop closes the listener.
func serveDocument(html []byte) (url string, stop func(), err error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("capture: listen: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(html)
	})
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("poster document server stopped", err)
		}
	}()

	return "http://" + ln.Addr().String() + "/", func() { _ = srv.Close() }, nil
}

// CaptureFunc renders a poster document into a PNG.
type CaptureFunc func(ctx context.Context, opts CaptureOptions) ([]byte, error)

// Poster serializes poster captures: at most one runs at a time, and a
// trigger while one is outstanding is rejected with ErrCaptureInFlight
// instead of queueing.
type Poster struct {
	capture CaptureFunc
	base    CaptureOptions

	inFlight sync.Mutex
}

// NewPoster creates a guard around fn (CapturePosterPNG when nil) using base
// as the default options for every capture.
func NewPoster(fn CaptureFunc, base CaptureOptions) *Poster {
	if fn == nil {
		fn = CapturePosterPNG
	}
	return &Poster{capture: fn, base: base}
}

// Capture rasterizes html. The in-flight flag is cleared whether the capture
// succeeds or fails so the user can retry.
func (p *Poster) Capture(ctx context.Context, html []byte) ([]byte, error) {
	if !p.inFlight.TryLock() {
		return nil, ErrCaptureInFlight
	}
	defer p.inFlight.Unlock()

	start := time.Now()
	opts := p.base
	opts.HTML = html

	png, err := p.capture(ctx, opts)
	if err != nil {
		appLog.Error("poster capture failed", err, "elapsed", time.Since(start).String())
		return nil, err
	}

	appLog.Info("poster captured", "bytes", len(png), "elapsed", time.Since(start).String())
	return png, nil
}

// Busy reports whether a capture is currently running.
func (p *Poster) Busy() bool {
	if p.inFlight.TryLock() {
		p.inFlight.Unlock()
		return false
	}
	return true
}
