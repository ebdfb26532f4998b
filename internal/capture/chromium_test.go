package capture

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestCaptureOptionsNormalize(t *testing.T) {
	var o CaptureOptions
	o.normalize()

	if o.Selector != DefaultSelector || o.Width != DefaultWidth || o.Height != DefaultHeight {
		t.Errorf("unexpected defaults %+v", o)
	}
	if o.Scale != DefaultScale {
		t.Errorf("expected scale %v, got %v", DefaultScale, o.Scale)
	}
	if o.Timeout != DefaultTimeoutSec*time.Second {
		t.Errorf("expected default timeout, got %v", o.Timeout)
	}

	o = CaptureOptions{Settle: -time.Second}
	o.normalize()
	if o.Settle != 0 {
		t.Errorf("negative settle should clamp to 0, got %v", o.Settle)
	}
}

func TestCapturePosterPNGRequiresHTML(t *testing.T) {
	if _, err := CapturePosterPNG(context.Background(), CaptureOptions{}); err == nil {
		t.Fatal("expected error without HTML")
	}
}

func TestServeDocumentLargePayload(t *testing.T) {
	// A document with a multi-megabyte inlined banner.
	html := []byte("<html><body><img src=\"data:image/png;base64," +
		strings.Repeat("A", 3<<20) + "\"></body></html>")

	url, stop, err := serveDocument(html)
	if err != nil {
		t.Fatalf("serve: %v", err)
	}
	defer stop()

	if !strings.HasPrefix(url, "http://127.0.0.1:") {
		t.Errorf("expected loopback URL, got %q", url)
	}

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("unexpected content type %q", ct)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(body, html) {
		t.Errorf("document truncated: got %d bytes, want %d", len(body), len(html))
	}

	other, err := http.Get(url + "favicon.ico")
	if err != nil {
		t.Fatal(err)
	}
	other.Body.Close()
	if other.StatusCode != http.StatusNotFound {
		t.Errorf("only the document should be served, got %d", other.StatusCode)
	}

	stop()
	if _, err := http.Get(url); err == nil {
		t.Error("listener should be closed after stop")
	}
}

func TestPosterPassesOptions(t *testing.T) {
	var got CaptureOptions
	p := NewPoster(func(_ context.Context, opts CaptureOptions) ([]byte, error) {
		got = opts
		return []byte("png"), nil
	}, CaptureOptions{Scale: 2, Settle: 50 * time.Millisecond})

	out, err := p.Capture(context.Background(), []byte("<html></html>"))
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if string(out) != "png" {
		t.Errorf("unexpected output %q", out)
	}
	if string(got.HTML) != "<html></html>" || got.Scale != 2 || got.Settle != 50*time.Millisecond {
		t.Errorf("options not forwarded: %+v", got)
	}
}

func TestPosterRejectsConcurrentCapture(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	p := NewPoster(func(context.Context, CaptureOptions) ([]byte, error) {
		close(entered)
		<-release
		return []byte("png"), nil
	}, CaptureOptions{})

	done := make(chan error, 1)
	go func() {
		_, err := p.Capture(context.Background(), []byte("x"))
		done <- err
	}()
	<-entered

	if !p.Busy() {
		t.Error("expected Busy while a capture is running")
	}
	if _, err := p.Capture(context.Background(), []byte("x")); !errors.Is(err, ErrCaptureInFlight) {
		t.Errorf("expected ErrCaptureInFlight, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first capture: %v", err)
	}
	if p.Busy() {
		t.Error("flag should be cleared after completion")
	}
}

func TestPosterClearsFlagOnFailure(t *testing.T) {
	calls := 0
	p := NewPoster(func(context.Context, CaptureOptions) ([]byte, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("chrome crashed")
		}
		return []byte("png"), nil
	}, CaptureOptions{})

	if _, err := p.Capture(context.Background(), []byte("x")); err == nil {
		t.Fatal("expected first capture to fail")
	}
	if _, err := p.Capture(context.Background(), []byte("x")); err != nil {
		t.Fatalf("retry after failure should run, got %v", err)
	}
}
