// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"time"

	"github.com/eliteGoblin/focusd/wallmon/internal/domain"
)

// FakePageRenderer stands in for headless Chrome: the page becomes ready
// ReadyAfter after navigation and screenshots are a small solid PNG.
type FakePageRenderer struct {
	ReadyAfter time.Duration

	mu      sync.Mutex
	opened  int
	closed  int
	readyAt []time.Time
	shotAt  []time.Time
	lastURL string
}

// NewFakePageRenderer creates a renderer whose page is ready after readyAfter.
func NewFakePageRenderer(readyAfter time.Duration) *FakePageRenderer {
	return &FakePageRenderer{ReadyAfter: readyAfter}
}

// Open starts a fake session.
func (r *FakePageRenderer) Open(ctx context.Context, width, height int) (domain.RenderSession, error) {
	r.mu.Lock()
	r.opened++
	r.mu.Unlock()
	return &fakePageSession{renderer: r, width: width, height: height}, nil
}

// Sessions returns how many sessions were opened and closed.
func (r *FakePageRenderer) Sessions() (opened, closed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opened, r.closed
}

// Timings returns the readiness and screenshot times of every session.
func (r *FakePageRenderer) Timings() (readyAt, shotAt []time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Time(nil), r.readyAt...), append([]time.Time(nil), r.shotAt...)
}

// LastURL returns the most recently navigated URL.
func (r *FakePageRenderer) LastURL() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastURL
}

type fakePageSession struct {
	renderer    *FakePageRenderer
	width       int
	height      int
	navigatedAt time.Time
	closeOnce   sync.Once
}

func (s *fakePageSession) Navigate(ctx context.Context, url string) error {
	s.navigatedAt = time.Now()
	s.renderer.mu.Lock()
	s.renderer.lastURL = url
	s.renderer.mu.Unlock()
	return nil
}

func (s *fakePageSession) WaitReady(ctx context.Context, selector string) error {
	timer := time.NewTimer(time.Until(s.navigatedAt.Add(s.renderer.ReadyAfter)))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	s.renderer.mu.Lock()
	s.renderer.readyAt = append(s.renderer.readyAt, time.Now())
	s.renderer.mu.Unlock()
	return nil
}

func (s *fakePageSession) Screenshot(ctx context.Context) ([]byte, error) {
	s.renderer.mu.Lock()
	s.renderer.shotAt = append(s.renderer.shotAt, time.Now())
	s.renderer.mu.Unlock()
	return SolidPNG(s.width/100+1, s.height/100+1, color.RGBA{R: 20, G: 40, B: 80, A: 255})
}

func (s *fakePageSession) Close() error {
	s.closeOnce.Do(func() {
		s.renderer.mu.Lock()
		s.renderer.closed++
		s.renderer.mu.Unlock()
	})
	return nil
}

// SolidPNG encodes a w x h image of one color.
func SolidPNG(w, h int, c color.Color) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
