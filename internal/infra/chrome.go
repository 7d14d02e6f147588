package infra

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/wallmon/internal/domain"
)

// ChromeConfig holds headless Chrome launch settings.
type ChromeConfig struct {
	ExecPath  string // Empty means let chromedp find Chrome
	Headless  bool
	NoSandbox bool
}

// ChromeRenderer implements domain.Renderer with a fresh headless Chrome per session.
type ChromeRenderer struct {
	config ChromeConfig
	logger *zap.Logger
}

// NewChromeRenderer creates a renderer.
func NewChromeRenderer(config ChromeConfig, logger *zap.Logger) *ChromeRenderer {
	return &ChromeRenderer{config: config, logger: logger}
}

func (r *ChromeRenderer) allocatorOptions(width, height int) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.WindowSize(width, height),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", r.config.NoSandbox),
	)
	if r.config.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if r.config.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(r.config.ExecPath))
	}
	return opts
}

// Open launches Chrome and sizes the viewport. ctx bounds the launch only; the
// browser lives until Close.
func (r *ChromeRenderer) Open(ctx context.Context, width, height int) (domain.RenderSession, error) {
	s := r.newSession(ctx, width, height)
	if err := s.start(ctx, width, height); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	r.logger.Debug("browser session opened", zap.Int("width", width), zap.Int("height", height))
	return s, nil
}

func (r *ChromeRenderer) newSession(ctx context.Context, width, height int) *chromeSession {
	rootCtx, rootCancel := context.WithCancel(context.WithoutCancel(ctx))
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(rootCtx, r.allocatorOptions(width, height)...)

	sugar := r.logger.Sugar()
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Debugf),
	)

	return &chromeSession{
		ctx:   browserCtx,
		abort: rootCancel,
		cancel: func() {
			browserCancel()
			allocatorCancel()
			rootCancel()
		},
	}
}

// browserCloseTimeout bounds the graceful browser shutdown in Close.
const browserCloseTimeout = 5 * time.Second

type chromeSession struct {
	ctx       context.Context
	abort     context.CancelFunc // Kills the browser without waiting
	cancel    func()
	started   bool
	closeOnce sync.Once
	closeErr  error
}

// start allocates the browser. The first Run owns the browser process, so it
// runs on the session context itself; ctx can only abort the launch.
func (s *chromeSession) start(ctx context.Context, width, height int) error {
	stop := context.AfterFunc(ctx, s.abort)
	err := chromedp.Run(s.ctx, chromedp.EmulateViewport(int64(width), int64(height)))
	if !stop() {
		return ctx.Err()
	}
	if err != nil {
		return err
	}
	s.started = true
	return nil
}

// bind derives an operation context from the browser context that also honours
// the caller's deadline and cancellation.
func (s *chromeSession) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	opCtx, cancel := context.WithCancel(s.ctx)
	if deadline, ok := ctx.Deadline(); ok {
		var deadlineCancel context.CancelFunc
		opCtx, deadlineCancel = context.WithDeadline(opCtx, deadline)
		prev := cancel
		cancel = func() { deadlineCancel(); prev() }
	}
	stop := context.AfterFunc(ctx, cancel)
	return opCtx, func() {
		stop()
		cancel()
	}
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	opCtx, cancel := s.bind(ctx)
	defer cancel()
	return chromedp.Run(opCtx, chromedp.Navigate(url))
}

func (s *chromeSession) WaitReady(ctx context.Context, selector string) error {
	opCtx, cancel := s.bind(ctx)
	defer cancel()
	return chromedp.Run(opCtx, chromedp.WaitReady(selector, chromedp.ByQuery))
}

func (s *chromeSession) Screenshot(ctx context.Context) ([]byte, error) {
	opCtx, cancel := s.bind(ctx)
	defer cancel()

	var buf []byte
	err := chromedp.Run(opCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormatPng).
			WithFromSurface(true).
			Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// Close shuts a running browser down gracefully, then releases the allocator.
// A browser that never started has nothing to close gracefully.
func (s *chromeSession) Close() error {
	s.closeOnce.Do(func() {
		if s.started {
			ctx, cancel := context.WithTimeout(s.ctx, browserCloseTimeout)
			s.closeErr = chromedp.Cancel(ctx)
			cancel()
		}
		s.cancel()
	})
	return s.closeErr
}

// Ensure ChromeRenderer implements domain.Renderer.
var _ domain.Renderer = (*ChromeRenderer)(nil)
