// Package usecase contains application business logic.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/wallmon/internal/domain"
)

// CaptureConfig holds capture pipeline settings.
type CaptureConfig struct {
	Width         int
	Height        int
	ReadySelector string        // CSS selector that marks the page as populated
	ReadyTimeout  time.Duration // How long to wait for ReadySelector
	SettleDelay   time.Duration // Fixed wait after readiness, lets fonts and images finish
	ArtifactPath  string
}

// CapturePipelineImpl implements domain.CapturePipeline.
// It owns one render session per call and never retries.
type CapturePipelineImpl struct {
	config   CaptureConfig
	renderer domain.Renderer
	fs       domain.FileSystemManager
	logger   *zap.Logger
}

// NewCapturePipeline creates a capture pipeline.
func NewCapturePipeline(
	config CaptureConfig,
	renderer domain.Renderer,
	fs domain.FileSystemManager,
	logger *zap.Logger,
) *CapturePipelineImpl {
	return &CapturePipelineImpl{
		config:   config,
		renderer: renderer,
		fs:       fs,
		logger:   logger,
	}
}

// Capture renders documentRef and replaces the artifact with a screenshot of it.
// On any error the previous artifact is left untouched.
func (p *CapturePipelineImpl) Capture(ctx context.Context, documentRef string) (string, error) {
	docURL, err := DocumentURL(documentRef)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrNavigation, err)
	}

	session, err := p.renderer.Open(ctx, p.config.Width, p.config.Height)
	if err != nil {
		return "", stepError(domain.ErrRender, "open session", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			p.logger.Debug("failed to close render session", zap.Error(cerr))
		}
	}()

	if err := session.Navigate(ctx, docURL); err != nil {
		return "", stepError(domain.ErrNavigation, docURL, err)
	}

	readyCtx, cancel := context.WithTimeout(ctx, p.config.ReadyTimeout)
	err = session.WaitReady(readyCtx, p.config.ReadySelector)
	cancel()
	if err != nil {
		// The cycle itself ending is not a readiness timeout.
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %s not present after %s", domain.ErrTimeout, p.config.ReadySelector, p.config.ReadyTimeout)
		}
		return "", stepError(domain.ErrRender, "wait for "+p.config.ReadySelector, err)
	}
	p.logger.Debug("page ready", zap.String("selector", p.config.ReadySelector))

	if p.config.SettleDelay > 0 {
		timer := time.NewTimer(p.config.SettleDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return "", stepError(domain.ErrRender, "settle", ctx.Err())
		}
	}

	png, err := session.Screenshot(ctx)
	if err != nil {
		return "", stepError(domain.ErrRender, "screenshot", err)
	}
	if len(png) == 0 {
		return "", fmt.Errorf("%w: screenshot is empty", domain.ErrRender)
	}

	if err := p.fs.EnsureDir(filepath.Dir(p.config.ArtifactPath)); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrArtifact, err)
	}
	if err := p.fs.WriteFileAtomic(p.config.ArtifactPath, png, 0644); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrArtifact, err)
	}

	p.logger.Debug("artifact written",
		zap.String("path", p.config.ArtifactPath),
		zap.Int("bytes", len(png)))
	return p.config.ArtifactPath, nil
}

// stepError wraps err in kind, except that a blown deadline is always a timeout.
func stepError(kind error, step string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		kind = domain.ErrTimeout
	}
	return fmt.Errorf("%w: %s: %w", kind, step, err)
}

// DocumentURL turns a document reference into a URL the renderer can load.
// Absolute URLs pass through; anything else is treated as a file path.
func DocumentURL(ref string) (string, error) {
	if ref == "" {
		return "", errors.New("no document configured")
	}
	if u, err := url.Parse(ref); err == nil && len(u.Scheme) > 1 {
		return ref, nil
	}

	abs, err := filepath.Abs(ref)
	if err != nil {
		return "", err
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}

// Ensure CapturePipelineImpl implements domain.CapturePipeline.
var _ domain.CapturePipeline = (*CapturePipelineImpl)(nil)
