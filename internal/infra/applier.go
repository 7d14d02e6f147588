package infra

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/wallmon/internal/domain"
)

// CommandApplier implements domain.WallpaperApplier by running an external command.
// Placeholders in the argv: {path} (absolute file path), {uri} (file:// URI), {scope}.
type CommandApplier struct {
	argv   []string
	logger *zap.Logger
}

// NewCommandApplier creates an applier for the given command line.
func NewCommandApplier(argv []string, logger *zap.Logger) *CommandApplier {
	return &CommandApplier{argv: argv, logger: logger}
}

// Apply runs the command for imagePath. Any failure wraps domain.ErrApply.
func (a *CommandApplier) Apply(ctx context.Context, imagePath string, scope domain.DisplayScope) error {
	if len(a.argv) == 0 {
		return fmt.Errorf("%w: no wallpaper command configured for this platform", domain.ErrApply)
	}

	abs, err := filepath.Abs(imagePath)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrApply, err)
	}
	args := expandArgs(a.argv, abs, scope)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stderr = &stderr

	a.logger.Debug("applying wallpaper",
		zap.String("image", abs),
		zap.String("scope", string(scope)),
		zap.Strings("command", args))

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && msg != "" {
			return fmt.Errorf("%w: %s: %w: %s", domain.ErrApply, args[0], err, msg)
		}
		return fmt.Errorf("%w: %s: %w", domain.ErrApply, args[0], err)
	}
	return nil
}

func expandArgs(argv []string, path string, scope domain.DisplayScope) []string {
	uri := (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
	r := strings.NewReplacer("{path}", path, "{uri}", uri, "{scope}", string(scope))

	out := make([]string, len(argv))
	for i, a := range argv {
		out[i] = r.Replace(a)
	}
	return out
}

// Ensure CommandApplier implements domain.WallpaperApplier.
var _ domain.WallpaperApplier = (*CommandApplier)(nil)
