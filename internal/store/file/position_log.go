// Package file implements domain.PositionLog as a single JSON document on
// local disk. Saves are atomic: the new state is written to a temp file in the
// same directory and renamed over the old one, so a crash mid-write never
// yields a truncated log.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alanyoungcy/edgescan/internal/domain"
)

// PositionLog stores the position collection at a fixed path.
type PositionLog struct {
	path   string
	logger *slog.Logger
}

// NewPositionLog creates a PositionLog writing to path.
func NewPositionLog(path string, logger *slog.Logger) *PositionLog {
	return &PositionLog{
		path:   path,
		logger: logger.With(slog.String("component", "file_position_log")),
	}
}

// Load reads the persisted collection. A missing file is a fresh start and a
// corrupt file is recoverable: both return an empty set with a warning, never
// an error. The corrupt file is set aside under a .corrupt suffix so the next
// save does not destroy the evidence.
func (l *PositionLog) Load(ctx context.Context) ([]domain.Position, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		l.logger.WarnContext(ctx, "position file missing, starting empty",
			slog.String("path", l.path),
		)
		return []domain.Position{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file: read %s: %w", l.path, err)
	}

	var positions []domain.Position
	if err := json.Unmarshal(data, &positions); err != nil {
		l.logger.WarnContext(ctx, "position file corrupt, starting empty",
			slog.String("path", l.path),
			slog.String("error", err.Error()),
		)
		if renameErr := os.Rename(l.path, l.path+".corrupt"); renameErr != nil {
			l.logger.WarnContext(ctx, "could not set aside corrupt position file",
				slog.String("error", renameErr.Error()),
			)
		}
		return []domain.Position{}, nil
	}

	return positions, nil
}

// Save overwrites the persisted collection atomically.
func (l *PositionLog) Save(ctx context.Context, positions []domain.Position) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(positions, "", "  ")
	if err != nil {
		return fmt.Errorf("file: marshal positions: %w", err)
	}

	dir := filepath.Dir(l.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(l.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("file: create temp in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("file: write temp %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("file: sync temp %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("file: close temp %s: %w", tmpName, err)
	}

	if err := os.Rename(tmpName, l.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("file: rename %s -> %s: %w", tmpName, l.path, err)
	}
	return nil
}
