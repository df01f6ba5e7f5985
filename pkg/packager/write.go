package packager

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// WriteDocument writes rendered bytes to path atomically. The data is
// validated first, then written to a temporary file in the destination
// directory and renamed into place, so a partial or malformed document is
// never visible at the final path. The temporary file is removed on every
// failure path.
func WriteDocument(path string, data []byte, validate func([]byte) error, logger *zap.Logger) error {
	if err := validate(data); err != nil {
		return fmt.Errorf("document validation failed for %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".codepack-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer func() {
		// No-op after a successful rename; cleans up on every error path.
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to set permissions on %s: %w", tmpName, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", tmpName, err)
	}

	logger.Debug("atomically wrote document", zap.String("path", path), zap.Int("bytes", len(data)))
	return nil
}
