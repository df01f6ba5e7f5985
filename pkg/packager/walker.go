package packager

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"codepack/pkg/ignore"
)

// WalkResult is the outcome of the discovery pass: descriptor skeletons in
// walk order, the directory aggregates, and the finalized run metadata.
// Content payloads are not filled yet.
type WalkResult struct {
	Descriptors []*FileDescriptor
	Dirs        *DirectoryStats
	Meta        RunMetadata
}

// Walk traverses root depth-first in lexical order and produces a descriptor
// for every regular file the filter accepts. Ignored directories are pruned
// without descending. Files larger than maxFileSize are kept as skipped
// placeholders: they appear in the output and in the counts, but carry no
// content and do not contribute to the total size. Per-entry filesystem
// errors are logged and skipped; only a failure on the root itself aborts.
func Walk(ctx context.Context, root string, maxFileSize int64, filter ignore.Filter, logger *zap.Logger) (*WalkResult, error) {
	result := &WalkResult{Dirs: NewDirectoryStats()}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			if path == root {
				return fmt.Errorf("cannot read project directory %s: %w", root, err)
			}
			logger.Warn("error accessing path, skipping", zap.String("path", path), zap.Error(err))
			return nil
		}

		if path == root {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			logger.Warn("cannot compute relative path, skipping", zap.String("path", path), zap.Error(relErr))
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if filter.Ignored(rel, true) {
				logger.Debug("pruning ignored directory", zap.String("path", rel))
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			logger.Debug("skipping non-regular file", zap.String("path", rel))
			return nil
		}

		if filter.Ignored(rel, false) {
			logger.Debug("skipping ignored file", zap.String("path", rel))
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			logger.Warn("stat failed, skipping", zap.String("path", rel), zap.Error(infoErr))
			return nil
		}

		desc := newDescriptor(path, rel, info)

		c := Classify(desc.Name, headSniffer(path))
		desc.MIMEType = c.MIMEType
		desc.Kind = c.Kind
		desc.SkipReason = c.Reason

		if desc.Kind != KindSkipped && info.Size() > maxFileSize {
			desc.Kind = KindSkipped
			desc.SkipReason = fmt.Sprintf("size %d exceeds limit %d", info.Size(), maxFileSize)
			logger.Debug("file exceeds size limit, recording placeholder",
				zap.String("path", rel),
				zap.Int64("size", info.Size()))
		}

		desc.Index = len(result.Descriptors) + 1
		result.Descriptors = append(result.Descriptors, desc)
		result.Dirs.Add(desc.Directory)

		if desc.Kind != KindSkipped {
			result.Meta.TotalSize += desc.Size
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Meta.RootDirectory = root
	result.Meta.FileCount = len(result.Descriptors)
	result.Meta.CreatedAt = time.Now()

	logger.Info("directory scan complete",
		zap.String("root", root),
		zap.Int("files", result.Meta.FileCount),
		zap.Int64("totalSize", result.Meta.TotalSize))

	return result, nil
}

func newDescriptor(absPath, rel string, info fs.FileInfo) *FileDescriptor {
	dir := "."
	if i := strings.LastIndexByte(rel, '/'); i >= 0 {
		dir = rel[:i]
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(rel)), ".")
	return &FileDescriptor{
		Path:      rel,
		Directory: dir,
		Name:      filepath.Base(rel),
		Size:      info.Size(),
		ModTime:   info.ModTime(),
		Extension: ext,
		absPath:   absPath,
	}
}

// headSniffer reads up to SniffSize leading bytes on demand for the
// classifier's fallback rule.
func headSniffer(path string) Sniffer {
	return func() ([]byte, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		head := make([]byte, SniffSize)
		n, err := io.ReadFull(f, head)
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return nil, err
		}
		return head[:n], nil
	}
}
