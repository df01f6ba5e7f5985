// Package packager turns a project directory into one or more structured
// documents sized for a model's context window. The pipeline is: walk the
// tree, filter it against ignore rules, classify and read each file, then
// assemble batches and serialize them atomically, splitting the output into
// parts when a single document would exceed the size budget.
package packager

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"codepack/pkg/gitmeta"
	"codepack/pkg/ignore"
	"codepack/pkg/token"
)

// Run executes one packaging run. Per-entry problems are logged and the run
// continues; the returned error is reserved for structural failures (missing
// root, render/validation failure, write failure) and cancellation.
func Run(ctx context.Context, cfg Config, logger *zap.Logger) error {
	start := time.Now()
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return fmt.Errorf("failed to resolve project directory: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("project directory %s is not accessible: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", root)
	}

	// A relative output lands inside the project being packaged, like the
	// bundle the walk itself excludes.
	if !filepath.IsAbs(cfg.Output) {
		cfg.Output = filepath.Join(root, cfg.Output)
	}

	logger.Info("starting packaging run",
		zap.String("root", root),
		zap.String("output", cfg.Output),
		zap.String("format", cfg.Format))

	filter := ignore.New(root, outputIgnorePatterns(root, cfg.Output), logger)
	defer func() {
		if err := filter.Close(); err != nil {
			logger.Debug("ignore filter close failed", zap.Error(err))
		}
	}()

	walk, err := Walk(ctx, root, cfg.MaxFileSize, filter, logger)
	if err != nil {
		return err
	}

	meta := walk.Meta
	if git, gitErr := gitmeta.Collect(root, gitmeta.DefaultCommitLimit); gitErr != nil {
		logger.Debug("no git metadata available", zap.Error(gitErr))
	} else {
		meta.Git = git
	}

	var counter token.Counter
	if cfg.CountTokens {
		counter, err = token.NewTiktoken()
		if err != nil {
			logger.Warn("token counting disabled", zap.Error(err))
			counter = nil
		}
	}

	ser, err := NewSerializer(cfg.Format)
	if err != nil {
		return err
	}

	stream := FillContents(ctx, walk.Descriptors, cfg.Workers, counter, logger)
	stats, err := Assemble(ctx, stream, meta, walk.Dirs.Entries(), ser, cfg, logger)
	if err != nil {
		return err
	}

	fields := []zap.Field{
		zap.Int("files", stats.Files),
		zap.Int("skipped", stats.Skipped),
		zap.Int("parts", stats.Parts),
		zap.Int64("totalSize", meta.TotalSize),
		zap.Duration("elapsed", time.Since(start)),
	}
	if counter != nil {
		fields = append(fields, zap.Int("totalTokens", stats.TotalTokens))
	}
	logger.Info("packaging complete", fields...)
	return nil
}

// outputIgnorePatterns excludes this run's own bundle, and any parts from
// earlier runs, from the scan when the output lives inside the project.
func outputIgnorePatterns(root, output string) []string {
	rel, err := filepath.Rel(root, output)
	if err != nil || strings.HasPrefix(rel, "..") {
		return nil
	}
	rel = filepath.ToSlash(rel)
	patterns := []string{"/" + rel}
	ext := filepath.Ext(rel)
	if ext != "" {
		stem := rel[:len(rel)-len(ext)]
		patterns = append(patterns, "/"+stem+".part*"+ext)
	}
	return patterns
}
