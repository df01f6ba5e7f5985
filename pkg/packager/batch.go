package packager

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// entrySlack pads each entry's measured size to absorb the separators and
// indentation the document adds around it. The estimate must err high: a
// document a downstream consumer rejects for being oversized is worse than a
// slightly early split.
const entrySlack = 16

// AssembleStats summarizes what the assembler wrote.
type AssembleStats struct {
	Parts       int
	Files       int
	Skipped     int
	TotalTokens int
}

// Assemble consumes the ordered descriptor stream and writes one or more
// documents, each kept at or under the configured serialized size budget.
// Indices stay contiguous across part boundaries. A single entry whose own
// serialized size exceeds the budget ships alone in its own part instead of
// triggering an endless split. Every part duplicates the full run metadata
// and the global directory stats, so each document is self-describing.
func Assemble(ctx context.Context, stream <-chan *FileDescriptor, meta RunMetadata, dirs []DirectoryStat, ser Serializer, cfg Config, logger *zap.Logger) (AssembleStats, error) {
	var stats AssembleStats

	baseSize := ser.BaseSize(meta, dirs)
	if baseSize > cfg.BatchBudget {
		logger.Warn("document envelope alone exceeds the batch budget",
			zap.Int("envelopeBytes", baseSize),
			zap.Int("budget", cfg.BatchBudget))
	}

	var current []*FileDescriptor
	currentSize := baseSize
	part := 1

	flush := func(final bool) error {
		if final && len(current) == 0 && part > 1 {
			return nil // stream ended exactly on a part boundary
		}
		multi := !final || part > 1
		batch := &Batch{
			Part:        part,
			MultiPart:   multi,
			Descriptors: current,
			Meta:        meta,
			Dirs:        dirs,
		}
		path := partPath(cfg.Output, part)
		data, err := ser.Render(batch)
		if err != nil {
			return fmt.Errorf("failed to render part %d: %w", part, err)
		}
		if err := WriteDocument(path, data, ser.Validate, logger); err != nil {
			return fmt.Errorf("failed to write part %d: %w", part, err)
		}
		logger.Info("wrote document",
			zap.String("path", path),
			zap.Int("part", part),
			zap.Int("files", len(current)),
			zap.Int("bytes", len(data)))

		// The batch owned these payloads; release them now that the part is
		// on disk.
		for _, d := range current {
			d.Text = ""
			d.Encoded = ""
		}
		current = nil
		currentSize = baseSize
		part++
		stats.Parts++
		return nil
	}

	for {
		var desc *FileDescriptor
		var ok bool
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case desc, ok = <-stream:
		}
		if !ok {
			break
		}

		entrySize := ser.EntrySize(desc) + entrySlack
		if len(current) > 0 && currentSize+entrySize > cfg.BatchBudget {
			if err := flush(false); err != nil {
				return stats, err
			}
		}
		if entrySize+baseSize > cfg.BatchBudget {
			logger.Warn("single entry exceeds the batch budget, emitting it alone",
				zap.String("path", desc.Path),
				zap.Int("entryBytes", entrySize),
				zap.Int("budget", cfg.BatchBudget))
		}

		current = append(current, desc)
		currentSize += entrySize

		stats.Files++
		if desc.Kind == KindSkipped {
			stats.Skipped++
		}
		stats.TotalTokens += desc.TokenCount
	}

	if err := flush(true); err != nil {
		return stats, err
	}
	return stats, nil
}
