package packager

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"go.uber.org/zap"
)

// fillContent reads the payload for one descriptor according to its kind.
// Every failure degrades the descriptor to KindSkipped with a reason; a bad
// file must never abort the run.
func fillContent(desc *FileDescriptor, logger *zap.Logger) {
	switch desc.Kind {
	case KindText:
		fillText(desc, logger)
	case KindBinary:
		fillBinary(desc, logger)
	case KindSkipped:
		// No read occurs for placeholders.
	}
}

func fillText(desc *FileDescriptor, logger *zap.Logger) {
	data, err := os.ReadFile(desc.absPath)
	if err != nil {
		skip(desc, fmt.Sprintf("read error: %v", err), logger)
		return
	}
	if !utf8.Valid(data) {
		// Never emit partially decoded garbage; degrade to a placeholder.
		skip(desc, "invalid UTF-8", logger)
		return
	}
	desc.Text = string(data)
}

// fillBinary reads the file in fixed-size chunks and base64-encodes the
// result. The accumulated payload is bounded by the per-file size cutoff
// enforced during the walk.
func fillBinary(desc *FileDescriptor, logger *zap.Logger) {
	f, err := os.Open(desc.absPath)
	if err != nil {
		skip(desc, fmt.Sprintf("open error: %v", err), logger)
		return
	}
	defer f.Close()

	var raw []byte
	chunk := make([]byte, ChunkSize)
	for {
		n, err := f.Read(chunk)
		raw = append(raw, chunk[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			skip(desc, fmt.Sprintf("read error: %v", err), logger)
			return
		}
	}

	desc.Encoded = base64.StdEncoding.EncodeToString(raw)
}

func skip(desc *FileDescriptor, reason string, logger *zap.Logger) {
	desc.Kind = KindSkipped
	desc.SkipReason = reason
	desc.Text = ""
	desc.Encoded = ""
	logger.Warn("skipping file content",
		zap.String("path", desc.Path),
		zap.String("reason", reason))
}
