package packager

import (
	"fmt"
	"strings"
)

// Serializer renders batches into one wire format. EntrySize and BaseSize
// exist so the assembler can keep a conservative running estimate of the
// serialized document size without rendering the whole batch per file.
type Serializer interface {
	// Format returns the format name ("json" or "xml").
	Format() string
	// Render serializes a complete batch.
	Render(b *Batch) ([]byte, error)
	// EntrySize returns the serialized size of one file entry, measured at
	// the nesting depth it will occupy in the document.
	EntrySize(d *FileDescriptor) int
	// BaseSize returns the serialized size of a document with no file
	// entries: the envelope, metadata and directory structure.
	BaseSize(meta RunMetadata, dirs []DirectoryStat) int
	// Validate parses rendered bytes back and reports structural problems.
	Validate(data []byte) error
}

// NewSerializer returns the serializer for a configured format.
func NewSerializer(format string) (Serializer, error) {
	switch format {
	case FormatJSON:
		return &jsonSerializer{}, nil
	case FormatXML:
		return &xmlSerializer{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
}

// partPath derives the output filename for a part. The first part keeps the
// base name; later parts insert a .partN marker before the extension, e.g.
// bundle.json, bundle.part2.json, bundle.part3.json.
func partPath(output string, part int) string {
	if part <= 1 {
		return output
	}
	ext := ""
	stem := output
	if i := strings.LastIndexByte(output, '.'); i > strings.LastIndexByte(output, '/') {
		stem, ext = output[:i], output[i:]
	}
	return fmt.Sprintf("%s.part%d%s", stem, part, ext)
}
