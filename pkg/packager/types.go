package packager

import (
	"sync"
	"time"

	"codepack/pkg/gitmeta"
)

// ContentKind tells how a file's payload is represented in the output.
type ContentKind int

const (
	// KindText means the payload is decoded UTF-8 text.
	KindText ContentKind = iota
	// KindBinary means the payload is base64-encoded raw bytes.
	KindBinary
	// KindSkipped means no payload is emitted; SkipReason says why.
	KindSkipped
)

func (k ContentKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindBinary:
		return "binary"
	case KindSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// FileDescriptor is the metadata record for one file discovered by the walk.
// The walker fills everything except the payload fields; the content readers
// fill Text or Encoded according to Kind. A descriptor's payload is released
// once its batch has been written.
type FileDescriptor struct {
	Index     int         // 1-based, monotonic across the whole run
	Path      string      // slash-separated path relative to the root
	Directory string      // parent directory relative to the root, "." at top level
	Name      string      // base name
	Size      int64       // size in bytes from stat
	ModTime   time.Time   // modification time from stat
	Extension string      // extension without the leading dot
	MIMEType  string      // resolved MIME type
	Kind      ContentKind // payload representation

	Text       string // decoded text payload (KindText)
	Encoded    string // base64 payload (KindBinary)
	SkipReason string // populated when Kind == KindSkipped
	TokenCount int    // model tokens in Text, when counting is enabled

	absPath string // absolute path used by the reader
}

// DirectoryStat is one aggregated directory entry in the output.
type DirectoryStat struct {
	Path      string
	FileCount int
}

// DirectoryStats accumulates per-directory file counts in first-seen order.
// Each descriptor increments exactly its immediate parent, so the counts sum
// to the run's total file count. Updates are serialized; the walk owns the
// instance but readers may inspect it concurrently.
type DirectoryStats struct {
	mu     sync.Mutex
	order  []string
	counts map[string]int
}

// NewDirectoryStats returns an empty accumulator.
func NewDirectoryStats() *DirectoryStats {
	return &DirectoryStats{counts: make(map[string]int)}
}

// Add increments the count for dir, registering it on first sight.
func (s *DirectoryStats) Add(dir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.counts[dir]; !seen {
		s.order = append(s.order, dir)
	}
	s.counts[dir]++
}

// Entries returns the accumulated stats in first-seen order.
func (s *DirectoryStats) Entries() []DirectoryStat {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]DirectoryStat, 0, len(s.order))
	for _, dir := range s.order {
		entries = append(entries, DirectoryStat{Path: dir, FileCount: s.counts[dir]})
	}
	return entries
}

// Total returns the sum of all per-directory counts.
func (s *DirectoryStats) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.counts {
		total += n
	}
	return total
}

// RunMetadata describes the whole run. It is finalized after the walk
// completes and duplicated into every emitted document, so each part is
// self-describing.
type RunMetadata struct {
	RootDirectory string
	FileCount     int   // every descriptor, including skipped placeholders
	TotalSize     int64 // bytes across descriptors with a payload (Kind != KindSkipped)
	CreatedAt     time.Time
	Git           *gitmeta.Info // nil when no repository metadata is available
}

// Batch is one unit of output: an ordered, contiguous slice of descriptors
// plus the shared run metadata and the global directory stats.
type Batch struct {
	Part        int  // 1-based part number
	MultiPart   bool // true when the run produced more than one document
	Descriptors []*FileDescriptor
	Meta        RunMetadata
	Dirs        []DirectoryStat
}
