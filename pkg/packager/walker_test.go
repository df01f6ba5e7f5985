package packager

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubFilter ignores exactly the relative paths it is given.
type stubFilter struct {
	ignored map[string]bool
}

func (f stubFilter) Ignored(rel string, isDir bool) bool { return f.ignored[rel] }
func (f stubFilter) Close() error                        { return nil }

func writeFile(t *testing.T, root, rel string, content []byte) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, content, 0o644))
}

func TestWalkProducesOrderedDescriptors(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "b.txt", []byte("bee\n"))
	writeFile(t, root, "a.txt", []byte("ay\n"))
	writeFile(t, root, "sub/c.txt", []byte("sea\n"))

	result, err := Walk(context.Background(), root, DefaultMaxFileSize, stubFilter{}, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, result.Descriptors, 3)

	// Lexical depth-first order, indices 1-based and contiguous.
	assert.Equal(t, "a.txt", result.Descriptors[0].Path)
	assert.Equal(t, "b.txt", result.Descriptors[1].Path)
	assert.Equal(t, "sub/c.txt", result.Descriptors[2].Path)
	for i, d := range result.Descriptors {
		assert.Equal(t, i+1, d.Index)
	}

	assert.Equal(t, 3, result.Meta.FileCount)
	assert.Equal(t, int64(len("bee\n")+len("ay\n")+len("sea\n")), result.Meta.TotalSize)
}

func TestWalkDirectoryStatsSumToFileCount(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "top.md", []byte("# hi\n"))
	writeFile(t, root, "src/a.go", []byte("package a\n"))
	writeFile(t, root, "src/b.go", []byte("package a\n"))
	writeFile(t, root, "src/deep/x.go", []byte("package deep\n"))

	result, err := Walk(context.Background(), root, DefaultMaxFileSize, stubFilter{}, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, result.Meta.FileCount, result.Dirs.Total())

	counts := map[string]int{}
	for _, e := range result.Dirs.Entries() {
		counts[e.Path] = e.FileCount
	}
	// Immediate parents only; root-level files live under ".".
	assert.Equal(t, 1, counts["."])
	assert.Equal(t, 2, counts["src"])
	assert.Equal(t, 1, counts["src/deep"])
}

func TestWalkPrunesIgnoredDirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep.txt", []byte("keep\n"))
	writeFile(t, root, "node_modules/dep/index.js", []byte("module.exports = 1\n"))

	filter := stubFilter{ignored: map[string]bool{"node_modules": true}}
	result, err := Walk(context.Background(), root, DefaultMaxFileSize, filter, zap.NewNop())
	require.NoError(t, err)

	require.Len(t, result.Descriptors, 1)
	assert.Equal(t, "keep.txt", result.Descriptors[0].Path)
}

func TestWalkOversizedFileBecomesPlaceholder(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "big.txt", []byte("0123456789"))
	writeFile(t, root, "small.txt", []byte("ok\n"))

	result, err := Walk(context.Background(), root, 5, stubFilter{}, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, result.Descriptors, 2)

	big := result.Descriptors[0]
	require.Equal(t, "big.txt", big.Path)
	assert.Equal(t, KindSkipped, big.Kind)
	assert.Contains(t, big.SkipReason, "exceeds limit")

	// Placeholders count toward file count and directory stats, not size.
	assert.Equal(t, 2, result.Meta.FileCount)
	assert.Equal(t, int64(3), result.Meta.TotalSize)
	assert.Equal(t, 2, result.Dirs.Total())
}

func TestWalkEmptyDirectory(t *testing.T) {
	root := t.TempDir()

	result, err := Walk(context.Background(), root, DefaultMaxFileSize, stubFilter{}, zap.NewNop())
	require.NoError(t, err)
	assert.Empty(t, result.Descriptors)
	assert.Equal(t, 0, result.Meta.FileCount)
	assert.Equal(t, int64(0), result.Meta.TotalSize)
}

func TestWalkMissingRootFails(t *testing.T) {
	_, err := Walk(context.Background(), filepath.Join(t.TempDir(), "nope"), DefaultMaxFileSize, stubFilter{}, zap.NewNop())
	assert.Error(t, err)
}
