package packager

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func descriptorFor(t *testing.T, root, rel string, kind ContentKind) *FileDescriptor {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	info, err := os.Stat(path)
	require.NoError(t, err)
	return &FileDescriptor{
		Path:    rel,
		Name:    filepath.Base(rel),
		Size:    info.Size(),
		Kind:    kind,
		absPath: path,
	}
}

func TestFillTextContent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", []byte("hello\n"))

	desc := descriptorFor(t, root, "a.txt", KindText)
	fillContent(desc, zap.NewNop())

	assert.Equal(t, KindText, desc.Kind)
	assert.Equal(t, "hello\n", desc.Text)
}

func TestFillTextInvalidUTF8Degrades(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "bad.txt", []byte{0xff, 0xfe, 0x00, 0x41})

	desc := descriptorFor(t, root, "bad.txt", KindText)
	fillContent(desc, zap.NewNop())

	assert.Equal(t, KindSkipped, desc.Kind)
	assert.Empty(t, desc.Text)
	assert.Contains(t, desc.SkipReason, "UTF-8")
}

func TestFillBinaryRoundTrip(t *testing.T) {
	// Larger than one read chunk so the chunked loop is exercised.
	payload := make([]byte, ChunkSize*2+137)
	_, err := rand.Read(payload)
	require.NoError(t, err)

	root := t.TempDir()
	writeFile(t, root, "blob.png", payload)

	desc := descriptorFor(t, root, "blob.png", KindBinary)
	fillContent(desc, zap.NewNop())

	require.Equal(t, KindBinary, desc.Kind)
	decoded, err := base64.StdEncoding.DecodeString(desc.Encoded)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)
}

func TestFillMissingFileDegrades(t *testing.T) {
	desc := &FileDescriptor{
		Path:    "gone.txt",
		Kind:    KindText,
		absPath: filepath.Join(t.TempDir(), "gone.txt"),
	}
	fillContent(desc, zap.NewNop())
	assert.Equal(t, KindSkipped, desc.Kind)
	assert.NotEmpty(t, desc.SkipReason)
}

func TestFillContentsPreservesOrder(t *testing.T) {
	root := t.TempDir()
	var descs []*FileDescriptor
	for i := 0; i < 50; i++ {
		rel := fmt.Sprintf("f/%03d.txt", i)
		writeFile(t, root, rel, []byte("content\n"))
		d := descriptorFor(t, root, rel, KindText)
		d.Index = i + 1
		descs = append(descs, d)
	}

	stream := FillContents(context.Background(), descs, 8, nil, zap.NewNop())

	want := 1
	for d := range stream {
		assert.Equal(t, want, d.Index, "descriptors must arrive in walk order")
		assert.Equal(t, "content\n", d.Text)
		want++
	}
	assert.Equal(t, len(descs)+1, want)
}

func TestFillContentsSkippedPassThrough(t *testing.T) {
	desc := &FileDescriptor{Path: "huge.bin", Kind: KindSkipped, SkipReason: "size 10 exceeds limit 5", Index: 1}

	stream := FillContents(context.Background(), []*FileDescriptor{desc}, 2, nil, zap.NewNop())
	got, ok := <-stream
	require.True(t, ok)
	assert.Equal(t, KindSkipped, got.Kind)
	assert.Empty(t, got.Text)
	assert.Empty(t, got.Encoded)
	_, ok = <-stream
	assert.False(t, ok)
}
