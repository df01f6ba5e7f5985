package packager

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBatch(multiPart bool, part int) *Batch {
	text := textDescriptor(1, "src/main.go", "package main\n")
	text.Directory = "src"
	text.Name = "main.go"
	text.Extension = "go"
	text.MIMEType = "text/x-go"

	binary := &FileDescriptor{
		Index:     2,
		Path:      "logo.png",
		Directory: ".",
		Name:      "logo.png",
		Size:      4,
		ModTime:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Extension: "png",
		MIMEType:  "image/png",
		Kind:      KindBinary,
		Encoded:   base64.StdEncoding.EncodeToString([]byte{0x89, 'P', 'N', 'G'}),
	}

	skipped := &FileDescriptor{
		Index:      3,
		Path:       "big.iso",
		Directory:  ".",
		Name:       "big.iso",
		Size:       500,
		ModTime:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Extension:  "iso",
		Kind:       KindSkipped,
		SkipReason: "size 500 exceeds limit 100",
	}

	return &Batch{
		Part:        part,
		MultiPart:   multiPart,
		Descriptors: []*FileDescriptor{text, binary, skipped},
		Meta:        runMeta(3, 17),
		Dirs: []DirectoryStat{
			{Path: ".", FileCount: 2},
			{Path: "src", FileCount: 1},
		},
	}
}

func TestJSONRenderRoundTrip(t *testing.T) {
	ser := &jsonSerializer{}
	data, err := ser.Render(sampleBatch(false, 1))
	require.NoError(t, err)
	require.NoError(t, ser.Validate(data))

	var doc jsonDocument
	require.NoError(t, json.Unmarshal(data, &doc))

	assert.Equal(t, "/tmp/project", doc.Metadata.RootDirectory)
	assert.Equal(t, 3, doc.Metadata.FileCount)
	assert.Equal(t, int64(17), doc.Metadata.TotalSize)
	assert.Zero(t, doc.Metadata.Part)

	require.Len(t, doc.DirectoryStructure, 2)
	assert.Equal(t, "src", doc.DirectoryStructure[1].Path)
	assert.Equal(t, 1, doc.DirectoryStructure[1].FileCount)

	require.Len(t, doc.Files, 3)

	text := doc.Files[0]
	require.NotNil(t, text.Content)
	assert.Equal(t, "package main\n", *text.Content)
	assert.Nil(t, text.ContentBase64)

	binary := doc.Files[1]
	require.NotNil(t, binary.ContentBase64)
	decoded, err := base64.StdEncoding.DecodeString(*binary.ContentBase64)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, decoded)
	assert.Nil(t, binary.Content)

	skipped := doc.Files[2]
	assert.Nil(t, skipped.Content)
	assert.Nil(t, skipped.ContentBase64)
	assert.Equal(t, "size 500 exceeds limit 100", skipped.SkippedReason)
}

func TestJSONPartNumberOnlyWhenMultiPart(t *testing.T) {
	ser := &jsonSerializer{}

	multi, err := ser.Render(sampleBatch(true, 2))
	require.NoError(t, err)
	var doc jsonDocument
	require.NoError(t, json.Unmarshal(multi, &doc))
	assert.Equal(t, 2, doc.Metadata.Part)

	single, err := ser.Render(sampleBatch(false, 1))
	require.NoError(t, err)
	assert.NotContains(t, string(single), `"part"`)
}

func TestJSONEmptyContentStillEmitted(t *testing.T) {
	// An empty text file keeps its content field so consumers can tell it
	// apart from a skipped file.
	ser := &jsonSerializer{}
	desc := textDescriptor(1, "empty.txt", "")
	batch := &Batch{Part: 1, Descriptors: []*FileDescriptor{desc}, Meta: runMeta(1, 0)}

	data, err := ser.Render(batch)
	require.NoError(t, err)

	var doc jsonDocument
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Files, 1)
	require.NotNil(t, doc.Files[0].Content)
	assert.Empty(t, *doc.Files[0].Content)
}

func TestJSONValidateRejectsGarbage(t *testing.T) {
	ser := &jsonSerializer{}
	assert.Error(t, ser.Validate([]byte("{not json")))
	assert.Error(t, ser.Validate([]byte(`{"files": []}`)))
}

func TestJSONEntrySizeBoundsRenderedGrowth(t *testing.T) {
	ser := &jsonSerializer{}
	meta := runMeta(1, 6)
	desc := textDescriptor(1, "a.txt", "alpha\n")

	base := ser.BaseSize(meta, nil)
	withEntry, err := ser.Render(&Batch{Part: 1, MultiPart: true, Descriptors: []*FileDescriptor{desc}, Meta: meta})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, base+ser.EntrySize(desc)+entrySlack, len(withEntry),
		"the running estimate must never undershoot the rendered size")
}
