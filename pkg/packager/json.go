package packager

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"codepack/pkg/gitmeta"
)

// jsonDocument mirrors the JSON wire format: a top-level object with
// metadata, directory_structure and files sections.
type jsonDocument struct {
	Metadata           jsonMetadata    `json:"metadata"`
	DirectoryStructure []jsonDirectory `json:"directory_structure"`
	Files              []jsonFile      `json:"files"`
}

type jsonMetadata struct {
	RootDirectory string        `json:"root_directory"`
	FileCount     int           `json:"file_count"`
	TotalSize     int64         `json:"total_size"`
	CreationDate  string        `json:"creation_date"`
	Part          int           `json:"part,omitempty"`
	Git           *gitmeta.Info `json:"git,omitempty"`
}

type jsonDirectory struct {
	Path      string `json:"path"`
	FileCount int    `json:"file_count"`
}

type jsonFile struct {
	Index         int     `json:"index"`
	Directory     string  `json:"directory"`
	Name          string  `json:"name"`
	Path          string  `json:"path"`
	Size          int64   `json:"size"`
	Modified      string  `json:"modified"`
	Extension     string  `json:"extension"`
	MimeType      string  `json:"mime_type"`
	TokenCount    int     `json:"token_count,omitempty"`
	Content       *string `json:"content,omitempty"`
	ContentBase64 *string `json:"content_base64,omitempty"`
	SkippedReason string  `json:"skipped_reason,omitempty"`
}

type jsonSerializer struct{}

func (s *jsonSerializer) Format() string { return FormatJSON }

func (s *jsonSerializer) Render(b *Batch) ([]byte, error) {
	doc := jsonDocument{
		Metadata:           s.metadata(b),
		DirectoryStructure: make([]jsonDirectory, 0, len(b.Dirs)),
		Files:              make([]jsonFile, 0, len(b.Descriptors)),
	}
	for _, d := range b.Dirs {
		doc.DirectoryStructure = append(doc.DirectoryStructure, jsonDirectory{Path: d.Path, FileCount: d.FileCount})
	}
	for _, desc := range b.Descriptors {
		doc.Files = append(doc.Files, s.entry(desc))
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("json encoding failed: %w", err)
	}
	return append(data, '\n'), nil
}

func (s *jsonSerializer) metadata(b *Batch) jsonMetadata {
	m := jsonMetadata{
		RootDirectory: b.Meta.RootDirectory,
		FileCount:     b.Meta.FileCount,
		TotalSize:     b.Meta.TotalSize,
		CreationDate:  b.Meta.CreatedAt.Format(time.RFC3339),
		Git:           b.Meta.Git,
	}
	if b.MultiPart {
		m.Part = b.Part
	}
	return m
}

func (s *jsonSerializer) entry(desc *FileDescriptor) jsonFile {
	e := jsonFile{
		Index:         desc.Index,
		Directory:     desc.Directory,
		Name:          desc.Name,
		Path:          desc.Path,
		Size:          desc.Size,
		Modified:      desc.ModTime.Format(time.RFC3339),
		Extension:     desc.Extension,
		MimeType:      desc.MIMEType,
		TokenCount:    desc.TokenCount,
		SkippedReason: desc.SkipReason,
	}
	switch desc.Kind {
	case KindText:
		text := desc.Text
		e.Content = &text
	case KindBinary:
		encoded := desc.Encoded
		e.ContentBase64 = &encoded
	}
	return e
}

// EntrySize measures the entry rendered at the indentation depth it occupies
// inside the files array.
func (s *jsonSerializer) EntrySize(desc *FileDescriptor) int {
	data, err := json.MarshalIndent(s.entry(desc), "    ", "  ")
	if err != nil {
		return len(desc.Text) + len(desc.Encoded)
	}
	return len(data)
}

func (s *jsonSerializer) BaseSize(meta RunMetadata, dirs []DirectoryStat) int {
	data, err := s.Render(&Batch{Part: 1, MultiPart: true, Meta: meta, Dirs: dirs})
	if err != nil {
		return 0
	}
	return len(data)
}

func (s *jsonSerializer) Validate(data []byte) error {
	var doc jsonDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("generated JSON does not parse: %w", err)
	}
	if !bytes.Contains(data, []byte(`"metadata"`)) {
		return fmt.Errorf("generated JSON is missing the metadata section")
	}
	return nil
}
