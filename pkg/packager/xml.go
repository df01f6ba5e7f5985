package packager

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"time"

	"codepack/pkg/gitmeta"
)

// xmlDocument mirrors the XML wire format: a <documents> root holding
// <metadata>, <directory_structure> and <files>.
type xmlDocument struct {
	XMLName   xml.Name     `xml:"documents"`
	Metadata  xmlMetadata  `xml:"metadata"`
	Structure xmlStructure `xml:"directory_structure"`
	Files     xmlFiles     `xml:"files"`
}

type xmlMetadata struct {
	RootDirectory string        `xml:"root_directory"`
	FileCount     int           `xml:"file_count"`
	TotalSize     int64         `xml:"total_size"`
	CreationDate  string        `xml:"creation_date"`
	Part          int           `xml:"part,omitempty"`
	Git           *gitmeta.Info `xml:"git,omitempty"`
}

type xmlStructure struct {
	Directories []xmlDirectory `xml:"directory"`
}

type xmlDirectory struct {
	Path      string `xml:"path,attr"`
	FileCount int    `xml:"file_count,attr"`
}

type xmlFiles struct {
	Files []xmlFile `xml:"file"`
}

type xmlFile struct {
	Index         int         `xml:"index,attr"`
	Directory     string      `xml:"directory,attr"`
	Size          int64       `xml:"size,attr"`
	Modified      string      `xml:"modified,attr"`
	Extension     string      `xml:"extension,attr"`
	MimeType      string      `xml:"mime_type,attr"`
	TokenCount    int         `xml:"token_count,attr,omitempty"`
	SkippedReason string      `xml:"skipped_reason,attr,omitempty"`
	Name          string      `xml:"name"`
	Path          string      `xml:"path"`
	Content       *xmlContent `xml:"content"`
}

// xmlContent carries the payload. Binary payloads set encoding="base64";
// the semantics match the JSON content_base64 field exactly.
type xmlContent struct {
	Encoding string `xml:"encoding,attr,omitempty"`
	Value    string `xml:",chardata"`
}

type xmlSerializer struct{}

func (s *xmlSerializer) Format() string { return FormatXML }

func (s *xmlSerializer) Render(b *Batch) ([]byte, error) {
	doc := xmlDocument{Metadata: s.metadata(b)}
	for _, d := range b.Dirs {
		doc.Structure.Directories = append(doc.Structure.Directories, xmlDirectory{Path: d.Path, FileCount: d.FileCount})
	}
	for _, desc := range b.Descriptors {
		doc.Files.Files = append(doc.Files.Files, s.entry(desc))
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("xml encoding failed: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.Write(body)
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func (s *xmlSerializer) metadata(b *Batch) xmlMetadata {
	m := xmlMetadata{
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

func (s *xmlSerializer) entry(desc *FileDescriptor) xmlFile {
	e := xmlFile{
		Index:         desc.Index,
		Directory:     desc.Directory,
		Size:          desc.Size,
		Modified:      desc.ModTime.Format(time.RFC3339),
		Extension:     desc.Extension,
		MimeType:      desc.MIMEType,
		TokenCount:    desc.TokenCount,
		SkippedReason: desc.SkipReason,
		Name:          desc.Name,
		Path:          desc.Path,
	}
	switch desc.Kind {
	case KindText:
		if xmlEncodable(desc.Text) {
			e.Content = &xmlContent{Value: desc.Text}
		} else {
			// XML 1.0 cannot represent these runes even escaped, and
			// xml.EscapeText would silently substitute U+FFFD. Ship the bytes
			// base64-encoded so the payload stays recoverable.
			e.Content = &xmlContent{Encoding: "base64", Value: base64.StdEncoding.EncodeToString([]byte(desc.Text))}
		}
	case KindBinary:
		e.Content = &xmlContent{Encoding: "base64", Value: desc.Encoded}
	}
	return e
}

// xmlEncodable reports whether every rune of s is allowed in XML 1.0
// character data: tab, newline, carriage return, and the non-surrogate
// ranges above U+0020.
func xmlEncodable(s string) bool {
	for _, r := range s {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
		case r >= 0x20 && r <= 0xD7FF:
		case r >= 0xE000 && r <= 0xFFFD:
		case r >= 0x10000 && r <= 0x10FFFF:
		default:
			return false
		}
	}
	return true
}

func (s *xmlSerializer) EntrySize(desc *FileDescriptor) int {
	data, err := xml.MarshalIndent(s.entry(desc), "    ", "  ")
	if err != nil {
		return len(desc.Text) + len(desc.Encoded)
	}
	return len(data)
}

func (s *xmlSerializer) BaseSize(meta RunMetadata, dirs []DirectoryStat) int {
	data, err := s.Render(&Batch{Part: 1, MultiPart: true, Meta: meta, Dirs: dirs})
	if err != nil {
		return 0
	}
	return len(data)
}

// Validate tokenizes the rendered document back to make sure it is
// well-formed before it replaces the destination file.
func (s *xmlSerializer) Validate(data []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	sawRoot := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("generated XML does not parse: %w", err)
		}
		if start, ok := tok.(xml.StartElement); ok && start.Name.Local == "documents" {
			sawRoot = true
		}
	}
	if !sawRoot {
		return fmt.Errorf("generated XML is missing the documents root")
	}
	return nil
}
