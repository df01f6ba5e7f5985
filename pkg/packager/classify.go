package packager

import (
	"bytes"
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Classification is the outcome of the content classifier for one file.
type Classification struct {
	Kind     ContentKind
	MIMEType string
	Reason   string // populated when Kind == KindSkipped
}

// Sniffer lazily supplies the leading bytes of a file. It is only invoked by
// the final rule, so files recognized by name or extension are never opened
// during classification.
type Sniffer func() ([]byte, error)

// Rule is one step of the classifier chain. Rules are evaluated in order and
// the first match wins: filename overrides extension, and extension overrides
// content sniffing, because sniffing is the least reliable signal.
type Rule struct {
	Name  string
	Apply func(name, ext string, sniff Sniffer) (Classification, bool)
}

// knownFilenames maps exact (lowercased) filenames to text MIME types.
// These are configuration files whose extension, if any, says nothing useful.
var knownFilenames = map[string]string{
	"makefile":       "text/x-makefile",
	"dockerfile":     "text/plain",
	"gemfile":        "text/x-ruby",
	"rakefile":       "text/x-ruby",
	"license":        "text/plain",
	"readme":         "text/plain",
	".gitattributes": "text/plain",
	".dockerignore":  "text/plain",
	".editorconfig":  "text/plain",
	".env":           "text/plain",
	".npmrc":         "text/plain",
	".babelrc":       "application/json",
	".prettierrc":    "application/json",
}

// binaryMediaExtensions lists binary formats that are still worth packaging;
// their bytes are base64-encoded rather than skipped.
var binaryMediaExtensions = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".mp3":  "audio/mpeg",
	".wav":  "audio/x-wav",
	".ogg":  "audio/ogg",
	".mp4":  "video/mp4",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
}

// textExtensions maps common development file extensions to MIME types the
// platform table tends to miss or misreport.
var textExtensions = map[string]string{
	".md":     "text/markdown",
	".py":     "text/x-python",
	".js":     "text/javascript",
	".ts":     "text/typescript",
	".tsx":    "text/typescript",
	".jsx":    "text/typescript",
	".yml":    "application/x-yaml",
	".yaml":   "application/x-yaml",
	".toml":   "application/toml",
	".json":   "application/json",
	".jsonc":  "application/json",
	".php":    "application/x-httpd-php",
	".sh":     "application/x-sh",
	".rb":     "application/x-ruby",
	".pl":     "application/x-perl",
	".go":     "text/x-go",
	".rs":     "text/x-rust",
	".c":      "text/x-c",
	".h":      "text/x-c",
	".cpp":    "text/x-c++",
	".hpp":    "text/x-c++",
	".java":   "text/x-java",
	".kt":     "text/x-kotlin",
	".sql":    "application/sql",
	".svelte": "text/plain",
	".vue":    "text/plain",
	".txt":    "text/plain",
	".css":    "text/css",
	".html":   "text/html",
	".htm":    "text/html",
	".xml":    "application/xml",
	".csv":    "text/csv",
	".ini":    "text/plain",
	".cfg":    "text/plain",
	".proto":  "text/plain",
	".lock":   "text/plain",
	".mod":    "text/plain",
	".sum":    "text/plain",
}

// coreTextMIMETypes are MIME types that represent text despite not carrying
// the text/ prefix.
var coreTextMIMETypes = map[string]bool{
	"application/json":        true,
	"application/ld+json":     true,
	"application/x-yaml":      true,
	"application/yaml":        true,
	"application/toml":        true,
	"application/xml":         true,
	"application/javascript":  true,
	"application/ecmascript":  true,
	"application/graphql":     true,
	"application/sql":         true,
	"application/x-httpd-php": true,
	"application/x-sh":        true,
	"application/x-ruby":      true,
	"application/x-perl":      true,
	"application/x-python":    true,
	"application/x-config":    true,
	"application/x-markdown":  true,
}

// defaultRules is the classifier chain, in priority order.
var defaultRules = []Rule{
	{
		Name: "known-filename",
		Apply: func(name, ext string, _ Sniffer) (Classification, bool) {
			if mimeType, ok := knownFilenames[strings.ToLower(name)]; ok {
				return Classification{Kind: KindText, MIMEType: mimeType}, true
			}
			return Classification{}, false
		},
	},
	{
		Name: "binary-media-extension",
		Apply: func(name, ext string, _ Sniffer) (Classification, bool) {
			if mimeType, ok := binaryMediaExtensions[ext]; ok {
				return Classification{Kind: KindBinary, MIMEType: mimeType}, true
			}
			return Classification{}, false
		},
	},
	{
		Name: "text-extension",
		Apply: func(name, ext string, _ Sniffer) (Classification, bool) {
			if mimeType, ok := textExtensions[ext]; ok {
				return Classification{Kind: KindText, MIMEType: mimeType}, true
			}
			if byExt, _, err := mime.ParseMediaType(mime.TypeByExtension(ext)); err == nil && isTextMIME(byExt) {
				return Classification{Kind: KindText, MIMEType: byExt}, true
			}
			return Classification{}, false
		},
	},
	{
		Name: "content-sniff",
		Apply: func(name, ext string, sniff Sniffer) (Classification, bool) {
			head, err := sniff()
			if err != nil {
				return Classification{
					Kind:     KindSkipped,
					MIMEType: "application/octet-stream",
					Reason:   "unreadable: " + err.Error(),
				}, true
			}
			if looksLikeText(head) {
				return Classification{Kind: KindText, MIMEType: "text/plain"}, true
			}
			return Classification{
				Kind:     KindSkipped,
				MIMEType: "application/octet-stream",
				Reason:   "unsupported binary content",
			}, true
		},
	},
}

// Classify runs the rule chain for a file name. The sniffer is consulted only
// when no name or extension rule matches.
func Classify(name string, sniff Sniffer) Classification {
	ext := strings.ToLower(filepath.Ext(name))
	for _, rule := range defaultRules {
		if c, ok := rule.Apply(name, ext, sniff); ok {
			return c
		}
	}
	// The sniff rule always matches, so this is unreachable; keep the chain
	// total anyway.
	return Classification{Kind: KindSkipped, MIMEType: "application/octet-stream", Reason: "unclassifiable"}
}

func isTextMIME(mimeType string) bool {
	return strings.HasPrefix(mimeType, "text/") || coreTextMIMETypes[mimeType]
}

// looksLikeText accepts a leading chunk that contains no NUL byte and decodes
// as UTF-8 once a possibly truncated trailing rune is discounted.
func looksLikeText(head []byte) bool {
	if bytes.IndexByte(head, 0) >= 0 {
		return false
	}
	// The chunk may end mid-rune; trim up to three trailing continuation
	// bytes before validating.
	for i := 0; i < utf8.UTFMax-1 && len(head) > 0 && !utf8.Valid(head); i++ {
		head = head[:len(head)-1]
	}
	return utf8.Valid(head)
}
