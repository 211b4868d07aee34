package lsp

import (
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Document is an open template file as the editor currently has it.
type Document struct {
	URI     string
	Path    string
	Content string
	Version int
	Lines   []int // byte offsets of line starts
}

// DocumentStore holds the open documents. Open documents shadow the files
// on disk when the project is analyzed.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[string]*Document
}

// NewDocumentStore creates an empty document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{documents: make(map[string]*Document)}
}

// Open adds a document, replacing any previous version.
func (s *DocumentStore) Open(uri, content string, version int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.documents[uri] = &Document{
		URI:     uri,
		Path:    URIToPath(uri),
		Content: content,
		Version: version,
		Lines:   computeLineOffsets(content),
	}
}

// Update replaces the content of an open document. Unknown URIs are
// ignored.
func (s *DocumentStore) Update(uri, content string, version int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if doc, ok := s.documents[uri]; ok {
		// Copy so readers holding the old document see a consistent value.
		next := *doc
		next.Content, next.Version, next.Lines = content, version, computeLineOffsets(content)
		s.documents[uri] = &next
	}
}

// Close removes a document.
func (s *DocumentStore) Close(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.documents, uri)
}

// Get returns the document for uri, or nil.
func (s *DocumentStore) Get(uri string) *Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.documents[uri]
}

// All returns the open documents ordered by URI.
func (s *DocumentStore) All() []*Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]*Document, 0, len(s.documents))
	for _, d := range s.documents {
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].URI < docs[j].URI })
	return docs
}

func computeLineOffsets(content string) []int {
	offsets := []int{0}
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			offsets = append(offsets, i+1)
		}
	}
	return offsets
}

// PositionToOffset converts a position to a byte offset, clamped to the
// content.
func (d *Document) PositionToOffset(pos Position) int {
	if d == nil || len(d.Lines) == 0 {
		return 0
	}
	line := int(pos.Line)
	if line >= len(d.Lines) {
		return len(d.Content)
	}
	return min(d.Lines[line]+int(pos.Character), len(d.Content))
}

// OffsetToPosition converts a byte offset to a position.
func (d *Document) OffsetToPosition(offset int) Position {
	if d == nil || len(d.Lines) == 0 {
		return Position{}
	}
	offset = max(0, min(offset, len(d.Content)))
	line := sort.Search(len(d.Lines), func(i int) bool { return d.Lines[i] > offset }) - 1
	return Position{Line: uint32(line), Character: uint32(offset - d.Lines[line])} //nolint:gosec // G115: bounded by content length
}

// Line returns line n without its newline.
func (d *Document) Line(n int) string {
	if d == nil || n < 0 || n >= len(d.Lines) {
		return ""
	}
	start, end := d.Lines[n], len(d.Content)
	if n+1 < len(d.Lines) {
		end = max(start, d.Lines[n+1]-1)
	}
	return strings.TrimSuffix(d.Content[start:end], "\r")
}

// LinePrefix returns the text of the cursor's line up to the cursor.
func (d *Document) LinePrefix(pos Position) string {
	line := d.Line(int(pos.Line))
	return line[:min(int(pos.Character), len(line))]
}

// NameAt returns the dotted name under pos, such as "Greet" or
// "text.title", and its range.
func (d *Document) NameAt(pos Position) (string, Range) {
	offset := d.PositionToOffset(pos)
	start, end := offset, offset
	for start > 0 && isNameChar(d.Content[start-1]) {
		start--
	}
	for end < len(d.Content) && isNameChar(d.Content[end]) {
		end++
	}
	if start == end {
		return "", Range{Start: pos, End: pos}
	}
	return d.Content[start:end], Range{Start: d.OffsetToPosition(start), End: d.OffsetToPosition(end)}
}

func isNameChar(c byte) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '_' || c == '.'
}

// URIToPath converts a file URI to a path. Other strings are returned
// unchanged.
func URIToPath(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" {
		return uri
	}
	return filepath.FromSlash(u.Path)
}

// PathToURI converts a path to a file URI.
func PathToURI(path string) string {
	if strings.HasPrefix(path, "file://") {
		return path
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}
