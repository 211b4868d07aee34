package lsp

import (
	"path/filepath"
	"testing"
)

func TestDocumentStore_OpenUpdateClose(t *testing.T) {
	store := NewDocumentStore()
	uri := PathToURI("/project/templates/greetings.lg")

	store.Open(uri, "# Greet\n- hi", 1)
	doc := store.Get(uri)
	if doc == nil {
		t.Fatal("expected document to exist")
	}
	if doc.Path != filepath.FromSlash("/project/templates/greetings.lg") {
		t.Errorf("unexpected path %q", doc.Path)
	}

	store.Update(uri, "# Greet\n- hello", 2)
	updated := store.Get(uri)
	if updated.Content != "# Greet\n- hello" || updated.Version != 2 {
		t.Errorf("update not applied: %q v%d", updated.Content, updated.Version)
	}
	if doc.Content != "# Greet\n- hi" {
		t.Error("update changed a document already handed out")
	}

	store.Update("file:///unknown.lg", "x", 1)
	if store.Get("file:///unknown.lg") != nil {
		t.Error("update must not open unknown documents")
	}

	store.Close(uri)
	if store.Get(uri) != nil {
		t.Error("expected document to be nil after close")
	}
}

func TestDocumentStore_All(t *testing.T) {
	store := NewDocumentStore()
	store.Open("file:///b.lg", "", 1)
	store.Open("file:///a.lg", "", 1)

	docs := store.All()
	if len(docs) != 2 || docs[0].URI != "file:///a.lg" || docs[1].URI != "file:///b.lg" {
		t.Errorf("unexpected documents %v", docs)
	}
}

func TestComputeLineOffsets(t *testing.T) {
	tests := []struct {
		content  string
		expected []int
	}{
		{"", []int{0}},
		{"abc", []int{0}},
		{"a\nb", []int{0, 2}},
		{"\n\n", []int{0, 1, 2}},
		{"# A\n- a\n", []int{0, 4, 8}},
	}
	for _, tt := range tests {
		got := computeLineOffsets(tt.content)
		if len(got) != len(tt.expected) {
			t.Errorf("computeLineOffsets(%q) = %v, want %v", tt.content, got, tt.expected)
			continue
		}
		for i := range got {
			if got[i] != tt.expected[i] {
				t.Errorf("computeLineOffsets(%q) = %v, want %v", tt.content, got, tt.expected)
				break
			}
		}
	}
}

func TestDocument_Offsets(t *testing.T) {
	doc := &Document{Content: "# A\n- hi\n"}
	doc.Lines = computeLineOffsets(doc.Content)

	tests := []struct {
		pos    Position
		offset int
	}{
		{Position{Line: 0, Character: 0}, 0},
		{Position{Line: 1, Character: 2}, 6},
		{Position{Line: 2, Character: 0}, 9},
	}
	for _, tt := range tests {
		if got := doc.PositionToOffset(tt.pos); got != tt.offset {
			t.Errorf("PositionToOffset(%v) = %d, want %d", tt.pos, got, tt.offset)
		}
		if got := doc.OffsetToPosition(tt.offset); got != tt.pos {
			t.Errorf("OffsetToPosition(%d) = %v, want %v", tt.offset, got, tt.pos)
		}
	}

	if got := doc.PositionToOffset(Position{Line: 9}); got != len(doc.Content) {
		t.Errorf("past the end should clamp, got %d", got)
	}
	if got := doc.PositionToOffset(Position{Line: 1, Character: 99}); got != len(doc.Content) {
		t.Errorf("long column should clamp, got %d", got)
	}
}

func TestDocument_Line(t *testing.T) {
	doc := &Document{Content: "# A\r\n- hi\n- bye"}
	doc.Lines = computeLineOffsets(doc.Content)

	for i, want := range []string{"# A", "- hi", "- bye", ""} {
		if got := doc.Line(i); got != want {
			t.Errorf("Line(%d) = %q, want %q", i, got, want)
		}
	}
	if got := doc.LinePrefix(Position{Line: 1, Character: 3}); got != "- h" {
		t.Errorf("LinePrefix = %q", got)
	}
}

func TestDocument_NameAt(t *testing.T) {
	doc := &Document{Content: "- [Greet(name)] {text.title(x)}"}
	doc.Lines = computeLineOffsets(doc.Content)

	tests := []struct {
		char uint32
		want string
	}{
		{5, "Greet"},
		{10, "name"},
		{19, "text.title"},
		{1, ""},
	}
	for _, tt := range tests {
		got, _ := doc.NameAt(Position{Character: tt.char})
		if got != tt.want {
			t.Errorf("NameAt(%d) = %q, want %q", tt.char, got, tt.want)
		}
	}

	_, rng := doc.NameAt(Position{Character: 5})
	if rng.Start.Character != 3 || rng.End.Character != 8 {
		t.Errorf("unexpected range %v", rng)
	}
}

func TestURIRoundTrip(t *testing.T) {
	path := filepath.FromSlash("/project/my templates/a.lg")
	uri := PathToURI(path)
	if uri != "file:///project/my%20templates/a.lg" {
		t.Errorf("PathToURI = %q", uri)
	}
	if got := URIToPath(uri); got != path {
		t.Errorf("URIToPath = %q, want %q", got, path)
	}
	if got := URIToPath("untitled:1"); got != "untitled:1" {
		t.Errorf("non-file URI changed: %q", got)
	}
}
