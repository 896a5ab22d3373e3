package content

import (
	"database/sql"
	"reflect"
	"testing"
)

func TestNormalizeMediaKind(t *testing.T) {
	cases := []struct {
		raw   string
		want  MediaKind
		known bool
	}{
		{"", MediaText, true},
		{"photo", MediaPhoto, true},
		{"VIDEO_NOTE", MediaVideoNote, true},
		{"1", MediaPhoto, true},
		{"7", MediaVideoNote, true},
		{"sticker", MediaText, false},
		{"9", MediaText, false},
	}
	for _, tc := range cases {
		got, known := NormalizeMediaKind(tc.raw)
		if got != tc.want || known != tc.known {
			t.Fatalf("NormalizeMediaKind(%q): expected (%s, %v), got (%s, %v)", tc.raw, tc.want, tc.known, got, known)
		}
	}
}

func TestMediaKindSupportsMarkup(t *testing.T) {
	for _, k := range []MediaKind{MediaVoice, MediaVideoNote} {
		if k.SupportsMarkup() {
			t.Fatalf("%s should not carry markup", k)
		}
	}
	if !MediaPhoto.SupportsMarkup() {
		t.Fatal("photos carry captions and keyboards")
	}
}

func TestParseButtonsConfig(t *testing.T) {
	config := `
Site | https://example.com, Blog|https://example.com/blog

broken line
Docs | https://example.com/docs,  | https://nolabel.example, Empty |
`
	want := [][]LinkButton{
		{{Text: "Site", URL: "https://example.com"}, {Text: "Blog", URL: "https://example.com/blog"}},
		{{Text: "Docs", URL: "https://example.com/docs"}},
	}
	if got := ParseButtonsConfig(config); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
	if got := ParseButtonsConfig(""); got != nil {
		t.Fatalf("expected no rows, got %+v", got)
	}
}

func TestItemBody(t *testing.T) {
	it := &Item{Text: "plain"}
	if text, html := it.Body(); text != "plain" || html {
		t.Fatalf("expected plain text, got %q html=%v", text, html)
	}
	it.HTMLText = sql.NullString{String: "<i>rich</i>", Valid: true}
	if text, html := it.Body(); text != "<i>rich</i>" || !html {
		t.Fatalf("expected html text, got %q html=%v", text, html)
	}
}
