package menu

import (
	"errors"
	"strings"
	"testing"
)

func TestParseAction(t *testing.T) {
	link, err := ParseAction(&Item{ButtonType: TypeLink, ActionValue: "https://example.com"})
	if err != nil || link != (LinkAction{URL: "https://example.com"}) {
		t.Fatalf("unexpected link action %+v err=%v", link, err)
	}
	text, err := ParseAction(&Item{ButtonType: TypeText, ActionValue: "hello"})
	if err != nil || text != (TextAction{Body: "hello"}) {
		t.Fatalf("unexpected text action %+v err=%v", text, err)
	}
	if _, err := ParseAction(&Item{ButtonType: "carousel"}); err == nil {
		t.Fatal("expected an error for an unknown button type")
	}
}

func TestParseInlineAction(t *testing.T) {
	long := strings.Repeat("x", 150)
	raw := `[{"text":"Docs","url":"https://example.com/docs"},{"text":"no url"},{"text":"` + long + `","url":"https://example.com"}]`
	action, err := ParseAction(&Item{ButtonType: TypeInline, InlineButtons: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	inline := action.(InlineMenuAction)
	if len(inline.Buttons) != 2 {
		t.Fatalf("expected entries without a url to be skipped, got %d buttons", len(inline.Buttons))
	}
	if n := len([]rune(inline.Buttons[1].Text)); n != maxInlineTextLen {
		t.Fatalf("expected text truncated to %d, got %d", maxInlineTextLen, n)
	}

	for _, bad := range []string{`[]`, `[{"text":"x"}]`} {
		if _, err := ParseAction(&Item{ButtonType: TypeInline, InlineButtons: bad}); !errors.Is(err, ErrNoInlineButtons) {
			t.Fatalf("%s: expected ErrNoInlineButtons, got %v", bad, err)
		}
	}
	if _, err := ParseAction(&Item{ButtonType: TypeInline, InlineButtons: `{not json`}); err == nil {
		t.Fatal("expected a decode error")
	}
}

func TestBuildKeepsMalformedEntries(t *testing.T) {
	m := Build([]*Item{
		{ID: 1, ButtonName: "About", ButtonType: TypeText, ActionValue: "x"},
		{ID: 2, ButtonName: "Broken", ButtonType: TypeInline, InlineButtons: "[]"},
	})
	if labels := m.Labels(); len(labels) != 2 || labels[1] != "Broken" {
		t.Fatalf("unexpected labels %v", labels)
	}
	e, ok := m.Lookup("Broken")
	if !ok || e.Err == nil {
		t.Fatal("malformed entry should be found with its parse error")
	}
	if _, ok := m.Lookup("Missing"); ok {
		t.Fatal("unknown label must not match")
	}
}
