package menu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"inviter_bot/internal/domain/content"
)

// Stored button types.
const (
	TypeLink   = "link"
	TypeText   = "text"
	TypeInline = "inline"
)

const (
	maxInlineTextLen = 100
	maxInlineURLLen  = 500
)

// ErrNoInlineButtons is returned when an inline spec holds no usable button.
var ErrNoInlineButtons = errors.New("inline menu has no valid buttons")

// Item is a row of the bot's reply-keyboard menu as stored.
type Item struct {
	ID            int64
	ButtonName    string
	ButtonType    string
	ActionValue   string
	InlineButtons string // JSON: [{"text": "...", "url": "..."}]
	OrderNumber   int
	IsActive      bool
}

// Action is what pressing a menu button does. It is one of
// LinkAction, TextAction or InlineMenuAction.
type Action interface {
	isAction()
}

// LinkAction replies with a link to open.
type LinkAction struct{ URL string }

// TextAction replies with a static text.
type TextAction struct{ Body string }

// InlineMenuAction replies with a keyboard of URL buttons.
type InlineMenuAction struct{ Buttons []content.LinkButton }

func (LinkAction) isAction()       {}
func (TextAction) isAction()       {}
func (InlineMenuAction) isAction() {}

// ParseAction converts a stored item into its action.
func ParseAction(it *Item) (Action, error) {
	switch it.ButtonType {
	case TypeLink:
		return LinkAction{URL: it.ActionValue}, nil
	case TypeText:
		return TextAction{Body: it.ActionValue}, nil
	case TypeInline:
		buttons, err := parseInlineButtons(it.InlineButtons)
		if err != nil {
			return nil, err
		}
		return InlineMenuAction{Buttons: buttons}, nil
	default:
		return nil, fmt.Errorf("unknown menu button type %q", it.ButtonType)
	}
}

func parseInlineButtons(raw string) ([]content.LinkButton, error) {
	var entries []map[string]any
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("decode inline buttons: %w", err)
	}
	buttons := make([]content.LinkButton, 0, len(entries))
	for _, e := range entries {
		text, okText := e["text"]
		url, okURL := e["url"]
		if !okText || !okURL {
			continue
		}
		buttons = append(buttons, content.LinkButton{
			Text: truncate(fmt.Sprint(text), maxInlineTextLen),
			URL:  truncate(fmt.Sprint(url), maxInlineURLLen),
		})
	}
	if len(buttons) == 0 {
		return nil, ErrNoInlineButtons
	}
	return buttons, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}

// Entry is a menu item with its action parsed once at load time.
// Err holds the parse failure of a malformed item.
type Entry struct {
	Item   *Item
	Action Action
	Err    error
}

// Menu is the active, ordered button menu.
type Menu struct {
	Entries []Entry
}

// Build parses every item once.
func Build(items []*Item) *Menu {
	m := &Menu{Entries: make([]Entry, 0, len(items))}
	for _, it := range items {
		action, err := ParseAction(it)
		m.Entries = append(m.Entries, Entry{Item: it, Action: action, Err: err})
	}
	return m
}

// Lookup finds the entry whose button label equals text.
func (m *Menu) Lookup(text string) (Entry, bool) {
	for _, e := range m.Entries {
		if e.Item.ButtonName == text {
			return e, true
		}
	}
	return Entry{}, false
}

// Labels returns the button labels in menu order.
func (m *Menu) Labels() []string {
	labels := make([]string, 0, len(m.Entries))
	for _, e := range m.Entries {
		labels = append(labels, e.Item.ButtonName)
	}
	return labels
}

// Repository reads the configured menu.
type Repository interface {
	ListActive(ctx context.Context) ([]*Item, error) // ordered by order_number
}
