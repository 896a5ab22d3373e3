package onboarding

import (
	"encoding/json"
	"strings"
)

// QuestionType decides how a question is answered.
type QuestionType string

const (
	QuestionTypeText    QuestionType = "text"    // free-text reply
	QuestionTypeButtons QuestionType = "buttons" // one inline button per option
)

// Question is one step of the onboarding sequence.
type Question struct {
	ID          int64
	OrderNumber int
	Text        string
	Type        QuestionType
	Options     []string
	IsRequired  bool
	IsActive    bool
}

// IsChoice reports whether the question is answered with a button callback.
func (q *Question) IsChoice() bool {
	return q.Type == QuestionTypeButtons
}

// ParseOptions decodes stored options, which are either a JSON array or a
// comma separated list. Blank options are dropped.
func ParseOptions(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var parts []string
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &parts); err != nil {
			parts = strings.Split(raw, ",")
		}
	} else {
		parts = strings.Split(raw, ",")
	}
	options := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			options = append(options, p)
		}
	}
	return options
}

// NextAfter returns the first question of the ordered sequence that comes
// strictly after current, or nil when current is the last one.
func NextAfter(sequence []*Question, current *Question) *Question {
	for _, q := range sequence {
		if q.OrderNumber > current.OrderNumber || (q.OrderNumber == current.OrderNumber && q.ID > current.ID) {
			return q
		}
	}
	return nil
}
