package app

import (
	"fmt"
	"strconv"
	"strings"
)

// Callback payload prefixes.
const (
	callbackViewed        = "viewed_"
	callbackAlreadyViewed = "already_viewed_"
	callbackAnswer        = "answer_"
)

// CallbackKind identifies a decoded inline button payload.
type CallbackKind int

const (
	CallbackUnknown CallbackKind = iota
	CallbackViewed
	CallbackAlreadyViewed
	CallbackAnswer
)

// Callback is a decoded inline button payload.
type Callback struct {
	Kind       CallbackKind
	ItemID     int64
	QuestionID int64
	Value      string
}

// ViewedPayload is the "mark as viewed" payload for a content item.
func ViewedPayload(itemID int64) string {
	return callbackViewed + strconv.FormatInt(itemID, 10)
}

// AlreadyViewedPayload marks the disabled indicator that replaces a viewed button.
func AlreadyViewedPayload(itemID int64) string {
	return callbackAlreadyViewed + strconv.FormatInt(itemID, 10)
}

// AnswerPayload encodes a multiple-choice answer: answer_<questionID>_<value>.
func AnswerPayload(questionID int64, value string) string {
	return callbackAnswer + strconv.FormatInt(questionID, 10) + "_" + value
}

// ParseCallback decodes the payload of an inline button press.
func ParseCallback(data string) (Callback, error) {
	switch {
	case strings.HasPrefix(data, callbackAlreadyViewed):
		id, err := strconv.ParseInt(strings.TrimPrefix(data, callbackAlreadyViewed), 10, 64)
		if err != nil {
			return Callback{}, fmt.Errorf("invalid item id in callback %q: %w", data, err)
		}
		return Callback{Kind: CallbackAlreadyViewed, ItemID: id}, nil
	case strings.HasPrefix(data, callbackViewed):
		id, err := strconv.ParseInt(strings.TrimPrefix(data, callbackViewed), 10, 64)
		if err != nil {
			return Callback{}, fmt.Errorf("invalid item id in callback %q: %w", data, err)
		}
		return Callback{Kind: CallbackViewed, ItemID: id}, nil
	case strings.HasPrefix(data, callbackAnswer):
		rest := strings.TrimPrefix(data, callbackAnswer)
		idStr, value, _ := strings.Cut(rest, "_")
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return Callback{}, fmt.Errorf("invalid question id in callback %q: %w", data, err)
		}
		return Callback{Kind: CallbackAnswer, QuestionID: id, Value: value}, nil
	}
	return Callback{Kind: CallbackUnknown}, fmt.Errorf("unhandled callback data: %s", data)
}
