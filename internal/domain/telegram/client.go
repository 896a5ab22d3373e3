package telegram

import (
	"errors"

	"inviter_bot/internal/domain/content"
)

// ErrFloodWait is wrapped by clients when the platform asks the caller to back off.
var ErrFloodWait = errors.New("telegram flood control")

// ErrRecipientUnavailable is wrapped when the recipient blocked the bot or no longer exists.
var ErrRecipientUnavailable = errors.New("telegram recipient unavailable")

// ParseMode selects how message text is interpreted.
type ParseMode string

const (
	ParsePlain ParseMode = ""
	ParseHTML  ParseMode = "HTML"
)

// Button is an inline keyboard button carrying either a URL or callback data.
type Button struct {
	Text string
	URL  string
	Data string
}

// Markup is an inline keyboard or a reply keyboard (one or the other).
type Markup struct {
	Inline [][]Button
	Reply  [][]string
}

// SendOptions configures an outbound message.
type SendOptions struct {
	ParseMode ParseMode
	Markup    *Markup
}

// MemberInfo describes a user's membership in a chat.
type MemberInfo struct {
	Status   string
	IsMember bool
}

// Client is the outbound messaging capability. It decouples the application
// logic from the specific bot library.
type Client interface {
	SendMessage(recipientID int64, text string, options *SendOptions) error
	// SendMedia sends a media message. Kinds that cannot carry a caption or
	// keyboard get the caption and keyboard as a follow-up text message.
	SendMedia(recipientID int64, media content.Media, caption string, options *SendOptions) error
	ApproveJoinRequest(chatID, userID int64) error
	DeclineJoinRequest(chatID, userID int64) error
	ChatMember(chatID, userID int64) (*MemberInfo, error)
}
