// internal/infra/telegram/client.go
package telegram

import (
	"errors"
	"fmt"

	"inviter_bot/internal/domain/content"
	domainTelegram "inviter_bot/internal/domain/telegram"

	"gopkg.in/telebot.v3"
)

// TelebotAdapter implements the Client interface using the gopkg.in/telebot.v3 library.
type TelebotAdapter struct {
	bot *telebot.Bot
}

func NewTelebotAdapter(b *telebot.Bot) *TelebotAdapter {
	return &TelebotAdapter{bot: b}
}

// SendMessage sends a text message to the specified recipient.
func (tba *TelebotAdapter) SendMessage(recipientChatID int64, text string, options *domainTelegram.SendOptions) error {
	recipient := &telebot.User{ID: recipientChatID}
	_, err := tba.bot.Send(recipient, text, toSendOptions(options))
	return classify(err)
}

// SendMedia sends a file by its Telegram file id.
func (tba *TelebotAdapter) SendMedia(recipientChatID int64, media content.Media, caption string, options *domainTelegram.SendOptions) error {
	recipient := &telebot.User{ID: recipientChatID}
	file := telebot.File{FileID: media.FileID}

	var what telebot.Sendable
	switch media.Kind {
	case content.MediaPhoto:
		what = &telebot.Photo{File: file, Caption: caption}
	case content.MediaVideo:
		what = &telebot.Video{File: file, Caption: caption}
	case content.MediaDocument:
		what = &telebot.Document{File: file, Caption: caption}
	case content.MediaAnimation:
		what = &telebot.Animation{File: file, Caption: caption}
	case content.MediaAudio:
		what = &telebot.Audio{File: file, Caption: caption}
	case content.MediaVoice:
		what = &telebot.Voice{File: file}
	case content.MediaVideoNote:
		what = &telebot.VideoNote{File: file}
	default:
		return fmt.Errorf("unsupported media kind %q", media.Kind)
	}

	if media.Kind.SupportsMarkup() {
		_, err := tba.bot.Send(recipient, what, toSendOptions(options))
		return classify(err)
	}

	if _, err := tba.bot.Send(recipient, what); err != nil {
		return classify(err)
	}
	if caption == "" && (options == nil || options.Markup == nil) {
		return nil
	}
	if caption == "" {
		caption = "👆"
	}
	_, err := tba.bot.Send(recipient, caption, toSendOptions(options))
	return classify(err)
}

func (tba *TelebotAdapter) ApproveJoinRequest(chatID, userID int64) error {
	return classify(tba.bot.ApproveJoinRequest(telebot.ChatID(chatID), &telebot.User{ID: userID}))
}

func (tba *TelebotAdapter) DeclineJoinRequest(chatID, userID int64) error {
	return classify(tba.bot.DeclineJoinRequest(telebot.ChatID(chatID), &telebot.User{ID: userID}))
}

func (tba *TelebotAdapter) ChatMember(chatID, userID int64) (*domainTelegram.MemberInfo, error) {
	m, err := tba.bot.ChatMemberOf(telebot.ChatID(chatID), &telebot.User{ID: userID})
	if err != nil {
		return nil, classify(err)
	}
	return &domainTelegram.MemberInfo{Status: string(m.Role), IsMember: isMemberRole(m.Role)}, nil
}

func isMemberRole(role telebot.MemberStatus) bool {
	switch role {
	case telebot.Creator, telebot.Administrator, telebot.Member, telebot.Restricted:
		return true
	}
	return false
}

func toSendOptions(o *domainTelegram.SendOptions) *telebot.SendOptions {
	opts := &telebot.SendOptions{}
	if o == nil {
		return opts
	}
	if o.ParseMode == domainTelegram.ParseHTML {
		opts.ParseMode = telebot.ModeHTML
	}
	opts.ReplyMarkup = toReplyMarkup(o.Markup)
	return opts
}

// toReplyMarkup builds raw buttons so callback data reaches the handler unchanged.
func toReplyMarkup(m *domainTelegram.Markup) *telebot.ReplyMarkup {
	if m == nil {
		return nil
	}
	if len(m.Inline) > 0 {
		rows := make([][]telebot.InlineButton, 0, len(m.Inline))
		for _, row := range m.Inline {
			buttons := make([]telebot.InlineButton, 0, len(row))
			for _, b := range row {
				buttons = append(buttons, telebot.InlineButton{Text: b.Text, URL: b.URL, Data: b.Data})
			}
			rows = append(rows, buttons)
		}
		return &telebot.ReplyMarkup{InlineKeyboard: rows}
	}
	if len(m.Reply) > 0 {
		rows := make([][]telebot.ReplyButton, 0, len(m.Reply))
		for _, row := range m.Reply {
			buttons := make([]telebot.ReplyButton, 0, len(row))
			for _, text := range row {
				buttons = append(buttons, telebot.ReplyButton{Text: text})
			}
			rows = append(rows, buttons)
		}
		return &telebot.ReplyMarkup{ReplyKeyboard: rows, ResizeKeyboard: true}
	}
	return nil
}

// classify wraps platform errors with the domain errors the services branch on.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var flood telebot.FloodError
	if errors.As(err, &flood) {
		return fmt.Errorf("%w: retry after %ds: %v", domainTelegram.ErrFloodWait, flood.RetryAfter, err)
	}
	switch {
	case errors.Is(err, telebot.ErrBlockedByUser),
		errors.Is(err, telebot.ErrUserIsDeactivated),
		errors.Is(err, telebot.ErrNotStartedByUser),
		errors.Is(err, telebot.ErrChatNotFound):
		return fmt.Errorf("%w: %v", domainTelegram.ErrRecipientUnavailable, err)
	}
	return err
}
