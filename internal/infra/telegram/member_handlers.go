// internal/infra/telegram/member_handlers.go
package telegram

import (
	"context"

	"inviter_bot/internal/app"
	"inviter_bot/internal/domain/member"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// AllowedUpdates lists the update types the poller must request; chat_member
// and chat_join_request are not delivered by default.
var AllowedUpdates = []string{"message", "callback_query", "chat_member", "chat_join_request"}

// RegisterMemberHandlers wires user-facing updates to the event router.
func RegisterMemberHandlers(ctx context.Context, b *telebot.Bot, router *app.EventRouter, baseLogger *logrus.Entry) {
	memberLogger := baseLogger.WithField("handler_group", "member")

	b.Handle("/start", func(c telebot.Context) error {
		logCtx := memberLogger.WithField("command", "/start").WithField("sender_id", c.Sender().ID)
		logCtx.Info("Processing /start command")

		if err := router.HandleStart(ctx, profileOf(c.Sender()), c.Message().Payload); err != nil {
			logCtx.WithError(err).Error("Failed to handle /start")
			return c.Send("Something went wrong. Please try again later.")
		}
		return nil
	})

	b.Handle(telebot.OnText, func(c telebot.Context) error {
		if c.Chat() == nil || c.Chat().Type != telebot.ChatPrivate {
			return nil
		}
		if err := router.HandleText(ctx, profileOf(c.Sender()), c.Text()); err != nil {
			memberLogger.WithError(err).WithField("sender_id", c.Sender().ID).Error("Failed to handle text message")
		}
		return nil
	})

	b.Handle(telebot.OnCallback, func(c telebot.Context) error {
		cb := c.Callback()
		reply := router.HandleCallback(ctx, c.Sender().ID, cb.Data)

		if reply.ReplaceMarkup != nil && cb.Message != nil {
			if _, err := c.Bot().EditReplyMarkup(cb.Message, toReplyMarkup(reply.ReplaceMarkup)); err != nil {
				memberLogger.WithError(err).WithField("sender_id", c.Sender().ID).Warn("Could not update message keyboard")
			}
		}
		return c.Respond(&telebot.CallbackResponse{Text: reply.Text})
	})

	b.Handle(telebot.OnChatJoinRequest, func(c telebot.Context) error {
		req := c.ChatJoinRequest()
		if req == nil || req.Sender == nil || req.Chat == nil {
			return nil
		}
		if err := router.HandleJoinRequest(ctx, profileOf(req.Sender), req.Chat.ID, req.Chat.Title); err != nil {
			memberLogger.WithError(err).WithFields(logrus.Fields{
				"sender_id": req.Sender.ID,
				"chat_id":   req.Chat.ID,
			}).Error("Failed to handle join request")
		}
		return nil
	})

	b.Handle(telebot.OnChatMember, func(c telebot.Context) error {
		upd := c.ChatMember()
		if upd == nil || upd.NewChatMember == nil || upd.NewChatMember.User == nil || upd.Chat == nil {
			return nil
		}
		user := upd.NewChatMember.User
		wasIn := upd.OldChatMember != nil && isMemberRole(upd.OldChatMember.Role)
		isIn := isMemberRole(upd.NewChatMember.Role)

		switch {
		case !wasIn && isIn:
			if err := router.HandleMemberJoined(ctx, profileOf(user), upd.Chat.Title); err != nil {
				memberLogger.WithError(err).WithField("user_id", user.ID).Error("Failed to handle member join")
			}
		case wasIn && !isIn:
			router.HandleMemberLeft(ctx, user.ID, upd.Chat.Title)
		}
		return nil
	})
}

func profileOf(u *telebot.User) member.Profile {
	if u == nil {
		return member.Profile{}
	}
	return member.Profile{
		TelegramID: u.ID,
		Username:   u.Username,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
	}
}
