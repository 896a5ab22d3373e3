package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"inviter_bot/internal/app"
	"inviter_bot/internal/domain/settings"
	idb "inviter_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const (
	msgUnauthorized = "Error: you are not allowed to run this command."
	msgFailed       = "Something went wrong: %s"
)

type adminHandler func(c telebot.Context, log *logrus.Entry) error

// RegisterAdminHandlers registers handlers for admin commands.
// It requires the bot instance, admin service, and the configured admin Telegram ID.
func RegisterAdminHandlers(ctx context.Context, b *telebot.Bot, adminService *app.AdminService, menus *app.MenuCache, adminTelegramID int64, baseLogger *logrus.Entry) {
	handle := func(command string, h adminHandler) {
		b.Handle(command, func(c telebot.Context) error {
			handlerLogger := baseLogger.WithFields(logrus.Fields{
				"handler":   command,
				"sender_id": c.Sender().ID,
			})
			handlerLogger.Info("Command received")

			if c.Sender().ID != adminTelegramID {
				handlerLogger.Warn("Unauthorized access attempt")
				return c.Send(msgUnauthorized)
			}
			return h(c, handlerLogger)
		})
	}

	b.Handle("/help", func(c telebot.Context) error {
		if c.Sender().ID != adminTelegramID {
			return c.Send("Use the menu buttons to interact with the bot. Send /start to begin.")
		}
		var helpText strings.Builder
		helpText.WriteString("Admin commands:\n\n")
		helpText.WriteString("/users [banned|active] [search or TelegramID] [page] - list users\n")
		helpText.WriteString("/ban <TelegramID> - stop all deliveries to a user\n")
		helpText.WriteString("/unban <TelegramID> - lift a ban\n")
		helpText.WriteString("/delete_user <TelegramID> - delete a user and their history\n")
		helpText.WriteString("/requests [page] - list pending join requests\n")
		helpText.WriteString("/approve <RequestID> - approve a join request\n")
		helpText.WriteString("/deny <RequestID> - decline a join request\n")
		helpText.WriteString("/member <ChatID> <TelegramID> - check chat membership\n")
		helpText.WriteString("/approval_mode [off|immediate|after_messages] - show or set auto-approval\n")
		helpText.WriteString("/broadcast <text> - send a message to all users now\n")
		helpText.WriteString("/broadcast_at <RFC3339 time> <text> - schedule a broadcast\n")
		helpText.WriteString("/reload_menu - reload the menu buttons\n")
		helpText.WriteString("/stats - show statistics\n")
		helpText.WriteString("/help - show this message")
		return c.Send(helpText.String())
	})

	handle("/users", func(c telebot.Context, log *logrus.Entry) error {
		search, banned, page, ok := parseUsersArgs(c.Args())
		if !ok {
			return c.Send("Invalid command format. Use: /users [banned|active] [search] [page]")
		}

		result, err := adminService.ListUsers(ctx, c.Sender().ID, search, banned, page)
		if err != nil {
			log.WithError(err).Error("Failed to list users")
			return c.Send(fmt.Sprintf(msgFailed, err.Error()))
		}
		if len(result.Users) == 0 {
			return c.Send("No users found.")
		}

		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("Users (page %d of %d, %d total):\n\n", result.Page, pages(result.Total), result.Total))
		for _, u := range result.Users {
			status := "active"
			if u.IsBanned {
				status = "banned"
			}
			sb.WriteString(fmt.Sprintf("- %s (ID: %d) %s, joined %s\n", u.DisplayName(), u.TelegramID, status, u.JoinDate.Format("2006-01-02")))
		}
		return c.Send(sb.String())
	})

	handle("/ban", func(c telebot.Context, log *logrus.Entry) error {
		telegramID, ok := singleIDArg(c)
		if !ok {
			return c.Send("Invalid command format. Use: /ban <TelegramID>")
		}
		u, err := adminService.BanUser(ctx, c.Sender().ID, telegramID)
		switch {
		case err == nil:
			log.WithField("user_id", telegramID).Info("User banned")
			return c.Send(fmt.Sprintf("User %s (ID: %d) is banned.", u.DisplayName(), telegramID))
		case errors.Is(err, idb.ErrUserNotFound):
			return c.Send(fmt.Sprintf("User with Telegram ID %d not found.", telegramID))
		case errors.Is(err, app.ErrUserAlreadyBanned):
			return c.Send(fmt.Sprintf("User %d is already banned.", telegramID))
		default:
			log.WithError(err).Error("Failed to ban user")
			return c.Send(fmt.Sprintf(msgFailed, err.Error()))
		}
	})

	handle("/unban", func(c telebot.Context, log *logrus.Entry) error {
		telegramID, ok := singleIDArg(c)
		if !ok {
			return c.Send("Invalid command format. Use: /unban <TelegramID>")
		}
		u, err := adminService.UnbanUser(ctx, c.Sender().ID, telegramID)
		switch {
		case err == nil:
			log.WithField("user_id", telegramID).Info("User unbanned")
			return c.Send(fmt.Sprintf("User %s (ID: %d) is unbanned.", u.DisplayName(), telegramID))
		case errors.Is(err, idb.ErrUserNotFound):
			return c.Send(fmt.Sprintf("User with Telegram ID %d not found.", telegramID))
		case errors.Is(err, app.ErrUserNotBanned):
			return c.Send(fmt.Sprintf("User %d is not banned.", telegramID))
		default:
			log.WithError(err).Error("Failed to unban user")
			return c.Send(fmt.Sprintf(msgFailed, err.Error()))
		}
	})

	handle("/delete_user", func(c telebot.Context, log *logrus.Entry) error {
		telegramID, ok := singleIDArg(c)
		if !ok {
			return c.Send("Invalid command format. Use: /delete_user <TelegramID>")
		}
		err := adminService.DeleteUser(ctx, c.Sender().ID, telegramID)
		switch {
		case err == nil:
			log.WithField("user_id", telegramID).Info("User deleted")
			return c.Send(fmt.Sprintf("User %d deleted.", telegramID))
		case errors.Is(err, idb.ErrUserNotFound):
			return c.Send(fmt.Sprintf("User with Telegram ID %d not found.", telegramID))
		default:
			log.WithError(err).Error("Failed to delete user")
			return c.Send(fmt.Sprintf(msgFailed, err.Error()))
		}
	})

	handle("/requests", func(c telebot.Context, log *logrus.Entry) error {
		page := 1
		if args := c.Args(); len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				return c.Send("Invalid command format. Use: /requests [page]")
			}
			page = n
		}
		result, err := adminService.PendingRequests(ctx, c.Sender().ID, page)
		if err != nil {
			log.WithError(err).Error("Failed to list join requests")
			return c.Send(fmt.Sprintf(msgFailed, err.Error()))
		}
		if len(result.Requests) == 0 {
			return c.Send("No pending join requests.")
		}
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("Pending join requests (page %d of %d, %d total):\n\n", result.Page, pages(result.Total), result.Total))
		for _, r := range result.Requests {
			name := strings.TrimSpace(r.FirstName.String + " " + r.LastName.String)
			if r.Username.Valid && r.Username.String != "" {
				name += " @" + r.Username.String
			}
			sb.WriteString(fmt.Sprintf("#%d %s (user %d, chat %d) at %s\n", r.ID, strings.TrimSpace(name), r.UserID, r.ChatID, r.RequestedAt.UTC().Format("2006-01-02 15:04")))
		}
		sb.WriteString("\nUse /approve <RequestID> or /deny <RequestID>.")
		return c.Send(sb.String())
	})

	decide := func(approve bool) adminHandler {
		verb, usage := "approved", "Invalid command format. Use: /approve <RequestID>"
		if !approve {
			verb, usage = "denied", "Invalid command format. Use: /deny <RequestID>"
		}
		return func(c telebot.Context, log *logrus.Entry) error {
			requestID, ok := singleIDArg(c)
			if !ok {
				return c.Send(usage)
			}
			log = log.WithField("request_id", requestID)

			var err error
			if approve {
				_, err = adminService.ApproveRequest(ctx, c.Sender().ID, requestID)
			} else {
				_, err = adminService.DenyRequest(ctx, c.Sender().ID, requestID)
			}
			switch {
			case err == nil:
				log.Info("Join request " + verb)
				return c.Send(fmt.Sprintf("Join request #%d %s.", requestID, verb))
			case errors.Is(err, idb.ErrJoinRequestNotFound):
				return c.Send(fmt.Sprintf("Join request #%d not found.", requestID))
			case errors.Is(err, app.ErrJoinRequestNotPending):
				return c.Send(fmt.Sprintf("Join request #%d was already processed.", requestID))
			default:
				log.WithError(err).Error("Failed to process join request")
				return c.Send(fmt.Sprintf(msgFailed, err.Error()))
			}
		}
	}
	handle("/approve", decide(true))
	handle("/deny", decide(false))

	handle("/member", func(c telebot.Context, log *logrus.Entry) error {
		usage := "Invalid command format. Use: /member <ChatID> <TelegramID>"
		args := c.Args()
		if len(args) != 2 {
			return c.Send(usage)
		}
		chatID, errChat := strconv.ParseInt(args[0], 10, 64)
		telegramID, errUser := strconv.ParseInt(args[1], 10, 64)
		if errChat != nil || errUser != nil {
			return c.Send(usage)
		}
		info, err := adminService.MemberStatus(ctx, c.Sender().ID, chatID, telegramID)
		if err != nil {
			log.WithError(err).WithFields(logrus.Fields{"chat_id": chatID, "user_id": telegramID}).Warn("Failed to check membership")
			return c.Send(fmt.Sprintf(msgFailed, err.Error()))
		}
		verdict := "is not a member"
		if info.IsMember {
			verdict = "is a member"
		}
		return c.Send(fmt.Sprintf("User %d %s of chat %d (status: %s).", telegramID, verdict, chatID, info.Status))
	})

	handle("/approval_mode", func(c telebot.Context, log *logrus.Entry) error {
		args := c.Args()
		if len(args) == 0 {
			mode, err := adminService.ApprovalMode(ctx, c.Sender().ID)
			if err != nil {
				return c.Send(fmt.Sprintf(msgFailed, err.Error()))
			}
			return c.Send(fmt.Sprintf("Auto-approval mode: %s", mode))
		}
		mode, err := adminService.SetApprovalMode(ctx, c.Sender().ID, args[0])
		if err != nil {
			log.WithError(err).Warn("Failed to set approval mode")
			return c.Send(fmt.Sprintf("Could not set mode. Allowed values: %s, %s, %s.", settings.ApprovalOff, settings.ApprovalImmediate, settings.ApprovalAfterMessages))
		}
		log.WithField("mode", mode).Info("Approval mode changed")
		return c.Send(fmt.Sprintf("Auto-approval mode set to %s.", mode))
	})

	handle("/broadcast", func(c telebot.Context, log *logrus.Entry) error {
		text := c.Message().Payload
		if strings.TrimSpace(text) == "" {
			return c.Send("Invalid command format. Use: /broadcast <text>")
		}
		report, err := adminService.BroadcastNow(ctx, c.Sender().ID, text)
		if err != nil {
			log.WithError(err).Error("Broadcast failed")
			return c.Send(fmt.Sprintf(msgFailed, err.Error()))
		}
		log.WithFields(logrus.Fields{"sent": report.Sent, "failed": report.Failed}).Info("Broadcast sent")
		return c.Send(fmt.Sprintf("Broadcast sent: %d delivered, %d failed.", report.Sent, report.Failed))
	})

	handle("/broadcast_at", func(c telebot.Context, log *logrus.Entry) error {
		usage := "Invalid command format. Use: /broadcast_at <RFC3339 time> <text>"
		parts := strings.SplitN(strings.TrimSpace(c.Message().Payload), " ", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[1]) == "" {
			return c.Send(usage)
		}
		at, err := time.Parse(time.RFC3339, parts[0])
		if err != nil {
			return c.Send(usage)
		}
		scheduled, err := adminService.ScheduleBroadcast(ctx, c.Sender().ID, at, parts[1])
		switch {
		case err == nil:
			log.WithField("broadcast_id", scheduled.ID).Info("Broadcast scheduled")
			return c.Send(fmt.Sprintf("Broadcast #%d scheduled for %s UTC.", scheduled.ID, scheduled.ScheduledTime.Format("2006-01-02 15:04")))
		case errors.Is(err, app.ErrBroadcastInPast):
			return c.Send("The broadcast time is in the past.")
		default:
			log.WithError(err).Error("Failed to schedule broadcast")
			return c.Send(fmt.Sprintf(msgFailed, err.Error()))
		}
	})

	handle("/reload_menu", func(c telebot.Context, log *logrus.Entry) error {
		menus.Invalidate()
		return c.Send("Menu will be reloaded on next use.")
	})

	handle("/stats", func(c telebot.Context, log *logrus.Entry) error {
		st, err := adminService.Stats(ctx, c.Sender().ID)
		if err != nil {
			log.WithError(err).Error("Failed to load stats")
			return c.Send(fmt.Sprintf(msgFailed, err.Error()))
		}
		return c.Send(fmt.Sprintf(
			"Users: %d\nBanned: %d\nJoined today: %d\nPending join requests: %d\nAuto-approval: %s",
			st.TotalUsers, st.BannedUsers, st.JoinedToday, st.PendingRequests, st.ApprovalMode,
		))
	})
}

func singleIDArg(c telebot.Context) (int64, bool) {
	args := c.Args()
	if len(args) != 1 {
		return 0, false
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func pages(total int) int {
	if total <= 0 {
		return 1
	}
	return (total + app.AdminPageSize - 1) / app.AdminPageSize
}

// maxPageArg separates page numbers from Telegram IDs in /users arguments.
const maxPageArg = 10000

// parseUsersArgs splits /users arguments into a search string, a ban filter
// and a page. Only page=N or a small trailing integer selects the page; any
// other number is searched for, so users can be found by Telegram ID.
func parseUsersArgs(args []string) (search string, banned *bool, page int, ok bool) {
	page = 1
	var terms []string
	for i, arg := range args {
		lower := strings.ToLower(arg)
		switch {
		case lower == "banned":
			v := true
			banned = &v
		case lower == "active":
			v := false
			banned = &v
		case strings.HasPrefix(lower, "page="):
			n, err := strconv.Atoi(strings.TrimPrefix(lower, "page="))
			if err != nil || n < 1 {
				return "", nil, 0, false
			}
			page = n
		default:
			if i == len(args)-1 {
				if n, err := strconv.Atoi(arg); err == nil && n > -maxPageArg && n <= maxPageArg {
					if n < 1 {
						return "", nil, 0, false
					}
					page = n
					continue
				}
			}
			terms = append(terms, arg)
		}
	}
	return strings.Join(terms, " "), banned, page, true
}
