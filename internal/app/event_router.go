package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"inviter_bot/internal/domain/invite"
	"inviter_bot/internal/domain/joinrequest"
	"inviter_bot/internal/domain/member"
	"inviter_bot/internal/domain/menu"
	"inviter_bot/internal/domain/settings"
	domainTelegram "inviter_bot/internal/domain/telegram"
	idb "inviter_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
)

// CallbackReply tells the transport how to acknowledge a button press.
type CallbackReply struct {
	Text string
	// ReplaceMarkup, when set, replaces the keyboard of the pressed message.
	ReplaceMarkup *domainTelegram.Markup
}

// EventRouter dispatches inbound platform events to the onboarding engine,
// the approval policy, the delivery engine or the menu.
type EventRouter struct {
	users      member.Repository
	invites    invite.Repository
	requests   joinrequest.Repository
	menus      *MenuCache
	onboarding *OnboardingService
	approval   *ApprovalService
	delivery   *DeliveryService
	client     domainTelegram.Client
	now        func() time.Time
	logger     *logrus.Entry
}

func NewEventRouter(
	users member.Repository,
	invites invite.Repository,
	requests joinrequest.Repository,
	menus *MenuCache,
	onboardingService *OnboardingService,
	approvalService *ApprovalService,
	deliveryService *DeliveryService,
	client domainTelegram.Client,
	logger *logrus.Entry,
) *EventRouter {
	return &EventRouter{
		users:      users,
		invites:    invites,
		requests:   requests,
		menus:      menus,
		onboarding: onboardingService,
		approval:   approvalService,
		delivery:   deliveryService,
		client:     client,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger,
	}
}

// HandleStart registers the user, then either starts onboarding or shows the menu.
func (r *EventRouter) HandleStart(ctx context.Context, p member.Profile, payload string) error {
	log := r.logger.WithField("user_id", p.TelegramID)

	code := r.validInviteCode(ctx, p.TelegramID, payload)
	if err := r.users.Upsert(ctx, p, code); err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}

	actionData := "No invite code"
	if code != "" {
		actionData = "Invite code: " + code
	}
	r.logAction(ctx, p.TelegramID, member.ActionStart, actionData)
	log.WithField("invite_code", code).Info("User started the bot")

	hasQuestions, err := r.onboarding.HasQuestions(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to check onboarding questions, showing menu")
	}
	if hasQuestions && r.approval.Mode(ctx) == settings.ApprovalAfterMessages && !r.completed(ctx, p.TelegramID) {
		if err := r.client.SendMessage(p.TelegramID, welcomeOnboarding, nil); err != nil {
			log.WithError(err).Warn("Failed to send onboarding welcome")
		}
		result, err := r.onboarding.Start(ctx, p.TelegramID)
		if err != nil {
			return fmt.Errorf("failed to start onboarding: %w", err)
		}
		if result != StartAlreadyCompleted && result != StartNoQuestions {
			return nil
		}
	}
	return r.sendMainMenu(ctx, p.TelegramID)
}

// HandleText treats the message as an answer when the user is awaiting a
// free-text question, otherwise as a menu button press.
func (r *EventRouter) HandleText(ctx context.Context, p member.Profile, text string) error {
	log := r.logger.WithField("user_id", p.TelegramID)
	r.touch(ctx, p.TelegramID)

	q, err := r.onboarding.PendingQuestion(ctx, p.TelegramID)
	if err != nil {
		log.WithError(err).Error("Failed to load onboarding state")
	}
	if q != nil && !q.IsChoice() {
		if _, err := r.onboarding.AnswerWithAck(ctx, p.TelegramID, q.ID, text, answerRecorded); err != nil {
			log.WithError(err).WithField("question_id", q.ID).Error("Failed to process text answer")
			return r.client.SendMessage(p.TelegramID, answerError, nil)
		}
		return nil
	}

	m, err := r.menus.Get(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to load menu")
		return nil
	}
	entry, ok := m.Lookup(text)
	if !ok {
		return nil
	}
	return r.runMenuAction(p.TelegramID, entry)
}

// HandleCallback processes an inline button press.
func (r *EventRouter) HandleCallback(ctx context.Context, userID int64, data string) CallbackReply {
	log := r.logger.WithField("user_id", userID)
	r.touch(ctx, userID)

	cb, err := ParseCallback(data)
	if err != nil {
		log.WithError(err).Warn("Unhandled callback")
		return CallbackReply{Text: "Unknown action."}
	}

	switch cb.Kind {
	case CallbackAlreadyViewed:
		return CallbackReply{Text: "Already marked as viewed ✓"}

	case CallbackViewed:
		r.logAction(ctx, userID, member.ActionViewedMessage, fmt.Sprintf("Static message ID: %d", cb.ItemID))
		if _, err := r.delivery.SendNextSameDay(ctx, userID, cb.ItemID); err != nil {
			log.WithError(err).WithField("item_id", cb.ItemID).Error("Failed to send next message")
		}
		return CallbackReply{Text: "Message marked as viewed ✓", ReplaceMarkup: ViewedMarkup(cb.ItemID)}

	case CallbackAnswer:
		result, err := r.onboarding.Answer(ctx, userID, cb.QuestionID, cb.Value)
		if err != nil {
			log.WithError(err).WithField("question_id", cb.QuestionID).Error("Failed to process answer")
			return CallbackReply{Text: "Error processing answer"}
		}
		if result == AnswerStale {
			return CallbackReply{Text: "This question is no longer active."}
		}
		return CallbackReply{Text: fmt.Sprintf("Answer recorded: %s ✓", cb.Value)}
	}
	return CallbackReply{Text: "Unknown action."}
}

// HandleJoinRequest records the request and applies the approval policy.
func (r *EventRouter) HandleJoinRequest(ctx context.Context, p member.Profile, chatID int64, chatTitle string) error {
	log := r.logger.WithFields(logrus.Fields{"user_id": p.TelegramID, "chat_id": chatID})

	if err := r.users.Upsert(ctx, p, ""); err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	req := &joinrequest.Request{
		UserID:      p.TelegramID,
		ChatID:      chatID,
		Username:    nullString(p.Username),
		FirstName:   nullString(p.FirstName),
		LastName:    nullString(p.LastName),
		Status:      joinrequest.StatusPending,
		RequestedAt: r.now(),
	}
	isNew, err := r.requests.Upsert(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to record join request: %w", err)
	}
	r.logAction(ctx, p.TelegramID, member.ActionJoinRequest, "Join request for channel: "+chatTitle)
	log.WithField("new", isNew).Info("Join request received")

	hasQuestions, err := r.onboarding.HasQuestions(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to check onboarding questions")
	}

	switch Decide(r.approval.Mode(ctx), TriggerJoinRequest, hasQuestions) {
	case DecisionApproveNow:
		if err := r.approval.ApproveImmediately(ctx, req); err != nil {
			log.WithError(err).Warn("Could not auto-approve immediately, request left pending")
		}
	case DecisionStartOnboarding:
		if r.completed(ctx, p.TelegramID) {
			// The user finished onboarding before this request arrived.
			r.approval.OnOnboardingCompleted(ctx, p.TelegramID)
			return nil
		}
		if err := r.client.SendMessage(p.TelegramID, joinRequestWelcome, nil); err != nil {
			log.WithError(err).Warn("Could not send onboarding message")
		}
		result, err := r.onboarding.Start(ctx, p.TelegramID)
		if err != nil {
			log.WithError(err).Warn("Could not start onboarding")
			return nil
		}
		if result == StartAlreadyCompleted {
			r.approval.OnOnboardingCompleted(ctx, p.TelegramID)
		}
	}
	return nil
}

func (r *EventRouter) completed(ctx context.Context, userID int64) bool {
	done, err := r.onboarding.Completed(ctx, userID)
	if err != nil {
		r.logger.WithError(err).WithField("user_id", userID).Error("Failed to load onboarding state")
	}
	return done
}

// HandleMemberJoined registers a user that joined a chat.
func (r *EventRouter) HandleMemberJoined(ctx context.Context, p member.Profile, chatTitle string) error {
	if err := r.users.Upsert(ctx, p, ""); err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	r.logAction(ctx, p.TelegramID, member.ActionJoinChannel, "Joined channel: "+chatTitle)
	r.logger.WithField("user_id", p.TelegramID).WithField("chat", chatTitle).Info("User joined channel")
	return nil
}

// HandleMemberLeft logs a user that left a chat.
func (r *EventRouter) HandleMemberLeft(ctx context.Context, userID int64, chatTitle string) {
	r.logAction(ctx, userID, member.ActionLeaveChannel, "Left channel: "+chatTitle)
	r.logger.WithField("user_id", userID).WithField("chat", chatTitle).Info("User left channel")
}

func (r *EventRouter) sendMainMenu(ctx context.Context, userID int64) error {
	var opts *domainTelegram.SendOptions
	m, err := r.menus.Get(ctx)
	if err != nil {
		r.logger.WithError(err).Error("Failed to build main menu")
	} else if labels := m.Labels(); len(labels) > 0 {
		rows := make([][]string, 0, len(labels))
		for _, l := range labels {
			rows = append(rows, []string{l})
		}
		opts = &domainTelegram.SendOptions{Markup: &domainTelegram.Markup{Reply: rows}}
	}
	return r.client.SendMessage(userID, menuPrompt, opts)
}

func (r *EventRouter) runMenuAction(userID int64, entry menu.Entry) error {
	if entry.Err != nil {
		r.logger.WithError(entry.Err).WithField("menu_item_id", entry.Item.ID).Warn("Malformed menu item")
		return r.client.SendMessage(userID, menuLoadError, nil)
	}
	switch a := entry.Action.(type) {
	case menu.LinkAction:
		return r.client.SendMessage(userID, "Open: "+a.URL, nil)
	case menu.TextAction:
		return r.client.SendMessage(userID, a.Body, nil)
	case menu.InlineMenuAction:
		rows := make([][]domainTelegram.Button, 0, len(a.Buttons))
		for _, b := range a.Buttons {
			rows = append(rows, []domainTelegram.Button{{Text: b.Text, URL: b.URL}})
		}
		return r.client.SendMessage(userID, inlineMenuPrompt, &domainTelegram.SendOptions{
			Markup: &domainTelegram.Markup{Inline: rows},
		})
	}
	return nil
}

// validInviteCode returns the code only if it names an active invite link.
func (r *EventRouter) validInviteCode(ctx context.Context, userID int64, payload string) string {
	code := strings.TrimSpace(payload)
	if code == "" {
		return ""
	}
	if fields := strings.Fields(code); len(fields) > 0 {
		code = fields[0]
	}
	link, err := r.invites.GetByCode(ctx, code)
	if err != nil {
		if !errors.Is(err, idb.ErrInviteLinkNotFound) {
			r.logger.WithError(err).Error("Failed to look up invite code")
		}
		r.logger.WithFields(logrus.Fields{"user_id": userID, "invite_code": code}).Warn("Invalid invite code dropped")
		return ""
	}
	if !link.IsActive {
		r.logger.WithFields(logrus.Fields{"user_id": userID, "invite_code": code}).Warn("Inactive invite code dropped")
		return ""
	}
	return code
}

func (r *EventRouter) touch(ctx context.Context, userID int64) {
	if err := r.users.Touch(ctx, userID); err != nil && !errors.Is(err, idb.ErrUserNotFound) {
		r.logger.WithError(err).WithField("user_id", userID).Warn("Failed to update last activity")
	}
}

func (r *EventRouter) logAction(ctx context.Context, userID int64, action, data string) {
	if err := r.users.LogAction(ctx, userID, action, data); err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{"user_id": userID, "action": action}).Warn("Failed to log user action")
	}
}
