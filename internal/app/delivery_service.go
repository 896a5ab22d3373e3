package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inviter_bot/internal/domain/content"
	"inviter_bot/internal/domain/member"
	domainTelegram "inviter_bot/internal/domain/telegram"
	idb "inviter_bot/internal/infra/database"
	"inviter_bot/internal/infra/metrics"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// DefaultDripWindow is how long a day >= 1 item stays deliverable after its trigger time.
const DefaultDripWindow = 5 * time.Minute

// Delivery triggers, used as the metrics label.
const (
	triggerScheduled = "scheduled"
	triggerChained   = "chained"
)

var errNoContent = errors.New("item has neither text nor a media file")

// DeliveryConfig tunes the delivery engine.
type DeliveryConfig struct {
	// SendInterval paces broadcast sends. Zero disables pacing.
	SendInterval time.Duration
	// Window is the width of the bounded day >= 1 delivery window.
	Window time.Duration
}

// SendReport counts the outcome of a multi-recipient send.
type SendReport struct {
	Sent   int
	Failed int
}

// DripReport summarizes one drip sweep.
type DripReport struct {
	Users   int
	Items   int
	Sent    int
	Failed  int
	Skipped int // items skipped because of malformed configuration
}

// DeliveryService sends scheduled broadcasts and drip content.
type DeliveryService struct {
	users      member.Repository
	items      content.Repository
	ledger     content.Ledger
	broadcasts content.BroadcastRepository
	client     domainTelegram.Client
	limiter    *rate.Limiter
	window     time.Duration
	now        func() time.Time
	logger     *logrus.Entry
}

func NewDeliveryService(
	users member.Repository,
	items content.Repository,
	ledger content.Ledger,
	broadcasts content.BroadcastRepository,
	client domainTelegram.Client,
	cfg DeliveryConfig,
	logger *logrus.Entry,
) *DeliveryService {
	limit := rate.Inf
	if cfg.SendInterval > 0 {
		limit = rate.Every(cfg.SendInterval)
	}
	window := cfg.Window
	if window <= 0 {
		window = DefaultDripWindow
	}
	return &DeliveryService{
		users:      users,
		items:      items,
		ledger:     ledger,
		broadcasts: broadcasts,
		client:     client,
		limiter:    rate.NewLimiter(limit, 1),
		window:     window,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger,
	}
}

// Tick runs both sweeps once. The sweeps are independent: a failure in one
// does not prevent the other.
func (s *DeliveryService) Tick(ctx context.Context) {
	now := s.now()

	start := time.Now()
	if _, err := s.DispatchDueBroadcasts(ctx, now); err != nil {
		s.logger.WithError(err).Error("Broadcast sweep failed")
	}
	metrics.ObserveSweep("broadcast", start)

	start = time.Now()
	if _, err := s.DeliverDue(ctx, now); err != nil {
		s.logger.WithError(err).Error("Drip sweep failed")
	}
	metrics.ObserveSweep("drip", start)
}

// DispatchDueBroadcasts sends every unsent broadcast whose time has come to all
// non-banned users. A broadcast is marked sent only after its full recipient pass.
func (s *DeliveryService) DispatchDueBroadcasts(ctx context.Context, now time.Time) (int, error) {
	due, err := s.broadcasts.ListDue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list due broadcasts: %w", err)
	}
	dispatched := 0
	for _, b := range due {
		log := s.logger.WithField("broadcast_id", b.ID)

		recipients, err := s.activeUserIDs(ctx)
		if err != nil {
			log.WithError(err).Error("Failed to load recipients, broadcast left pending")
			continue
		}

		text, html := b.Body()
		report, err := s.SendToUsers(ctx, recipients, text, parseMode(html))
		if err != nil {
			log.WithError(err).Warn("Broadcast pass interrupted, broadcast left pending")
			continue
		}

		if err := s.broadcasts.MarkSent(ctx, b.ID); err != nil {
			log.WithError(err).Error("Failed to mark broadcast as sent")
			continue
		}
		dispatched++
		log.WithFields(logrus.Fields{"sent": report.Sent, "failed": report.Failed}).Info("Scheduled broadcast sent")
	}
	return dispatched, nil
}

// SendToUsers sends text to every recipient, pacing sends and tolerating
// per-recipient failures. It only returns an error if ctx is cancelled.
func (s *DeliveryService) SendToUsers(ctx context.Context, userIDs []int64, text string, mode domainTelegram.ParseMode) (SendReport, error) {
	var report SendReport
	for _, id := range userIDs {
		if err := s.limiter.Wait(ctx); err != nil {
			return report, err
		}
		if err := s.client.SendMessage(id, text, &domainTelegram.SendOptions{ParseMode: mode}); err != nil {
			report.Failed++
			metrics.BroadcastRecipients.WithLabelValues("failed").Inc()
			s.logSendFailure(s.logger.WithField("user_id", id), err, "Could not send message to user")
			continue
		}
		report.Sent++
		metrics.BroadcastRecipients.WithLabelValues("sent").Inc()
		if err := s.users.LogAction(ctx, id, member.ActionReceivedMessage, "Broadcast message"); err != nil {
			s.logger.WithError(err).WithField("user_id", id).Warn("Failed to log broadcast action")
		}
	}
	s.logger.WithFields(logrus.Fields{"sent": report.Sent, "failed": report.Failed}).Info("Message pass finished")
	return report, nil
}

// DeliverDue evaluates every (non-banned user, active item) pair and delivers
// the items whose send window is open and which were not delivered yet.
func (s *DeliveryService) DeliverDue(ctx context.Context, now time.Time) (DripReport, error) {
	var report DripReport

	users, err := s.users.ListActive(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list active users: %w", err)
	}
	all, err := s.items.ListActive(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list active content items: %w", err)
	}
	items := s.schedulableItems(all, &report)
	report.Users, report.Items = len(users), len(items)

	for _, u := range users {
		for _, it := range items {
			log := s.logger.WithFields(logrus.Fields{"user_id": u.TelegramID, "item_id": it.ID})

			due, err := it.Due(u.JoinDate, now, s.window)
			if err != nil {
				log.WithError(err).Warn("Skipping item this tick")
				continue
			}
			if !due {
				continue
			}

			delivered, err := s.ledger.WasDelivered(ctx, u.TelegramID, it.ID)
			if err != nil {
				log.WithError(err).Error("Failed to check delivery ledger")
				continue
			}
			if delivered {
				continue
			}

			if err := s.deliver(ctx, u.TelegramID, it, triggerScheduled); err != nil {
				report.Failed++
				continue
			}
			report.Sent++
		}
	}

	if report.Sent > 0 || report.Failed > 0 {
		s.logger.WithFields(logrus.Fields{
			"users": report.Users, "items": report.Items, "sent": report.Sent, "failed": report.Failed,
		}).Info("Drip sweep finished")
	}
	return report, nil
}

// schedulableItems drops inactive items and items with an unparsable send time,
// logging the latter once per sweep.
func (s *DeliveryService) schedulableItems(all []*content.Item, report *DripReport) []*content.Item {
	items := make([]*content.Item, 0, len(all))
	for _, it := range all {
		if !it.IsActive || it.DayNumber < 0 {
			continue
		}
		if it.DayNumber >= 1 && it.SendTime.Valid && it.SendTime.String != "" {
			if _, _, err := content.ParseSendTime(it.SendTime.String); err != nil {
				report.Skipped++
				s.logger.WithField("item_id", it.ID).WithError(err).Warn("Invalid send_time, skipping item this tick")
				continue
			}
		}
		items = append(items, it)
	}
	return items
}

// SendNextSameDay immediately delivers the next undelivered item of the same day
// as itemID, if there is one. It bypasses the send window on purpose.
func (s *DeliveryService) SendNextSameDay(ctx context.Context, userID, itemID int64) (bool, error) {
	current, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, idb.ErrItemNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get content item %d: %w", itemID, err)
	}
	items, err := s.items.ListActive(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list active content items: %w", err)
	}
	for _, it := range items {
		if !it.IsActive || it.DayNumber != current.DayNumber || it.ID <= current.ID {
			continue
		}
		delivered, err := s.ledger.WasDelivered(ctx, userID, it.ID)
		if err != nil {
			return false, fmt.Errorf("failed to check delivery ledger: %w", err)
		}
		if delivered {
			continue
		}
		if err := s.deliver(ctx, userID, it, triggerChained); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// deliver sends one item and records it in the ledger whether or not the send
// succeeded, so a pair is attempted at most once.
func (s *DeliveryService) deliver(ctx context.Context, userID int64, it *content.Item, trigger string) error {
	log := s.logger.WithFields(logrus.Fields{"user_id": userID, "item_id": it.ID, "day": it.DayNumber})

	text, html := it.Body()
	opts := &domainTelegram.SendOptions{ParseMode: parseMode(html), Markup: ItemMarkup(it)}

	var sendErr error
	switch {
	case it.Media.Kind != content.MediaText && it.Media.Kind.Valid() && it.Media.HasFile():
		sendErr = s.client.SendMedia(userID, it.Media, text, opts)
	default:
		if !it.Media.Kind.Valid() {
			log.WithField("media_type", it.Media.Kind).Warn("Unrecognized media type, falling back to text only")
		} else if it.Media.Kind != content.MediaText {
			log.WithField("media_type", it.Media.Kind).Warn("Media type specified but no media file id, falling back to text only")
		}
		if text == "" {
			sendErr = errNoContent
		} else {
			sendErr = s.client.SendMessage(userID, text, opts)
		}
	}

	if err := s.ledger.MarkDelivered(ctx, userID, it.ID); err != nil {
		log.WithError(err).Error("Failed to record delivery in ledger")
	}

	if sendErr != nil {
		metrics.DripSendErrors.Inc()
		s.logSendFailure(log, sendErr, "Could not send static message")
		return sendErr
	}

	metrics.DripDelivered.WithLabelValues(trigger).Inc()
	if err := s.users.LogAction(ctx, userID, member.ActionReceivedStaticMessage, fmt.Sprintf("Day %d message (ID: %d)", it.DayNumber, it.ID)); err != nil {
		log.WithError(err).Warn("Failed to log delivery action")
	}
	log.Info("Static message sent")
	return nil
}

func (s *DeliveryService) logSendFailure(log *logrus.Entry, err error, msg string) {
	switch {
	case errors.Is(err, domainTelegram.ErrFloodWait):
		metrics.FloodWaits.Inc()
		log.WithError(err).Warn(msg + " (flood control)")
	case errors.Is(err, domainTelegram.ErrRecipientUnavailable):
		log.WithError(err).Warn(msg + " (recipient unavailable)")
	default:
		log.WithError(err).Warn(msg)
	}
}

func (s *DeliveryService) activeUserIDs(ctx context.Context) ([]int64, error) {
	users, err := s.users.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.TelegramID)
	}
	return ids, nil
}
