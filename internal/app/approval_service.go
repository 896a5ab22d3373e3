package app

import (
	"context"
	"errors"
	"fmt"

	"inviter_bot/internal/domain/joinrequest"
	"inviter_bot/internal/domain/member"
	"inviter_bot/internal/domain/settings"
	domainTelegram "inviter_bot/internal/domain/telegram"
	"inviter_bot/internal/infra/metrics"

	"github.com/sirupsen/logrus"
)

var ErrJoinRequestNotPending = errors.New("join request is not pending")

// ApprovalTrigger is the point at which the approval policy is consulted.
type ApprovalTrigger int

const (
	TriggerJoinRequest ApprovalTrigger = iota
	TriggerOnboardingCompleted
)

// ApprovalDecision is what the policy wants done.
type ApprovalDecision int

const (
	DecisionNone ApprovalDecision = iota
	DecisionApproveNow
	DecisionStartOnboarding
	DecisionApprovePending
)

// Decide is the auto-approval policy.
func Decide(mode settings.ApprovalMode, trigger ApprovalTrigger, hasQuestions bool) ApprovalDecision {
	switch trigger {
	case TriggerJoinRequest:
		switch mode {
		case settings.ApprovalImmediate:
			return DecisionApproveNow
		case settings.ApprovalAfterMessages:
			if hasQuestions {
				return DecisionStartOnboarding
			}
		}
	case TriggerOnboardingCompleted:
		if mode == settings.ApprovalAfterMessages {
			return DecisionApprovePending
		}
	}
	return DecisionNone
}

// Approval sources, used in logs and metrics.
const (
	sourceImmediate  = "immediate"
	sourceOnboarding = "after_onboarding"
	sourceManual     = "manual"
)

// ApprovalService applies approval decisions to Telegram and the join request ledger.
type ApprovalService struct {
	settings settings.Repository
	requests joinrequest.Repository
	users    member.Repository
	client   domainTelegram.Client
	logger   *logrus.Entry
}

func NewApprovalService(
	sr settings.Repository,
	jr joinrequest.Repository,
	ur member.Repository,
	client domainTelegram.Client,
	logger *logrus.Entry,
) *ApprovalService {
	return &ApprovalService{settings: sr, requests: jr, users: ur, client: client, logger: logger}
}

// Mode returns the configured approval mode. Unset or unknown values mean off.
func (s *ApprovalService) Mode(ctx context.Context) settings.ApprovalMode {
	raw, found, err := s.settings.Get(ctx, settings.KeyAutoApproveMode)
	if err != nil {
		s.logger.WithError(err).Error("Failed to read approval mode, treating as off")
		return settings.ApprovalOff
	}
	if !found {
		return settings.ApprovalOff
	}
	mode, err := settings.ParseApprovalMode(raw)
	if err != nil {
		s.logger.WithError(err).Warn("Invalid stored approval mode, treating as off")
	}
	return mode
}

// SetMode stores a new approval mode.
func (s *ApprovalService) SetMode(ctx context.Context, raw string) (settings.ApprovalMode, error) {
	mode, err := settings.ParseApprovalMode(raw)
	if err != nil {
		return settings.ApprovalOff, err
	}
	if err := s.settings.Set(ctx, settings.KeyAutoApproveMode, string(mode)); err != nil {
		return settings.ApprovalOff, fmt.Errorf("failed to store approval mode: %w", err)
	}
	return mode, nil
}

// ApproveImmediately approves a freshly received request. On failure the ledger
// row stays pending for manual reconciliation.
func (s *ApprovalService) ApproveImmediately(ctx context.Context, req *joinrequest.Request) error {
	if err := s.approve(ctx, req, sourceImmediate); err != nil {
		return err
	}
	if err := s.users.LogAction(ctx, req.UserID, member.ActionAutoApproved, "Immediate approval"); err != nil {
		s.logger.WithError(err).WithField("user_id", req.UserID).Warn("Failed to log approval action")
	}
	return nil
}

// ApprovePendingForUser approves every pending request of the user across all
// chats. A user without pending requests is a no-op.
func (s *ApprovalService) ApprovePendingForUser(ctx context.Context, userID int64) (int, error) {
	reqs, err := s.requests.ListByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to list join requests for user %d: %w", userID, err)
	}
	approved := 0
	for _, req := range reqs {
		if !req.IsPending() {
			continue
		}
		if err := s.approve(ctx, req, sourceOnboarding); err != nil {
			continue
		}
		approved++
		if err := s.users.LogAction(ctx, userID, member.ActionAutoApproved, "After onboarding completion"); err != nil {
			s.logger.WithError(err).WithField("user_id", userID).Warn("Failed to log approval action")
		}
	}
	return approved, nil
}

// OnOnboardingCompleted implements CompletionHandler.
func (s *ApprovalService) OnOnboardingCompleted(ctx context.Context, userID int64) {
	if Decide(s.Mode(ctx), TriggerOnboardingCompleted, true) != DecisionApprovePending {
		return
	}
	n, err := s.ApprovePendingForUser(ctx, userID)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Error("Failed to auto-approve after onboarding")
		return
	}
	if n > 0 {
		s.logger.WithFields(logrus.Fields{"user_id": userID, "approved": n}).Info("Join requests auto-approved after onboarding")
	}
}

// Approve manually approves a pending request by id.
func (s *ApprovalService) Approve(ctx context.Context, id int64) (*joinrequest.Request, error) {
	req, err := s.pending(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.approve(ctx, req, sourceManual); err != nil {
		return nil, err
	}
	return req, nil
}

// Deny manually declines a pending request by id.
func (s *ApprovalService) Deny(ctx context.Context, id int64) (*joinrequest.Request, error) {
	req, err := s.pending(ctx, id)
	if err != nil {
		return nil, err
	}
	log := s.logger.WithFields(logrus.Fields{"user_id": req.UserID, "chat_id": req.ChatID, "request_id": req.ID})
	if err := s.client.DeclineJoinRequest(req.ChatID, req.UserID); err != nil {
		metrics.ObserveDecision("deny", sourceManual, err)
		log.WithError(err).Warn("Could not decline join request")
		return nil, fmt.Errorf("failed to decline join request: %w", err)
	}
	if err := s.requests.Deny(ctx, req.ID); err != nil {
		return nil, fmt.Errorf("failed to mark join request denied: %w", err)
	}
	metrics.ObserveDecision("deny", sourceManual, nil)
	req.Status = joinrequest.StatusDenied
	log.Info("Join request denied")
	return req, nil
}

func (s *ApprovalService) pending(ctx context.Context, id int64) (*joinrequest.Request, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !req.IsPending() {
		return req, ErrJoinRequestNotPending
	}
	return req, nil
}

// approve calls Telegram first and only then marks the ledger row approved.
func (s *ApprovalService) approve(ctx context.Context, req *joinrequest.Request, source string) error {
	log := s.logger.WithFields(logrus.Fields{"user_id": req.UserID, "chat_id": req.ChatID, "request_id": req.ID, "source": source})
	if err := s.client.ApproveJoinRequest(req.ChatID, req.UserID); err != nil {
		metrics.ObserveDecision("approve", source, err)
		log.WithError(err).Warn("Could not approve join request")
		return fmt.Errorf("failed to approve join request: %w", err)
	}
	if err := s.requests.Approve(ctx, req.ID); err != nil {
		log.WithError(err).Error("Join request approved in Telegram but ledger update failed")
		return fmt.Errorf("failed to mark join request approved: %w", err)
	}
	metrics.ObserveDecision("approve", source, nil)
	req.Status = joinrequest.StatusApproved
	log.Info("Join request approved")
	return nil
}
