package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inviter_bot/internal/domain/member"
	"inviter_bot/internal/domain/onboarding"
	domainTelegram "inviter_bot/internal/domain/telegram"
	idb "inviter_bot/internal/infra/database"
	"inviter_bot/internal/infra/metrics"

	"github.com/sirupsen/logrus"
)

// StartResult reports what Start did.
type StartResult int

const (
	StartNoQuestions StartResult = iota // catalog empty, caller falls back to the menu
	StartStarted
	StartResumed // already mid-sequence; the pending question was sent again
	StartAlreadyCompleted
)

// AnswerResult reports what an answer led to.
type AnswerResult int

const (
	AnswerStale AnswerResult = iota // not the question the user is on; ignored
	AnswerNextQuestion
	AnswerCompleted
)

// CompletionHandler is notified when a user finishes onboarding.
type CompletionHandler interface {
	OnOnboardingCompleted(ctx context.Context, userID int64)
}

// OnboardingService drives users through the active question sequence.
type OnboardingService struct {
	repo       onboarding.Repository
	users      member.Repository
	client     domainTelegram.Client
	completion CompletionHandler
	now        func() time.Time
	logger     *logrus.Entry
}

func NewOnboardingService(
	repo onboarding.Repository,
	users member.Repository,
	client domainTelegram.Client,
	completion CompletionHandler,
	logger *logrus.Entry,
) *OnboardingService {
	return &OnboardingService{
		repo:       repo,
		users:      users,
		client:     client,
		completion: completion,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger,
	}
}

// HasQuestions reports whether the active catalog is non-empty.
func (s *OnboardingService) HasQuestions(ctx context.Context) (bool, error) {
	questions, err := s.repo.ListActiveQuestions(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list active questions: %w", err)
	}
	return len(questions) > 0, nil
}

// Completed reports whether the user has finished onboarding.
func (s *OnboardingService) Completed(ctx context.Context, userID int64) (bool, error) {
	state, err := s.repo.GetState(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to get onboarding state: %w", err)
	}
	return state.Phase() == onboarding.PhaseCompleted, nil
}

// Start sends the first question to a user who has not started onboarding.
// It never restarts a completed onboarding; a user already mid-sequence gets
// the pending question again, or the next one if it has been retired.
func (s *OnboardingService) Start(ctx context.Context, userID int64) (StartResult, error) {
	log := s.logger.WithField("user_id", userID)

	questions, err := s.repo.ListActiveQuestions(ctx)
	if err != nil {
		return StartNoQuestions, fmt.Errorf("failed to list active questions: %w", err)
	}
	if len(questions) == 0 {
		log.Debug("No active onboarding questions")
		return StartNoQuestions, nil
	}

	state, err := s.repo.GetState(ctx, userID)
	if err != nil {
		return StartNoQuestions, fmt.Errorf("failed to get onboarding state: %w", err)
	}

	switch state.Phase() {
	case onboarding.PhaseCompleted:
		log.Info("Onboarding already completed, not restarting")
		return StartAlreadyCompleted, nil
	case onboarding.PhaseAwaitingAnswer:
		questionID, _ := state.AwaitingQuestion()
		q, err := s.repo.GetQuestion(ctx, questionID)
		if err != nil && !errors.Is(err, idb.ErrQuestionNotFound) {
			return StartResumed, fmt.Errorf("failed to get pending question %d: %w", questionID, err)
		}
		if err == nil && q.IsActive {
			log.WithField("question_id", q.ID).Info("Onboarding in progress, resending pending question")
			return StartResumed, s.sendQuestion(userID, q)
		}
		return s.skipRetiredQuestion(ctx, userID, questionID, q, questions, log)
	}

	first := questions[0]
	if err := s.repo.SetCurrentQuestion(ctx, userID, first.ID); err != nil {
		return StartNoQuestions, fmt.Errorf("failed to set onboarding state: %w", err)
	}
	log.WithField("question_id", first.ID).Info("Onboarding started")
	return StartStarted, s.sendQuestion(userID, first)
}

// skipRetiredQuestion moves a user whose pending question was deleted or
// deactivated on to the next active question, or back to the first one when
// the retired question is gone entirely.
func (s *OnboardingService) skipRetiredQuestion(ctx context.Context, userID, retiredID int64, retired *onboarding.Question, questions []*onboarding.Question, log *logrus.Entry) (StartResult, error) {
	next := questions[0]
	if retired != nil {
		if after := onboarding.NextAfter(questions, retired); after != nil {
			next = after
		}
	}
	log = log.WithFields(logrus.Fields{"retired_question_id": retiredID, "question_id": next.ID})

	moved, err := s.repo.AdvanceQuestion(ctx, userID, retiredID, next.ID)
	if err != nil {
		return StartResumed, fmt.Errorf("failed to move past retired question %d: %w", retiredID, err)
	}
	if !moved {
		log.Info("Onboarding state changed concurrently, not moving past retired question")
		return StartResumed, nil
	}
	log.Warn("Pending onboarding question no longer active, moved on")
	return StartResumed, s.sendQuestion(userID, next)
}

// PendingQuestion returns the question the user must answer, or nil.
func (s *OnboardingService) PendingQuestion(ctx context.Context, userID int64) (*onboarding.Question, error) {
	state, err := s.repo.GetState(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get onboarding state: %w", err)
	}
	questionID, ok := state.AwaitingQuestion()
	if !ok {
		return nil, nil
	}
	q, err := s.repo.GetQuestion(ctx, questionID)
	if err != nil {
		if errors.Is(err, idb.ErrQuestionNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get question %d: %w", questionID, err)
	}
	return q, nil
}

// Answer records a reply to questionID and advances the user. Answers for a
// question the user is not currently on are ignored.
func (s *OnboardingService) Answer(ctx context.Context, userID, questionID int64, value string) (AnswerResult, error) {
	return s.AnswerWithAck(ctx, userID, questionID, value, "")
}

// AnswerWithAck is Answer, but once the answer has been accepted it sends ack
// to the user before the next question or the completion message.
func (s *OnboardingService) AnswerWithAck(ctx context.Context, userID, questionID int64, value, ack string) (AnswerResult, error) {
	log := s.logger.WithFields(logrus.Fields{"user_id": userID, "question_id": questionID})

	state, err := s.repo.GetState(ctx, userID)
	if err != nil {
		return AnswerStale, fmt.Errorf("failed to get onboarding state: %w", err)
	}
	current, ok := state.AwaitingQuestion()
	if !ok || current != questionID {
		log.Info("Ignoring answer for a question the user is not on")
		return AnswerStale, nil
	}

	question, err := s.repo.GetQuestion(ctx, questionID)
	if err != nil {
		return AnswerStale, fmt.Errorf("failed to get question %d: %w", questionID, err)
	}

	if err := s.repo.UpsertAnswer(ctx, &onboarding.Answer{
		UserID:     userID,
		QuestionID: questionID,
		Text:       value,
		AnsweredAt: s.now(),
	}); err != nil {
		return AnswerStale, fmt.Errorf("failed to save answer: %w", err)
	}
	if err := s.users.LogAction(ctx, userID, member.ActionAnsweredQuestion, fmt.Sprintf("Question ID: %d, Answer: %s", questionID, value)); err != nil {
		log.WithError(err).Warn("Failed to log answer action")
	}

	questions, err := s.repo.ListActiveQuestions(ctx)
	if err != nil {
		return AnswerStale, fmt.Errorf("failed to list active questions: %w", err)
	}

	if next := onboarding.NextAfter(questions, question); next != nil {
		moved, err := s.repo.AdvanceQuestion(ctx, userID, questionID, next.ID)
		if err != nil {
			return AnswerStale, fmt.Errorf("failed to advance onboarding: %w", err)
		}
		if !moved {
			log.Info("Onboarding state changed concurrently, answer not advanced")
			return AnswerStale, nil
		}
		s.sendAck(userID, ack, log)
		log.WithField("next_question_id", next.ID).Info("Sending next onboarding question")
		return AnswerNextQuestion, s.sendQuestion(userID, next)
	}

	completed, err := s.repo.MarkCompleted(ctx, userID, questionID)
	if err != nil {
		return AnswerStale, fmt.Errorf("failed to complete onboarding: %w", err)
	}
	if !completed {
		log.Info("Onboarding state changed concurrently, not completing twice")
		return AnswerStale, nil
	}
	s.sendAck(userID, ack, log)
	metrics.OnboardingCompleted.Inc()
	log.Info("Onboarding completed")

	if s.completion != nil {
		s.completion.OnOnboardingCompleted(ctx, userID)
	}
	if err := s.client.SendMessage(userID, onboardingDone, nil); err != nil {
		log.WithError(err).Warn("Failed to send onboarding completion message")
	}
	return AnswerCompleted, nil
}

func (s *OnboardingService) sendAck(userID int64, ack string, log *logrus.Entry) {
	if ack == "" {
		return
	}
	if err := s.client.SendMessage(userID, ack, nil); err != nil {
		log.WithError(err).Warn("Failed to acknowledge answer")
	}
}

func (s *OnboardingService) sendQuestion(userID int64, q *onboarding.Question) error {
	text := q.Text
	var opts *domainTelegram.SendOptions
	if q.IsChoice() {
		if markup := QuestionMarkup(q); markup != nil {
			opts = &domainTelegram.SendOptions{Markup: markup}
		}
	} else {
		text += textAnswerSuffix
	}
	if err := s.client.SendMessage(userID, text, opts); err != nil {
		return fmt.Errorf("failed to send question %d: %w", q.ID, err)
	}
	return nil
}
