package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"inviter_bot/internal/domain/content"
	"inviter_bot/internal/domain/joinrequest"
	"inviter_bot/internal/domain/member"
	"inviter_bot/internal/domain/settings"
	domainTelegram "inviter_bot/internal/domain/telegram"
	idb "inviter_bot/internal/infra/database"
)

// Custom application-level errors for admin service
var ErrAdminNotAuthorized = fmt.Errorf("performing user is not authorized as an admin")
var ErrUserAlreadyBanned = fmt.Errorf("user is already banned")
var ErrUserNotBanned = fmt.Errorf("user is not banned")
var ErrEmptyBroadcast = fmt.Errorf("broadcast text is empty")
var ErrBroadcastInPast = fmt.Errorf("broadcast time is in the past")

// AdminPageSize is the number of rows per page in admin listings.
const AdminPageSize = 10

// UserPage is one page of the user listing.
type UserPage struct {
	Users []*member.User
	Total int
	Page  int
}

// RequestPage is one page of pending join requests.
type RequestPage struct {
	Requests []*joinrequest.Request
	Total    int
	Page     int
}

// AdminStats is the snapshot shown by /stats.
type AdminStats struct {
	member.Stats
	PendingRequests int
	ApprovalMode    settings.ApprovalMode
}

type AdminService struct {
	users           member.Repository
	requests        joinrequest.Repository
	broadcasts      content.BroadcastRepository
	approval        *ApprovalService
	delivery        *DeliveryService
	client          domainTelegram.Client
	adminTelegramID int64
	now             func() time.Time
}

func NewAdminService(
	ur member.Repository,
	jr joinrequest.Repository,
	br content.BroadcastRepository,
	approval *ApprovalService,
	delivery *DeliveryService,
	client domainTelegram.Client,
	adminID int64,
) *AdminService {
	return &AdminService{
		users:           ur,
		requests:        jr,
		broadcasts:      br,
		approval:        approval,
		delivery:        delivery,
		client:          client,
		adminTelegramID: adminID,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// IsAdmin reports whether telegramID may use the admin commands.
func (s *AdminService) IsAdmin(telegramID int64) bool {
	return telegramID == s.adminTelegramID
}

// ListUsers returns one page of users, optionally filtered by a name/id search
// and by ban status.
func (s *AdminService) ListUsers(ctx context.Context, performingAdminID int64, search string, banned *bool, page int) (*UserPage, error) {
	if !s.IsAdmin(performingAdminID) {
		return nil, ErrAdminNotAuthorized
	}
	if page < 1 {
		page = 1
	}
	f := member.Filter{Search: strings.TrimSpace(search), IsBanned: banned, Limit: AdminPageSize, Offset: (page - 1) * AdminPageSize}
	users, err := s.users.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	total, err := s.users.Count(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	return &UserPage{Users: users, Total: total, Page: page}, nil
}

// BanUser excludes the user from all deliveries.
func (s *AdminService) BanUser(ctx context.Context, performingAdminID, telegramID int64) (*member.User, error) {
	if !s.IsAdmin(performingAdminID) {
		return nil, ErrAdminNotAuthorized
	}
	u, err := s.users.GetByTelegramID(ctx, telegramID)
	if err != nil {
		if err == idb.ErrUserNotFound {
			return nil, idb.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user for ban: %w", err)
	}
	if u.IsBanned {
		return u, ErrUserAlreadyBanned
	}
	if err := s.users.Ban(ctx, telegramID); err != nil {
		return nil, fmt.Errorf("failed to ban user: %w", err)
	}
	u.IsBanned = true
	return u, nil
}

// UnbanUser lifts a ban.
func (s *AdminService) UnbanUser(ctx context.Context, performingAdminID, telegramID int64) (*member.User, error) {
	if !s.IsAdmin(performingAdminID) {
		return nil, ErrAdminNotAuthorized
	}
	u, err := s.users.GetByTelegramID(ctx, telegramID)
	if err != nil {
		if err == idb.ErrUserNotFound {
			return nil, idb.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user for unban: %w", err)
	}
	if !u.IsBanned {
		return u, ErrUserNotBanned
	}
	if err := s.users.Unban(ctx, telegramID); err != nil {
		return nil, fmt.Errorf("failed to unban user: %w", err)
	}
	u.IsBanned = false
	return u, nil
}

// DeleteUser removes the user and everything recorded about them.
func (s *AdminService) DeleteUser(ctx context.Context, performingAdminID, telegramID int64) error {
	if !s.IsAdmin(performingAdminID) {
		return ErrAdminNotAuthorized
	}
	if err := s.users.Delete(ctx, telegramID); err != nil {
		if err == idb.ErrUserNotFound {
			return idb.ErrUserNotFound
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// PendingRequests returns one page of pending join requests across all chats.
func (s *AdminService) PendingRequests(ctx context.Context, performingAdminID int64, page int) (*RequestPage, error) {
	if !s.IsAdmin(performingAdminID) {
		return nil, ErrAdminNotAuthorized
	}
	if page < 1 {
		page = 1
	}
	reqs, err := s.requests.ListByStatus(ctx, joinrequest.StatusPending, 0, AdminPageSize, (page-1)*AdminPageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending join requests: %w", err)
	}
	total, err := s.requests.CountByStatus(ctx, joinrequest.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending join requests: %w", err)
	}
	return &RequestPage{Requests: reqs, Total: total, Page: page}, nil
}

// ApproveRequest manually approves a pending join request.
func (s *AdminService) ApproveRequest(ctx context.Context, performingAdminID, requestID int64) (*joinrequest.Request, error) {
	if !s.IsAdmin(performingAdminID) {
		return nil, ErrAdminNotAuthorized
	}
	return s.approval.Approve(ctx, requestID)
}

// DenyRequest manually declines a pending join request.
func (s *AdminService) DenyRequest(ctx context.Context, performingAdminID, requestID int64) (*joinrequest.Request, error) {
	if !s.IsAdmin(performingAdminID) {
		return nil, ErrAdminNotAuthorized
	}
	return s.approval.Deny(ctx, requestID)
}

// ApprovalMode returns the current auto-approval mode.
func (s *AdminService) ApprovalMode(ctx context.Context, performingAdminID int64) (settings.ApprovalMode, error) {
	if !s.IsAdmin(performingAdminID) {
		return settings.ApprovalOff, ErrAdminNotAuthorized
	}
	return s.approval.Mode(ctx), nil
}

// SetApprovalMode changes the auto-approval mode.
func (s *AdminService) SetApprovalMode(ctx context.Context, performingAdminID int64, raw string) (settings.ApprovalMode, error) {
	if !s.IsAdmin(performingAdminID) {
		return settings.ApprovalOff, ErrAdminNotAuthorized
	}
	return s.approval.SetMode(ctx, raw)
}

// ScheduleBroadcast stores a one-off broadcast for the delivery sweep.
func (s *AdminService) ScheduleBroadcast(ctx context.Context, performingAdminID int64, at time.Time, text string) (*content.Broadcast, error) {
	if !s.IsAdmin(performingAdminID) {
		return nil, ErrAdminNotAuthorized
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyBroadcast
	}
	if at.Before(s.now()) {
		return nil, ErrBroadcastInPast
	}
	b := &content.Broadcast{Text: text, ScheduledTime: at.UTC()}
	if err := s.broadcasts.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to create broadcast: %w", err)
	}
	return b, nil
}

// BroadcastNow sends text to every non-banned user right away.
func (s *AdminService) BroadcastNow(ctx context.Context, performingAdminID int64, text string) (SendReport, error) {
	if !s.IsAdmin(performingAdminID) {
		return SendReport{}, ErrAdminNotAuthorized
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return SendReport{}, ErrEmptyBroadcast
	}
	ids, err := s.delivery.activeUserIDs(ctx)
	if err != nil {
		return SendReport{}, fmt.Errorf("failed to load recipients: %w", err)
	}
	return s.delivery.SendToUsers(ctx, ids, text, domainTelegram.ParsePlain)
}

// MemberStatus asks Telegram whether the user is currently a member of the chat.
func (s *AdminService) MemberStatus(ctx context.Context, performingAdminID, chatID, telegramID int64) (*domainTelegram.MemberInfo, error) {
	if !s.IsAdmin(performingAdminID) {
		return nil, ErrAdminNotAuthorized
	}
	info, err := s.client.ChatMember(chatID, telegramID)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat member: %w", err)
	}
	return info, nil
}

// Stats aggregates user and join request counters.
func (s *AdminService) Stats(ctx context.Context, performingAdminID int64) (*AdminStats, error) {
	if !s.IsAdmin(performingAdminID) {
		return nil, ErrAdminNotAuthorized
	}
	st, err := s.users.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load user stats: %w", err)
	}
	pending, err := s.requests.CountByStatus(ctx, joinrequest.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending join requests: %w", err)
	}
	return &AdminStats{Stats: *st, PendingRequests: pending, ApprovalMode: s.approval.Mode(ctx)}, nil
}
