package app

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"inviter_bot/internal/domain/content"
	"inviter_bot/internal/domain/invite"
	"inviter_bot/internal/domain/joinrequest"
	"inviter_bot/internal/domain/member"
	"inviter_bot/internal/domain/menu"
	"inviter_bot/internal/domain/onboarding"
	domainTelegram "inviter_bot/internal/domain/telegram"
	idb "inviter_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func date(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

// fakeUsers

type fakeUsers struct {
	mu      sync.Mutex
	users   map[int64]*member.User
	actions []string
	nextID  int64
	now     time.Time
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[int64]*member.User{}, now: date(2024, 1, 1, 0, 0)}
}

func (f *fakeUsers) add(telegramID int64, joined time.Time) *member.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	u := &member.User{ID: f.nextID, TelegramID: telegramID, JoinDate: joined, LastActivity: joined}
	f.users[telegramID] = u
	return u
}

func (f *fakeUsers) Upsert(_ context.Context, p member.Profile, inviteCode string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[p.TelegramID]
	if !ok {
		f.nextID++
		u = &member.User{ID: f.nextID, TelegramID: p.TelegramID, JoinDate: f.now}
		f.users[p.TelegramID] = u
	}
	u.Username = sql.NullString{String: p.Username, Valid: p.Username != ""}
	u.FirstName = sql.NullString{String: p.FirstName, Valid: p.FirstName != ""}
	u.LastName = sql.NullString{String: p.LastName, Valid: p.LastName != ""}
	if inviteCode != "" && !u.InviteCode.Valid {
		u.InviteCode = sql.NullString{String: inviteCode, Valid: true}
	}
	return nil
}

func (f *fakeUsers) GetByTelegramID(_ context.Context, id int64) (*member.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, idb.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) sorted(match func(*member.User) bool) []*member.User {
	out := make([]*member.User, 0)
	for _, u := range f.users {
		if match(u) {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeUsers) ListActive(context.Context) ([]*member.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sorted(func(u *member.User) bool { return !u.IsBanned }), nil
}

func (f *fakeUsers) match(flt member.Filter) func(*member.User) bool {
	search := strings.ToLower(strings.TrimSpace(flt.Search))
	return func(u *member.User) bool {
		if flt.IsBanned != nil && u.IsBanned != *flt.IsBanned {
			return false
		}
		if search == "" {
			return true
		}
		for _, v := range []string{u.Username.String, u.FirstName.String, u.LastName.String, strconv.FormatInt(u.TelegramID, 10)} {
			if strings.Contains(strings.ToLower(v), search) {
				return true
			}
		}
		return false
	}
}

func (f *fakeUsers) List(_ context.Context, flt member.Filter) ([]*member.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.sorted(f.match(flt))
	if flt.Offset >= len(all) {
		return nil, nil
	}
	all = all[flt.Offset:]
	if flt.Limit > 0 && len(all) > flt.Limit {
		all = all[:flt.Limit]
	}
	return all, nil
}

func (f *fakeUsers) Count(_ context.Context, flt member.Filter) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sorted(f.match(flt))), nil
}

func (f *fakeUsers) setBanned(id int64, banned bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return idb.ErrUserNotFound
	}
	u.IsBanned = banned
	return nil
}

func (f *fakeUsers) Ban(_ context.Context, id int64) error   { return f.setBanned(id, true) }
func (f *fakeUsers) Unban(_ context.Context, id int64) error { return f.setBanned(id, false) }

func (f *fakeUsers) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return idb.ErrUserNotFound
	}
	delete(f.users, id)
	return nil
}

func (f *fakeUsers) Touch(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return idb.ErrUserNotFound
	}
	return nil
}

func (f *fakeUsers) LogAction(_ context.Context, _ int64, actionType, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, actionType)
	return nil
}

func (f *fakeUsers) countAction(action string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, a := range f.actions {
		if a == action {
			n++
		}
	}
	return n
}

func (f *fakeUsers) Stats(context.Context) (*member.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := &member.Stats{TotalUsers: len(f.users)}
	for _, u := range f.users {
		if u.IsBanned {
			st.BannedUsers++
		}
	}
	return st, nil
}

// fakeContent implements content.Repository, content.Ledger and content.BroadcastRepository.

type fakeContent struct {
	mu         sync.Mutex
	items      []*content.Item
	delivered  map[[2]int64]int
	broadcasts []*content.Broadcast
	markErr    error
}

func newFakeContent(items ...*content.Item) *fakeContent {
	return &fakeContent{items: items, delivered: map[[2]int64]int{}}
}

func (f *fakeContent) ListActive(context.Context) ([]*content.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*content.Item, 0, len(f.items))
	for _, it := range f.items {
		if it.IsActive {
			out = append(out, it)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DayNumber != out[j].DayNumber {
			return out[i].DayNumber < out[j].DayNumber
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (f *fakeContent) GetByID(_ context.Context, id int64) (*content.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range f.items {
		if it.ID == id {
			return it, nil
		}
	}
	return nil, idb.ErrItemNotFound
}

func (f *fakeContent) WasDelivered(_ context.Context, userID, itemID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.delivered[[2]int64{userID, itemID}] > 0, nil
}

func (f *fakeContent) MarkDelivered(_ context.Context, userID, itemID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	f.delivered[[2]int64{userID, itemID}]++
	return nil
}

func (f *fakeContent) Create(_ context.Context, b *content.Broadcast) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b.ID = int64(len(f.broadcasts) + 1)
	f.broadcasts = append(f.broadcasts, b)
	return nil
}

func (f *fakeContent) ListDue(_ context.Context, now time.Time) ([]*content.Broadcast, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var due []*content.Broadcast
	for _, b := range f.broadcasts {
		if !b.IsSent && !b.ScheduledTime.After(now) {
			due = append(due, b)
		}
	}
	return due, nil
}

func (f *fakeContent) MarkSent(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.broadcasts {
		if b.ID == id {
			b.IsSent = true
			return nil
		}
	}
	return idb.ErrBroadcastNotFound
}

// fakeOnboarding

type fakeOnboarding struct {
	mu        sync.Mutex
	questions []*onboarding.Question
	states    map[int64]*onboarding.State
	answers   map[[2]int64]string
	answerErr error
}

func newFakeOnboarding(questions ...*onboarding.Question) *fakeOnboarding {
	return &fakeOnboarding{questions: questions, states: map[int64]*onboarding.State{}, answers: map[[2]int64]string{}}
}

func (f *fakeOnboarding) ListActiveQuestions(context.Context) ([]*onboarding.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*onboarding.Question, 0, len(f.questions))
	for _, q := range f.questions {
		if q.IsActive {
			out = append(out, q)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].OrderNumber != out[j].OrderNumber {
			return out[i].OrderNumber < out[j].OrderNumber
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (f *fakeOnboarding) GetQuestion(_ context.Context, id int64) (*onboarding.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, q := range f.questions {
		if q.ID == id {
			return q, nil
		}
	}
	return nil, idb.ErrQuestionNotFound
}

func (f *fakeOnboarding) GetState(_ context.Context, userID int64) (*onboarding.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.states[userID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (f *fakeOnboarding) SetCurrentQuestion(_ context.Context, userID, questionID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[userID] = &onboarding.State{UserID: userID, CurrentQuestionID: sql.NullInt64{Int64: questionID, Valid: true}}
	return nil
}

func (f *fakeOnboarding) AdvanceQuestion(_ context.Context, userID, from, to int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.states[userID]
	if !ok || s.CompletedAt.Valid || s.CurrentQuestionID.Int64 != from {
		return false, nil
	}
	s.CurrentQuestionID = sql.NullInt64{Int64: to, Valid: true}
	return true, nil
}

func (f *fakeOnboarding) MarkCompleted(_ context.Context, userID, from int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.states[userID]
	if !ok || s.CompletedAt.Valid || s.CurrentQuestionID.Int64 != from {
		return false, nil
	}
	s.CurrentQuestionID = sql.NullInt64{}
	s.CompletedAt = sql.NullTime{Time: time.Now(), Valid: true}
	return true, nil
}

func (f *fakeOnboarding) UpsertAnswer(_ context.Context, a *onboarding.Answer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.answerErr != nil {
		return f.answerErr
	}
	f.answers[[2]int64{a.UserID, a.QuestionID}] = a.Text
	return nil
}

// fakeRequests

type fakeRequests struct {
	mu   sync.Mutex
	reqs []*joinrequest.Request
}

func (f *fakeRequests) Upsert(_ context.Context, r *joinrequest.Request) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.reqs {
		if existing.UserID == r.UserID && existing.ChatID == r.ChatID {
			existing.Status = joinrequest.StatusPending
			existing.ProcessedAt = sql.NullTime{}
			r.ID = existing.ID
			return false, nil
		}
	}
	cp := *r
	cp.ID = int64(len(f.reqs) + 1)
	cp.Status = joinrequest.StatusPending
	f.reqs = append(f.reqs, &cp)
	r.ID = cp.ID
	return true, nil
}

func (f *fakeRequests) GetByID(_ context.Context, id int64) (*joinrequest.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.reqs {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, idb.ErrJoinRequestNotFound
}

func (f *fakeRequests) ListByStatus(_ context.Context, status joinrequest.Status, chatID int64, limit, offset int) ([]*joinrequest.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*joinrequest.Request
	for _, r := range f.reqs {
		if r.Status == status && (chatID == 0 || r.ChatID == chatID) {
			cp := *r
			out = append(out, &cp)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRequests) CountByStatus(_ context.Context, status joinrequest.Status) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.reqs {
		if r.Status == status {
			n++
		}
	}
	return n, nil
}

func (f *fakeRequests) ListByUser(_ context.Context, userID int64) ([]*joinrequest.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*joinrequest.Request
	for _, r := range f.reqs {
		if r.UserID == userID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeRequests) decide(id int64, status joinrequest.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.reqs {
		if r.ID == id && r.Status == joinrequest.StatusPending {
			r.Status = status
			return nil
		}
	}
	return idb.ErrJoinRequestNotFound
}

func (f *fakeRequests) Approve(_ context.Context, id int64) error {
	return f.decide(id, joinrequest.StatusApproved)
}

func (f *fakeRequests) Deny(_ context.Context, id int64) error {
	return f.decide(id, joinrequest.StatusDenied)
}

func (f *fakeRequests) status(id int64) joinrequest.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.reqs {
		if r.ID == id {
			return r.Status
		}
	}
	return ""
}

// fakeSettings

type fakeSettings struct {
	mu     sync.Mutex
	values map[string]string
}

func newFakeSettings(kv ...string) *fakeSettings {
	s := &fakeSettings{values: map[string]string{}}
	for i := 0; i+1 < len(kv); i += 2 {
		s.values[kv[i]] = kv[i+1]
	}
	return s
}

func (f *fakeSettings) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *fakeSettings) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return nil
}

// fakeInvites

type fakeInvites map[string]*invite.Link

func (f fakeInvites) GetByCode(_ context.Context, code string) (*invite.Link, error) {
	if l, ok := f[code]; ok {
		return l, nil
	}
	return nil, idb.ErrInviteLinkNotFound
}

// fakeMenu

type fakeMenu struct {
	items []*menu.Item
	loads int
}

func (f *fakeMenu) ListActive(context.Context) ([]*menu.Item, error) {
	f.loads++
	return f.items, nil
}

// recordingClient

type sentMessage struct {
	To      int64
	Text    string
	Media   content.Media
	Options *domainTelegram.SendOptions
}

type recordingClient struct {
	mu        sync.Mutex
	sent      []sentMessage
	failFor   map[int64]error
	approved  [][2]int64
	declined  [][2]int64
	approveFn func(chatID, userID int64) error

	memberLookups [][2]int64
	memberErr     error
}

func newRecordingClient() *recordingClient {
	return &recordingClient{failFor: map[int64]error{}}
}

var errSendFailed = errors.New("send failed")

func (c *recordingClient) SendMessage(to int64, text string, opts *domainTelegram.SendOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.failFor[to]; err != nil {
		return err
	}
	c.sent = append(c.sent, sentMessage{To: to, Text: text, Options: opts})
	return nil
}

func (c *recordingClient) SendMedia(to int64, m content.Media, caption string, opts *domainTelegram.SendOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.failFor[to]; err != nil {
		return err
	}
	c.sent = append(c.sent, sentMessage{To: to, Text: caption, Media: m, Options: opts})
	return nil
}

func (c *recordingClient) ApproveJoinRequest(chatID, userID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.approveFn != nil {
		if err := c.approveFn(chatID, userID); err != nil {
			return err
		}
	}
	c.approved = append(c.approved, [2]int64{chatID, userID})
	return nil
}

func (c *recordingClient) DeclineJoinRequest(chatID, userID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.declined = append(c.declined, [2]int64{chatID, userID})
	return nil
}

func (c *recordingClient) ChatMember(chatID, userID int64) (*domainTelegram.MemberInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.memberLookups = append(c.memberLookups, [2]int64{chatID, userID})
	if c.memberErr != nil {
		return nil, c.memberErr
	}
	return &domainTelegram.MemberInfo{Status: "member", IsMember: true}, nil
}

func (c *recordingClient) messagesTo(id int64) []sentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []sentMessage
	for _, m := range c.sent {
		if m.To == id {
			out = append(out, m)
		}
	}
	return out
}

func (c *recordingClient) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}
