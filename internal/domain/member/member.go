package member

import (
	"database/sql"
	"strings"
	"time"
)

// User represents a Telegram user known to the bot.
type User struct {
	ID           int64
	TelegramID   int64
	Username     sql.NullString
	FirstName    sql.NullString
	LastName     sql.NullString
	IsBanned     bool
	InviteCode   sql.NullString // Acquisition code captured from the /start payload
	JoinDate     time.Time      // UTC
	LastActivity time.Time
}

// Profile carries the name fields reported by Telegram on an inbound event.
type Profile struct {
	TelegramID int64
	Username   string
	FirstName  string
	LastName   string
}

// DisplayName returns the best human readable name for the user.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName.String + " " + u.LastName.String)
	if name != "" {
		return name
	}
	if u.Username.Valid && u.Username.String != "" {
		return "@" + u.Username.String
	}
	return "unknown"
}

// Filter narrows user listings for the admin surface.
type Filter struct {
	Search   string
	IsBanned *bool
	Limit    int
	Offset   int
}

// Stats is an aggregate snapshot of the user base.
type Stats struct {
	TotalUsers  int
	BannedUsers int
	JoinedToday int
}

// Action types written to the activity log.
const (
	ActionStart                 = "start"
	ActionAnsweredQuestion      = "answered_question"
	ActionJoinRequest           = "join_request"
	ActionAutoApproved          = "auto_approved"
	ActionJoinChannel           = "join_channel"
	ActionLeaveChannel          = "leave_channel"
	ActionReceivedStaticMessage = "received_static_message"
	ActionReceivedMessage       = "received_message"
	ActionViewedMessage         = "viewed_message"
)
