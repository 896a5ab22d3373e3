package joinrequest

import (
	"database/sql"
	"time"
)

// Status of a join request. Only pending requests can be approved or denied.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
)

// Request is a user's request to enter a restricted chat.
type Request struct {
	ID          int64
	UserID      int64
	ChatID      int64
	Username    sql.NullString
	FirstName   sql.NullString
	LastName    sql.NullString
	Status      Status
	RequestedAt time.Time
	ProcessedAt sql.NullTime
}

// IsPending reports whether the request still awaits a decision.
func (r *Request) IsPending() bool {
	return r.Status == StatusPending
}
