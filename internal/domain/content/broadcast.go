package content

import (
	"database/sql"
	"time"
)

// Broadcast is a one-off message delivered to every non-banned user once
// its scheduled time has passed.
type Broadcast struct {
	ID            int64
	Text          string
	HTMLText      sql.NullString
	ScheduledTime time.Time
	IsSent        bool
	CreatedAt     time.Time
}

// Body returns the rich text when present, otherwise the plain text.
func (b *Broadcast) Body() (text string, html bool) {
	if b.HTMLText.Valid && b.HTMLText.String != "" {
		return b.HTMLText.String, true
	}
	return b.Text, false
}
