package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidApprovalMode is returned for a mode outside off, immediate and after_messages.
var ErrInvalidApprovalMode = errors.New("invalid approval mode")

// Well-known setting keys.
const (
	KeyAutoApproveMode = "auto_approve_mode"
	KeyBotToken        = "bot_token"
)

// ApprovalMode controls automatic approval of join requests.
type ApprovalMode string

const (
	ApprovalOff           ApprovalMode = "off"
	ApprovalImmediate     ApprovalMode = "immediate"
	ApprovalAfterMessages ApprovalMode = "after_messages"
)

// ParseApprovalMode parses a stored or typed mode. An empty value means off.
func ParseApprovalMode(raw string) (ApprovalMode, error) {
	switch m := ApprovalMode(strings.ToLower(strings.TrimSpace(raw))); m {
	case "", ApprovalOff:
		return ApprovalOff, nil
	case ApprovalImmediate, ApprovalAfterMessages:
		return m, nil
	default:
		return ApprovalOff, fmt.Errorf("%w: %q", ErrInvalidApprovalMode, raw)
	}
}

// Repository is a simple key/value store for runtime settings.
type Repository interface {
	// Get returns found=false when the key is not set.
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
}
