package content

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultSendTime is used for day >= 1 items without an explicit send time.
const DefaultSendTime = "09:00"

// ErrInvalidSendTime is returned when send_time is not a valid "HH:MM".
var ErrInvalidSendTime = errors.New("invalid send_time")

// ParseSendTime parses "HH:MM" into hour and minute.
func ParseSendTime(s string) (hour, minute int, err error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidSendTime, s)
	}
	hour, errH := strconv.Atoi(h)
	minute, errM := strconv.Atoi(m)
	if errH != nil || errM != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidSendTime, s)
	}
	return hour, minute, nil
}

// DaysSinceJoin returns the number of whole days elapsed between joinDate and now.
func DaysSinceJoin(joinDate, now time.Time) int {
	d := now.Sub(joinDate)
	if d < 0 {
		return -1
	}
	return int(d / (24 * time.Hour))
}

// TriggerTime computes the moment the item becomes due for a user who joined at joinDate.
// Both values are interpreted in UTC.
func (it *Item) TriggerTime(joinDate time.Time) (time.Time, error) {
	joinDate = joinDate.UTC()
	extra := time.Duration(it.AdditionalMinutes) * time.Minute
	if it.DayNumber == 0 {
		return joinDate.Add(extra), nil
	}
	sendTime := DefaultSendTime
	if it.SendTime.Valid && strings.TrimSpace(it.SendTime.String) != "" {
		sendTime = it.SendTime.String
	}
	hour, minute, err := ParseSendTime(sendTime)
	if err != nil {
		return time.Time{}, err
	}
	day := time.Date(joinDate.Year(), joinDate.Month(), joinDate.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, it.DayNumber)
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute + extra), nil
}

// Due evaluates the send-window predicate for one user at now.
// Day 0 items stay eligible for the rest of day 0 once triggered; later items
// are only eligible inside [trigger, trigger+window).
func (it *Item) Due(joinDate, now time.Time, window time.Duration) (bool, error) {
	now = now.UTC()
	if DaysSinceJoin(joinDate, now) != it.DayNumber {
		return false, nil
	}
	trigger, err := it.TriggerTime(joinDate)
	if err != nil {
		return false, err
	}
	if now.Before(trigger) {
		return false, nil
	}
	if it.DayNumber == 0 {
		return true, nil
	}
	return now.Before(trigger.Add(window)), nil
}
