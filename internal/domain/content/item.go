// Package content holds the drip catalog, the delivery ledger and one-off broadcasts.
package content

import (
	"database/sql"
)

// Item is a drip ("static") message keyed by a day offset from the user's join date.
type Item struct {
	ID                int64
	DayNumber         int
	Text              string
	HTMLText          sql.NullString
	Media             Media
	ButtonsConfig     sql.NullString
	SendTime          sql.NullString // "HH:MM", only meaningful for day >= 1
	AdditionalMinutes int
	IsActive          bool
}

// Body returns the rich text when present, otherwise the plain text.
func (it *Item) Body() (text string, html bool) {
	if it.HTMLText.Valid && it.HTMLText.String != "" {
		return it.HTMLText.String, true
	}
	return it.Text, false
}

// Buttons parses the configured link buttons. Invalid entries are skipped.
func (it *Item) Buttons() [][]LinkButton {
	if !it.ButtonsConfig.Valid {
		return nil
	}
	return ParseButtonsConfig(it.ButtonsConfig.String)
}
