package app

import (
	"database/sql"

	"inviter_bot/internal/domain/content"
	"inviter_bot/internal/domain/onboarding"
	domainTelegram "inviter_bot/internal/domain/telegram"
)

const (
	viewedButtonText   = "👁 Mark as Viewed"
	viewedDoneText     = "✓ Viewed"
	textAnswerSuffix   = "\n\nPlease type your answer:"
	inlineMenuPrompt   = "Choose an option:"
	menuPrompt         = "Use the menu below to interact with the bot."
	welcomeOnboarding  = "Welcome! Please answer a few questions to get started."
	joinRequestWelcome = "Thank you for your interest! Please complete the questions below to proceed."
	answerRecorded     = "✓ Answer recorded"
	onboardingDone     = "✅ Thank you for completing the onboarding! Welcome to our community."
	answerError        = "Error processing your answer. Please try again."
	menuLoadError      = "Error loading menu options"
)

// ItemMarkup builds the inline keyboard of a delivered item: its configured
// link buttons followed by the "mark as viewed" button.
func ItemMarkup(it *content.Item) *domainTelegram.Markup {
	var rows [][]domainTelegram.Button
	for _, row := range it.Buttons() {
		rows = append(rows, linkRow(row))
	}
	rows = append(rows, []domainTelegram.Button{{Text: viewedButtonText, Data: ViewedPayload(it.ID)}})
	return &domainTelegram.Markup{Inline: rows}
}

// ViewedMarkup is the keyboard that replaces an item's buttons once viewed.
func ViewedMarkup(itemID int64) *domainTelegram.Markup {
	return &domainTelegram.Markup{Inline: [][]domainTelegram.Button{
		{{Text: viewedDoneText, Data: AlreadyViewedPayload(itemID)}},
	}}
}

// QuestionMarkup renders each option of a choice question as its own row.
func QuestionMarkup(q *onboarding.Question) *domainTelegram.Markup {
	if !q.IsChoice() || len(q.Options) == 0 {
		return nil
	}
	rows := make([][]domainTelegram.Button, 0, len(q.Options))
	for _, opt := range q.Options {
		rows = append(rows, []domainTelegram.Button{{Text: opt, Data: AnswerPayload(q.ID, opt)}})
	}
	return &domainTelegram.Markup{Inline: rows}
}

func linkRow(row []content.LinkButton) []domainTelegram.Button {
	out := make([]domainTelegram.Button, 0, len(row))
	for _, b := range row {
		out = append(out, domainTelegram.Button{Text: b.Text, URL: b.URL})
	}
	return out
}

func parseMode(html bool) domainTelegram.ParseMode {
	if html {
		return domainTelegram.ParseHTML
	}
	return domainTelegram.ParsePlain
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
