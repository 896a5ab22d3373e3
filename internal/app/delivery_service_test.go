package app

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"inviter_bot/internal/domain/content"
	domainTelegram "inviter_bot/internal/domain/telegram"
)

func dripItem(id int64, day int, sendTime string) *content.Item {
	it := &content.Item{ID: id, DayNumber: day, Text: "item", IsActive: true, Media: content.Media{Kind: content.MediaText}}
	if sendTime != "" {
		it.SendTime = sql.NullString{String: sendTime, Valid: true}
	}
	return it
}

func newTestDelivery(users *fakeUsers, store *fakeContent, client *recordingClient) *DeliveryService {
	return NewDeliveryService(users, store, store, store, client, DeliveryConfig{}, testLogger())
}

func TestDeliverDueWindows(t *testing.T) {
	joined := date(2024, 1, 1, 0, 0)
	cases := []struct {
		name     string
		item     *content.Item
		now      time.Time
		wantSent int
	}{
		{"day 0 right after join", dripItem(1, 0, ""), date(2024, 1, 1, 0, 1), 1},
		{"day 0 late the same day", dripItem(1, 0, ""), date(2024, 1, 1, 23, 59), 1},
		{"day 0 additional minutes not reached", &content.Item{ID: 1, Text: "x", IsActive: true, AdditionalMinutes: 30}, date(2024, 1, 1, 0, 10), 0},
		{"day 0 next day", dripItem(1, 0, ""), date(2024, 1, 2, 0, 1), 0},
		{"day 2 at trigger", dripItem(2, 2, "09:00"), date(2024, 1, 3, 9, 0), 1},
		{"day 2 inside window", dripItem(2, 2, "09:00"), date(2024, 1, 3, 9, 4), 1},
		{"day 2 window closed", dripItem(2, 2, "09:00"), date(2024, 1, 3, 9, 6), 0},
		{"day 2 before trigger", dripItem(2, 2, "09:00"), date(2024, 1, 3, 8, 59), 0},
		{"day 2 default send time", dripItem(2, 2, ""), date(2024, 1, 3, 9, 2), 1},
		{"day 2 on wrong day", dripItem(2, 2, "09:00"), date(2024, 1, 4, 9, 0), 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			users := newFakeUsers()
			users.add(100, joined)
			client := newRecordingClient()
			svc := newTestDelivery(users, newFakeContent(tc.item), client)

			report, err := svc.DeliverDue(context.Background(), tc.now)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if report.Sent != tc.wantSent {
				t.Fatalf("expected %d sent, got %d", tc.wantSent, report.Sent)
			}
			if client.count() != tc.wantSent {
				t.Fatalf("expected %d messages, got %d", tc.wantSent, client.count())
			}
		})
	}
}

func TestDeliverDueSkipsInvalidSendTime(t *testing.T) {
	users := newFakeUsers()
	users.add(100, date(2024, 1, 1, 0, 0))
	client := newRecordingClient()
	store := newFakeContent(dripItem(2, 2, "09:00"), dripItem(3, 2, "25:99"))
	svc := newTestDelivery(users, store, client)

	report, err := svc.DeliverDue(context.Background(), date(2024, 1, 3, 9, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Sent != 1 || report.Skipped != 1 {
		t.Fatalf("expected 1 sent and 1 skipped, got %+v", report)
	}
	if delivered, _ := store.WasDelivered(context.Background(), 100, 3); delivered {
		t.Fatal("malformed item must not be recorded as delivered")
	}
}

func TestDeliverDueExactlyOnceAcrossTicks(t *testing.T) {
	users := newFakeUsers()
	users.add(100, date(2024, 1, 1, 0, 0))
	users.add(200, date(2024, 1, 1, 0, 0))
	client := newRecordingClient()
	store := newFakeContent(dripItem(2, 2, "09:00"))
	svc := newTestDelivery(users, store, client)

	for _, now := range []time.Time{
		date(2024, 1, 3, 9, 0),
		date(2024, 1, 3, 9, 1),
		date(2024, 1, 3, 9, 2),
		date(2024, 1, 3, 9, 4),
	} {
		if _, err := svc.DeliverDue(context.Background(), now); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	for _, id := range []int64{100, 200} {
		if n := len(client.messagesTo(id)); n != 1 {
			t.Fatalf("user %d: expected exactly 1 delivery, got %d", id, n)
		}
	}
}

func TestDeliverDueSkipsBannedUsers(t *testing.T) {
	users := newFakeUsers()
	users.add(100, date(2024, 1, 1, 0, 0))
	users.add(200, date(2024, 1, 1, 0, 0))
	_ = users.Ban(context.Background(), 200)
	client := newRecordingClient()
	svc := newTestDelivery(users, newFakeContent(dripItem(1, 0, "")), client)

	if _, err := svc.DeliverDue(context.Background(), date(2024, 1, 1, 1, 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(client.messagesTo(200)) != 0 {
		t.Fatal("banned user must not receive drip content")
	}
	if len(client.messagesTo(100)) != 1 {
		t.Fatal("active user should receive drip content")
	}
}

func TestDeliverRecordsLedgerOnSendFailure(t *testing.T) {
	users := newFakeUsers()
	users.add(100, date(2024, 1, 1, 0, 0))
	client := newRecordingClient()
	client.failFor[100] = errSendFailed
	store := newFakeContent(dripItem(1, 0, ""))
	svc := newTestDelivery(users, store, client)

	report, err := svc.DeliverDue(context.Background(), date(2024, 1, 1, 0, 5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Failed != 1 {
		t.Fatalf("expected 1 failure, got %+v", report)
	}
	if delivered, _ := store.WasDelivered(context.Background(), 100, 1); !delivered {
		t.Fatal("a failed attempt must still be recorded in the ledger")
	}

	report, _ = svc.DeliverDue(context.Background(), date(2024, 1, 1, 0, 6))
	if report.Failed != 0 || report.Sent != 0 {
		t.Fatalf("pair must not be retried, got %+v", report)
	}
}

func TestDeliverMediaFallbacks(t *testing.T) {
	cases := []struct {
		name      string
		media     content.Media
		wantMedia bool
	}{
		{"photo with file", content.Media{Kind: content.MediaPhoto, FileID: "abc"}, true},
		{"photo without file", content.Media{Kind: content.MediaPhoto}, false},
		{"unknown kind", content.Media{Kind: content.MediaKind("hologram"), FileID: "abc"}, false},
		{"text", content.Media{Kind: content.MediaText}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			users := newFakeUsers()
			users.add(100, date(2024, 1, 1, 0, 0))
			client := newRecordingClient()
			it := dripItem(1, 0, "")
			it.Media = tc.media
			svc := newTestDelivery(users, newFakeContent(it), client)

			if _, err := svc.DeliverDue(context.Background(), date(2024, 1, 1, 0, 1)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			msgs := client.messagesTo(100)
			if len(msgs) != 1 {
				t.Fatalf("expected 1 message, got %d", len(msgs))
			}
			if got := msgs[0].Media.HasFile(); got != tc.wantMedia {
				t.Fatalf("expected media=%v, got %v", tc.wantMedia, got)
			}
			if msgs[0].Text != "item" {
				t.Fatalf("expected the item text, got %q", msgs[0].Text)
			}
		})
	}
}

func TestDeliverPrefersHTMLText(t *testing.T) {
	users := newFakeUsers()
	users.add(100, date(2024, 1, 1, 0, 0))
	client := newRecordingClient()
	it := dripItem(1, 0, "")
	it.HTMLText = sql.NullString{String: "<b>item</b>", Valid: true}
	svc := newTestDelivery(users, newFakeContent(it), client)

	if _, err := svc.DeliverDue(context.Background(), date(2024, 1, 1, 0, 1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	msgs := client.messagesTo(100)
	if len(msgs) != 1 || msgs[0].Text != "<b>item</b>" || msgs[0].Options.ParseMode != domainTelegram.ParseHTML {
		t.Fatalf("expected an HTML message, got %+v", msgs)
	}
}

func TestDispatchDueBroadcastsMarksOnceDespiteFailures(t *testing.T) {
	users := newFakeUsers()
	users.add(100, date(2024, 1, 1, 0, 0))
	users.add(200, date(2024, 1, 1, 0, 0))
	client := newRecordingClient()
	client.failFor[200] = errSendFailed
	store := newFakeContent()
	_ = store.Create(context.Background(), &content.Broadcast{Text: "hello", ScheduledTime: date(2024, 1, 1, 12, 0)})
	_ = store.Create(context.Background(), &content.Broadcast{Text: "later", ScheduledTime: date(2024, 1, 2, 12, 0)})
	svc := newTestDelivery(users, store, client)

	n, err := svc.DispatchDueBroadcasts(context.Background(), date(2024, 1, 1, 12, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 broadcast dispatched, got %d", n)
	}
	if !store.broadcasts[0].IsSent || store.broadcasts[1].IsSent {
		t.Fatal("only the due broadcast should be marked sent")
	}

	n, _ = svc.DispatchDueBroadcasts(context.Background(), date(2024, 1, 1, 12, 2))
	if n != 0 {
		t.Fatalf("a sent broadcast must not be dispatched again, got %d", n)
	}
	if got := len(client.messagesTo(100)); got != 1 {
		t.Fatalf("expected user 100 to get the broadcast once, got %d", got)
	}
}

func TestSendNextSameDayChainsInIDOrder(t *testing.T) {
	users := newFakeUsers()
	users.add(100, date(2024, 1, 1, 0, 0))
	client := newRecordingClient()
	store := newFakeContent(dripItem(5, 1, ""), dripItem(7, 1, ""), dripItem(6, 1, ""), dripItem(8, 2, ""))
	_ = store.MarkDelivered(context.Background(), 100, 5)
	svc := newTestDelivery(users, store, client)
	ctx := context.Background()

	for _, want := range []int64{6, 7} {
		sent, err := svc.SendNextSameDay(ctx, 100, 5)
		if err != nil || !sent {
			t.Fatalf("expected item %d to be sent, got sent=%v err=%v", want, sent, err)
		}
		if delivered, _ := store.WasDelivered(ctx, 100, want); !delivered {
			t.Fatalf("expected item %d in the ledger", want)
		}
	}

	sent, err := svc.SendNextSameDay(ctx, 100, 5)
	if err != nil || sent {
		t.Fatalf("expected nothing left for the day, got sent=%v err=%v", sent, err)
	}
	if delivered, _ := store.WasDelivered(ctx, 100, 8); delivered {
		t.Fatal("chaining must not cross into another day")
	}

	sent, err = svc.SendNextSameDay(ctx, 100, 999)
	if err != nil || sent {
		t.Fatalf("unknown item must be a no-op, got sent=%v err=%v", sent, err)
	}
}

func TestTickCompletesSlowBroadcastPassOnce(t *testing.T) {
	users := newFakeUsers()
	for id := int64(1); id <= 6; id++ {
		users.add(id, date(2024, 1, 1, 0, 0))
	}
	client := newRecordingClient()
	store := newFakeContent()
	_ = store.Create(context.Background(), &content.Broadcast{Text: "hello", ScheduledTime: date(2024, 1, 1, 12, 0)})
	svc := NewDeliveryService(users, store, store, store, client, DeliveryConfig{SendInterval: 20 * time.Millisecond}, testLogger())

	start := time.Now()
	svc.Tick(context.Background())
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Fatalf("expected the paced pass to take at least 80ms, took %s", elapsed)
	}
	if !store.broadcasts[0].IsSent {
		t.Fatal("broadcast must be marked sent after a full pass")
	}

	svc.Tick(context.Background())
	for id := int64(1); id <= 6; id++ {
		if got := len(client.messagesTo(id)); got != 1 {
			t.Fatalf("user %d: expected the broadcast exactly once, got %d", id, got)
		}
	}
}
