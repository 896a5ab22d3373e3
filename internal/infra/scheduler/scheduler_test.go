package scheduler

import (
	"context"
	"io"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
)

type countingTicker struct {
	ticks       atomic.Int32
	hadDeadline atomic.Bool
}

func (c *countingTicker) Tick(ctx context.Context) {
	_, ok := ctx.Deadline()
	c.hadDeadline.Store(ok)
	c.ticks.Add(1)
}

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestStartRejectsInvalidSpec(t *testing.T) {
	s := NewDeliveryScheduler(&countingTicker{}, "every now and then", testLogger())
	if err := s.Start(); err == nil {
		t.Fatal("expected an error for an invalid cron spec")
	}
}

func TestRunTickHasNoDeadline(t *testing.T) {
	ticker := &countingTicker{}
	s := NewDeliveryScheduler(ticker, "@every 1m", testLogger())
	s.runTick()
	if ticker.ticks.Load() != 1 {
		t.Fatalf("expected one tick, got %d", ticker.ticks.Load())
	}
	if ticker.hadDeadline.Load() {
		t.Fatal("a tick must run to completion, its context must not carry a deadline")
	}
}

func TestStartStop(t *testing.T) {
	s := NewDeliveryScheduler(&countingTicker{}, "@every 1h", testLogger())
	if err := s.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Stop()
}
