package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Ticker is the unit of work run on every scheduler tick.
type Ticker interface {
	Tick(ctx context.Context)
}

// DeliveryScheduler runs the delivery sweeps on a cron schedule. A tick that
// overruns its period delays the next one instead of overlapping it, and an
// in-flight tick is never cancelled: Stop waits for it to finish.
type DeliveryScheduler struct {
	cronEngine *cron.Cron
	ticker     Ticker
	spec       string
	logger     *logrus.Entry
}

func NewDeliveryScheduler(ticker Ticker, spec string, logger *logrus.Entry) *DeliveryScheduler {
	cronLogger := cron.PrintfLogger(logger)
	return &DeliveryScheduler{
		cronEngine: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.Recover(cronLogger), cron.DelayIfStillRunning(cronLogger)),
		),
		ticker: ticker,
		spec:   spec,
		logger: logger,
	}
}

// Start registers the tick job and starts the cron engine.
func (s *DeliveryScheduler) Start() error {
	s.logger.Info("Starting delivery scheduler...")

	_, err := s.cronEngine.AddFunc(s.spec, s.runTick)
	if err != nil {
		return err
	}

	s.cronEngine.Start()
	s.logger.WithField("spec", s.spec).Info("Delivery scheduler started")
	return nil
}

func (s *DeliveryScheduler) runTick() {
	tickID := uuid.NewString()
	log := s.logger.WithField("tick_id", tickID)
	log.Debug("Delivery tick started")

	start := time.Now()
	s.ticker.Tick(context.Background())
	log.WithField("duration", time.Since(start).String()).Debug("Delivery tick finished")
}

func (s *DeliveryScheduler) Stop() {
	s.logger.Info("Stopping delivery scheduler...")
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()
	s.logger.Info("Delivery scheduler gracefully stopped.")
}
