package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"mikopo-backend/internal/domain/event"
	"mikopo-backend/internal/usecase/penalty"
	"mikopo-backend/internal/usecase/reconcile"
)

const jobTimeout = 10 * time.Minute

// Scheduler owns the background sweeps: the nightly penalty assessment and
// the stale-intent expiry. Jobs dispatch their events the same way handlers
// do, after the sweep's transactions have committed.
type Scheduler struct {
	cron     *cron.Cron
	log      *logrus.Logger
	dispatch *event.Dispatcher
}

func New(log *logrus.Logger, dispatch *event.Dispatcher) *Scheduler {
	return &Scheduler{cron: cron.New(), log: log, dispatch: dispatch}
}

// RegisterPenaltySweep schedules AssessOverdue with a standard 5-field cron
// spec, e.g. "30 1 * * *" for 01:30 daily.
func (s *Scheduler) RegisterPenaltySweep(spec string, u *penalty.Usecase) error {
	_, err := s.cron.AddFunc(spec, func() { s.runPenaltySweep(u) })
	return err
}

// RegisterExpirySweep schedules ExpireStale, e.g. "*/10 * * * *".
func (s *Scheduler) RegisterExpirySweep(spec string, u *reconcile.Usecase) error {
	_, err := s.cron.AddFunc(spec, func() { s.runExpirySweep(u) })
	return err
}

func (s *Scheduler) runPenaltySweep(u *penalty.Usecase) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	res, err := u.AssessOverdue(ctx, time.Now().UTC())
	if err != nil {
		s.log.WithError(err).Error("penalty sweep failed")
		return
	}
	s.dispatch.Dispatch(res.Events...)
	s.log.WithFields(logrus.Fields{
		"loans":     res.LoansProcessed,
		"penalties": res.PenaltiesAssessed,
		"assessed":  res.TotalAssessed,
	}).Info("penalty sweep finished")
}

func (s *Scheduler) runExpirySweep(u *reconcile.Usecase) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n, events, err := u.ExpireStale(ctx, time.Now().UTC())
	if err != nil {
		s.log.WithError(err).Error("intent expiry sweep failed")
		return
	}
	s.dispatch.Dispatch(events...)
	if n > 0 {
		s.log.WithField("expired", n).Info("expired stale payment intents")
	}
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() { <-s.cron.Stop().Done() }
