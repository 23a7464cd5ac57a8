package billing

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/trezcool/schoolhub/core"
)

// Scheduler periodically runs Service.AutoGenerate.
type Scheduler struct {
	svc      *Service
	interval time.Duration
	logger   core.Logger

	started  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewScheduler(conf *core.Config, svc *Service, logger core.Logger) *Scheduler {
	interval := conf.Billing.SchedulerInterval
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{
		svc:      svc,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs a first check right away, then one per interval, until Stop is called or ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.run(ctx)
		for {
			select {
			case <-ticker.C:
				s.run(ctx)
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the scheduler and waits for the running check to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	if s.started.Load() {
		<-s.done
	}
}

func (s *Scheduler) run(ctx context.Context) {
	counts, err := s.svc.AutoGenerate(ctx, core.NowFunc())
	if err != nil {
		s.logger.Error(fmt.Sprintf("billing scheduler: %v", err), err)
	}
	for kind, n := range counts {
		s.logger.Info(fmt.Sprintf("billing scheduler: generated %d %s records", n, kind))
	}
}
