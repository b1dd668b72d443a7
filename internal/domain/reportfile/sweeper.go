package reportfile

import (
	"context"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reportstore_sweep_runs_total",
		Help: "Completed sweeper passes",
	})

	sweepExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reportstore_sweep_expired_total",
		Help: "Records marked expired by the sweeper",
	})

	sweepDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reportstore_sweep_duration_seconds",
		Help:    "Duration of sweeper passes in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// Sweeper periodically marks TTL-expired records. It needs no
// distributed lock: every transition is CAS-based, so replicas racing
// on the same record resolve to exactly one winner.
type Sweeper struct {
	service  *Service
	interval time.Duration
}

func NewSweeper(service *Service, interval time.Duration) *Sweeper {
	return &Sweeper{service: service, interval: interval}
}

// RunOnce executes a single sweep pass against the current clock.
func (s *Sweeper) RunOnce(ctx context.Context) {
	res, err := s.service.Sweep(ctx, time.Now())

	sweepRunsTotal.Inc()
	sweepExpiredTotal.Add(float64(res.Expired))
	sweepDurationSeconds.Observe(res.Duration.Seconds())

	if err != nil {
		log.Printf("sweep_failed expired=%d skipped=%d errors=%d err=%v",
			res.Expired, res.Skipped, res.Errors, err)
		return
	}
	if res.Expired > 0 || res.Errors > 0 {
		log.Printf("sweep_done expired=%d skipped=%d errors=%d duration=%v",
			res.Expired, res.Skipped, res.Errors, res.Duration)
	}
}

// Start launches the periodic sweep goroutine. Closing the returned
// channel (or cancelling ctx) stops it.
func (s *Sweeper) Start(ctx context.Context) chan struct{} {
	stopCh := make(chan struct{})

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.RunOnce(ctx)
			case <-stopCh:
				log.Println("sweeper stopped")
				return
			case <-ctx.Done():
				log.Println("sweeper stopped (context done)")
				return
			}
		}
	}()

	log.Printf("sweeper started interval=%v", s.interval)
	return stopCh
}
