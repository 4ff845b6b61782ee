package settlement

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/swairua/zira-edu-connect-sub010/internal/pkg/env"
)

// Sweeper periodically expires gateway_pending intents whose callback
// never arrived.
type Sweeper struct {
	service  *Service
	interval time.Duration
	ticker   *time.Ticker
	stopCh   chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
}

// NewSweeper creates a sweeper over the given service. The interval comes
// from SETTLEMENT_SWEEP_INTERVAL_SECONDS, defaulting to 60.
func NewSweeper(service *Service) *Sweeper {
	interval := 60
	if v, err := strconv.Atoi(env.GetEnv("SETTLEMENT_SWEEP_INTERVAL_SECONDS", "60")); err == nil && v > 0 {
		interval = v
	}
	return &Sweeper{
		service:  service,
		interval: time.Duration(interval) * time.Second,
	}
}

// Start launches the background sweep loop.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	s.stopCh = make(chan struct{})
	s.running = true
	s.ticker = time.NewTicker(s.interval)
	s.wg.Add(1)
	go s.worker()

	log.Infof("[Settlement Sweeper] Started (interval: %s, pending timeout: %s)", s.interval, s.service.PendingTimeout())
}

// Stop halts the sweep loop and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.ticker.Stop()
	close(s.stopCh)
	s.running = false
	s.wg.Wait()

	log.Info("[Settlement Sweeper] Stopped")
}

// IsRunning reports whether the sweep loop is active.
func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunOnce triggers a single sweep outside the ticker (admin use).
func (s *Sweeper) RunOnce() (int, error) {
	return s.service.ExpireStalePending(time.Now().UTC())
}

func (s *Sweeper) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopCh:
			log.Info("[Settlement Sweeper] Worker stopping")
			return
		case <-s.ticker.C:
			expired, err := s.service.ExpireStalePending(time.Now().UTC())
			if err != nil {
				log.Errorf("[Settlement Sweeper] Sweep error: %v", err)
				continue
			}
			if expired > 0 {
				log.Infof("[Settlement Sweeper] Expired %d stale pending intents", expired)
			}
		}
	}
}
