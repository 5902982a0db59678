package conversation

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const DefaultReapInterval = 5 * time.Minute

// Reaper periodically drops conversations nobody has touched for ttl.
type Reaper struct {
	manager  *Manager
	ttl      time.Duration
	interval time.Duration
	logger   *zap.Logger

	stopOnce sync.Once
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewReaper(manager *Manager, ttl, interval time.Duration, logger *zap.Logger) *Reaper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = DefaultReapInterval
	}
	return &Reaper{
		manager:  manager,
		ttl:      ttl,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start does nothing when ttl is zero.
func (r *Reaper) Start() {
	if r.ttl <= 0 {
		return
	}
	r.wg.Add(1)
	go r.loop()
}

func (r *Reaper) Stop() {
	r.stopOnce.Do(func() { close(r.stopChan) })
	r.wg.Wait()
}

func (r *Reaper) loop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopChan:
			return
		case <-ticker.C:
			if n := r.manager.Reap(r.ttl); n > 0 {
				r.logger.Info("idle conversations closed", zap.Int("count", n), zap.Duration("ttl", r.ttl))
			}
		}
	}
}

func expired(lastActive time.Time, ttl time.Duration, now time.Time) bool {
	return now.Sub(lastActive) >= ttl
}
