package sweeper

import (
	"context"
	"sync"
	"time"

	"github.com/cardlinkhq/cardlink/internal/pkg/payments"
	"github.com/gofiber/fiber/v2/log"
)

// DefaultInterval is once daily; the sweep is a redundant safety net behind
// the resolver's lazy downgrade, so precision does not matter.
const DefaultInterval = 24 * time.Hour

const runTimeout = 10 * time.Minute

// Manager runs the plan expiry sweep on a fixed interval as a background task.
type Manager struct {
	service  *payments.Service
	interval time.Duration
	ticker   *time.Ticker
	stopCh   chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
}

// NewManager creates a sweep manager around a payments service.
func NewManager(service *payments.Service, interval time.Duration) *Manager {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Manager{
		service:  service,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start starts the background sweep loop
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}
	m.running = true

	log.Info("[Sweeper] Starting plan expiry sweep")
	m.ticker = time.NewTicker(m.interval)
	m.wg.Add(1)
	go m.loop()
}

// Stop stops the background sweep loop and waits for a running pass to finish
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.mu.Unlock()

	log.Info("[Sweeper] Stopping plan expiry sweep...")
	m.ticker.Stop()
	close(m.stopCh)
	m.wg.Wait()
	log.Info("[Sweeper] Stopped")
}

func (m *Manager) loop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.stopCh:
			return
		case <-m.ticker.C:
			m.RunOnce()
		}
	}
}

// RunOnce executes a single sweep pass.
func (m *Manager) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	downgraded, err := m.service.ExpireLapsedPlans(ctx)
	if err != nil {
		log.Errorf("[Sweeper] sweep pass failed: %v", err)
		return
	}
	if downgraded > 0 {
		log.Infof("[Sweeper] downgraded %d lapsed users", downgraded)
	}
}
