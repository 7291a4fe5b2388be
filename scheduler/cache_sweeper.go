package scheduler

import (
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"pricecompare/utils"
)

// Sweeper removes expired entries and reports how many it dropped.
type Sweeper interface {
	Sweep() int
}

// CacheSweeper evicts stale cached comparisons on a cron schedule.
type CacheSweeper struct {
	schedule string
	sweeper  Sweeper
	logger   *utils.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewCacheSweeper accepts six-field cron specs and descriptors such as
// "@every 5m". An empty schedule disables sweeping.
func NewCacheSweeper(schedule string, sweeper Sweeper, logger *utils.Logger) *CacheSweeper {
	return &CacheSweeper{
		schedule: schedule,
		sweeper:  sweeper,
		logger:   logger,
		cron:     cron.New(cron.WithSeconds()),
	}
}

func (cs *CacheSweeper) Start() error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.schedule == "" {
		cs.logger.Info("[sweeper] No schedule configured, cache sweeping disabled")
		return nil
	}
	if cs.running {
		return nil
	}
	if _, err := cs.cron.AddFunc(cs.schedule, func() { cs.RunOnce() }); err != nil {
		return fmt.Errorf("schedule cache sweep %q: %w", cs.schedule, err)
	}
	cs.cron.Start()
	cs.running = true
	cs.logger.Info("[sweeper] Cache sweep scheduled (%s)", cs.schedule)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (cs *CacheSweeper) Stop() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if !cs.running {
		return
	}
	<-cs.cron.Stop().Done()
	cs.running = false
}

func (cs *CacheSweeper) RunOnce() int {
	n := cs.sweeper.Sweep()
	if n > 0 {
		cs.logger.Info("[sweeper] Evicted %d stale cache entries", n)
	}
	return n
}
