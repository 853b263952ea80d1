package worker

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Sweepable drops expired entries and reports how many it removed.
type Sweepable interface {
	Sweep() int
}

// Sweeper periodically evicts idle sessions from an in-process store.
type Sweeper struct {
	target   Sweepable
	interval time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewSweeper(target Sweepable, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		target:   target,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

func (s *Sweeper) Start() {
	if s.target == nil {
		return
	}

	s.wg.Add(1)
	go s.loop()

	log.Info().Dur("interval", s.interval).Msg("session sweeper started")
}

// Stop ends the loop and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
}

func (s *Sweeper) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sweepOnce()
		}
	}
}

func (s *Sweeper) sweepOnce() int {
	removed := s.target.Sweep()
	if removed > 0 {
		log.Debug().Int("removed", removed).Msg("expired sessions swept")
	}
	return removed
}
