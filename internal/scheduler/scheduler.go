// Package scheduler drives fixed-cadence ticks: the attack alternator and
// the frame driver of a duel both run on one.
package scheduler

import (
	"errors"
	"sync"
	"time"
)

var ErrAlreadyStarted = errors.New("scheduler already started")
var ErrStopped = errors.New("scheduler stopped")
var ErrInvalidInterval = errors.New("interval must be positive")

// Scheduler delivers one tick on C every interval between Start and Stop.
// A stopped scheduler cannot be restarted.
type Scheduler struct {
	interval time.Duration
	c        chan time.Time

	mu      sync.Mutex
	started bool
	stopped bool
	stop    chan struct{}
	done    chan struct{}
}

func New(interval time.Duration) *Scheduler {
	return &Scheduler{
		interval: interval,
		c:        make(chan time.Time),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (s *Scheduler) C() <-chan time.Time { return s.c }

func (s *Scheduler) Interval() time.Duration { return s.interval }

func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		return ErrInvalidInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	go s.loop()
	return nil
}

func (s *Scheduler) loop() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			// the receiver may be the one calling Stop, so never block past it
			select {
			case s.c <- now:
			case <-s.stop:
				return
			}
		}
	}
}

// Stop cancels future ticks. Safe to call repeatedly and before Start; once
// it returns no further tick is delivered.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	started := s.started
	close(s.stop)
	s.mu.Unlock()

	if started {
		<-s.done
	}
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started && !s.stopped
}
