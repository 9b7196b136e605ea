package core

import (
	"context"
	"os"
	"sync"
	"time"
)

// HeartbeatState holds the aggregate metrics of one audit worker process.
type HeartbeatState struct {
	mu       sync.Mutex
	hb       WorkerHeartbeat
	running  map[string]time.Time
	ticker   *time.Ticker
	stopOnce sync.Once
}

func NewHeartbeatState(workerID, hostname string, concurrency int) *HeartbeatState {
	return &HeartbeatState{
		hb: WorkerHeartbeat{
			WorkerID:     workerID,
			Hostname:     hostname,
			PID:          os.Getpid(),
			Concurrency:  concurrency,
			Status:       "starting",
			RunningCount: 0,
			StartedAt:    time.Now(),
			UpdatedAt:    time.Now(),
			RunningJobs:  []string{},
		},
		running: make(map[string]time.Time),
		ticker:  time.NewTicker(5 * time.Second),
	}
}

// Start refreshes the heartbeat TTL in the background until ctx is done.
func (s *HeartbeatState) Start(ctx context.Context, client RedisClientRaw) {
	// push one immediately
	s.flush(ctx, client)
	defer s.ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.ticker.C:
			s.flush(ctx, client)
		}
	}
}

// EventStarted records an in-flight event and marks the worker busy.
func (s *HeartbeatState) EventStarted(event string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hb.Status = "busy"
	s.running[event] = time.Now()
	s.updateRunningFieldsLocked()
}

// EventFinished updates the counters when an event has been handled.
func (s *HeartbeatState) EventFinished(event string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, event)
	s.hb.ProcessedTotal++
	if err != nil {
		s.hb.FailedTotal++
		s.hb.LastError = err.Error()
	}
	if len(s.running) == 0 {
		s.hb.Status = "idle"
	} else {
		s.hb.Status = "busy"
	}
	s.updateRunningFieldsLocked()
}

func (s *HeartbeatState) updateRunningFieldsLocked() {
	s.hb.RunningCount = len(s.running)
	s.hb.RunningJobs = s.hb.RunningJobs[:0]
	for event := range s.running {
		if len(s.hb.RunningJobs) >= 3 {
			break
		}
		s.hb.RunningJobs = append(s.hb.RunningJobs, event)
	}
	if s.hb.RunningCount == 0 {
		s.hb.CurrentJob = ""
	} else {
		s.hb.CurrentJob = s.hb.RunningJobs[0]
	}
}

func (s *HeartbeatState) flush(ctx context.Context, client RedisClientRaw) {
	s.mu.Lock()
	s.hb.UptimeSeconds = int64(time.Since(s.hb.StartedAt).Seconds())
	s.hb.UpdateRuntimeStats()
	hbCopy := s.hb
	// Copy the slice contents, not just the header: the marshal below runs
	// outside the lock while EventStarted/EventFinished mutate the backing
	// array in place.
	hbCopy.RunningJobs = append([]string(nil), s.hb.RunningJobs...)
	s.mu.Unlock()
	_ = SaveHeartbeat(ctx, client, hbCopy)
}
