package core

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestHeartbeatStateLifecycle(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	state := NewHeartbeatState("worker-1", "host-1", 4)
	state.EventStarted("ev-1")
	state.EventStarted("ev-2")
	state.flush(context.Background(), client)

	raw, err := mr.Get(WorkerHeartbeatKey("worker-1"))
	if err != nil {
		t.Fatalf("heartbeat not stored: %v", err)
	}
	var hb WorkerHeartbeat
	if err := json.Unmarshal([]byte(raw), &hb); err != nil {
		t.Fatalf("decode heartbeat: %v", err)
	}
	if hb.Status != "busy" || hb.RunningCount != 2 {
		t.Fatalf("heartbeat = %+v", hb)
	}

	state.EventFinished("ev-1", nil)
	state.EventFinished("ev-2", fmt.Errorf("store down"))
	state.flush(context.Background(), client)

	raw, err = mr.Get(WorkerHeartbeatKey("worker-1"))
	if err != nil {
		t.Fatalf("heartbeat not refreshed: %v", err)
	}
	if err := json.Unmarshal([]byte(raw), &hb); err != nil {
		t.Fatalf("decode heartbeat: %v", err)
	}
	if hb.Status != "idle" || hb.RunningCount != 0 {
		t.Fatalf("heartbeat = %+v", hb)
	}
	if hb.ProcessedTotal != 2 || hb.FailedTotal != 1 || hb.LastError != "store down" {
		t.Fatalf("counters = %+v", hb)
	}
}

// Flushing must snapshot the running-jobs list under the lock; the stored JSON
// has to stay well-formed while events start and finish concurrently.
func TestHeartbeatFlushConcurrentWithEvents(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	state := NewHeartbeatState("worker-2", "host-2", 4)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			ev := fmt.Sprintf("ev-%d", i)
			state.EventStarted(ev)
			state.EventFinished(ev, nil)
		}
	}()

	for i := 0; i < 50; i++ {
		state.flush(context.Background(), client)
	}
	<-done
	state.flush(context.Background(), client)

	raw, err := mr.Get(WorkerHeartbeatKey("worker-2"))
	if err != nil {
		t.Fatalf("heartbeat not stored: %v", err)
	}
	var hb WorkerHeartbeat
	if err := json.Unmarshal([]byte(raw), &hb); err != nil {
		t.Fatalf("decode heartbeat: %v", err)
	}
	if hb.ProcessedTotal != 200 {
		t.Fatalf("processed = %d", hb.ProcessedTotal)
	}
}
