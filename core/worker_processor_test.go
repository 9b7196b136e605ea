package core

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestAuditProcessorRecordsEvent(t *testing.T) {
	repo := &fakeEventRepo{}
	p := NewAuditProcessor(repo)

	payload, err := json.Marshal(AuthEvent{Kind: EventLogout, Username: "alice", OccurredAt: time.Now()})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	kind, err := p.Process(context.Background(), string(payload))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if kind != EventLogout {
		t.Fatalf("kind = %q", kind)
	}

	items, total, err := repo.List(context.Background(), 1, 10)
	if err != nil || total != 1 {
		t.Fatalf("total = %d, err = %v", total, err)
	}
	if items[0].Username != "alice" || items[0].Kind != EventLogout {
		t.Fatalf("recorded = %+v", items[0])
	}
}

func TestAuditProcessorDropsMalformedPayload(t *testing.T) {
	repo := &fakeEventRepo{}
	p := NewAuditProcessor(repo)

	if _, err := p.Process(context.Background(), "{not json"); err != nil {
		t.Fatalf("malformed payload must be dropped, not retried: %v", err)
	}
	if _, err := p.Process(context.Background(), `{"username":"x"}`); err != nil {
		t.Fatalf("payload without kind must be dropped: %v", err)
	}
	if _, total, _ := repo.List(context.Background(), 1, 10); total != 0 {
		t.Fatalf("dropped payloads must not be recorded, total = %d", total)
	}
}

func TestAuditProcessorStoreFault(t *testing.T) {
	repo := &fakeEventRepo{insertErr: errors.New("connection refused")}
	p := NewAuditProcessor(repo)

	payload, _ := json.Marshal(AuthEvent{Kind: EventLoginSuccess, Username: "alice"})
	if _, err := p.Process(context.Background(), string(payload)); err == nil {
		t.Fatalf("store fault must surface so the event is retried")
	}
}
