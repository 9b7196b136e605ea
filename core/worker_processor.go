package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
)

// AuditProcessor consumes queued auth events and persists them.
type AuditProcessor struct {
	events AuthEventRepository
}

func NewAuditProcessor(events AuthEventRepository) *AuditProcessor {
	return &AuditProcessor{events: events}
}

// Process takes one queued event payload (JSON from the pending list) and
// writes it to the audit table. A malformed payload is dropped with a nil
// error so it is not retried forever; a store fault returns an error and the
// visibility timeout will make the event eligible for requeue.
func (p *AuditProcessor) Process(ctx context.Context, payload string) (AuthEventKind, error) {
	var ev AuthEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		log.Printf("audit: dropping malformed event payload: %v", err)
		return "", nil
	}
	if strings.TrimSpace(string(ev.Kind)) == "" {
		log.Printf("audit: dropping event without kind")
		return "", nil
	}
	if _, err := p.events.Insert(ctx, ev); err != nil {
		return ev.Kind, fmt.Errorf("insert auth event: %w", err)
	}
	return ev.Kind, nil
}
