package core

import "time"

// Queue/Redis keys and the default visibility timeout for the audit pipeline.
const (
	PendingQueueKey    = "pending_auth_events"
	ProcessingQueueKey = "processing_auth_events"
	// DefaultVisibilityTimeout is how long a worker may hold an event before
	// it becomes eligible for requeue.
	DefaultVisibilityTimeout = 30 * time.Second
)
