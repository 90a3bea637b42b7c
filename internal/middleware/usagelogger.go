package middleware

import (
	"context"
	"log"
	"time"

	"github.com/lumenworks/usage-gate/internal/models"
	"github.com/lumenworks/usage-gate/internal/repository"
)

// Buffered channel for async usage auditing
var usageChannel chan models.UsageEvent

// InitUsageRecorder starts the background worker that batch-inserts
// usage events. Call once at startup, before any RecordUsage call.
func InitUsageRecorder(repo *repository.UsageEventRepository, bufferSize int) {
	usageChannel = make(chan models.UsageEvent, bufferSize)

	go func() {
		batch := make([]*models.UsageEvent, 0, 100)
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case event := <-usageChannel:
				e := event
				batch = append(batch, &e)

				// Insert when batch is full
				if len(batch) >= 100 {
					insertBatch(repo, batch)
					batch = make([]*models.UsageEvent, 0, 100)
				}
			case <-ticker.C:
				// Periodically insert remaining events
				if len(batch) > 0 {
					insertBatch(repo, batch)
					batch = make([]*models.UsageEvent, 0, 100)
				}
			}
		}
	}()
}

func insertBatch(repo *repository.UsageEventRepository, events []*models.UsageEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := repo.CreateBatch(ctx, events); err != nil {
		// Log and move on, auditing must not block request handling
		log.Printf("failed to insert usage events: %v", err)
	}
}

// RecordUsage queues one usage event for async insertion. Drops the
// event when the buffer is full rather than blocking the request path.
func RecordUsage(event models.UsageEvent) {
	if usageChannel == nil {
		return
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case usageChannel <- event:
	default:
		log.Printf("usage event channel full, dropping event for %s", event.OwnerID)
	}
}
