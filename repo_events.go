package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type securityEvents struct {
	db *bun.DB
}

var _ SecurityEvents = (*securityEvents)(nil)

// NewSecurityEventsRepository returns the bun-backed append-only
// SecurityEvents store.
func NewSecurityEventsRepository(db *bun.DB) SecurityEvents {
	return &securityEvents{db: db}
}

func (a *securityEvents) Append(ctx context.Context, record *SecurityEvent) error {
	if record == nil {
		return nil
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	_, err := a.db.NewInsert().Model(record).Exec(ctx)
	return err
}

// StoreActivitySink persists activity events as security_events rows,
// giving the audit trail durable storage next to the credentials it
// describes.
type StoreActivitySink struct {
	events SecurityEvents
	logger Logger
}

var _ ActivitySink = (*StoreActivitySink)(nil)

// NewStoreActivitySink creates a sink writing to the given store
func NewStoreActivitySink(events SecurityEvents) *StoreActivitySink {
	return &StoreActivitySink{
		events: events,
		logger: defLogger{},
	}
}

// WithLogger overrides the logger used by the sink
func (s *StoreActivitySink) WithLogger(logger Logger) *StoreActivitySink {
	if logger != nil {
		s.logger = logger
	}
	return s
}

func (s *StoreActivitySink) Record(ctx context.Context, event ActivityEvent) error {
	record := &SecurityEvent{
		Kind:      string(event.EventType),
		Email:     event.Email,
		Device:    event.Client.Device,
		Address:   event.Client.Address,
		Success:   event.Success,
		Detail:    event.Metadata,
		CreatedAt: event.OccurredAt,
	}

	if event.UserID != "" {
		if id, err := uuid.Parse(event.UserID); err == nil {
			record.UserID = &id
		}
	}

	return s.events.Append(ctx, record)
}
