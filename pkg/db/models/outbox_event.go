package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/beateur/ninowash-backend/pkg/enums"
)

// OutboxEvent is a transactional outbox row. Domain writes insert events in
// the same transaction as their state change; cmd/outbox-publisher relays
// unpublished rows to Pub/Sub.
type OutboxEvent struct {
	ID            uuid.UUID                 `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	EventType     enums.OutboxEventType     `gorm:"column:event_type;not null"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;not null"`
	AggregateID   uuid.UUID                 `gorm:"column:aggregate_id;type:uuid;not null;index"`
	Payload       json.RawMessage           `gorm:"column:payload;type:jsonb;not null"`
	Attempts      int                       `gorm:"column:attempts;not null;default:0"`
	PublishedAt   *time.Time                `gorm:"column:published_at;index"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`
}
