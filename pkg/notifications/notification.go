package notifications

import (
	"time"
)

// Type categorizes a notification by the farm event that produced it.
type Type string

const (
	TypeVaccination   Type = "vaccination"
	TypeTaskDeadline  Type = "task_deadline"
	TypeHealthAlert   Type = "health_alert"
	TypeBreedingCycle Type = "breeding_cycle"
	TypeFeedInventory Type = "feed_inventory"
	TypeGeneral       Type = "general"
)

// Priority represents the notification priority level.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// RelatedEntity references the domain record a notification is about.
type RelatedEntity struct {
	Type string `json:"type" bson:"type"`
	ID   string `json:"id" bson:"id"`
}

// Notification is the durable unit of delivery. The ID is assigned by the
// persistence layer before the first delivery attempt and is immutable;
// content never changes after creation, only the read state mutates.
type Notification struct {
	ID            string         `json:"id" bson:"_id"`
	UserID        string         `json:"user_id" bson:"user_id"`
	TenantID      string         `json:"tenant_id" bson:"tenant_id"`
	Type          Type           `json:"type" bson:"type"`
	Priority      Priority       `json:"priority" bson:"priority"`
	Title         string         `json:"title" bson:"title"`
	Message       string         `json:"message" bson:"message"`
	RelatedEntity *RelatedEntity `json:"related_entity,omitempty" bson:"related_entity,omitempty"`
	Read          bool           `json:"is_read" bson:"read"`
	ReadAt        *time.Time     `json:"read_at,omitempty" bson:"read_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at" bson:"created_at"`
}

// MarkAsRead transitions the read state false to true and stamps ReadAt.
// The transition never reverts; marking an already-read notification is a
// no-op. It reports whether the state actually changed.
func (n *Notification) MarkAsRead() bool {
	if n.Read {
		return false
	}
	n.Read = true
	now := time.Now()
	n.ReadAt = &now
	return true
}
