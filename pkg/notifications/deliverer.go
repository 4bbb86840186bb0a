package notifications

import (
	"context"
	"log/slog"

	"github.com/farmdesk/notify/pkg/broker"
	"github.com/farmdesk/notify/pkg/logger"
)

// Deliverer handles real-time notification delivery. Delivery is a hint on
// top of the durable store; implementations must treat failures as
// recoverable and never required for correctness.
type Deliverer interface {
	// Deliver pushes one notification to its recipient.
	Deliver(ctx context.Context, notif Notification) error

	// DeliverBatch pushes multiple notifications.
	DeliverBatch(ctx context.Context, notifs []Notification) error
}

// NoOpDeliverer is a deliverer that does nothing.
// Useful for testing or when real-time delivery is not needed.
type NoOpDeliverer struct{}

func (NoOpDeliverer) Deliver(ctx context.Context, notif Notification) error { return nil }

func (NoOpDeliverer) DeliverBatch(ctx context.Context, notifs []Notification) error { return nil }

// BrokerDeliverer pushes notifications through the realtime broker.
// Notifications addressed to a user are emitted to that user's room;
// notifications without a user are emitted to the tenant room.
type BrokerDeliverer struct {
	broker *broker.Broker
	log    *slog.Logger
}

// BrokerDelivererOption configures a BrokerDeliverer.
type BrokerDelivererOption func(*BrokerDeliverer)

// WithBrokerDelivererLogger sets the logger for the BrokerDeliverer.
func WithBrokerDelivererLogger(log *slog.Logger) BrokerDelivererOption {
	return func(d *BrokerDeliverer) {
		if log != nil {
			d.log = log
		}
	}
}

// NewBrokerDeliverer creates a deliverer bound to the given broker.
func NewBrokerDeliverer(b *broker.Broker, opts ...BrokerDelivererOption) *BrokerDeliverer {
	d := &BrokerDeliverer{
		broker: b,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *BrokerDeliverer) Deliver(ctx context.Context, notif Notification) error {
	payload := pushPayload(notif)
	if notif.UserID != "" {
		return d.broker.EmitToUser(ctx, notif.UserID, payload)
	}
	return d.broker.EmitToTenant(ctx, notif.TenantID, payload)
}

func (d *BrokerDeliverer) DeliverBatch(ctx context.Context, notifs []Notification) error {
	for _, notif := range notifs {
		if err := d.Deliver(ctx, notif); err != nil {
			// One failed emit must not block the remaining notifications.
			d.log.LogAttrs(ctx, slog.LevelError, "Failed to push notification",
				logger.NotificationID(notif.ID),
				logger.UserID(notif.UserID),
				logger.Error(err),
			)
			continue
		}
	}
	return nil
}

// pushPayload projects the durable notification onto the push event union.
// Farm event types without their own wire kind travel as general events.
func pushPayload(notif Notification) broker.Payload {
	priority := broker.Priority(notif.Priority)

	// RFID tag references have their own wire kind regardless of the
	// notification type that carried them.
	if notif.RelatedEntity != nil && notif.RelatedEntity.Type == "rfid_tag" {
		return broker.RFIDStatus{
			Title:    notif.Title,
			Message:  notif.Message,
			Priority: priority,
			TagID:    notif.RelatedEntity.ID,
		}
	}

	switch notif.Type {
	case TypeHealthAlert:
		p := broker.HealthAlert{Title: notif.Title, Message: notif.Message, Priority: priority}
		if notif.RelatedEntity != nil {
			p.AnimalID = notif.RelatedEntity.ID
		}
		return p
	case TypeTaskDeadline, TypeVaccination:
		p := broker.TaskDeadline{Title: notif.Title, Message: notif.Message, Priority: priority}
		if notif.RelatedEntity != nil {
			p.TaskID = notif.RelatedEntity.ID
		}
		return p
	default:
		return broker.General{Title: notif.Title, Message: notif.Message, Priority: priority}
	}
}
