package broker_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmdesk/notify/pkg/broker"
)

func TestEnvelopeMarshalJSON(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		payload broker.Payload
		want    map[string]any
	}{
		{
			name: "health alert carries animalId",
			payload: broker.HealthAlert{
				Title:    "High temperature",
				Message:  "Cow #42 temperature above threshold",
				Priority: broker.PriorityCritical,
				AnimalID: "animal-42",
			},
			want: map[string]any{
				"type":      "health_alert",
				"title":     "High temperature",
				"message":   "Cow #42 temperature above threshold",
				"priority":  "critical",
				"animalId":  "animal-42",
				"timestamp": "2026-03-14T09:30:00Z",
			},
		},
		{
			name: "task deadline carries taskId",
			payload: broker.TaskDeadline{
				Title:    "Vaccination due",
				Message:  "Herd vaccination due today",
				Priority: broker.PriorityHigh,
				TaskID:   "task-7",
			},
			want: map[string]any{
				"type":      "task_deadline",
				"title":     "Vaccination due",
				"message":   "Herd vaccination due today",
				"priority":  "high",
				"taskId":    "task-7",
				"timestamp": "2026-03-14T09:30:00Z",
			},
		},
		{
			name: "rfid status carries tagId",
			payload: broker.RFIDStatus{
				Title:    "Tag offline",
				Message:  "RFID tag stopped reporting",
				Priority: broker.PriorityMedium,
				TagID:    "tag-9",
			},
			want: map[string]any{
				"type":      "rfid_status",
				"title":     "Tag offline",
				"message":   "RFID tag stopped reporting",
				"priority":  "medium",
				"tagId":     "tag-9",
				"timestamp": "2026-03-14T09:30:00Z",
			},
		},
		{
			name: "general carries no entity id",
			payload: broker.General{
				Title:    "Welcome",
				Message:  "Your account is ready",
				Priority: broker.PriorityLow,
			},
			want: map[string]any{
				"type":      "general",
				"title":     "Welcome",
				"message":   "Your account is ready",
				"priority":  "low",
				"timestamp": "2026-03-14T09:30:00Z",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			data, err := json.Marshal(broker.Envelope{Payload: tt.payload, Timestamp: ts})
			require.NoError(t, err)

			var got map[string]any
			require.NoError(t, json.Unmarshal(data, &got))
			assert.Equal(t, tt.want, got)
		})
	}
}
