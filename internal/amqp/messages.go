package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"tutordash/internal/snapshot"

	"github.com/google/uuid"
)

// RoutingKeySnapshotRefreshed is the routing key of SnapshotRefreshed events.
const RoutingKeySnapshotRefreshed = "snapshot.refreshed"

// SnapshotRefreshed announces that a new snapshot was persisted. It carries
// only metadata; receivers reload the snapshot from their store.
type SnapshotRefreshed struct {
	EventID    string    `json:"event_id"`
	SnapshotID string    `json:"snapshot_id"`
	FetchedAt  time.Time `json:"fetched_at"`
	Source     string    `json:"source"`
	Sessions   int       `json:"sessions"`
	Dropped    int       `json:"dropped"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewSnapshotRefreshed(s *snapshot.Snapshot, now time.Time) *SnapshotRefreshed {
	return &SnapshotRefreshed{
		EventID:    uuid.NewString(),
		SnapshotID: s.ID,
		FetchedAt:  s.FetchedAt.UTC(),
		Source:     s.Source,
		Sessions:   len(s.Sessions),
		Dropped:    s.Dropped,
		Timestamp:  now.UTC(),
	}
}

func (m *SnapshotRefreshed) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SnapshotRefreshedFromJSON decodes an event and rejects ones without a snapshot id.
func SnapshotRefreshedFromJSON(data []byte) (*SnapshotRefreshed, error) {
	var msg SnapshotRefreshed
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.SnapshotID == "" {
		return nil, fmt.Errorf("event %q has no snapshot_id", msg.EventID)
	}
	return &msg, nil
}
