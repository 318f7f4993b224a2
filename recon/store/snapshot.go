package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vulnwatch/go-recon/recon"
)

const (
	runKeyPrefix = "recon:run:"

	// Snapshots expire after 30 days; they are operational breadcrumbs, not
	// an audit log.
	snapshotTTLSeconds = 30 * 24 * 60 * 60
)

// RunSnapshot is the persisted record of one reconciliation run.
type RunSnapshot struct {
	RunID      string         `json:"run_id"` // RFC3339 start time
	StartedAt  time.Time      `json:"started_at"`
	DurationMs int64          `json:"duration_ms"`
	Stats      recon.RunStats `json:"stats"`
	Failed     bool           `json:"failed"`
	Error      string         `json:"error,omitempty"`
}

// SaveRunSnapshot writes the snapshot under recon:run:<run_id>.
func SaveRunSnapshot(ctx context.Context, kv KVStore, snap RunSnapshot) error {
	encoded, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode run snapshot: %w", err)
	}
	if err := kv.SetValueWithTTL(ctx, runKeyPrefix+snap.RunID, string(encoded), snapshotTTLSeconds); err != nil {
		return fmt.Errorf("failed to store run snapshot %s: %w", snap.RunID, err)
	}
	return nil
}

// ListRunSnapshotKeys returns the keys of all stored run snapshots.
func ListRunSnapshotKeys(ctx context.Context, kv KVStore) ([]string, error) {
	return kv.ListKeys(ctx, runKeyPrefix+"*")
}

// GetRunSnapshot loads one snapshot by run id.
func GetRunSnapshot(ctx context.Context, kv KVStore, runID string) (RunSnapshot, error) {
	var snap RunSnapshot
	raw, err := kv.GetValue(ctx, runKeyPrefix+runID)
	if err != nil {
		return snap, err
	}
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return snap, fmt.Errorf("failed to decode run snapshot %s: %w", runID, err)
	}
	return snap, nil
}
