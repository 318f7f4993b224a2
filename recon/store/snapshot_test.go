package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/vulnwatch/go-recon/recon"
)

type memKV struct {
	values map[string]string
	ttls   map[string]int
}

func newMemKV() *memKV {
	return &memKV{values: map[string]string{}, ttls: map[string]int{}}
}

func (m *memKV) SetValue(ctx context.Context, key, value string) error {
	m.values[key] = value
	return nil
}

func (m *memKV) SetValueWithTTL(ctx context.Context, key, value string, ttlSeconds int) error {
	m.values[key] = value
	m.ttls[key] = ttlSeconds
	return nil
}

func (m *memKV) GetValue(ctx context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", context.Canceled
	}
	return v, nil
}

func (m *memKV) ListKeys(ctx context.Context, pattern string) ([]string, error) {
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for k := range m.values {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *memKV) DeleteValue(ctx context.Context, key string) error {
	delete(m.values, key)
	return nil
}

func (m *memKV) Close() error { return nil }

func TestSaveAndGetRunSnapshot(t *testing.T) {
	kv := newMemKV()
	ctx := context.Background()

	snap := RunSnapshot{
		RunID:      "2026-08-30T10:00:00Z",
		StartedAt:  time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
		DurationMs: 4200,
		Stats:      recon.RunStats{Created: 3, Updated: 7, Flagged: 1, Skipped: 2},
	}

	if err := SaveRunSnapshot(ctx, kv, snap); err != nil {
		t.Fatalf("SaveRunSnapshot failed: %v", err)
	}

	if kv.ttls["recon:run:2026-08-30T10:00:00Z"] != snapshotTTLSeconds {
		t.Errorf("expected snapshot TTL %d, got %d", snapshotTTLSeconds, kv.ttls["recon:run:2026-08-30T10:00:00Z"])
	}

	got, err := GetRunSnapshot(ctx, kv, snap.RunID)
	if err != nil {
		t.Fatalf("GetRunSnapshot failed: %v", err)
	}
	if got.Stats != snap.Stats {
		t.Errorf("stats round-trip mismatch: got %+v, want %+v", got.Stats, snap.Stats)
	}
	if got.Failed {
		t.Error("expected successful run snapshot")
	}
}

func TestListRunSnapshotKeys(t *testing.T) {
	kv := newMemKV()
	ctx := context.Background()

	for _, id := range []string{"run-a", "run-b"} {
		if err := SaveRunSnapshot(ctx, kv, RunSnapshot{RunID: id}); err != nil {
			t.Fatalf("SaveRunSnapshot(%s) failed: %v", id, err)
		}
	}
	kv.values["unrelated:key"] = "ignored"

	keys, err := ListRunSnapshotKeys(ctx, kv)
	if err != nil {
		t.Fatalf("ListRunSnapshotKeys failed: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("expected 2 snapshot keys, got %d: %v", len(keys), keys)
	}
	for _, k := range keys {
		if !strings.HasPrefix(k, runKeyPrefix) {
			t.Errorf("key %q missing prefix %q", k, runKeyPrefix)
		}
	}
}

func TestGetRunSnapshotDecodeError(t *testing.T) {
	kv := newMemKV()
	kv.values[runKeyPrefix+"bad"] = "{not json"

	if _, err := GetRunSnapshot(context.Background(), kv, "bad"); err == nil {
		t.Error("expected decode error for malformed snapshot")
	}
}
