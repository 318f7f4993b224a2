package cli

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/vulnwatch/go-recon/recon"
	"github.com/vulnwatch/go-recon/recon/config"
	"github.com/vulnwatch/go-recon/recon/queue"
	"github.com/vulnwatch/go-recon/recon/store"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Execute one reconciliation pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			b, err := openBackends(cfg)
			if err != nil {
				return err
			}
			defer b.Close()

			_, err = executeRun(cmd.Context(), cfg, b)
			return err
		},
	}
}

// executeRun performs a full pass over shared backends and publishes its
// outcome: a snapshot in the KV store and a run-completed event on the
// queue, when configured.
func executeRun(ctx context.Context, cfg *config.Config, b *backends) (recon.RunStats, error) {
	runner, _ := newRunPipeline(cfg, b)

	started := time.Now()
	stats, runErr := runner.Run(ctx)

	snap := store.RunSnapshot{
		RunID:      started.UTC().Format(time.RFC3339),
		StartedAt:  started,
		DurationMs: time.Since(started).Milliseconds(),
		Stats:      stats,
		Failed:     runErr != nil,
	}
	if runErr != nil {
		snap.Error = runErr.Error()
	}

	if cfg.Valkey.Addr != "" {
		kv, err := store.NewValkeyStore(cfg.Valkey.Addr)
		if err != nil {
			slog.Error("Failed to connect to KV store, skipping snapshot", "error", err)
		} else {
			defer kv.Close()
			if err := store.SaveRunSnapshot(ctx, kv, snap); err != nil {
				slog.Error("Failed to save run snapshot", "error", err)
			}
		}
	}

	if cfg.Queue.URL != "" {
		payload, err := json.Marshal(snap)
		if err != nil {
			slog.Error("Failed to encode run-completed event, skipping publish", "error", err)
		} else if err := queue.Send(cfg.Queue.URL, cfg.Queue.EventQueue, string(payload)); err != nil {
			slog.Error("Failed to publish run-completed event", "error", err)
		}
	}

	return stats, runErr
}
