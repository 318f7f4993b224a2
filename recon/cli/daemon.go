package cli

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/vulnwatch/go-recon/recon/queue"
)

var errMissingQueueURL = errors.New("daemon mode requires queue.url to be configured")

func newDaemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run reconciliation passes on queue triggers",
		Long:  "Listens on the trigger queue and executes one reconciliation pass per message. Triggers are processed sequentially so runs never overlap.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Queue.URL == "" {
				return errMissingQueueURL
			}
			// One set of backends for the daemon's lifetime; each trigger
			// only rebuilds the per-run pipeline over them.
			b, err := openBackends(cfg)
			if err != nil {
				return err
			}
			defer b.Close()

			ctx := cmd.Context()
			slog.Info("Daemon listening for run triggers", "queue", cfg.Queue.TriggerQueue)
			queue.ListenWithRetry(ctx, cfg.Queue.URL, cfg.Queue.TriggerQueue, func(msg string) {
				slog.Info("Run trigger received", "message", msg)
				if _, err := executeRun(ctx, cfg, b); err != nil {
					slog.Error("Triggered run failed", "error", err)
				}
			})
			return nil
		},
	}
}
