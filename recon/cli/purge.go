package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vulnwatch/go-recon/recon/ticket"
)

func newPurgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete open tickets whose QID matches a prefix",
		Long:  "Bulk-deletes open exception tickets for the configured catalog item. A non-empty --qid-prefix is required; use --dry-run to preview what would be deleted.",
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

			prefix := viper.GetString("purge.qid_prefix")
			dryRun := viper.GetBool("purge.dry_run")

			report, err := ticket.Purge(cmd.Context(), b.store, cfg.Ticket.CatalogItemID, prefix, dryRun)
			if err != nil {
				return err
			}
			verb := "deleted"
			if dryRun {
				verb = "would delete"
			}
			fmt.Printf("Purge complete: examined %d, %s %d, failed %d\n",
				report.Examined, verb, report.Deleted, report.Failed)
			return nil
		},
	}

	cmd.Flags().String("qid-prefix", "", "Only tickets whose QID starts with this prefix are deleted (required)")
	cmd.Flags().Bool("dry-run", false, "Report matches without deleting")
	_ = viper.BindPFlag("purge.qid_prefix", cmd.Flags().Lookup("qid-prefix"))
	_ = viper.BindPFlag("purge.dry_run", cmd.Flags().Lookup("dry-run"))

	return cmd
}
