package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSelfTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "selftest",
		Short: "Exercise the ticket lifecycle end to end",
		Long:  "Creates a synthetic exception ticket, walks it through update and flag-for-closure, then deletes it. Touches the real ticket system but no real QIDs.",
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

			if err := newReconciler(cfg, b).SelfTest(cmd.Context()); err != nil {
				return fmt.Errorf("self-test failed: %w", err)
			}
			fmt.Println("Self-test passed: create, update, flag, and cleanup all succeeded")
			return nil
		},
	}
}
