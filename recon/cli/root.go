// Package cli wires the reconciler's subcommands: one-shot runs, the queue
// daemon, the lifecycle self-test, and the guarded purge.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vulnwatch/go-recon/recon/config"
	"github.com/vulnwatch/go-recon/recon/slogger"
)

var (
	Version = "0.1.0"
	rootCmd *cobra.Command
)

func init() {
	rootCmd = &cobra.Command{
		Use:   "recon",
		Short: "Vulnerability exception ticket reconciler",
		Long:  "Reconciles scanner detections against long-lived exception tickets: creates tickets for new QIDs, updates impacted-system lists as hosts appear and remediate, and flags fully remediated tickets for closure.",
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to config file")
	_ = viper.BindPFlag("config_file", rootCmd.PersistentFlags().Lookup("config"))

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newDaemonCmd())
	rootCmd.AddCommand(newSelfTestCmd())
	rootCmd.AddCommand(newPurgeCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetString("config_file"))
	if err != nil {
		return nil, err
	}
	slogger.InitWithLevel(cfg.Run.LogLevel)
	return cfg, nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
