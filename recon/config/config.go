// Package config loads the reconciler's configuration via viper: an optional
// YAML file, RECON_-prefixed environment variables, and flag bindings done by
// the CLI layer.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full configuration surface.
type Config struct {
	Scanner struct {
		BaseURL    string `mapstructure:"base_url"`
		Username   string `mapstructure:"username"`
		Password   string `mapstructure:"password"`
		Truncation int    `mapstructure:"truncation_limit"`
	} `mapstructure:"scanner"`

	Ticket struct {
		BaseURL       string `mapstructure:"base_url"`
		Username      string `mapstructure:"username"`
		Password      string `mapstructure:"password"`
		Table         string `mapstructure:"table"`
		CatalogItemID string `mapstructure:"catalog_item_id"`
	} `mapstructure:"ticket"`

	AssetDB struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"asset_db"`

	Valkey struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"valkey"`

	Queue struct {
		URL          string `mapstructure:"url"`
		TriggerQueue string `mapstructure:"trigger_queue"`
		EventQueue   string `mapstructure:"event_queue"`
	} `mapstructure:"queue"`

	Run struct {
		Enrichment    bool   `mapstructure:"enrichment"`
		KBBatchSize   int    `mapstructure:"kb_batch_size"`
		MaxQIDsPerRun int    `mapstructure:"max_qids_per_run"`
		LogLevel      string `mapstructure:"log_level"`
	} `mapstructure:"run"`
}

// setDefaults registers every key with viper. Keys without a registered
// default are invisible to Unmarshal when set only through the environment,
// so even the empty strings here are load-bearing.
func setDefaults() {
	viper.SetDefault("scanner.base_url", "")
	viper.SetDefault("scanner.username", "")
	viper.SetDefault("scanner.password", "")
	viper.SetDefault("scanner.truncation_limit", 0)
	viper.SetDefault("ticket.base_url", "")
	viper.SetDefault("ticket.username", "")
	viper.SetDefault("ticket.password", "")
	viper.SetDefault("ticket.table", "sc_req_item")
	viper.SetDefault("ticket.catalog_item_id", "")
	viper.SetDefault("asset_db.dsn", "")
	viper.SetDefault("valkey.addr", "")
	viper.SetDefault("queue.url", "")
	viper.SetDefault("queue.trigger_queue", "recon.trigger")
	viper.SetDefault("queue.event_queue", "recon.events")
	viper.SetDefault("run.enrichment", true)
	viper.SetDefault("run.kb_batch_size", 50)
	viper.SetDefault("run.max_qids_per_run", 0)
	viper.SetDefault("run.log_level", "info")
}

// Load reads configuration from the given file (optional when empty) and the
// RECON_* environment.
func Load(file string) (*Config, error) {
	setDefaults()

	viper.SetEnvPrefix("RECON")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if file != "" {
		viper.SetConfigFile(file)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings every reconciliation run needs.
func (c *Config) Validate() error {
	var missing []string
	if c.Scanner.BaseURL == "" {
		missing = append(missing, "scanner.base_url")
	}
	if c.Ticket.BaseURL == "" {
		missing = append(missing, "ticket.base_url")
	}
	if c.Ticket.CatalogItemID == "" {
		missing = append(missing, "ticket.catalog_item_id")
	}
	if c.AssetDB.DSN == "" {
		missing = append(missing, "asset_db.dsn")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}
