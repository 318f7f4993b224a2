package cli

import (
	"fmt"

	"github.com/vulnwatch/go-recon/recon/assetdir"
	"github.com/vulnwatch/go-recon/recon/config"
	"github.com/vulnwatch/go-recon/recon/engine"
	"github.com/vulnwatch/go-recon/recon/knowledge"
	"github.com/vulnwatch/go-recon/recon/scanner"
	"github.com/vulnwatch/go-recon/recon/ticket"
)

// backends holds the long-lived collaborators: clients and the CMDB
// connection pool. They are opened once per process and shared across runs;
// only the per-run pipeline state is rebuilt for each run.
type backends struct {
	api   scanner.API
	store ticket.Store
	dir   assetdir.Directory

	closer func() error
}

// Close releases the CMDB connection pool.
func (b *backends) Close() error {
	if b.closer != nil {
		return b.closer()
	}
	return nil
}

func openBackends(cfg *config.Config) (*backends, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	api := scanner.NewClient(cfg.Scanner.BaseURL, cfg.Scanner.Username, cfg.Scanner.Password)
	store := ticket.NewSnowStore(cfg.Ticket.BaseURL, cfg.Ticket.Table, cfg.Ticket.Username, cfg.Ticket.Password)

	cmdb, err := assetdir.Connect(cfg.AssetDB.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect asset directory: %w", err)
	}

	return &backends{api: api, store: store, dir: cmdb, closer: cmdb.Close}, nil
}

// newRunPipeline assembles the per-run state over shared backends. The
// knowledge cache is scoped to one run, so every pipeline gets a fresh one.
func newRunPipeline(cfg *config.Config, b *backends) (*engine.Runner, *knowledge.Cache) {
	cache := knowledge.NewCache(b.api, cfg.Run.KBBatchSize)
	rec := engine.NewReconciler(b.store, b.dir, cache, cfg.Ticket.CatalogItemID)

	runCfg := engine.RunConfig{
		EnrichmentEnabled: cfg.Run.Enrichment,
		MaxQIDsPerRun:     cfg.Run.MaxQIDsPerRun,
		TruncationLimit:   cfg.Scanner.Truncation,
		Statuses:          scanner.DefaultStatuses,
	}
	return engine.NewRunner(b.api, cache, rec, runCfg), cache
}

// newReconciler is the pipeline variant for commands that drive the
// reconciler directly, such as the self-test.
func newReconciler(cfg *config.Config, b *backends) *engine.Reconciler {
	cache := knowledge.NewCache(b.api, cfg.Run.KBBatchSize)
	return engine.NewReconciler(b.store, b.dir, cache, cfg.Ticket.CatalogItemID)
}
