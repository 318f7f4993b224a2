package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vulnwatch/go-recon/recon"
	"github.com/vulnwatch/go-recon/recon/knowledge"
	"github.com/vulnwatch/go-recon/recon/qparse"
	"github.com/vulnwatch/go-recon/recon/scanner"
)

// progressInterval is how many QIDs are processed between progress log lines.
const progressInterval = 10

// RunConfig tunes one reconciliation run.
type RunConfig struct {
	// EnrichmentEnabled controls whether the knowledge cache is populated
	// before reconciling. Disabled runs render "not available" placeholders.
	EnrichmentEnabled bool
	// MaxQIDsPerRun caps how many QIDs one run reconciles; the rest are left
	// for a subsequent run. Zero means no cap.
	MaxQIDsPerRun int
	// TruncationLimit caps the detection pull's host count (0 = server default).
	TruncationLimit int
	// Statuses overrides the pulled detection status set when non-empty.
	Statuses []string
}

// Runner drives the pipeline: pull, parse, group, enrich, reconcile.
type Runner struct {
	api        scanner.API
	cache      *knowledge.Cache
	reconciler *Reconciler
	cfg        RunConfig
}

// NewRunner assembles a Runner from its collaborators.
func NewRunner(api scanner.API, cache *knowledge.Cache, reconciler *Reconciler, cfg RunConfig) *Runner {
	return &Runner{api: api, cache: cache, reconciler: reconciler, cfg: cfg}
}

// Run executes one reconciliation pass. A failed detection pull aborts the
// run with an error and no stats; any later per-QID failure is recorded in
// the error counter and the loop continues.
func (r *Runner) Run(ctx context.Context) (recon.RunStats, error) {
	var stats recon.RunStats

	blob, err := r.api.PullDetections(ctx, scanner.Filters{
		Statuses:   r.cfg.Statuses,
		Truncation: r.cfg.TruncationLimit,
	})
	if err != nil {
		return stats, fmt.Errorf("pull detections: %w", err)
	}

	detections := qparse.ParseDetections(blob)
	if len(detections) == 0 {
		slog.Info("No detections returned, nothing to reconcile")
		return stats, nil
	}
	slog.Info("Parsed detections", "detections", len(detections))

	groups := GroupDetections(detections)
	qids := groups.QIDs()
	slog.Info("Grouped detections", "qids", len(qids))

	if r.cfg.EnrichmentEnabled {
		r.cache.FetchBatch(ctx, qids)
		slog.Info("Knowledge cache populated", "records", r.cache.Len())
	} else {
		slog.Info("Enrichment disabled, skipping knowledge fetch")
	}

	if r.cfg.MaxQIDsPerRun > 0 && len(qids) > r.cfg.MaxQIDsPerRun {
		slog.Info("Truncating QID list for this run",
			"cap", r.cfg.MaxQIDsPerRun, "deferred", len(qids)-r.cfg.MaxQIDsPerRun)
		qids = qids[:r.cfg.MaxQIDsPerRun]
	}

	for i, qid := range qids {
		group, _ := groups.Get(qid)
		result := r.reconciler.Reconcile(ctx, group)
		stats.Record(result.Outcome)

		if result.Err != nil {
			slog.Error("Failed to reconcile QID", "qid", qid, "error", result.Err)
		}
		if (i+1)%progressInterval == 0 {
			slog.Info("Reconciliation progress", "processed", i+1, "total", len(qids))
		}
	}

	slog.Info("Run complete",
		"created", stats.Created, "updated", stats.Updated, "flagged", stats.Flagged,
		"skipped", stats.Skipped, "errors", stats.Errors)
	return stats, nil
}
