package ticket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrNoPurgePrefix guards the bulk delete: a purge without a QID prefix
// would delete every open exception ticket.
var ErrNoPurgePrefix = errors.New("refusing to purge without a QID prefix")

// PurgeReport summarizes one purge pass.
type PurgeReport struct {
	Examined int
	Deleted  int
	Failed   int
}

// Purge deletes every open ticket for the catalog item whose QID starts with
// qidPrefix. With dryRun set it only reports what would be deleted. A delete
// failure is logged and counted; the pass continues.
func Purge(ctx context.Context, store Store, catalogItemID, qidPrefix string, dryRun bool) (PurgeReport, error) {
	var report PurgeReport

	if qidPrefix == "" {
		return report, ErrNoPurgePrefix
	}

	tickets, err := store.ListOpenTickets(ctx, catalogItemID)
	if err != nil {
		return report, fmt.Errorf("list open tickets: %w", err)
	}

	for i := range tickets {
		t := &tickets[i]
		report.Examined++
		if !strings.HasPrefix(t.QID, qidPrefix) {
			continue
		}

		if dryRun {
			slog.Info("Would delete ticket", "number", t.Number, "qid", t.QID)
			report.Deleted++
			continue
		}

		if err := store.DeleteTicket(ctx, t); err != nil {
			slog.Error("Failed to delete ticket", "number", t.Number, "qid", t.QID, "error", err)
			report.Failed++
			continue
		}
		slog.Info("Deleted ticket", "number", t.Number, "qid", t.QID)
		report.Deleted++
	}

	return report, nil
}
