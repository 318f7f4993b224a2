package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vulnwatch/go-recon/recon"
	"github.com/vulnwatch/go-recon/recon/assetdir"
	"github.com/vulnwatch/go-recon/recon/assetmatch"
	"github.com/vulnwatch/go-recon/recon/knowledge"
	"github.com/vulnwatch/go-recon/recon/ticket"
)

// Result is the outcome of reconciling one QID. Failures are carried in Err
// with OutcomeError; nothing panics across the run loop.
type Result struct {
	QID     string
	Outcome recon.Outcome
	Ticket  *ticket.Ticket
	Added   []string
	Removed []string
	Err     error
}

// Reconciler turns a QID's current host set into ticket mutations. The
// query-before-create uniqueness check assumes a single active run; external
// scheduling must prevent overlapping invocations.
type Reconciler struct {
	store         ticket.Store
	matcher       *assetmatch.Matcher
	dir           assetdir.Directory
	cache         *knowledge.Cache
	catalogItemID string
}

// NewReconciler wires the reconciler to its collaborators.
func NewReconciler(store ticket.Store, dir assetdir.Directory, cache *knowledge.Cache, catalogItemID string) *Reconciler {
	return &Reconciler{
		store:         store,
		matcher:       assetmatch.NewMatcher(dir),
		dir:           dir,
		cache:         cache,
		catalogItemID: catalogItemID,
	}
}

func (r *Reconciler) fail(qid string, err error) Result {
	return Result{QID: qid, Outcome: recon.OutcomeError, Err: err}
}

// Reconcile decides and applies the ticket mutation for one group:
//
//	no ticket, no hosts   -> skipped
//	no ticket, hosts      -> created
//	open ticket, hosts    -> updated (host-set diff + work note)
//	open ticket, no hosts -> flagged for closure
func (r *Reconciler) Reconcile(ctx context.Context, group *VulnGroup) Result {
	hosts := group.Hosts()
	split := r.matcher.Partition(ctx, hosts)

	existing, err := r.store.FindOpenTicket(ctx, r.catalogItemID, group.QID)
	if err != nil {
		return r.fail(group.QID, fmt.Errorf("find open ticket for QID %s: %w", group.QID, err))
	}

	switch {
	case existing == nil && len(hosts) == 0:
		slog.Debug("No ticket and no affected hosts, skipping", "qid", group.QID)
		return Result{QID: group.QID, Outcome: recon.OutcomeSkipped}
	case existing == nil:
		return r.create(ctx, group, split)
	case len(hosts) == 0:
		return r.flagForClosure(ctx, group.QID, existing)
	default:
		return r.update(ctx, group, split, existing)
	}
}

func (r *Reconciler) create(ctx context.Context, group *VulnGroup, split assetmatch.HostSplit) Result {
	fields := ticket.Fields{
		"u_qid":              group.QID,
		"short_description":  r.shortDescription(group.QID),
		"u_impacted_systems": strings.Join(split.AssetIDs(), ","),
		"u_justification":    r.composeJustification(group, split),
	}

	created, err := r.store.CreateTicket(ctx, r.catalogItemID, fields)
	if err != nil {
		return r.fail(group.QID, fmt.Errorf("create ticket for QID %s: %w", group.QID, err))
	}

	slog.Info("Created exception ticket", "qid", group.QID, "number", created.Number,
		"matched", len(split.Matched), "unmatched", len(split.Unmatched))
	return Result{QID: group.QID, Outcome: recon.OutcomeCreated, Ticket: created, Added: split.AssetIDs()}
}

func (r *Reconciler) update(ctx context.Context, group *VulnGroup, split assetmatch.HostSplit, t *ticket.Ticket) Result {
	previous := splitImpacted(t.ImpactedSystems)
	current := split.AssetIDs()
	added := difference(current, previous)
	removed := difference(previous, current)

	fields := ticket.Fields{
		"u_impacted_systems": strings.Join(current, ","),
		"u_justification":    r.composeJustification(group, split),
	}
	if err := r.store.UpdateTicket(ctx, t, fields); err != nil {
		return r.fail(group.QID, fmt.Errorf("update ticket %s for QID %s: %w", t.Number, group.QID, err))
	}

	note := r.composeUpdateNote(ctx, added, removed, split)
	if err := r.store.AppendWorkNote(ctx, t, note); err != nil {
		// Fields are already written; the note failure still counts as an
		// error so the run surfaces the partial update.
		return r.fail(group.QID, fmt.Errorf("append work note to %s for QID %s: %w", t.Number, group.QID, err))
	}

	slog.Info("Updated exception ticket", "qid", group.QID, "number", t.Number,
		"added", len(added), "removed", len(removed))
	return Result{QID: group.QID, Outcome: recon.OutcomeUpdated, Ticket: t, Added: added, Removed: removed}
}

func (r *Reconciler) flagForClosure(ctx context.Context, qid string, t *ticket.Ticket) Result {
	if err := r.store.UpdateTicket(ctx, t, ticket.Fields{"u_impacted_systems": ""}); err != nil {
		return r.fail(qid, fmt.Errorf("clear impacted systems on %s for QID %s: %w", t.Number, qid, err))
	}

	note := fmt.Sprintf("No hosts remain affected by QID %s. Impacted-systems list cleared; this exception can be closed.", qid)
	if err := r.store.AppendWorkNote(ctx, t, note); err != nil {
		return r.fail(qid, fmt.Errorf("append closure note to %s for QID %s: %w", t.Number, qid, err))
	}

	slog.Info("Flagged exception ticket for closure", "qid", qid, "number", t.Number)
	return Result{QID: qid, Outcome: recon.OutcomeFlagged, Ticket: t}
}

func (r *Reconciler) shortDescription(qid string) string {
	title := "(title not available)"
	if rec, ok := r.cache.Lookup(qid); ok && rec.Title != "" {
		title = rec.Title
	}
	return fmt.Sprintf("Vulnerability exception - QID %s: %s", qid, title)
}

// composeJustification regenerates the full justification text; it is
// replaced on every update, never appended.
func (r *Reconciler) composeJustification(group *VulnGroup, split assetmatch.HostSplit) string {
	rec, enriched := r.cache.Lookup(group.QID)

	var b strings.Builder
	fmt.Fprintf(&b, "QID: %s\n", group.QID)
	if enriched && rec.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", rec.Title)
	}
	fmt.Fprintf(&b, "Severity: %d\n", group.Severity)
	fmt.Fprintf(&b, "CVEs: %s\n", orNotAvailable(strings.Join(rec.CVEs, ", ")))
	fmt.Fprintf(&b, "CVSS v2 base: %s\n", orNotAvailable(rec.CVSSBase))
	fmt.Fprintf(&b, "CVSS v3 base: %s\n", orNotAvailable(rec.CVSS3Base))
	if enriched && rec.Diagnosis != "" {
		fmt.Fprintf(&b, "\nDiagnosis:\n%s\n", rec.Diagnosis)
	}
	if enriched && rec.Solution != "" {
		fmt.Fprintf(&b, "\nSolution:\n%s\n", rec.Solution)
	}

	fmt.Fprintf(&b, "\nAffected hosts: %d (%d CMDB-linked, %d unmatched)\n",
		len(split.Matched)+len(split.Unmatched), len(split.Matched), len(split.Unmatched))
	for _, m := range split.Matched {
		fmt.Fprintf(&b, "  - %s [%s]\n", m.Host.Label(), m.AssetID)
	}
	for _, h := range split.Unmatched {
		fmt.Fprintf(&b, "  - %s [no CMDB match]\n", h.Label())
	}
	return b.String()
}

func (r *Reconciler) composeUpdateNote(ctx context.Context, added, removed []string, split assetmatch.HostSplit) string {
	var b strings.Builder
	b.WriteString("Reconciliation update.\n")

	if len(added) == 0 && len(removed) == 0 {
		b.WriteString("No changes to CMDB-linked hosts.\n")
	}
	for _, id := range added {
		fmt.Fprintf(&b, "Host added: %s\n", r.describeAsset(ctx, id))
	}
	for _, id := range removed {
		fmt.Fprintf(&b, "Host remediated: %s\n", r.describeAsset(ctx, id))
	}
	fmt.Fprintf(&b, "Current footprint: %d CMDB-linked, %d unmatched.",
		len(split.Matched), len(split.Unmatched))
	return b.String()
}

// describeAsset renders an asset id for a work note. A failed or missing
// display-name lookup must not fail the update.
func (r *Reconciler) describeAsset(ctx context.Context, assetID string) string {
	name, ok, err := r.dir.ResolveDisplayName(ctx, assetID)
	if err != nil {
		slog.Warn("Display name lookup failed", "asset_id", assetID, "error", err)
	}
	if err != nil || !ok {
		return fmt.Sprintf("unknown asset (%s)", assetID)
	}
	return fmt.Sprintf("%s (%s)", name, assetID)
}

func orNotAvailable(v string) string {
	if v == "" {
		return "not available"
	}
	return v
}

// splitImpacted parses the persisted impacted-systems field back into asset
// ids, tolerating stray whitespace and empty segments.
func splitImpacted(field string) []string {
	var ids []string
	for _, part := range strings.Split(field, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// difference returns the members of a that are not in b, in a's order.
func difference(a, b []string) []string {
	inB := make(map[string]struct{}, len(b))
	for _, v := range b {
		inB[v] = struct{}{}
	}
	var out []string
	for _, v := range a {
		if _, ok := inB[v]; !ok {
			out = append(out, v)
		}
	}
	return out
}
