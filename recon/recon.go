// Package recon holds the shared domain types for the exception-ticket
// reconciler: scanner detections, host identity data, and run outcomes.
package recon

import "strings"

// HostDescriptor carries the identity attributes of one machine as reported
// by the scanner. Any field may be empty; matching requires at least one of
// IP, Hostname, or DNS.
type HostDescriptor struct {
	IP         string `json:"ip"`
	DNS        string `json:"dns"`
	Hostname   string `json:"hostname"`
	TrackingID string `json:"trackingId,omitempty"`
	OS         string `json:"os,omitempty"`
}

// ShortName derives the name used for directory matching: the hostname (or
// the DNS name when no hostname was reported), truncated at the first dot
// and upper-cased. Returns "" when neither is present.
func (h HostDescriptor) ShortName() string {
	name := h.Hostname
	if name == "" {
		name = h.DNS
	}
	if name == "" {
		return ""
	}
	if i := strings.Index(name, "."); i >= 0 {
		name = name[:i]
	}
	return strings.ToUpper(name)
}

// Label returns the best human-readable identifier for the host, preferring
// hostname over DNS over IP.
func (h HostDescriptor) Label() string {
	switch {
	case h.Hostname != "":
		return h.Hostname
	case h.DNS != "":
		return h.DNS
	case h.IP != "":
		return h.IP
	default:
		return "(unidentified host)"
	}
}

// Detection is one (host, vulnerability, status) observation pulled from the
// scanner. Timestamps are kept as the scanner's own strings and never
// reinterpreted.
type Detection struct {
	QID        string         `json:"qid"`
	Severity   int            `json:"severity"`
	Status     string         `json:"status"`
	FirstFound string         `json:"firstFound"`
	LastFound  string         `json:"lastFound"`
	Host       HostDescriptor `json:"host"`
}

// Outcome labels the result of reconciling one QID.
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeFlagged Outcome = "flagged"
	OutcomeSkipped Outcome = "skipped"
	OutcomeError   Outcome = "error"
)

// RunStats aggregates reconciliation outcomes for one run.
type RunStats struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Flagged int `json:"flagged"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// Record increments the counter matching the given outcome.
func (s *RunStats) Record(o Outcome) {
	switch o {
	case OutcomeCreated:
		s.Created++
	case OutcomeUpdated:
		s.Updated++
	case OutcomeFlagged:
		s.Flagged++
	case OutcomeSkipped:
		s.Skipped++
	default:
		s.Errors++
	}
}

// Total returns the number of QIDs accounted for in the stats.
func (s RunStats) Total() int {
	return s.Created + s.Updated + s.Flagged + s.Skipped + s.Errors
}
