// Package engine contains the reconciliation core: grouping detections by
// QID, the per-QID create/update/flag decision logic, and the run
// orchestrator that drives the pipeline end to end.
package engine

import "github.com/vulnwatch/go-recon/recon"

// VulnGroup collects every detection of one QID within a run. Severity is
// taken from the first detection seen and never reconciled against later
// ones. Hosts keep detection order.
type VulnGroup struct {
	QID        string
	Severity   int
	Detections []recon.Detection
}

// Hosts returns the group's host descriptors in detection order.
func (g *VulnGroup) Hosts() []recon.HostDescriptor {
	hosts := make([]recon.HostDescriptor, 0, len(g.Detections))
	for _, d := range g.Detections {
		hosts = append(hosts, d.Host)
	}
	return hosts
}

// GroupSet holds the run's groups in first-occurrence order.
type GroupSet struct {
	order []string
	byQID map[string]*VulnGroup
}

// GroupDetections partitions detections by QID in a single pass. The first
// detection of a QID establishes the group and its severity; later ones only
// append their host.
func GroupDetections(detections []recon.Detection) *GroupSet {
	set := &GroupSet{byQID: make(map[string]*VulnGroup)}
	for _, d := range detections {
		group, ok := set.byQID[d.QID]
		if !ok {
			group = &VulnGroup{QID: d.QID, Severity: d.Severity}
			set.byQID[d.QID] = group
			set.order = append(set.order, d.QID)
		}
		group.Detections = append(group.Detections, d)
	}
	return set
}

// QIDs returns the group keys in first-occurrence order.
func (s *GroupSet) QIDs() []string {
	return s.order
}

// Get returns the group for a QID.
func (s *GroupSet) Get(qid string) (*VulnGroup, bool) {
	g, ok := s.byQID[qid]
	return g, ok
}

// Len reports the number of groups.
func (s *GroupSet) Len() int {
	return len(s.order)
}
