// Package assetmatch resolves scanner host descriptors to CMDB asset ids
// using a fixed match-priority cascade.
package assetmatch

import (
	"context"
	"log/slog"

	"github.com/vulnwatch/go-recon/recon"
	"github.com/vulnwatch/go-recon/recon/assetdir"
)

// MatchedHost pairs a resolved asset id with the original descriptor, which
// is still needed for human-readable rendering.
type MatchedHost struct {
	AssetID string
	Host    recon.HostDescriptor
}

// HostSplit partitions a group's hosts into matched and unmatched, preserving
// the original detection order within each partition.
type HostSplit struct {
	Matched   []MatchedHost
	Unmatched []recon.HostDescriptor
}

// AssetIDs returns the matched asset ids in host order.
func (s HostSplit) AssetIDs() []string {
	ids := make([]string, 0, len(s.Matched))
	for _, m := range s.Matched {
		ids = append(ids, m.AssetID)
	}
	return ids
}

// Matcher resolves hosts against an asset directory.
type Matcher struct {
	dir assetdir.Directory
}

// NewMatcher builds a Matcher over the given directory.
func NewMatcher(dir assetdir.Directory) *Matcher {
	return &Matcher{dir: dir}
}

// Resolve runs the match cascade for one host: IP exact match first, then
// short-hostname exact match, then short-hostname prefix match. The first
// hit wins. A descriptor with no IP, hostname, or DNS name resolves to
// absent without touching the directory. Individual lookup failures are
// logged and treated as misses at that tier.
func (m *Matcher) Resolve(ctx context.Context, host recon.HostDescriptor) (string, bool) {
	shortName := host.ShortName()
	if host.IP == "" && shortName == "" {
		return "", false
	}

	if host.IP != "" {
		id, ok, err := m.dir.FindByIP(ctx, host.IP)
		if err != nil {
			slog.Warn("Asset lookup by IP failed", "ip", host.IP, "error", err)
		} else if ok {
			return id, true
		}
	}

	if shortName != "" {
		id, ok, err := m.dir.FindByName(ctx, shortName, assetdir.MatchExact)
		if err != nil {
			slog.Warn("Asset lookup by name failed", "name", shortName, "error", err)
		} else if ok {
			return id, true
		}

		id, ok, err = m.dir.FindByName(ctx, shortName, assetdir.MatchPrefix)
		if err != nil {
			slog.Warn("Asset prefix lookup failed", "name", shortName, "error", err)
		} else if ok {
			return id, true
		}
	}

	return "", false
}

// Partition resolves every host and splits them into matched and unmatched,
// keeping detection order within each side.
func (m *Matcher) Partition(ctx context.Context, hosts []recon.HostDescriptor) HostSplit {
	var split HostSplit
	for _, host := range hosts {
		if id, ok := m.Resolve(ctx, host); ok {
			split.Matched = append(split.Matched, MatchedHost{AssetID: id, Host: host})
		} else {
			split.Unmatched = append(split.Unmatched, host)
		}
	}
	return split
}
