package assetmatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulnwatch/go-recon/recon"
	"github.com/vulnwatch/go-recon/recon/assetdir"
)

// mapDirectory is an in-memory Directory for tests.
type mapDirectory struct {
	byIP     map[string]string
	byName   map[string]string // exact, keyed upper-case
	byPrefix map[string]string // prefix, keyed upper-case
	names    map[string]string // sys_id -> display name
	ipErr    error
	calls    int
}

func (d *mapDirectory) FindByIP(ctx context.Context, ip string) (string, bool, error) {
	d.calls++
	if d.ipErr != nil {
		return "", false, d.ipErr
	}
	id, ok := d.byIP[ip]
	return id, ok, nil
}

func (d *mapDirectory) FindByName(ctx context.Context, name string, mode assetdir.MatchMode) (string, bool, error) {
	d.calls++
	if mode == assetdir.MatchPrefix {
		id, ok := d.byPrefix[name]
		return id, ok, nil
	}
	id, ok := d.byName[name]
	return id, ok, nil
}

func (d *mapDirectory) ResolveDisplayName(ctx context.Context, assetID string) (string, bool, error) {
	name, ok := d.names[assetID]
	return name, ok, nil
}

func TestResolveIPWinsFirst(t *testing.T) {
	dir := &mapDirectory{
		byIP:   map[string]string{"10.0.0.5": "sys-ip"},
		byName: map[string]string{"WEB01": "sys-name"},
	}
	m := NewMatcher(dir)

	id, ok := m.Resolve(context.Background(), recon.HostDescriptor{IP: "10.0.0.5", Hostname: "web01"})
	require.True(t, ok)
	assert.Equal(t, "sys-ip", id, "IP match takes priority over name match")
}

func TestResolveFallsBackToExactName(t *testing.T) {
	dir := &mapDirectory{byName: map[string]string{"WEB01": "sys-name"}}
	m := NewMatcher(dir)

	id, ok := m.Resolve(context.Background(), recon.HostDescriptor{IP: "10.9.9.9", Hostname: "web01.corp.example.com"})
	require.True(t, ok)
	assert.Equal(t, "sys-name", id, "short name is truncated at the first dot and upper-cased")
}

func TestResolveFallsBackToPrefix(t *testing.T) {
	dir := &mapDirectory{byPrefix: map[string]string{"DB01": "sys-prefix"}}
	m := NewMatcher(dir)

	id, ok := m.Resolve(context.Background(), recon.HostDescriptor{DNS: "db01.corp.example.com"})
	require.True(t, ok)
	assert.Equal(t, "sys-prefix", id)
}

func TestResolveNoIdentityShortCircuits(t *testing.T) {
	dir := &mapDirectory{}
	m := NewMatcher(dir)

	_, ok := m.Resolve(context.Background(), recon.HostDescriptor{OS: "Linux"})
	assert.False(t, ok)
	assert.Zero(t, dir.calls, "a host with no identity attributes must not query the directory")
}

func TestResolveLookupErrorDegradesToMiss(t *testing.T) {
	dir := &mapDirectory{
		ipErr:  errors.New("connection refused"),
		byName: map[string]string{"WEB01": "sys-name"},
	}
	m := NewMatcher(dir)

	id, ok := m.Resolve(context.Background(), recon.HostDescriptor{IP: "10.0.0.5", Hostname: "web01"})
	require.True(t, ok, "an IP lookup failure falls through to the name tiers")
	assert.Equal(t, "sys-name", id)
}

func TestResolveIdempotent(t *testing.T) {
	dir := &mapDirectory{byIP: map[string]string{"10.0.0.5": "sys-ip"}}
	m := NewMatcher(dir)
	host := recon.HostDescriptor{IP: "10.0.0.5"}

	first, ok1 := m.Resolve(context.Background(), host)
	second, ok2 := m.Resolve(context.Background(), host)
	assert.Equal(t, ok1, ok2)
	assert.Equal(t, first, second)
}

func TestPartitionPreservesOrder(t *testing.T) {
	dir := &mapDirectory{byIP: map[string]string{
		"10.0.0.1": "sys-a",
		"10.0.0.3": "sys-c",
	}}
	m := NewMatcher(dir)

	hosts := []recon.HostDescriptor{
		{IP: "10.0.0.1"},
		{IP: "10.0.0.2", Hostname: "ghost"},
		{IP: "10.0.0.3"},
	}
	split := m.Partition(context.Background(), hosts)

	assert.Equal(t, []string{"sys-a", "sys-c"}, split.AssetIDs())
	require.Len(t, split.Unmatched, 1)
	assert.Equal(t, "10.0.0.2", split.Unmatched[0].IP)
}
