package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulnwatch/go-recon/recon/assetdir"
	"github.com/vulnwatch/go-recon/recon/config"
	"github.com/vulnwatch/go-recon/recon/scanner"
	"github.com/vulnwatch/go-recon/recon/ticket"
)

type stubScanner struct{}

func (stubScanner) PullDetections(ctx context.Context, filters scanner.Filters) (string, error) {
	return "", nil
}

func (stubScanner) FetchKnowledgeBatch(ctx context.Context, qids []string) (string, error) {
	return "<VULN><QID>90123</QID><TITLE>Sample</TITLE></VULN>", nil
}

type stubStore struct{}

func (stubStore) FindOpenTicket(ctx context.Context, catalogItemID, qid string) (*ticket.Ticket, error) {
	return nil, nil
}
func (stubStore) ListOpenTickets(ctx context.Context, catalogItemID string) ([]ticket.Ticket, error) {
	return nil, nil
}
func (stubStore) CreateTicket(ctx context.Context, catalogItemID string, fields ticket.Fields) (*ticket.Ticket, error) {
	return &ticket.Ticket{SysID: "sys-1"}, nil
}
func (stubStore) UpdateTicket(ctx context.Context, t *ticket.Ticket, fields ticket.Fields) error {
	return nil
}
func (stubStore) AppendWorkNote(ctx context.Context, t *ticket.Ticket, note string) error {
	return nil
}
func (stubStore) DeleteTicket(ctx context.Context, t *ticket.Ticket) error { return nil }

type stubDir struct{}

func (stubDir) FindByIP(ctx context.Context, ip string) (string, bool, error) {
	return "", false, nil
}
func (stubDir) FindByName(ctx context.Context, name string, mode assetdir.MatchMode) (string, bool, error) {
	return "", false, nil
}
func (stubDir) ResolveDisplayName(ctx context.Context, assetID string) (string, bool, error) {
	return "", false, nil
}

func stubBackends(closed *int) *backends {
	return &backends{
		api:   stubScanner{},
		store: stubStore{},
		dir:   stubDir{},
		closer: func() error {
			*closed++
			return nil
		},
	}
}

func TestRunPipelineGetsFreshCachePerRun(t *testing.T) {
	var closed int
	b := stubBackends(&closed)
	var cfg config.Config

	_, first := newRunPipeline(&cfg, b)
	first.FetchBatch(context.Background(), []string{"90123"})
	require.Equal(t, 1, first.Len())

	// A second run over the same backends must not see the first run's
	// enrichment; the cache is per-run state.
	_, second := newRunPipeline(&cfg, b)
	assert.Zero(t, second.Len())
	assert.NotSame(t, first, second)

	assert.Zero(t, closed, "building pipelines never closes the shared backends")
}

func TestBackendsCloseReleasesPool(t *testing.T) {
	var closed int
	b := stubBackends(&closed)

	require.NoError(t, b.Close())
	assert.Equal(t, 1, closed)
}

func TestBackendsCloseWithoutCloser(t *testing.T) {
	b := &backends{api: stubScanner{}, store: stubStore{}, dir: stubDir{}}
	assert.NoError(t, b.Close())
}
