package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/vulnwatch/go-recon/recon/assetdir"
	"github.com/vulnwatch/go-recon/recon/knowledge"
	"github.com/vulnwatch/go-recon/recon/scanner"
	"github.com/vulnwatch/go-recon/recon/ticket"
)

// fakeStore is an in-memory ticket.Store recording all mutations.
type fakeStore struct {
	tickets     map[string]*ticket.Ticket // keyed by sys_id
	notes       map[string][]string       // sys_id -> appended work notes
	createdQIDs []string
	nextID      int

	findErr   error
	createErr error
	updateErr error
	noteErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tickets: make(map[string]*ticket.Ticket),
		notes:   make(map[string][]string),
	}
}

func (f *fakeStore) FindOpenTicket(ctx context.Context, catalogItemID, qid string) (*ticket.Ticket, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, t := range f.tickets {
		if t.QID == qid && t.Open() {
			copied := *t
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ListOpenTickets(ctx context.Context, catalogItemID string) ([]ticket.Ticket, error) {
	var out []ticket.Ticket
	for _, t := range f.tickets {
		if t.Open() {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateTicket(ctx context.Context, catalogItemID string, fields ticket.Fields) (*ticket.Ticket, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	t := &ticket.Ticket{
		SysID:  fmt.Sprintf("sys-%d", f.nextID),
		Number: fmt.Sprintf("RITM%03d", f.nextID),
	}
	applyFields(t, fields)
	f.tickets[t.SysID] = t
	f.createdQIDs = append(f.createdQIDs, t.QID)
	copied := *t
	return &copied, nil
}

func (f *fakeStore) UpdateTicket(ctx context.Context, t *ticket.Ticket, fields ticket.Fields) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	stored, ok := f.tickets[t.SysID]
	if !ok {
		return errors.New("no such ticket")
	}
	applyFields(stored, fields)
	return nil
}

func (f *fakeStore) AppendWorkNote(ctx context.Context, t *ticket.Ticket, note string) error {
	if f.noteErr != nil {
		return f.noteErr
	}
	if _, ok := f.tickets[t.SysID]; !ok {
		return errors.New("no such ticket")
	}
	f.notes[t.SysID] = append(f.notes[t.SysID], note)
	return nil
}

func (f *fakeStore) DeleteTicket(ctx context.Context, t *ticket.Ticket) error {
	if _, ok := f.tickets[t.SysID]; !ok {
		return errors.New("no such ticket")
	}
	delete(f.tickets, t.SysID)
	return nil
}

// only returns the single stored ticket; fails the calling test setup when
// the store holds anything but exactly one.
func (f *fakeStore) only() *ticket.Ticket {
	if len(f.tickets) != 1 {
		panic(fmt.Sprintf("fakeStore.only: %d tickets", len(f.tickets)))
	}
	for _, t := range f.tickets {
		return t
	}
	return nil
}

func applyFields(t *ticket.Ticket, fields ticket.Fields) {
	for k, v := range fields {
		switch k {
		case "u_qid":
			t.QID = v
		case "short_description":
			t.ShortDescription = v
		case "u_impacted_systems":
			t.ImpactedSystems = v
		case "u_justification":
			t.Justification = v
		case "state":
			t.State = v
		}
	}
}

// fakeDir is an in-memory assetdir.Directory.
type fakeDir struct {
	byIP    map[string]string
	byName  map[string]string
	names   map[string]string
	nameErr error
}

func (d *fakeDir) FindByIP(ctx context.Context, ip string) (string, bool, error) {
	id, ok := d.byIP[ip]
	return id, ok, nil
}

func (d *fakeDir) FindByName(ctx context.Context, name string, mode assetdir.MatchMode) (string, bool, error) {
	id, ok := d.byName[name]
	return id, ok, nil
}

func (d *fakeDir) ResolveDisplayName(ctx context.Context, assetID string) (string, bool, error) {
	if d.nameErr != nil {
		return "", false, d.nameErr
	}
	name, ok := d.names[assetID]
	return name, ok, nil
}

// fakeScanner serves canned blobs for the orchestrator tests.
type fakeScanner struct {
	detectionBlob string
	detectionErr  error
	kbBlob        string
	kbCalls       int
}

func (f *fakeScanner) PullDetections(ctx context.Context, filters scanner.Filters) (string, error) {
	if f.detectionErr != nil {
		return "", f.detectionErr
	}
	return f.detectionBlob, nil
}

func (f *fakeScanner) FetchKnowledgeBatch(ctx context.Context, qids []string) (string, error) {
	f.kbCalls++
	return f.kbBlob, nil
}

// newTestReconciler wires a reconciler over fakes with an empty knowledge
// cache unless a kb blob is preloaded through the scanner fake.
func newTestReconciler(store *fakeStore, dir *fakeDir) (*Reconciler, *knowledge.Cache) {
	cache := knowledge.NewCache(&fakeScanner{}, 0)
	return NewReconciler(store, dir, cache, "cat-exception"), cache
}
