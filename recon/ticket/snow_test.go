package ticket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSnowFindOpenTicket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		json.NewEncoder(w).Encode(tableResponse{Result: []Ticket{
			{SysID: "abc", QID: "38170", State: "open"},
			{SysID: "def", QID: "90123", State: "open"},
		}})
	}))
	defer srv.Close()

	store := NewSnowStore(srv.URL, "sc_req_item", "u", "p")
	found, err := store.FindOpenTicket(context.Background(), "cat-1", "90123")
	if err != nil {
		t.Fatalf("FindOpenTicket failed: %v", err)
	}
	if found == nil || found.SysID != "def" {
		t.Fatalf("expected ticket def, got %+v", found)
	}

	missing, err := store.FindOpenTicket(context.Background(), "cat-1", "99999")
	if err != nil {
		t.Fatalf("FindOpenTicket failed: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown QID, got %+v", missing)
	}
}

func TestSnowAppendWorkNote(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"result":{}}`))
	}))
	defer srv.Close()

	store := NewSnowStore(srv.URL, "sc_req_item", "u", "p")
	err := store.AppendWorkNote(context.Background(), &Ticket{SysID: "abc"}, "hosts changed")
	if err != nil {
		t.Fatalf("AppendWorkNote failed: %v", err)
	}

	if gotMethod != http.MethodPatch {
		t.Errorf("expected PATCH, got %s", gotMethod)
	}
	if gotPath != "/api/now/table/sc_req_item/abc" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotBody["work_notes"] != "hosts changed" {
		t.Errorf("unexpected body %+v", gotBody)
	}
}

func TestSnowCreateTicketIncludesCatalogItem(t *testing.T) {
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(recordResponse{Result: Ticket{SysID: "new-1", Number: "RITM100"}})
	}))
	defer srv.Close()

	store := NewSnowStore(srv.URL, "sc_req_item", "u", "p")
	created, err := store.CreateTicket(context.Background(), "cat-1", Fields{"u_qid": "90123"})
	if err != nil {
		t.Fatalf("CreateTicket failed: %v", err)
	}

	if created.SysID != "new-1" {
		t.Errorf("unexpected ticket %+v", created)
	}
	if gotBody["cat_item"] != "cat-1" || gotBody["u_qid"] != "90123" {
		t.Errorf("unexpected payload %+v", gotBody)
	}
}
