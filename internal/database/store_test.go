// Package database_test tests the store against a real SQLite database file
// with the embedded migrations applied.
package database_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/edgard/intakebot/internal/database"
)

func newTestStore(t *testing.T) database.Store {
	t.Helper()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.CloseDB(db) })

	return database.NewStore(db, nil)
}

func TestCreateRequest(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t)

	t.Run("with branch", func(t *testing.T) {
		id, err := store.CreateRequest(ctx, 100, "downtown")
		if err != nil {
			t.Fatalf("CreateRequest failed: %v", err)
		}
		if len(id) != 6 {
			t.Errorf("Request id = %q, want six digits", id)
		}

		req, err := store.GetRequest(ctx, id)
		if err != nil {
			t.Fatalf("GetRequest failed: %v", err)
		}
		if req.RequesterID != 100 {
			t.Errorf("RequesterID = %d, want 100", req.RequesterID)
		}
		if !req.Branch.Valid || req.Branch.String != "downtown" {
			t.Errorf("Branch = %+v, want downtown", req.Branch)
		}
		if req.AdminResponse.Valid {
			t.Errorf("AdminResponse = %+v, want NULL", req.AdminResponse)
		}
	})

	t.Run("without branch stores NULL", func(t *testing.T) {
		id, err := store.CreateRequest(ctx, 101, "")
		if err != nil {
			t.Fatalf("CreateRequest failed: %v", err)
		}

		req, err := store.GetRequest(ctx, id)
		if err != nil {
			t.Fatalf("GetRequest failed: %v", err)
		}
		if req.Branch.Valid {
			t.Errorf("Branch = %+v, want NULL", req.Branch)
		}
	})

	t.Run("zero requester rejected", func(t *testing.T) {
		if _, err := store.CreateRequest(ctx, 0, "downtown"); err == nil {
			t.Error("CreateRequest with zero requester_id succeeded, want error")
		}
	})

	t.Run("identities unique", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := range 50 {
			id, err := store.CreateRequest(ctx, int64(200+i), "")
			if err != nil {
				t.Fatalf("CreateRequest %d failed: %v", i, err)
			}
			if seen[id] {
				t.Fatalf("Duplicate request id %q", id)
			}
			seen[id] = true
		}
	})
}

func TestAppendItem(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t)

	id, err := store.CreateRequest(ctx, 100, "downtown")
	if err != nil {
		t.Fatalf("CreateRequest failed: %v", err)
	}

	t.Run("valid kinds persist in order", func(t *testing.T) {
		entries := []struct {
			kind    database.ContentKind
			content string
		}{
			{database.KindText, "the printer is on fire"},
			{database.KindPhoto, "photo-file-id-1"},
			{database.KindVideo, "video-file-id-1"},
			{database.KindVoice, "voice-file-id-1"},
		}
		for _, e := range entries {
			if err := store.AppendItem(ctx, id, e.kind, e.content); err != nil {
				t.Fatalf("AppendItem(%s) failed: %v", e.kind, err)
			}
		}

		req, err := store.GetRequest(ctx, id)
		if err != nil {
			t.Fatalf("GetRequest failed: %v", err)
		}
		if len(req.Items) != len(entries) {
			t.Fatalf("Item count = %d, want %d", len(req.Items), len(entries))
		}
		for i, item := range req.Items {
			if item.Kind != entries[i].kind || item.Content != entries[i].content {
				t.Errorf("Item %d = {%s %q}, want {%s %q}",
					i, item.Kind, item.Content, entries[i].kind, entries[i].content)
			}
		}
	})

	t.Run("invalid kind leaves no row", func(t *testing.T) {
		before, err := store.GetRequest(ctx, id)
		if err != nil {
			t.Fatalf("GetRequest failed: %v", err)
		}

		err = store.AppendItem(ctx, id, database.ContentKind("sticker"), "sticker-file-id")
		if !errors.Is(err, database.ErrInvalidKind) {
			t.Fatalf("AppendItem error = %v, want ErrInvalidKind", err)
		}

		after, err := store.GetRequest(ctx, id)
		if err != nil {
			t.Fatalf("GetRequest failed: %v", err)
		}
		if len(after.Items) != len(before.Items) {
			t.Errorf("Item count changed from %d to %d after rejected append",
				len(before.Items), len(after.Items))
		}
	})

	t.Run("unknown request", func(t *testing.T) {
		err := store.AppendItem(ctx, "000000", database.KindText, "orphan")
		if !errors.Is(err, database.ErrNotFound) {
			t.Errorf("AppendItem error = %v, want ErrNotFound", err)
		}
	})
}

func TestGetRequestNotFound(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	_, err := store.GetRequest(context.Background(), "999999")
	if !errors.Is(err, database.ErrNotFound) {
		t.Errorf("GetRequest error = %v, want ErrNotFound", err)
	}
}

func TestUpdateRequest(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t)

	id, err := store.CreateRequest(ctx, 100, "")
	if err != nil {
		t.Fatalf("CreateRequest failed: %v", err)
	}

	t.Run("partial updates", func(t *testing.T) {
		branch := "riverside"
		if err := store.UpdateRequest(ctx, id, database.RequestChanges{Branch: &branch}); err != nil {
			t.Fatalf("UpdateRequest(branch) failed: %v", err)
		}

		response := "we will send a technician tomorrow"
		if err := store.UpdateRequest(ctx, id, database.RequestChanges{AdminResponse: &response}); err != nil {
			t.Fatalf("UpdateRequest(admin_response) failed: %v", err)
		}

		req, err := store.GetRequest(ctx, id)
		if err != nil {
			t.Fatalf("GetRequest failed: %v", err)
		}
		if !req.Branch.Valid || req.Branch.String != branch {
			t.Errorf("Branch = %+v, want %q", req.Branch, branch)
		}
		if !req.AdminResponse.Valid || req.AdminResponse.String != response {
			t.Errorf("AdminResponse = %+v, want %q", req.AdminResponse, response)
		}
	})

	t.Run("no changes is a no-op", func(t *testing.T) {
		if err := store.UpdateRequest(ctx, id, database.RequestChanges{}); err != nil {
			t.Errorf("UpdateRequest with no changes failed: %v", err)
		}
	})

	t.Run("unknown request", func(t *testing.T) {
		branch := "downtown"
		err := store.UpdateRequest(ctx, "000000", database.RequestChanges{Branch: &branch})
		if !errors.Is(err, database.ErrNotFound) {
			t.Errorf("UpdateRequest error = %v, want ErrNotFound", err)
		}
	})
}

func TestClearItems(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t)

	id, err := store.CreateRequest(ctx, 100, "downtown")
	if err != nil {
		t.Fatalf("CreateRequest failed: %v", err)
	}
	for _, content := range []string{"first", "second"} {
		if err := store.AppendItem(ctx, id, database.KindText, content); err != nil {
			t.Fatalf("AppendItem failed: %v", err)
		}
	}

	if err := store.ClearItems(ctx, id); err != nil {
		t.Fatalf("ClearItems failed: %v", err)
	}

	req, err := store.GetRequest(ctx, id)
	if err != nil {
		t.Fatalf("GetRequest after ClearItems failed: %v", err)
	}
	if len(req.Items) != 0 {
		t.Errorf("Item count = %d after ClearItems, want 0", len(req.Items))
	}
	if req.RequesterID != 100 {
		t.Errorf("Request row damaged by ClearItems: %+v", req)
	}

	// Clearing an already-empty request is not an error.
	if err := store.ClearItems(ctx, id); err != nil {
		t.Errorf("ClearItems on empty request failed: %v", err)
	}
}

func TestListRequestsSince(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t)

	start := time.Now().UTC().Add(-time.Minute)

	first, err := store.CreateRequest(ctx, 100, "downtown")
	if err != nil {
		t.Fatalf("CreateRequest failed: %v", err)
	}
	if err := store.AppendItem(ctx, first, database.KindText, "hello"); err != nil {
		t.Fatalf("AppendItem failed: %v", err)
	}

	second, err := store.CreateRequest(ctx, 101, "riverside")
	if err != nil {
		t.Fatalf("CreateRequest failed: %v", err)
	}

	t.Run("window includes both", func(t *testing.T) {
		requests, err := store.ListRequestsSince(ctx, start)
		if err != nil {
			t.Fatalf("ListRequestsSince failed: %v", err)
		}
		if len(requests) != 2 {
			t.Fatalf("Request count = %d, want 2", len(requests))
		}

		byID := make(map[string]int, len(requests))
		for _, r := range requests {
			byID[r.ID] = len(r.Items)
		}
		if byID[first] != 1 {
			t.Errorf("Request %s item count = %d, want 1", first, byID[first])
		}
		if byID[second] != 0 {
			t.Errorf("Request %s item count = %d, want 0", second, byID[second])
		}
	})

	t.Run("future window is empty", func(t *testing.T) {
		requests, err := store.ListRequestsSince(ctx, time.Now().UTC().Add(time.Hour))
		if err != nil {
			t.Fatalf("ListRequestsSince failed: %v", err)
		}
		if len(requests) != 0 {
			t.Errorf("Request count = %d, want 0", len(requests))
		}
	})
}

func TestRunMaintenance(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	if err := store.RunMaintenance(context.Background()); err != nil {
		t.Errorf("RunMaintenance failed: %v", err)
	}
}
