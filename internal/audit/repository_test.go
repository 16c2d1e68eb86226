package audit

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/nerrad567/appaccess/internal/infrastructure/database/dbtest"
)

func TestSQLiteRepository_CreateAndList(t *testing.T) {
	repo := NewSQLiteRepository(dbtest.Open(t))
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	entries := []Entry{
		{Action: ActionCreate, EntityType: EntityUser, EntityID: "usr-1", UserID: "usr-admin", Source: "api", CreatedAt: base},
		{Action: ActionGrant, EntityType: EntityPermission, EntityID: "prm-1", UserID: "usr-admin", Source: "api",
			Details: map[string]any{"permissionType": "viewer"}, CreatedAt: base.Add(time.Minute)},
		{Action: ActionDelete, EntityType: EntityUser, EntityID: "usr-1", UserID: "usr-other", Source: "api", CreatedAt: base.Add(2 * time.Minute)},
	}
	for i := range entries {
		if err := repo.Create(ctx, &entries[i]); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if entries[i].ID == "" {
			t.Fatal("Create() should assign an ID")
		}
	}

	all, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if all.Total != 3 || len(all.Entries) != 3 || all.Limit != defaultLimit {
		t.Fatalf("List() = %+v", all)
	}
	if all.Entries[0].Action != ActionDelete {
		t.Errorf("first entry = %q, want newest (%q)", all.Entries[0].Action, ActionDelete)
	}
	if got := all.Entries[1].Details["permissionType"]; got != "viewer" {
		t.Errorf("Details[permissionType] = %v, want viewer", got)
	}

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"by entity type", Filter{EntityType: EntityUser}, 2},
		{"by entity id", Filter{EntityID: "prm-1"}, 1},
		{"by actor", Filter{UserID: "usr-admin"}, 2},
		{"combined", Filter{EntityType: EntityUser, Action: ActionDelete}, 1},
		{"no match", Filter{Action: ActionLogin}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if res.Total != tt.want || len(res.Entries) != tt.want {
				t.Errorf("List() total = %d, entries = %d, want %d", res.Total, len(res.Entries), tt.want)
			}
		})
	}
}

func TestSQLiteRepository_ListPagination(t *testing.T) {
	repo := NewSQLiteRepository(dbtest.Open(t))
	ctx := context.Background()

	for range 5 {
		if err := repo.Create(ctx, &Entry{Action: ActionLogin, EntityType: EntitySession, Source: "api"}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	page, err := repo.List(ctx, Filter{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if page.Total != 5 || len(page.Entries) != 1 {
		t.Errorf("List() total = %d, entries = %d, want 5, 1", page.Total, len(page.Entries))
	}

	clamped, _ := repo.List(ctx, Filter{Limit: 10000, Offset: -3})
	if clamped.Limit != maxLimit || clamped.Offset != 0 {
		t.Errorf("List() limit/offset = %d/%d, want %d/0", clamped.Limit, clamped.Offset, maxLimit)
	}
}

type failingRepo struct{ Repository }

func (failingRepo) Create(context.Context, *Entry) error { return errors.New("disk full") }

func TestRecorder_SwallowsErrors(t *testing.T) {
	var nilRecorder *Recorder
	nilRecorder.Record(context.Background(), Entry{Action: ActionLogin})

	r := NewRecorder(failingRepo{}, slog.New(slog.DiscardHandler))
	r.Record(context.Background(), Entry{Action: ActionLogin, EntityType: EntitySession})
}
