package store

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/CosmoTheDev/slacknotify/internal/config"
	"github.com/CosmoTheDev/slacknotify/internal/database"
	"github.com/CosmoTheDev/slacknotify/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.NewSQLite(config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "store-test.db")})
	if err != nil {
		t.Fatalf("new sqlite db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	return New(db, "https://errors.example/")
}

func seedProject(t *testing.T, s *Store, slug string) *models.Project {
	t.Helper()
	ctx := context.Background()
	team, err := s.EnsureTeam(ctx, "core", "core")
	if err != nil {
		t.Fatalf("ensure team: %v", err)
	}
	p, err := s.CreateProject(ctx, slug, slug, team.ID)
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	return p
}

func TestOptionsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := seedProject(t, s, "billing")

	if _, ok, err := s.Option(ctx, p.ID, "webhook"); err != nil || ok {
		t.Fatalf("expected unset option, got ok=%v err=%v", ok, err)
	}
	if err := s.SetOption(ctx, p.ID, "webhook", "https://hooks.example/a"); err != nil {
		t.Fatalf("set option: %v", err)
	}
	if err := s.SetOption(ctx, p.ID, "webhook", "https://hooks.example/b"); err != nil {
		t.Fatalf("overwrite option: %v", err)
	}
	v, ok, err := s.Option(ctx, p.ID, "webhook")
	if err != nil || !ok || v != "https://hooks.example/b" {
		t.Fatalf("unexpected option: %q ok=%v err=%v", v, ok, err)
	}

	all, err := s.Options(ctx, p.ID)
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if len(all) != 1 || all["webhook"] != "https://hooks.example/b" {
		t.Fatalf("unexpected options map: %v", all)
	}

	if err := s.DeleteOption(ctx, p.ID, "webhook"); err != nil {
		t.Fatalf("delete option: %v", err)
	}
	if _, ok, _ := s.Option(ctx, p.ID, "webhook"); ok {
		t.Fatalf("option should be gone after delete")
	}
}

func TestRecordEventGroupsAndCountsOccurrences(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := seedProject(t, s, "billing")

	in := EventInput{Message: "NullPointerException", Title: "checkout.process", Culprit: "checkout.process", Level: "error"}
	first, err := s.RecordEvent(ctx, p, in)
	if err != nil {
		t.Fatalf("record first: %v", err)
	}
	if first.Group.TimesSeen != 1 {
		t.Fatalf("expected times_seen 1, got %d", first.Group.TimesSeen)
	}
	if first.EventID == "" || len(first.EventID) != 32 {
		t.Fatalf("expected generated 32-char event id, got %q", first.EventID)
	}

	second, err := s.RecordEvent(ctx, p, in)
	if err != nil {
		t.Fatalf("record second: %v", err)
	}
	if second.Group.ID != first.Group.ID {
		t.Fatalf("expected same group, got %d and %d", first.Group.ID, second.Group.ID)
	}
	if second.Group.TimesSeen != 2 {
		t.Fatalf("expected times_seen 2, got %d", second.Group.TimesSeen)
	}
	wantURL := "https://errors.example/billing/issues/" + itoa(first.Group.ID) + "/"
	if second.Group.URL != wantURL {
		t.Fatalf("expected group url %q, got %q", wantURL, second.Group.URL)
	}
	if second.Team == nil || second.Team.Name != "core" {
		t.Fatalf("expected team core attached, got %+v", second.Team)
	}

	other, err := s.RecordEvent(ctx, p, EventInput{Message: "other failure", Level: "warn"})
	if err != nil {
		t.Fatalf("record other: %v", err)
	}
	if other.Group.ID == first.Group.ID {
		t.Fatalf("different message should open a new group")
	}
	if other.Group.Level != models.LevelWarning {
		t.Fatalf("expected normalised warning level, got %q", other.Group.Level)
	}
}

func TestEventLookup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := seedProject(t, s, "billing")

	rec, err := s.RecordEvent(ctx, p, EventInput{EventID: "abc123", Message: "boom"})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	got, err := s.Event(ctx, p, "abc123")
	if err != nil {
		t.Fatalf("event: %v", err)
	}
	if got.ID != rec.ID || got.Group == nil || got.Group.Message != "boom" || got.Project.Slug != "billing" {
		t.Fatalf("unexpected event: %+v", got)
	}

	if _, err := s.Event(ctx, p, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.ProjectBySlug(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for project, got %v", err)
	}
}

func TestRecordEventRequiresMessage(t *testing.T) {
	s := newTestStore(t)
	p := seedProject(t, s, "billing")
	if _, err := s.RecordEvent(context.Background(), p, EventInput{}); err == nil {
		t.Fatalf("expected error for empty message")
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}

func TestRecordEventRejectsDuplicateEventID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	billing := seedProject(t, s, "billing")
	in := EventInput{EventID: "evt1", Message: "NullPointerException", Culprit: "checkout.process"}

	first, err := s.RecordEvent(ctx, billing, in)
	if err != nil {
		t.Fatalf("record first: %v", err)
	}
	if _, err := s.RecordEvent(ctx, billing, in); !errors.Is(err, ErrDuplicateEvent) {
		t.Fatalf("expected ErrDuplicateEvent, got %v", err)
	}
	g, err := s.Group(ctx, first.Group.ID)
	if err != nil {
		t.Fatalf("load group: %v", err)
	}
	if g.TimesSeen != 1 {
		t.Fatalf("duplicate must not count toward times_seen, got %d", g.TimesSeen)
	}

	// A new occurrence is still "new" relative to the rejected resend.
	next, err := s.RecordEvent(ctx, billing, EventInput{EventID: "evt2", Message: in.Message, Culprit: in.Culprit})
	if err != nil {
		t.Fatalf("record next: %v", err)
	}
	if next.Group.TimesSeen != 2 {
		t.Fatalf("expected times_seen 2, got %d", next.Group.TimesSeen)
	}

	payments, err := s.CreateProject(ctx, "payments", "payments", 0)
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	other, err := s.RecordEvent(ctx, payments, in)
	if err != nil {
		t.Fatalf("same event id in another project: %v", err)
	}
	if other.Group.TimesSeen != 1 || other.Group.ProjectID != payments.ID {
		t.Fatalf("unexpected group for other project: %+v", other.Group)
	}
}

func TestRecordedEventIsAttachedToItsGroup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := seedProject(t, s, "billing")

	recorded, err := s.RecordEvent(ctx, p, EventInput{EventID: "evt1", Message: "boom"})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	loaded, err := s.Event(ctx, p, "evt1")
	if err != nil {
		t.Fatalf("load event: %v", err)
	}
	if loaded.GroupID == 0 || loaded.GroupID != recorded.Group.ID {
		t.Fatalf("expected group id %d, got %d", recorded.Group.ID, loaded.GroupID)
	}
	if loaded.ID != recorded.ID {
		t.Fatalf("expected row id %d, got %d", recorded.ID, loaded.ID)
	}
}
