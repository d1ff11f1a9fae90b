package store

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/CosmoTheDev/slacknotify/models"
	"github.com/google/uuid"
	sha256 "github.com/minio/sha256-simd"
)

// EventInput is a reported occurrence before it is grouped and stored.
type EventInput struct {
	EventID      string       `json:"event_id,omitempty"      yaml:"event_id"`
	Message      string       `json:"message"                 yaml:"message"`
	MessageShort string       `json:"message_short,omitempty" yaml:"message_short"`
	Title        string       `json:"title,omitempty"         yaml:"title"`
	Culprit      string       `json:"culprit,omitempty"       yaml:"culprit"`
	Level        models.Level `json:"level,omitempty"         yaml:"level"`
}

// Fingerprint returns the grouping key for in: events with the same message
// and culprit land in the same group.
func (in EventInput) Fingerprint() string {
	sum := sha256.Sum256([]byte(in.Culprit + "\n" + in.Message))
	return hex.EncodeToString(sum[:16])
}

const groupColumns = `id, project_id, fingerprint, message, message_short, title, culprit, level, times_seen, first_seen, last_seen`

// ErrDuplicateEvent is returned when a project already has an event with the
// same external id.
var ErrDuplicateEvent = errors.New("duplicate event")

// RecordEvent stores in under project, creating its group on first sight and
// bumping times_seen otherwise. The returned event has Group, Project and
// Team attached. A resent event id fails with ErrDuplicateEvent and leaves
// its group untouched.
func (s *Store) RecordEvent(ctx context.Context, project *models.Project, in EventInput) (*models.Event, error) {
	if strings.TrimSpace(in.Message) == "" {
		return nil, fmt.Errorf("event message is required")
	}
	in.Level = models.ParseLevel(string(in.Level))
	if in.EventID == "" {
		in.EventID = strings.ReplaceAll(uuid.NewString(), "-", "")
	}

	// The event row is claimed before the group is counted so a duplicate
	// never reaches times_seen.
	evt := models.Event{
		ProjectID:  project.ID,
		EventID:    in.EventID,
		Message:    in.Message,
		Level:      in.Level,
		Culprit:    in.Culprit,
		ReceivedAt: now(),
	}
	if err := s.reserveEvent(ctx, &evt); err != nil {
		return nil, err
	}

	group, err := s.upsertGroup(ctx, project.ID, in)
	if err != nil {
		s.releaseEvent(ctx, evt.ID)
		return nil, err
	}
	evt.GroupID = group.ID
	if err := s.db.Update(ctx, "events", &evt, "id = ?", evt.ID); err != nil {
		return nil, fmt.Errorf("attaching event %s to group %d: %w", evt.EventID, group.ID, err)
	}

	group.URL = s.GroupURL(project, group)
	evt.Group = group
	evt.Project = project
	evt.Team, err = s.teamFor(ctx, project)
	if err != nil {
		return nil, err
	}
	return &evt, nil
}

// reserveEvent inserts evt without a group and sets its ID.
func (s *Store) reserveEvent(ctx context.Context, evt *models.Event) error {
	exists, err := s.eventExists(ctx, evt.ProjectID, evt.EventID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("event %s: %w", evt.EventID, ErrDuplicateEvent)
	}
	id, err := s.db.Insert(ctx, "events", evt)
	if err != nil {
		// Lost a race with a concurrent delivery of the same event.
		if exists, lookupErr := s.eventExists(ctx, evt.ProjectID, evt.EventID); lookupErr == nil && exists {
			return fmt.Errorf("event %s: %w", evt.EventID, ErrDuplicateEvent)
		}
		return err
	}
	evt.ID = id
	return nil
}

// releaseEvent drops a reserved event whose group could not be recorded.
func (s *Store) releaseEvent(ctx context.Context, id int64) {
	if err := s.db.Exec(ctx, `DELETE FROM events WHERE id = ?`, id); err != nil {
		slog.Warn("store: releasing reserved event failed", "id", id, "error", err)
	}
}

func (s *Store) eventExists(ctx context.Context, projectID int64, eventID string) (bool, error) {
	var ref struct {
		ID int64 `db:"id"`
	}
	err := s.db.Get(ctx, &ref, `SELECT id FROM events WHERE project_id = ? AND event_id = ?`, projectID, eventID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	default:
		return false, fmt.Errorf("looking up event %s: %w", eventID, err)
	}
}

func (s *Store) upsertGroup(ctx context.Context, projectID int64, in EventInput) (*models.Group, error) {
	fp := in.Fingerprint()
	ts := now()

	g, err := s.groupByFingerprint(ctx, projectID, fp)
	switch {
	case err == nil:
		return s.touchGroup(ctx, g, in.Level, ts)
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	g = &models.Group{
		ProjectID:    projectID,
		Fingerprint:  fp,
		Message:      in.Message,
		MessageShort: in.MessageShort,
		Title:        in.Title,
		Culprit:      in.Culprit,
		Level:        in.Level,
		TimesSeen:    1,
		FirstSeen:    ts,
		LastSeen:     ts,
	}
	id, err := s.db.Insert(ctx, "issue_groups", g)
	if err != nil {
		// A concurrent event may have created the group first.
		if existing, lookupErr := s.groupByFingerprint(ctx, projectID, fp); lookupErr == nil {
			return s.touchGroup(ctx, existing, in.Level, ts)
		}
		return nil, err
	}
	g.ID = id
	return g, nil
}

// touchGroup records another occurrence on an existing group.
func (s *Store) touchGroup(ctx context.Context, g *models.Group, level models.Level, ts string) (*models.Group, error) {
	if err := s.db.Exec(ctx,
		`UPDATE issue_groups SET times_seen = times_seen + 1, last_seen = ?, level = ? WHERE id = ?`,
		ts, level, g.ID); err != nil {
		return nil, fmt.Errorf("updating group %d: %w", g.ID, err)
	}
	return s.Group(ctx, g.ID)
}

func (s *Store) groupByFingerprint(ctx context.Context, projectID int64, fp string) (*models.Group, error) {
	var g models.Group
	if err := s.db.Get(ctx, &g,
		`SELECT `+groupColumns+` FROM issue_groups WHERE project_id = ? AND fingerprint = ?`,
		projectID, fp); err != nil {
		return nil, notFound(err, "group "+fp)
	}
	return &g, nil
}

// Group loads a group by id. URL is left empty; use GroupURL to derive it.
func (s *Store) Group(ctx context.Context, id int64) (*models.Group, error) {
	var g models.Group
	if err := s.db.Get(ctx, &g, `SELECT `+groupColumns+` FROM issue_groups WHERE id = ?`, id); err != nil {
		return nil, notFound(err, fmt.Sprintf("group %d", id))
	}
	return &g, nil
}

// GroupURL returns the canonical link to group.
func (s *Store) GroupURL(project *models.Project, group *models.Group) string {
	return fmt.Sprintf("%s/%s/issues/%d/", s.baseURL, project.Slug, group.ID)
}

// Event loads a stored event by its external id and attaches its group,
// project and team.
func (s *Store) Event(ctx context.Context, project *models.Project, eventID string) (*models.Event, error) {
	var evt models.Event
	if err := s.db.Get(ctx, &evt,
		`SELECT id, group_id, project_id, event_id, message, level, culprit, received_at
		 FROM events WHERE project_id = ? AND event_id = ?`, project.ID, eventID); err != nil {
		return nil, notFound(err, "event "+eventID)
	}
	g, err := s.Group(ctx, evt.GroupID)
	if err != nil {
		return nil, err
	}
	g.URL = s.GroupURL(project, g)
	evt.Group = g
	evt.Project = project
	if evt.Team, err = s.teamFor(ctx, project); err != nil {
		return nil, err
	}
	return &evt, nil
}

// teamFor returns the project's team, or nil when the project has none.
func (s *Store) teamFor(ctx context.Context, project *models.Project) (*models.Team, error) {
	if project.TeamID == 0 {
		return nil, nil
	}
	t, err := s.Team(ctx, project.TeamID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return t, err
}
