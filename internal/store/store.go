// Package store persists the host-side records notifications are built from:
// teams, projects, issue groups, events and per-project options.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/CosmoTheDev/slacknotify/internal/database"
	"github.com/CosmoTheDev/slacknotify/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Store wraps a database.DB with typed accessors.
type Store struct {
	db      database.DB
	baseURL string
}

// New returns a Store. baseURL prefixes the group links it derives.
func New(db database.DB, baseURL string) *Store {
	return &Store{db: db, baseURL: strings.TrimRight(baseURL, "/")}
}

func now() string { return time.Now().UTC().Format(time.RFC3339) }

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("loading %s: %w", what, err)
}

// EnsureTeam returns the team with slug, creating it when missing.
func (s *Store) EnsureTeam(ctx context.Context, slug, name string) (*models.Team, error) {
	var t models.Team
	err := s.db.Get(ctx, &t, `SELECT id, slug, name, created_at FROM teams WHERE slug = ?`, slug)
	if err == nil {
		return &t, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("loading team %s: %w", slug, err)
	}
	if name == "" {
		name = slug
	}
	t = models.Team{Slug: slug, Name: name, CreatedAt: now()}
	id, err := s.db.Insert(ctx, "teams", &t)
	if err != nil {
		return nil, err
	}
	t.ID = id
	return &t, nil
}

// Team loads a team by id.
func (s *Store) Team(ctx context.Context, id int64) (*models.Team, error) {
	var t models.Team
	if err := s.db.Get(ctx, &t, `SELECT id, slug, name, created_at FROM teams WHERE id = ?`, id); err != nil {
		return nil, notFound(err, fmt.Sprintf("team %d", id))
	}
	return &t, nil
}

// CreateProject inserts a new project owned by teamID.
func (s *Store) CreateProject(ctx context.Context, slug, name string, teamID int64) (*models.Project, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, fmt.Errorf("project slug is required")
	}
	if name == "" {
		name = slug
	}
	p := models.Project{Slug: slug, Name: name, TeamID: teamID, CreatedAt: now()}
	id, err := s.db.Insert(ctx, "projects", &p)
	if err != nil {
		return nil, err
	}
	p.ID = id
	return &p, nil
}

// ProjectBySlug loads a project by its slug.
func (s *Store) ProjectBySlug(ctx context.Context, slug string) (*models.Project, error) {
	var p models.Project
	if err := s.db.Get(ctx, &p,
		`SELECT id, slug, name, team_id, created_at FROM projects WHERE slug = ?`, slug); err != nil {
		return nil, notFound(err, "project "+slug)
	}
	return &p, nil
}

// ListProjects returns all projects ordered by slug.
func (s *Store) ListProjects(ctx context.Context) ([]models.Project, error) {
	var out []models.Project
	if err := s.db.Select(ctx, &out,
		`SELECT id, slug, name, team_id, created_at FROM projects ORDER BY slug`); err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	return out, nil
}
