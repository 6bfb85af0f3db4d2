// Package store persists projects in sqlite and pushes per-owner snapshots
// to subscribers after every change.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/project"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/shared/id"
)

var (
	ErrNotFound  = errors.New("project not found")
	ErrNoOwner   = errors.New("project has no owner")
	ErrDuplicate = errors.New("project already exists")
)

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used to stamp created_at and updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Store is the project persistence collaborator.
type Store struct {
	db     *sql.DB
	now    func() time.Time
	logger *zap.Logger

	mu     sync.Mutex
	subs   map[string]map[int]chan []project.Project
	nextID int
}

// New wraps an open database.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		now:    time.Now,
		logger: zap.NewNop(),
		subs:   make(map[string]map[int]chan []project.Project),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open opens the database file at path and wraps it.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := OpenDB(path, WithMkdirAll())
	if err != nil {
		return nil, err
	}
	return New(db, opts...), nil
}

// Close closes every subscription and the database.
func (s *Store) Close() error {
	s.mu.Lock()
	for owner, chans := range s.subs {
		for _, ch := range chans {
			close(ch)
		}
		delete(s.subs, owner)
	}
	s.mu.Unlock()
	return s.db.Close()
}

// Create inserts p and returns its id. A project without an id gets one.
func (s *Store) Create(ctx context.Context, p project.Project) (string, error) {
	if p.OwnerID == "" {
		return "", ErrNoOwner
	}
	if p.ID == "" {
		p.ID = id.NewProjectID().String()
	}
	files, err := p.Files.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("encode files: %w", err)
	}
	now := s.now().UnixNano()

	err = runTx(ctx, s.db, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects WHERE id = ?`, p.ID).Scan(&exists)
		if err != nil {
			return err
		}
		if exists > 0 {
			return ErrDuplicate
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO projects (id, owner_id, title, files, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			p.ID, p.OwnerID, p.Title, string(files), now, now)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("create project: %w", err)
	}

	s.logger.Debug("Created project", zap.String("id", p.ID), zap.String("owner", p.OwnerID))
	s.publish(ctx, p.OwnerID)
	return p.ID, nil
}

// Update replaces the title and files of an existing project.
func (s *Store) Update(ctx context.Context, projectID string, p project.Project) error {
	files, err := p.Files.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode files: %w", err)
	}
	now := s.now().UnixNano()

	var owner string
	err = runTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `SELECT owner_id FROM projects WHERE id = ?`, projectID).Scan(&owner); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE projects SET title = ?, files = ?, updated_at = ? WHERE id = ?`,
			p.Title, string(files), now, projectID)
		return err
	})
	if err != nil {
		return fmt.Errorf("update project %s: %w", projectID, err)
	}

	s.publish(ctx, owner)
	return nil
}

// Delete removes a project.
func (s *Store) Delete(ctx context.Context, projectID string) error {
	var owner string
	err := runTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `SELECT owner_id FROM projects WHERE id = ?`, projectID).Scan(&owner); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, projectID)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete project %s: %w", projectID, err)
	}

	s.publish(ctx, owner)
	return nil
}

// Get loads one project, normalised for editing.
func (s *Store) Get(ctx context.Context, projectID string) (project.Project, error) {
	row := s.db.QueryRowContext(ctx, selectProjects+` WHERE id = ?`, projectID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return project.Project{}, fmt.Errorf("get project %s: %w", projectID, ErrNotFound)
	}
	if err != nil {
		return project.Project{}, fmt.Errorf("get project %s: %w", projectID, err)
	}
	return rec.Project(), nil
}

// List returns the owner's projects, most recently updated first. Projects
// without updated_at sort last; ties break by id.
func (s *Store) List(ctx context.Context, ownerID string) ([]project.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		selectProjects+` WHERE owner_id = ? ORDER BY updated_at IS NULL, updated_at DESC, id ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	out := []project.Project{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("list projects: %w", err)
		}
		out = append(out, rec.Project())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return out, nil
}

// ImportRecord writes a raw record as is, including legacy fields and absent
// timestamps. It exists for migrations from older stores.
func (s *Store) ImportRecord(ctx context.Context, rec project.Record) error {
	var files sql.NullString
	if rec.Files != nil {
		b, err := rec.Files.MarshalJSON()
		if err != nil {
			return fmt.Errorf("encode files: %w", err)
		}
		files = sql.NullString{String: string(b), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO projects (id, owner_id, title, files, jsx, css, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.OwnerID, rec.Title, files, rec.JSX, rec.CSS, nullTime(rec.CreatedAt), nullTime(rec.UpdatedAt))
	if err != nil {
		return fmt.Errorf("import project %s: %w", rec.ID, err)
	}
	s.publish(ctx, rec.OwnerID)
	return nil
}

const selectProjects = `SELECT id, owner_id, title, files, jsx, css, created_at, updated_at FROM projects`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (project.Record, error) {
	var (
		rec              project.Record
		files            sql.NullString
		created, updated sql.NullInt64
	)
	if err := row.Scan(&rec.ID, &rec.OwnerID, &rec.Title, &files, &rec.JSX, &rec.CSS, &created, &updated); err != nil {
		return project.Record{}, err
	}
	if files.Valid && files.String != "" {
		var f project.Files
		if err := f.UnmarshalJSON([]byte(files.String)); err != nil {
			return project.Record{}, fmt.Errorf("decode files of %s: %w", rec.ID, err)
		}
		rec.Files = &f
	}
	rec.CreatedAt = timePtr(created)
	rec.UpdatedAt = timePtr(updated)
	return rec, nil
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(0, v.Int64).UTC()
	return &t
}

func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}
