// Package db keeps a copy of the poll feed in SQLite and serves it back as a
// read-only repository source. Votes are never written here.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/marcus/pollexa/internal/assets"
	"github.com/marcus/pollexa/internal/models"
	"github.com/marcus/pollexa/internal/repository"
	_ "modernc.org/sqlite"
)

// DB wraps the database connection
type DB struct {
	conn *sql.DB
	path string
}

// Open opens an existing database
func Open(path string) (*DB, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found: run 'pollexa seed' first")
	}

	conn, err := openConn(path)
	if err != nil {
		return nil, err
	}
	return &DB{conn: conn, path: path}, nil
}

// Initialize creates the database file and schema if needed
func Initialize(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	conn, err := openConn(path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	if _, err := conn.Exec(
		`INSERT INTO schema_info (key, value) VALUES ('version', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		strconv.Itoa(SchemaVersion)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set schema version: %w", err)
	}

	return &DB{conn: conn, path: path}, nil
}

func openConn(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Set busy timeout as fallback protection
	if _, err := conn.Exec("PRAGMA busy_timeout=500"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return conn, nil
}

// Close closes the database
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the database file path
func (db *DB) Path() string {
	return db.path
}

// GetSchemaVersion returns the schema version recorded in the database
func (db *DB) GetSchemaVersion() (int, error) {
	var version string
	err := db.conn.QueryRow("SELECT value FROM schema_info WHERE key = 'version'").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(version)
}

// ImportPolls replaces the stored feed with polls, keeping their order.
// Vote records are not stored. Concurrent imports into the same file wait
// for each other.
func (db *DB) ImportPolls(ctx context.Context, polls []models.Poll) error {
	lock := newImportLock(db.path)
	if err := lock.acquire(importLockTimeout); err != nil {
		return err
	}
	defer lock.release()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{"DELETE FROM post_options", "DELETE FROM posts", "DELETE FROM users"} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear feed: %w", err)
		}
	}

	for i, p := range polls {
		if err := p.Validate(); err != nil {
			return err
		}

		var userID sql.NullString
		if p.Author != nil {
			userID = sql.NullString{String: p.Author.ID, Valid: true}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO users (id, username, image_name) VALUES (?, ?, ?)
				 ON CONFLICT(id) DO UPDATE SET username = excluded.username, image_name = excluded.image_name`,
				p.Author.ID, p.Author.Username, p.Author.Avatar.Name); err != nil {
				return fmt.Errorf("insert user %s: %w", p.Author.ID, err)
			}
		}

		var lastVote sql.NullString
		if p.LastVoteAt != nil {
			lastVote = sql.NullString{String: formatTime(*p.LastVoteAt), Valid: true}
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO posts (id, position, created_at, content, user_id, last_vote_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			p.ID, i, formatTime(p.CreatedAt), p.Content, userID, lastVote); err != nil {
			return fmt.Errorf("insert post %s: %w", p.ID, err)
		}

		for j, o := range p.Options {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO post_options (post_id, id, position, image_name, voted)
				 VALUES (?, ?, ?, ?, ?)`,
				p.ID, o.ID, j, o.Image.Name, o.VotedCount); err != nil {
				return fmt.Errorf("insert option %s/%s: %w", p.ID, o.ID, err)
			}
		}
	}

	return tx.Commit()
}

// CountPolls returns the number of stored posts
func (db *DB) CountPolls(ctx context.Context) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM posts").Scan(&n)
	return n, err
}

type postRow struct {
	id         string
	createdAt  string
	content    string
	userID     sql.NullString
	username   sql.NullString
	userImage  sql.NullString
	lastVoteAt sql.NullString
}

type optionRow struct {
	id        string
	imageName string
	voted     int
}

// loadPolls reads up to limit posts in feed order starting at offset. A
// negative limit reads to the end. Image names are returned unresolved so
// the caller can map failures to decode errors.
func (db *DB) loadPolls(ctx context.Context, limit, offset int) ([]postRow, map[string][]optionRow, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT p.id, p.created_at, p.content, p.user_id, u.username, u.image_name, p.last_vote_at
		FROM posts p LEFT JOIN users u ON u.id = p.user_id
		ORDER BY p.position
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var posts []postRow
	for rows.Next() {
		var r postRow
		if err := rows.Scan(&r.id, &r.createdAt, &r.content, &r.userID, &r.username, &r.userImage, &r.lastVoteAt); err != nil {
			return nil, nil, err
		}
		posts = append(posts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	optRows, err := db.conn.QueryContext(ctx, `
		SELECT post_id, id, image_name, voted FROM post_options
		WHERE post_id IN (SELECT id FROM posts ORDER BY position LIMIT ? OFFSET ?)
		ORDER BY post_id, position`, limit, offset)
	if err != nil {
		return nil, nil, err
	}
	defer optRows.Close()

	options := make(map[string][]optionRow)
	for optRows.Next() {
		var postID string
		var o optionRow
		if err := optRows.Scan(&postID, &o.id, &o.imageName, &o.voted); err != nil {
			return nil, nil, err
		}
		options[postID] = append(options[postID], o)
	}
	return posts, options, optRows.Err()
}

// Source serves the stored feed as a repository.Source. Each fetch opens
// the database, reads it and closes it again.
type Source struct {
	path     string
	catalog  assets.Catalog
	pageSize int
}

// NewSource creates a source over the database at path
func NewSource(path string, catalog assets.Catalog) *Source {
	return &Source{path: path, catalog: catalog}
}

// WithPageSize makes FetchAll return only the first size posts, with later
// posts served by FetchPage. Zero or less means no paging.
func (s *Source) WithPageSize(size int) *Source {
	s.pageSize = size
	return s
}

// FetchAll implements repository.Source
func (s *Source) FetchAll(ctx context.Context) ([]models.Poll, error) {
	return s.FetchPage(ctx, 1)
}

// FetchPage implements repository.Pager. Without a page size every post is
// on page 1 and later pages are empty.
func (s *Source) FetchPage(ctx context.Context, page int) ([]models.Poll, error) {
	limit, offset := -1, 0
	if s.pageSize > 0 {
		limit, offset = s.pageSize, (page-1)*s.pageSize
	} else if page > 1 {
		return []models.Poll{}, nil
	}
	return s.fetch(ctx, limit, offset)
}

func (s *Source) fetch(ctx context.Context, limit, offset int) ([]models.Poll, error) {
	if _, err := os.Stat(s.path); err != nil {
		if os.IsNotExist(err) {
			return nil, repository.NotFound(s.path, nil)
		}
		return nil, repository.ReadFailure(s.path, err)
	}

	database, err := Open(s.path)
	if err != nil {
		return nil, repository.ReadFailure(s.path, err)
	}
	defer database.Close()

	posts, options, err := database.loadPolls(ctx, limit, offset)
	if err != nil {
		return nil, repository.ReadFailure(s.path, err)
	}

	polls := make([]models.Poll, 0, len(posts))
	for _, r := range posts {
		p, err := s.buildPoll(r, options[r.id])
		if err != nil {
			return nil, repository.DecodeFailure(s.path, fmt.Errorf("post %s: %w", r.id, err))
		}
		polls = append(polls, p)
	}
	slog.Debug("feed loaded from database", "path", s.path, "offset", offset, "posts", len(polls))
	return polls, nil
}

func (s *Source) buildPoll(r postRow, opts []optionRow) (models.Poll, error) {
	createdAt, err := parseTime(r.createdAt)
	if err != nil {
		return models.Poll{}, fmt.Errorf("created_at: %w", err)
	}

	p := models.Poll{
		ID:        r.id,
		CreatedAt: createdAt,
		Content:   r.content,
		Options:   make([]models.Option, 0, len(opts)),
	}

	if r.lastVoteAt.Valid {
		t, err := parseTime(r.lastVoteAt.String)
		if err != nil {
			return models.Poll{}, fmt.Errorf("last_vote_at: %w", err)
		}
		p.LastVoteAt = &t
	}

	if r.userID.Valid {
		author, err := repository.ResolveUser(s.catalog, r.userID.String, r.username.String, r.userImage.String)
		if err != nil {
			return models.Poll{}, fmt.Errorf("user: %w", err)
		}
		p.Author = author
	}

	for _, o := range opts {
		opt, err := repository.ResolveOption(s.catalog, o.id, o.imageName, o.voted)
		if err != nil {
			return models.Poll{}, fmt.Errorf("option %s: %w", o.id, err)
		}
		p.Options = append(p.Options, opt)
	}

	return p, p.Validate()
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
