package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"aura-server/internal/world"
)

// SQLiteStore is the durable Store backed by a single SQLite file. A single
// connection keeps writes serialized; the realtime path never waits on it
// while holding engine locks.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and creates if needed) the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS players (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	hue        REAL NOT NULL DEFAULT 200,
	xp         REAL NOT NULL DEFAULT 0,
	stars      INTEGER NOT NULL DEFAULT 0,
	echoes     INTEGER NOT NULL DEFAULT 0,
	last_seen  INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS echoes (
	id         TEXT PRIMARY KEY,
	realm      TEXT NOT NULL,
	x          REAL NOT NULL,
	y          REAL NOT NULL,
	text       TEXT NOT NULL,
	hue        REAL NOT NULL,
	author     TEXT NOT NULL,
	ignited    INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_echoes_realm ON echoes(realm, created_at);
CREATE TABLE IF NOT EXISTS lit_markers (
	realm     TEXT NOT NULL,
	marker_id TEXT NOT NULL,
	lit_at    INTEGER NOT NULL,
	PRIMARY KEY (realm, marker_id)
);`)
	return err
}

// GetPlayer fetches one player record.
func (s *SQLiteStore) GetPlayer(ctx context.Context, id string) (PlayerRecord, error) {
	var rec PlayerRecord
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, hue, xp, stars, echoes, last_seen, created_at FROM players WHERE id = ?`, id)
	err := row.Scan(&rec.ID, &rec.Name, &rec.Hue, &rec.XP, &rec.Stars, &rec.Echoes, &rec.LastSeen, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return PlayerRecord{}, ErrNotFound
	}
	if err != nil {
		return PlayerRecord{}, err
	}
	return rec, nil
}

// UpsertPlayer inserts or replaces the mutable profile fields. CreatedAt is
// preserved for existing rows; LastSeen is always refreshed.
func (s *SQLiteStore) UpsertPlayer(ctx context.Context, rec PlayerRecord) error {
	now := time.Now().UnixMilli()
	if rec.CreatedAt == 0 {
		rec.CreatedAt = now
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO players (id, name, hue, xp, stars, echoes, last_seen, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	name = excluded.name,
	hue = excluded.hue,
	xp = excluded.xp,
	last_seen = excluded.last_seen`,
		rec.ID, rec.Name, rec.Hue, rec.XP, rec.Stars, rec.Echoes, now, rec.CreatedAt)
	return err
}

// IncrementStat adds amount to one of the allow-listed stat columns.
func (s *SQLiteStore) IncrementStat(ctx context.Context, id, field string, amount int) error {
	if !validField(field) {
		return ErrBadField
	}
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE players SET %s = %s + ?, last_seen = ? WHERE id = ?`, field, field),
		amount, time.Now().UnixMilli(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListTopByField returns the top players ordered by an allow-listed column.
func (s *SQLiteStore) ListTopByField(ctx context.Context, field string, limit int) ([]PlayerRecord, error) {
	if !validField(field) {
		return nil, ErrBadField
	}
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT id, name, hue, xp, stars, echoes, last_seen, created_at
FROM players ORDER BY %s DESC, id ASC LIMIT ?`, field), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PlayerRecord
	for rows.Next() {
		var rec PlayerRecord
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Hue, &rec.XP, &rec.Stars, &rec.Echoes, &rec.LastSeen, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// AddContentItem persists a planted echo.
func (s *SQLiteStore) AddContentItem(ctx context.Context, e world.Echo) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO echoes (id, realm, x, y, text, hue, author, ignited, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET ignited = excluded.ignited`,
		e.ID, e.Realm, e.X, e.Y, e.Text, e.Hue, e.Author, e.Ignited, e.CreatedAt)
	return err
}

// ListContentByRealm returns the realm's echoes, oldest first.
func (s *SQLiteStore) ListContentByRealm(ctx context.Context, realm string) ([]world.Echo, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, realm, x, y, text, hue, author, ignited, created_at
FROM echoes WHERE realm = ? ORDER BY created_at ASC, id ASC`, realm)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []world.Echo
	for rows.Next() {
		var e world.Echo
		if err := rows.Scan(&e.ID, &e.Realm, &e.X, &e.Y, &e.Text, &e.Hue, &e.Author, &e.Ignited, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// MarkLit records a lit marker. Re-lighting an already lit marker is a no-op.
func (s *SQLiteStore) MarkLit(ctx context.Context, realm, markerID string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO lit_markers (realm, marker_id, lit_at) VALUES (?, ?, ?)
ON CONFLICT(realm, marker_id) DO NOTHING`,
		realm, markerID, time.Now().UnixMilli())
	return err
}

// ListLitMarkers returns the realm's lit marker IDs in sorted order.
func (s *SQLiteStore) ListLitMarkers(ctx context.Context, realm string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT marker_id FROM lit_markers WHERE realm = ? ORDER BY marker_id ASC`, realm)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
