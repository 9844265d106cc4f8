package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/isocanvas/isocanvas/internal/document"
	"github.com/isocanvas/isocanvas/internal/typeid"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS scenes (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS revisions (
    id         TEXT PRIMARY KEY,
    scene_id   TEXT NOT NULL REFERENCES scenes(id) ON DELETE CASCADE,
    version    INTEGER NOT NULL,
    document   TEXT NOT NULL,
    created_at TEXT NOT NULL,
    UNIQUE (scene_id, version)
);
`

// SQLite is a Repository backed by a local SQLite file.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (creating if needed) the database at path and applies the
// schema.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?mode=rwc&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLite{db: db, now: time.Now}, nil
}

func (r *SQLite) Close() error { return r.db.Close() }

func (r *SQLite) CreateScene(ctx context.Context, id, name string) (*SceneInfo, error) {
	now := r.now().UTC()
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO scenes (id, name, created_at, updated_at)
        VALUES (?, ?, ?, ?)
    `, id, name, formatTime(now), formatTime(now))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, fmt.Errorf("%w: %s", ErrExists, id)
		}
		return nil, fmt.Errorf("create scene: %w", err)
	}
	return &SceneInfo{ID: id, Name: name, CreatedAt: now, UpdatedAt: now}, nil
}

const sqliteSceneQuery = `
    SELECT s.id, s.name, s.created_at, s.updated_at,
           COALESCE((SELECT MAX(version) FROM revisions WHERE scene_id = s.id), 0)
    FROM scenes s
`

func (r *SQLite) GetScene(ctx context.Context, id string) (*SceneInfo, error) {
	row := r.db.QueryRowContext(ctx, sqliteSceneQuery+` WHERE s.id = ?`, id)
	info, err := scanSQLiteScene(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return info, err
}

func (r *SQLite) ListScenes(ctx context.Context) ([]SceneInfo, error) {
	rows, err := r.db.QueryContext(ctx, sqliteSceneQuery+` ORDER BY s.updated_at DESC, s.id`)
	if err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	defer rows.Close()

	var out []SceneInfo
	for rows.Next() {
		info, err := scanSQLiteScene(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *info)
	}
	return out, rows.Err()
}

func (r *SQLite) DeleteScene(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM revisions WHERE scene_id = ?`, id); err != nil {
		return fmt.Errorf("delete revisions: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM scenes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete scene: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return tx.Commit()
}

func (r *SQLite) SaveRevision(ctx context.Context, sceneID string, doc *document.Document) (*Revision, error) {
	data, err := encode(doc)
	if err != nil {
		return nil, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM scenes WHERE id = ?`, sceneID).Scan(&exists); err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sceneID)
	}

	var version int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM revisions WHERE scene_id = ?`, sceneID,
	).Scan(&version); err != nil {
		return nil, fmt.Errorf("next version: %w", err)
	}

	rev := &Revision{
		ID:        typeid.NewRevisionID(),
		SceneID:   sceneID,
		Version:   version,
		CreatedAt: r.now().UTC(),
	}
	if _, err := tx.ExecContext(ctx, `
        INSERT INTO revisions (id, scene_id, version, document, created_at)
        VALUES (?, ?, ?, ?, ?)
    `, rev.ID, sceneID, version, string(data), formatTime(rev.CreatedAt)); err != nil {
		return nil, fmt.Errorf("insert revision: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE scenes SET updated_at = ? WHERE id = ?`, formatTime(rev.CreatedAt), sceneID,
	); err != nil {
		return nil, fmt.Errorf("touch scene: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return rev, nil
}

func (r *SQLite) LatestRevision(ctx context.Context, sceneID string) (*document.Document, *Revision, error) {
	row := r.db.QueryRowContext(ctx, `
        SELECT id, version, document, created_at
        FROM revisions
        WHERE scene_id = ?
        ORDER BY version DESC
        LIMIT 1
    `, sceneID)

	var (
		rev       = Revision{SceneID: sceneID}
		data      string
		createdAt string
	)
	if err := row.Scan(&rev.ID, &rev.Version, &data, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, fmt.Errorf("%w: no revisions for %s", ErrNotFound, sceneID)
		}
		return nil, nil, err
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return nil, nil, err
	}
	rev.CreatedAt = t

	doc, err := decode([]byte(data))
	if err != nil {
		return nil, nil, err
	}
	return doc, &rev, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteScene(row rowScanner) (*SceneInfo, error) {
	var (
		info                 SceneInfo
		createdAt, updatedAt string
	)
	if err := row.Scan(&info.ID, &info.Name, &createdAt, &updatedAt, &info.Version); err != nil {
		return nil, err
	}
	var err error
	if info.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if info.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &info, nil
}

// sqliteTime keeps a fixed width so text ordering matches time ordering.
const sqliteTime = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTime)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
