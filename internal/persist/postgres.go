package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/isocanvas/isocanvas/internal/document"
	"github.com/isocanvas/isocanvas/internal/typeid"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS scenes (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS revisions (
    id         TEXT PRIMARY KEY,
    scene_id   TEXT NOT NULL REFERENCES scenes(id) ON DELETE CASCADE,
    version    INTEGER NOT NULL,
    document   JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (scene_id, version)
);
`

// Postgres is a Repository backed by a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to databaseURL, pings it and applies the schema.
func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (r *Postgres) Close() error {
	r.pool.Close()
	return nil
}

func (r *Postgres) CreateScene(ctx context.Context, id, name string) (*SceneInfo, error) {
	var info SceneInfo
	err := r.pool.QueryRow(ctx, `
        INSERT INTO scenes (id, name) VALUES ($1, $2)
        RETURNING id, name, created_at, updated_at
    `, id, name).Scan(&info.ID, &info.Name, &info.CreatedAt, &info.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("%w: %s", ErrExists, id)
		}
		return nil, fmt.Errorf("create scene: %w", err)
	}
	return &info, nil
}

const postgresSceneQuery = `
    SELECT s.id, s.name, s.created_at, s.updated_at,
           COALESCE((SELECT MAX(version) FROM revisions WHERE scene_id = s.id), 0)
    FROM scenes s
`

func (r *Postgres) GetScene(ctx context.Context, id string) (*SceneInfo, error) {
	var info SceneInfo
	err := r.pool.QueryRow(ctx, postgresSceneQuery+` WHERE s.id = $1`, id).
		Scan(&info.ID, &info.Name, &info.CreatedAt, &info.UpdatedAt, &info.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get scene: %w", err)
	}
	return &info, nil
}

func (r *Postgres) ListScenes(ctx context.Context) ([]SceneInfo, error) {
	rows, err := r.pool.Query(ctx, postgresSceneQuery+` ORDER BY s.updated_at DESC, s.id`)
	if err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	defer rows.Close()

	var out []SceneInfo
	for rows.Next() {
		var info SceneInfo
		if err := rows.Scan(&info.ID, &info.Name, &info.CreatedAt, &info.UpdatedAt, &info.Version); err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

func (r *Postgres) DeleteScene(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM scenes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete scene: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (r *Postgres) SaveRevision(ctx context.Context, sceneID string, doc *document.Document) (*Revision, error) {
	data, err := encode(doc)
	if err != nil {
		return nil, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Lock the scene row so concurrent saves number revisions serially.
	var locked string
	if err := tx.QueryRow(ctx, `SELECT id FROM scenes WHERE id = $1 FOR UPDATE`, sceneID).Scan(&locked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, sceneID)
		}
		return nil, err
	}

	rev := &Revision{ID: typeid.NewRevisionID(), SceneID: sceneID}
	err = tx.QueryRow(ctx, `
        INSERT INTO revisions (id, scene_id, version, document)
        VALUES ($1, $2, (SELECT COALESCE(MAX(version), 0) + 1 FROM revisions WHERE scene_id = $2), $3)
        RETURNING version, created_at
    `, rev.ID, sceneID, data).Scan(&rev.Version, &rev.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert revision: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE scenes SET updated_at = $2 WHERE id = $1`, sceneID, rev.CreatedAt); err != nil {
		return nil, fmt.Errorf("touch scene: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return rev, nil
}

func (r *Postgres) LatestRevision(ctx context.Context, sceneID string) (*document.Document, *Revision, error) {
	rev := Revision{SceneID: sceneID}
	var data []byte
	err := r.pool.QueryRow(ctx, `
        SELECT id, version, document, created_at
        FROM revisions
        WHERE scene_id = $1
        ORDER BY version DESC
        LIMIT 1
    `, sceneID).Scan(&rev.ID, &rev.Version, &data, &rev.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, fmt.Errorf("%w: no revisions for %s", ErrNotFound, sceneID)
		}
		return nil, nil, fmt.Errorf("latest revision: %w", err)
	}
	doc, err := decode(data)
	if err != nil {
		return nil, nil, err
	}
	return doc, &rev, nil
}
