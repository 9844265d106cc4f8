package persist

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isocanvas/isocanvas/internal/document"
	"github.com/isocanvas/isocanvas/internal/typeid"
)

func openRepos(t *testing.T) map[string]Repository {
	t.Helper()
	ctx := context.Background()
	repos := map[string]Repository{}

	lite, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "nested", "scenes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { lite.Close() })
	repos["sqlite"] = lite

	if url := os.Getenv("ISOCANVAS_TEST_DATABASE_URL"); url != "" {
		pg, err := OpenPostgres(ctx, url)
		require.NoError(t, err)
		t.Cleanup(func() { pg.Close() })
		repos["postgres"] = pg
	}
	return repos
}

func TestRepositories(t *testing.T) {
	for name, repo := range openRepos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id := typeid.NewSceneID()

			info, err := repo.CreateScene(ctx, id, "Test scene")
			require.NoError(t, err)
			assert.Equal(t, id, info.ID)

			_, err = repo.CreateScene(ctx, id, "again")
			assert.ErrorIs(t, err, ErrExists)

			_, _, err = repo.LatestRevision(ctx, id)
			assert.ErrorIs(t, err, ErrNotFound)

			doc := document.NewSampleDocument(id)
			rev1, err := repo.SaveRevision(ctx, id, doc)
			require.NoError(t, err)
			assert.Equal(t, 1, rev1.Version)

			doc.Objects = doc.Objects[:2]
			rev2, err := repo.SaveRevision(ctx, id, doc)
			require.NoError(t, err)
			assert.Equal(t, 2, rev2.Version)

			got, rev, err := repo.LatestRevision(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, 2, rev.Version)
			assert.Len(t, got.Objects, 2)
			assert.Equal(t, doc.Objects[0].ID, got.Objects[0].ID)
			assert.WithinDuration(t, time.Now(), rev.CreatedAt, time.Minute)

			info, err = repo.GetScene(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, 2, info.Version)

			list, err := repo.ListScenes(ctx)
			require.NoError(t, err)
			var found bool
			for _, s := range list {
				found = found || s.ID == id
			}
			assert.True(t, found)

			require.NoError(t, repo.DeleteScene(ctx, id))
			_, err = repo.GetScene(ctx, id)
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, repo.DeleteScene(ctx, id), ErrNotFound)
			_, err = repo.SaveRevision(ctx, id, doc)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "scenes.db")

	repo, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	id := typeid.NewSceneID()
	_, err = repo.CreateScene(ctx, id, "kept")
	require.NoError(t, err)
	_, err = repo.SaveRevision(ctx, id, document.NewSampleDocument(id))
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	repo, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer repo.Close()
	doc, _, err := repo.LatestRevision(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, doc.Scene.ID)
}
