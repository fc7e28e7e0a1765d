package submission

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestRepo(t *testing.T) *GormRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Submission{}))
	return NewGormRepository(db)
}

func TestGormRepository_CreateAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	row := &Submission{ID: "sub-1", Language: "python", SourceCode: `print("hi")`, Status: StatusPending}
	require.NoError(t, repo.Create(ctx, row))

	got, err := repo.Get(ctx, "sub-1")
	require.NoError(t, err)
	require.Equal(t, "python", got.Language)
	require.Equal(t, StatusPending, got.Status)
}

func TestGormRepository_GetMissingReturnsErrNotFound(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.Get(context.Background(), "does-not-exist")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGormRepository_Update(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	row := &Submission{ID: "sub-2", Language: "python", Status: StatusPending}
	require.NoError(t, repo.Create(ctx, row))

	row.Status = StatusAccepted
	row.Stdout = "hi\n"
	require.NoError(t, repo.Update(ctx, row))

	got, err := repo.Get(ctx, "sub-2")
	require.NoError(t, err)
	require.Equal(t, StatusAccepted, got.Status)
	require.Equal(t, "hi\n", got.Stdout)
}
