package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/PFerreria/Concilium/pkg/persistence"
	"github.com/PFerreria/Concilium/pkg/persistence/file"
	"github.com/PFerreria/Concilium/pkg/persistence/persistencetest"
	"github.com/PFerreria/Concilium/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersistence(t *testing.T) {
	t.Parallel()

	persistencetest.Run(t, func(t *testing.T) persistence.JobRepository {
		return file.NewPersistence("file://" + t.TempDir())
	})
}

func TestPersistence_WritesOneFilePerJob(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	repo := file.NewPersistence(root)
	job := testutil.CreateTestJob()

	require.NoError(t, repo.Create(context.Background(), job))
	assert.FileExists(t, filepath.Join(root, "jobs", job.ID+".json"))

	info, err := os.Stat(filepath.Join(root, "jobs", job.ID+".json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestPersistence_RejectsPathLikeIDs(t *testing.T) {
	t.Parallel()

	repo := file.NewPersistence(t.TempDir())

	for _, id := range []string{"../escape", "a/b", ".hidden", ""} {
		_, err := repo.Get(context.Background(), id)
		assert.True(t, persistence.IsJobNotFound(err), id)
	}
}

func TestPersistence_HealthCheck(t *testing.T) {
	t.Parallel()

	repo := file.NewPersistence(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, repo.HealthCheck(context.Background()), os.ErrNotExist)
}
