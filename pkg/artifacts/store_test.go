package artifacts_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/PFerreria/Concilium/pkg/artifacts"
	"github.com/PFerreria/Concilium/pkg/failure"
	"github.com/PFerreria/Concilium/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]artifacts.Store {
	t.Helper()

	return map[string]artifacts.Store{
		"memory": artifacts.NewMemoryStore(),
		"file":   artifacts.NewFileStore("file://" + t.TempDir()),
	}
}

func document(jobID string) models.Artifact {
	return models.Artifact{
		JobID:       jobID,
		Kind:        models.ArtifactKindDocument,
		Format:      "bpmn",
		ContentType: "application/xml",
	}
}

func TestStore_PutGetForJob(t *testing.T) {
	t.Parallel()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			data := []byte("<definitions/>")

			stored, err := store.Put(ctx, document("job-1"), data)
			require.NoError(t, err)
			assert.NotEmpty(t, stored.ID)
			assert.Equal(t, artifacts.Digest(data), stored.Digest)
			assert.Equal(t, int64(len(data)), stored.Size)
			assert.False(t, stored.CreatedAt.IsZero())
			assert.Equal(t, "workflow_job-1.bpmn", stored.Filename())

			meta, got, err := store.Get(ctx, stored.ID)
			require.NoError(t, err)
			assert.Equal(t, data, got)
			assert.Equal(t, stored.ID, meta.ID)
			assert.Equal(t, "application/xml", meta.ContentType)

			byJob, err := store.ForJob(ctx, "job-1", models.ArtifactKindDocument)
			require.NoError(t, err)
			assert.Equal(t, stored.ID, byJob.ID)

			_, err = store.ForJob(ctx, "job-1", models.ArtifactKindDiagram)
			assert.True(t, failure.IsNotFound(err))

			_, _, err = store.Get(ctx, "missing")
			assert.True(t, failure.IsNotFound(err))
		})
	}
}

func TestStore_AppendOnly(t *testing.T) {
	t.Parallel()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()

			first, err := store.Put(ctx, document("job-1"), []byte("v1"))
			require.NoError(t, err)

			_, err = store.Put(ctx, document("job-1"), []byte("v2"))
			require.Error(t, err)
			assert.True(t, failure.IsValidation(err))

			_, data, err := store.Get(ctx, first.ID)
			require.NoError(t, err)
			assert.Equal(t, []byte("v1"), data)
		})
	}
}

func TestStore_RejectsInvalidArtifacts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		meta models.Artifact
		data []byte
	}{
		{name: "no job", meta: models.Artifact{Kind: models.ArtifactKindDocument}, data: []byte("x")},
		{name: "bad kind", meta: models.Artifact{JobID: "j", Kind: "audio"}, data: []byte("x")},
		{name: "empty", meta: document("j"), data: nil},
		{name: "path traversal", meta: document("../escape"), data: []byte("x")},
	}

	for name, store := range stores(t) {
		for _, tt := range tests {
			t.Run(name+"/"+tt.name, func(t *testing.T) {
				_, err := store.Put(context.Background(), tt.meta, tt.data)
				require.Error(t, err)
				assert.True(t, failure.IsValidation(err))
			})
		}
	}
}

func TestStore_DeleteJobKeepsSharedBlobs(t *testing.T) {
	t.Parallel()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			data := []byte("same bytes")

			a, err := store.Put(ctx, document("job-a"), data)
			require.NoError(t, err)

			b, err := store.Put(ctx, document("job-b"), data)
			require.NoError(t, err)
			assert.Equal(t, a.Digest, b.Digest)
			assert.NotEqual(t, a.ID, b.ID)

			require.NoError(t, store.DeleteJob(ctx, "job-a"))

			_, _, err = store.Get(ctx, a.ID)
			assert.True(t, failure.IsNotFound(err))

			_, got, err := store.Get(ctx, b.ID)
			require.NoError(t, err)
			assert.Equal(t, data, got)

			_, err = store.ForJob(ctx, "job-a", models.ArtifactKindDocument)
			assert.True(t, failure.IsNotFound(err))

			require.NoError(t, store.DeleteJob(ctx, "job-b"))
			require.NoError(t, store.DeleteJob(ctx, "never-existed"))
		})
	}
}

func TestStore_ConcurrentJobs(t *testing.T) {
	t.Parallel()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()

			var wg sync.WaitGroup

			for i := range 20 {
				wg.Add(1)

				go func() {
					defer wg.Done()

					_, err := store.Put(ctx, document(fmt.Sprintf("job-%d", i)), []byte(fmt.Sprintf("payload %d", i)))
					assert.NoError(t, err)
				}()
			}

			wg.Wait()

			for i := range 20 {
				meta, err := store.ForJob(ctx, fmt.Sprintf("job-%d", i), models.ArtifactKindDocument)
				require.NoError(t, err)

				_, data, err := store.Get(ctx, meta.ID)
				require.NoError(t, err)
				assert.Equal(t, fmt.Sprintf("payload %d", i), string(data))
			}
		})
	}
}

func TestFileStore_Layout(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store := artifacts.NewFileStore(root)

	stored, err := store.Put(context.Background(), document("job-1"), []byte("abc"))
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(root, "artifacts", stored.ID+".json"))
	assert.FileExists(t, filepath.Join(root, "index", "job-1.json"))

	blobs, err := os.ReadDir(filepath.Join(root, "blobs"))
	require.NoError(t, err)
	require.Len(t, blobs, 1)
	assert.Equal(t, "sha256:"+blobs[0].Name(), stored.Digest)

	require.NoError(t, store.DeleteJob(context.Background(), "job-1"))

	blobs, err = os.ReadDir(filepath.Join(root, "blobs"))
	require.NoError(t, err)
	assert.Empty(t, blobs)
}
