// Package artifacts stores the immutable outputs of jobs. Bytes are kept once
// per SHA-256 digest; metadata is keyed by artifact id and indexed by job and kind.
package artifacts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
	"time"

	"github.com/PFerreria/Concilium/pkg/failure"
	"github.com/PFerreria/Concilium/pkg/models"
	"github.com/google/uuid"
)

const digestPrefix = "sha256:"

// Store is the artifact store contract. Artifacts are append-only: a job holds
// at most one artifact of each kind and it is never replaced.
type Store interface {
	// Put stores data and returns the completed metadata. JobID, Kind, Format and
	// ContentType come from meta; ID, Digest, Size and CreatedAt are assigned.
	Put(ctx context.Context, meta models.Artifact, data []byte) (*models.Artifact, error)
	Get(ctx context.Context, id string) (*models.Artifact, []byte, error)
	ForJob(ctx context.Context, jobID string, kind models.ArtifactKind) (*models.Artifact, error)
	// DeleteJob removes every artifact of the job. Blobs still referenced by
	// another job survive.
	DeleteJob(ctx context.Context, jobID string) error
}

func prepare(op string, meta models.Artifact, data []byte, now time.Time) (*models.Artifact, error) {
	if meta.JobID == "" {
		return nil, failure.Validation(op, "artifact has no job id")
	}

	if filepath.Base(meta.JobID) != meta.JobID || strings.Contains(meta.JobID, "..") {
		return nil, failure.Validation(op, "invalid job id %q", meta.JobID)
	}

	if meta.Kind != models.ArtifactKindDocument && meta.Kind != models.ArtifactKindDiagram {
		return nil, failure.Validation(op, "invalid artifact kind %q", meta.Kind)
	}

	if len(data) == 0 {
		return nil, failure.Validation(op, "artifact %s of job %s is empty", meta.Kind, meta.JobID)
	}

	artifact := meta
	artifact.ID = uuid.NewString()
	artifact.Digest = Digest(data)
	artifact.Size = int64(len(data))
	artifact.CreatedAt = now

	return &artifact, nil
}

// Digest returns the content address of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)

	return digestPrefix + hex.EncodeToString(sum[:])
}

func alreadyStored(op string, jobID string, kind models.ArtifactKind) error {
	return failure.Validation(op, "job %s already has a %s artifact", jobID, kind)
}

func artifactNotFound(op, id string) error {
	return failure.NotFound(op, "artifact %s not found", id)
}
