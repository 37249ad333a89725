package artifacts

import (
	"context"
	"sync"
	"time"

	"github.com/PFerreria/Concilium/pkg/failure"
	"github.com/PFerreria/Concilium/pkg/models"
)

// MemoryStore keeps artifacts in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
	metas map[string]*models.Artifact
	index map[string]map[models.ArtifactKind]string
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blobs: make(map[string][]byte),
		metas: make(map[string]*models.Artifact),
		index: make(map[string]map[models.ArtifactKind]string),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Put(_ context.Context, meta models.Artifact, data []byte) (*models.Artifact, error) {
	const op = "artifacts.MemoryStore.Put"

	artifact, err := prepare(op, meta, data, s.now())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.index[artifact.JobID][artifact.Kind]; exists {
		return nil, alreadyStored(op, artifact.JobID, artifact.Kind)
	}

	if _, exists := s.blobs[artifact.Digest]; !exists {
		s.blobs[artifact.Digest] = append([]byte(nil), data...)
	}

	s.metas[artifact.ID] = artifact

	if s.index[artifact.JobID] == nil {
		s.index[artifact.JobID] = make(map[models.ArtifactKind]string)
	}

	s.index[artifact.JobID][artifact.Kind] = artifact.ID

	stored := *artifact

	return &stored, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*models.Artifact, []byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	meta, ok := s.metas[id]
	if !ok {
		return nil, nil, artifactNotFound("artifacts.MemoryStore.Get", id)
	}

	stored := *meta

	return &stored, append([]byte(nil), s.blobs[meta.Digest]...), nil
}

func (s *MemoryStore) ForJob(_ context.Context, jobID string, kind models.ArtifactKind) (*models.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.index[jobID][kind]
	if !ok {
		return nil, failure.NotFound("artifacts.MemoryStore.ForJob", "job %s has no %s artifact", jobID, kind)
	}

	stored := *s.metas[id]

	return &stored, nil
}

func (s *MemoryStore) DeleteJob(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.index[jobID] {
		digest := s.metas[id].Digest
		delete(s.metas, id)

		if !s.referenced(digest) {
			delete(s.blobs, digest)
		}
	}

	delete(s.index, jobID)

	return nil
}

func (s *MemoryStore) referenced(digest string) bool {
	for _, meta := range s.metas {
		if meta.Digest == digest {
			return true
		}
	}

	return false
}
