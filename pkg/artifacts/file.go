package artifacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/PFerreria/Concilium/pkg/failure"
	"github.com/PFerreria/Concilium/pkg/models"
)

// FileStore keeps artifacts under a root directory:
//
//	blobs/<hex>          content, one file per digest
//	artifacts/<id>.json  metadata
//	index/<job id>.json  kind -> artifact id index
//
// Every file is written to a temporary name and renamed into place.
type FileStore struct {
	root string
	mu   sync.Mutex
	now  func() time.Time
}

func NewFileStore(root string) *FileStore {
	return &FileStore{
		root: strings.Replace(root, "file://", "", 1),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *FileStore) Put(_ context.Context, meta models.Artifact, data []byte) (*models.Artifact, error) {
	const op = "artifacts.FileStore.Put"

	artifact, err := prepare(op, meta, data, s.now())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.readIndex(artifact.JobID)
	if err != nil {
		return nil, failure.Wrap(op, failure.KindInternal, err)
	}

	if _, exists := index[artifact.Kind]; exists {
		return nil, alreadyStored(op, artifact.JobID, artifact.Kind)
	}

	blob := s.blobPath(artifact.Digest)

	_, err = os.Stat(blob)
	if errors.Is(err, fs.ErrNotExist) {
		err = writeAtomic(blob, data)
	}

	if err != nil {
		return nil, failure.Wrap(op, failure.KindInternal, err)
	}

	metaJSON, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return nil, failure.Wrap(op, failure.KindInternal, err)
	}

	err = writeAtomic(s.metaPath(artifact.ID), metaJSON)
	if err != nil {
		return nil, failure.Wrap(op, failure.KindInternal, err)
	}

	index[artifact.Kind] = artifact.ID

	err = s.writeIndex(artifact.JobID, index)
	if err != nil {
		return nil, failure.Wrap(op, failure.KindInternal, err)
	}

	return artifact, nil
}

func (s *FileStore) Get(_ context.Context, id string) (*models.Artifact, []byte, error) {
	const op = "artifacts.FileStore.Get"

	if filepath.Base(id) != id {
		return nil, nil, artifactNotFound(op, id)
	}

	meta, err := s.readMeta(id)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, artifactNotFound(op, id)
	}

	if err != nil {
		return nil, nil, failure.Wrap(op, failure.KindInternal, err)
	}

	data, err := os.ReadFile(s.blobPath(meta.Digest))
	if err != nil {
		return nil, nil, failure.Wrap(op, failure.KindInternal, fmt.Errorf("blob %s of artifact %s: %w", meta.Digest, id, err))
	}

	return meta, data, nil
}

func (s *FileStore) ForJob(_ context.Context, jobID string, kind models.ArtifactKind) (*models.Artifact, error) {
	const op = "artifacts.FileStore.ForJob"

	if filepath.Base(jobID) != jobID {
		return nil, failure.NotFound(op, "job %s has no %s artifact", jobID, kind)
	}

	s.mu.Lock()
	index, err := s.readIndex(jobID)
	s.mu.Unlock()

	if err != nil {
		return nil, failure.Wrap(op, failure.KindInternal, err)
	}

	id, ok := index[kind]
	if !ok {
		return nil, failure.NotFound(op, "job %s has no %s artifact", jobID, kind)
	}

	meta, err := s.readMeta(id)
	if err != nil {
		return nil, failure.Wrap(op, failure.KindInternal, err)
	}

	return meta, nil
}

func (s *FileStore) DeleteJob(_ context.Context, jobID string) error {
	const op = "artifacts.FileStore.DeleteJob"

	if filepath.Base(jobID) != jobID {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.readIndex(jobID)
	if err != nil {
		return failure.Wrap(op, failure.KindInternal, err)
	}

	digests := make([]string, 0, len(index))

	for _, id := range index {
		meta, err := s.readMeta(id)
		if err == nil {
			digests = append(digests, meta.Digest)
		}

		err = os.Remove(s.metaPath(id))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return failure.Wrap(op, failure.KindInternal, err)
		}
	}

	err = os.Remove(s.indexPath(jobID))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return failure.Wrap(op, failure.KindInternal, err)
	}

	live, err := s.liveDigests()
	if err != nil {
		return failure.Wrap(op, failure.KindInternal, err)
	}

	for _, digest := range digests {
		if live[digest] {
			continue
		}

		err = os.Remove(s.blobPath(digest))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return failure.Wrap(op, failure.KindInternal, err)
		}
	}

	return nil
}

func (s *FileStore) liveDigests() (map[string]bool, error) {
	live := make(map[string]bool)

	entries, err := os.ReadDir(filepath.Join(s.root, "artifacts"))
	if errors.Is(err, fs.ErrNotExist) {
		return live, nil
	}

	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		id, ok := strings.CutSuffix(entry.Name(), ".json")
		if !ok {
			continue
		}

		meta, err := s.readMeta(id)
		if err != nil {
			return nil, err
		}

		live[meta.Digest] = true
	}

	return live, nil
}

func (s *FileStore) readMeta(id string) (*models.Artifact, error) {
	data, err := os.ReadFile(s.metaPath(id))
	if err != nil {
		return nil, err
	}

	var meta models.Artifact

	err = json.Unmarshal(data, &meta)
	if err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", id, err)
	}

	return &meta, nil
}

func (s *FileStore) readIndex(jobID string) (map[models.ArtifactKind]string, error) {
	index := make(map[models.ArtifactKind]string)

	data, err := os.ReadFile(s.indexPath(jobID))
	if errors.Is(err, fs.ErrNotExist) {
		return index, nil
	}

	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(data, &index)
	if err != nil {
		return nil, fmt.Errorf("decode artifact index of job %s: %w", jobID, err)
	}

	return index, nil
}

func (s *FileStore) writeIndex(jobID string, index map[models.ArtifactKind]string) error {
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return err
	}

	return writeAtomic(s.indexPath(jobID), data)
}

func (s *FileStore) blobPath(digest string) string {
	return filepath.Join(s.root, "blobs", strings.TrimPrefix(digest, digestPrefix))
}

func (s *FileStore) metaPath(id string) string {
	return filepath.Join(s.root, "artifacts", id+".json")
}

func (s *FileStore) indexPath(jobID string) string {
	return filepath.Join(s.root, "index", jobID+".json")
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)

	err := os.MkdirAll(dir, 0750)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}

	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Sync()
	}

	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(tmp.Name())

		return err
	}

	err = os.Rename(tmp.Name(), path)
	if err != nil {
		_ = os.Remove(tmp.Name())

		return err
	}

	return nil
}
