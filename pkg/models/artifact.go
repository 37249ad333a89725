package models

import (
	"fmt"
	"strings"
	"time"
)

// ArtifactKind is the kind of output a job produces.
type ArtifactKind string

const (
	ArtifactKindDocument ArtifactKind = "document"
	ArtifactKindDiagram  ArtifactKind = "diagram"
)

// ParseArtifactKind accepts the kind names and the download aliases used by
// clients ("bpmn" and "xml" both mean the document).
func ParseArtifactKind(raw string) (ArtifactKind, error) {
	switch strings.ToLower(raw) {
	case "document", "bpmn", "xml":
		return ArtifactKindDocument, nil
	case "diagram":
		return ArtifactKindDiagram, nil
	default:
		return "", fmt.Errorf("unknown artifact kind %q", raw)
	}
}

// Artifact is an immutable output of a job. Its bytes live in the artifact store.
type Artifact struct {
	ID          string       `json:"id"`
	JobID       string       `json:"job_id"`
	Kind        ArtifactKind `json:"kind"`
	Format      string       `json:"format"`
	ContentType string       `json:"content_type"`
	Digest      string       `json:"digest"`
	Size        int64        `json:"size"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Filename is the download name of the artifact.
func (a *Artifact) Filename() string {
	return fmt.Sprintf("workflow_%s.%s", a.JobID, a.Format)
}
