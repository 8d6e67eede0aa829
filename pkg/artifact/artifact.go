package artifact

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
)

// Artifact is one stored export document (CSV, PDF, feed file). The export
// quota counts export runs per calendar month; the artifact store only keeps
// the produced documents.
type Artifact struct {
	Key         string // storage key, unique per account and export
	URL         string // public URL, empty for stores without one
	Size        int64
	ContentType string
	CreatedAt   time.Time
}

// Store persists export documents.
type Store interface {
	// Put stores the document for the given account and export run.
	Put(ctx context.Context, accountID, exportID uuid.UUID, contentType string, body io.Reader) (*Artifact, error)

	// Delete removes a stored document. Deleting a missing key is a no-op.
	Delete(ctx context.Context, key string) error
}

var (
	ErrInvalidConfig = errors.New("invalid artifact store configuration")
	ErrUploadFailed  = errors.New("failed to upload artifact")
	ErrDeleteFailed  = errors.New("failed to delete artifact")
)

// Key builds the canonical storage key for an export document.
func Key(accountID, exportID uuid.UUID) string {
	return "exports/" + accountID.String() + "/" + exportID.String()
}
