package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/chattu-app/chattu-server/internal/store"
)

// DiskUploader stores attachments on the local filesystem and serves them
// under a configured base URL.
type DiskUploader struct {
	dir     string
	baseURL string
}

// NewDiskUploader creates the upload directory if needed.
func NewDiskUploader(dir, baseURL string) (*DiskUploader, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &DiskUploader{dir: dir, baseURL: baseURL}, nil
}

// UploadBatch writes each file under a fresh public ID. If any write fails
// the already-written files of the batch are removed.
func (d *DiskUploader) UploadBatch(ctx context.Context, files []File) ([]store.Attachment, error) {
	attachments := make([]store.Attachment, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			d.rollback(attachments)
			return nil, err
		}

		id := uuid.NewString()
		if ext := filepath.Ext(f.Name); ext != "" {
			id += ext
		}
		if err := os.WriteFile(filepath.Join(d.dir, id), f.Data, 0o644); err != nil {
			d.rollback(attachments)
			return nil, fmt.Errorf("write attachment %s: %w", f.Name, err)
		}

		attachments = append(attachments, store.Attachment{
			ID:           id,
			URL:          d.baseURL + "/" + id,
			ResourceType: ResourceType(f.ContentType),
		})
	}
	return attachments, nil
}

// DeleteBatch removes stored attachments, collecting per-file failures.
// Missing files are not an error.
func (d *DiskUploader) DeleteBatch(_ context.Context, ids []string) error {
	var errs []error
	for _, id := range ids {
		if err := os.Remove(filepath.Join(d.dir, id)); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("remove %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func (d *DiskUploader) rollback(attachments []store.Attachment) {
	for _, a := range attachments {
		_ = os.Remove(filepath.Join(d.dir, a.ID))
	}
}
