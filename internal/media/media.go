// Package media handles upload and cleanup of message attachments.
package media

import (
	"context"

	"github.com/chattu-app/chattu-server/internal/store"
)

// File is an attachment payload received from a client.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Uploader stores attachment files and serves back their descriptors.
//
// DeleteBatch is best-effort: callers log and drop failures rather than
// failing the mutation that triggered the cleanup.
type Uploader interface {
	UploadBatch(ctx context.Context, files []File) ([]store.Attachment, error)
	DeleteBatch(ctx context.Context, ids []string) error
}

// ResourceType derives the attachment resource type from a MIME content type:
// image, video and audio map to themselves, everything else is raw.
func ResourceType(contentType string) string {
	for i := 0; i < len(contentType); i++ {
		if contentType[i] == '/' {
			switch prefix := contentType[:i]; prefix {
			case "image", "video", "audio":
				return prefix
			}
			break
		}
	}
	return "raw"
}
