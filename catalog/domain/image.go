package domain

import (
	"context"
	"mime/multipart"
)

// ImageStore persists image bytes and hands back an image reference: an opaque
// string (path or URL) that is enough to retrieve the image later.
type ImageStore interface {
	// Store writes data under a name derived from suggestedName.
	Store(ctx context.Context, data []byte, suggestedName string) (string, error)

	// StoreUploadedFile persists a multipart upload as received.
	StoreUploadedFile(ctx context.Context, file *multipart.FileHeader) (string, error)
}
