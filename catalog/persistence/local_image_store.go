package persistence

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/dfryer1193/catalog/catalog/domain"
)

var _ domain.ImageStore = (*LocalImageStore)(nil)

const DefaultUploadDir = "uploads"

// LocalImageStore keeps images in a directory on disk. References are
// slash-separated relative paths, <prefix>/<name>, that the HTTP layer serves
// statically from the same directory.
type LocalImageStore struct {
	dir    string
	prefix string
	now    func() time.Time
	newID  func() string
}

// NewLocalImageStore creates dir if needed. prefix is the leading path segment of
// every reference; empty means the base name of dir.
func NewLocalImageStore(dir string, prefix string) (*LocalImageStore, error) {
	if dir == "" {
		dir = DefaultUploadDir
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}

	if prefix == "" {
		prefix = filepath.Base(dir)
	}

	return &LocalImageStore{
		dir:    dir,
		prefix: prefix,
		now:    time.Now,
		newID:  uuid.NewString,
	}, nil
}

// Dir is the directory images are written to.
func (s *LocalImageStore) Dir() string {
	return s.dir
}

// Prefix is the leading path segment of every reference.
func (s *LocalImageStore) Prefix() string {
	return s.prefix
}

// Store writes data under the base name of suggestedName.
func (s *LocalImageStore) Store(ctx context.Context, data []byte, suggestedName string) (string, error) {
	name, err := safeName(suggestedName)
	if err != nil {
		return "", err
	}

	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrStorageWriteFailed, err)
	}

	if err := s.writeFile(name, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	}); err != nil {
		return "", err
	}

	return s.reference(name), nil
}

// StoreUploadedFile copies an upload into the directory as
// <unix-millis>-<uuid>-<filename>. Clients reuse filenames, so the uuid keeps
// uploads landing in the same millisecond apart.
func (s *LocalImageStore) StoreUploadedFile(ctx context.Context, file *multipart.FileHeader) (string, error) {
	if file == nil {
		return "", fmt.Errorf("%w: file cannot be nil", domain.ErrStorageWriteFailed)
	}

	base, err := safeName(file.Filename)
	if err != nil {
		return "", err
	}
	name := strconv.FormatInt(s.now().UnixMilli(), 10) + "-" + s.newID() + "-" + base

	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("%w: failed to open upload: %v", domain.ErrStorageWriteFailed, err)
	}
	defer src.Close()

	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrStorageWriteFailed, err)
	}

	if err := s.writeFile(name, func(w io.Writer) error {
		_, err := io.Copy(w, src)
		return err
	}); err != nil {
		return "", err
	}

	return s.reference(name), nil
}

// writeFile stages content in a temp file and renames it into place, so a failed
// write never leaves a partial image under its final name.
func (s *LocalImageStore) writeFile(name string, write func(w io.Writer) error) error {
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("%w: failed to create temp file: %v", domain.ErrStorageWriteFailed, err)
	}
	tmpName := tmp.Name()

	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: failed to write image file: %v", domain.ErrStorageWriteFailed, err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: failed to close image file: %v", domain.ErrStorageWriteFailed, err)
	}

	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: failed to set image file mode: %v", domain.ErrStorageWriteFailed, err)
	}

	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: failed to move image file into place: %v", domain.ErrStorageWriteFailed, err)
	}

	return nil
}

func (s *LocalImageStore) reference(name string) string {
	return path.Join(s.prefix, name)
}

// safeName strips any directory part so names cannot escape the store directory.
func safeName(name string) (string, error) {
	base := filepath.Base(filepath.Clean("/" + filepath.ToSlash(name)))
	if base == "" || base == "." || base == "/" || base == string(filepath.Separator) {
		return "", fmt.Errorf("%w: invalid file name %q", domain.ErrStorageWriteFailed, name)
	}
	return base, nil
}
