// Package blob stores uploaded files and derives their public URLs.
package blob

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Object is a file to be stored.
type Object struct {
	// Name is the client-supplied file name; only its extension is kept.
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Store persists objects and resolves their URLs.
type Store interface {
	// Put stores obj under dir and returns its storage path. Failures are
	// returned as *UploadError.
	Put(ctx context.Context, dir string, obj Object) (string, error)
	// URL returns the public URL of a stored path.
	URL(path string) string
	Delete(ctx context.Context, path string) error
}

// UploadError reports a failed Put.
type UploadError struct {
	Path string
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.Path, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// objectPath returns a collision-free path for obj below dir.
func objectPath(dir string, obj Object) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(obj.Name, "\\", "/"))))
	if len(ext) > 8 {
		ext = ""
	}
	return path.Join(strings.Trim(dir, "/"), uuid.NewString()+ext)
}

func joinURL(base, p string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(p, "/")
}
