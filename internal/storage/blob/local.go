package blob

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/go-faster/errors"
)

var _ Store = (*Local)(nil)

// Local stores objects on the filesystem below a root directory and serves
// them under a base URL.
type Local struct {
	root    string
	baseURL string
}

// NewLocal creates a Local store. The root directory is created if missing.
func NewLocal(root, baseURL string) (*Local, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, "create storage root")
	}
	return &Local{root: root, baseURL: baseURL}, nil
}

// Root returns the directory objects are stored in.
func (l *Local) Root() string {
	return l.root
}

// Put writes obj to a new file below dir.
func (l *Local) Put(ctx context.Context, dir string, obj Object) (string, error) {
	p := objectPath(dir, obj)
	if err := l.write(ctx, p, obj.Body); err != nil {
		return "", &UploadError{Path: p, Err: err}
	}
	return p, nil
}

func (l *Local) write(ctx context.Context, p string, body io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full := filepath.Join(l.root, filepath.FromSlash(p))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		_ = os.Remove(full)
		return err
	}
	return f.Close()
}

// URL joins the base URL and p.
func (l *Local) URL(p string) string {
	return joinURL(l.baseURL, p)
}

// Delete removes the file at p. Missing files are not an error.
func (l *Local) Delete(_ context.Context, p string) error {
	err := os.Remove(filepath.Join(l.root, filepath.FromSlash(p)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrapf(err, "delete %s", p)
	}
	return nil
}
