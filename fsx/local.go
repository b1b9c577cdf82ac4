package fsx

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Abraxas-365/wagate/errx"
)

// LocalFS reads files under a root directory. An empty root reads paths
// as given.
type LocalFS struct {
	root string
}

// NewLocalFS creates a local file system rooted at root
func NewLocalFS(root string) *LocalFS {
	return &LocalFS{root: root}
}

func (l *LocalFS) resolve(p string) string {
	if l.root == "" {
		return filepath.Clean(p)
	}
	return filepath.Join(l.root, filepath.Clean("/"+p))
}

func (l *LocalFS) ReadFile(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(l.resolve(p))
	if err != nil {
		return nil, wrapOSError(p, err)
	}
	return data, nil
}

func (l *LocalFS) ReadFileStream(ctx context.Context, p string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(l.resolve(p))
	if err != nil {
		return nil, wrapOSError(p, err)
	}
	return f, nil
}

func (l *LocalFS) Stat(ctx context.Context, p string) (FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return FileInfo{}, err
	}
	st, err := os.Stat(l.resolve(p))
	if err != nil {
		return FileInfo{}, wrapOSError(p, err)
	}
	if st.IsDir() {
		return FileInfo{}, fsErrors.New(ErrInvalidPath).WithDetail("path", p).WithDetail("reason", "is a directory")
	}
	return FileInfo{
		Name:    st.Name(),
		Size:    st.Size(),
		ModTime: st.ModTime(),
	}, nil
}

func (l *LocalFS) Exists(ctx context.Context, p string) (bool, error) {
	_, err := l.Stat(ctx, p)
	if err == nil {
		return true, nil
	}
	if errx.IsCode(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}

func wrapOSError(p string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fsErrors.New(ErrNotFound).WithDetail("path", p).WithCause(err)
	}
	return fsErrors.New(ErrRead).WithDetail("path", p).WithCause(err)
}
