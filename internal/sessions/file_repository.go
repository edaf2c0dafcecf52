package sessions

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// FileRepository stores each record as <dir>/<key>.json on a filesystem.
// Writes go through a temp file and rename so a crash never leaves half a record.
type FileRepository struct {
	fs  afero.Fs
	dir string
}

// NewFileRepository uses the OS filesystem when fsys is nil.
func NewFileRepository(fsys afero.Fs, dir string) *FileRepository {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &FileRepository{fs: fsys, dir: dir}
}

func (r *FileRepository) path(key string) string {
	return filepath.Join(r.dir, key+".json")
}

func (r *FileRepository) Load(ctx context.Context, key string) ([]byte, error) {
	b, err := afero.ReadFile(r.fs, r.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	if b == nil {
		b = []byte{}
	}
	return b, nil
}

// Save ignores ttl; expiry is decided by the Store from the record itself.
func (r *FileRepository) Save(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := r.fs.MkdirAll(r.dir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tmp := r.path(key) + ".tmp"
	if err := afero.WriteFile(r.fs, tmp, data, 0o600); err != nil {
		return err
	}
	return r.fs.Rename(tmp, r.path(key))
}

func (r *FileRepository) Delete(ctx context.Context, key string) error {
	err := r.fs.Remove(r.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
