package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/dmitrijs2005/authgate/internal/common"
	"github.com/dmitrijs2005/authgate/internal/filex"
)

// File keeps the snapshot in a single file on the local filesystem.
type File struct {
	path string
}

var _ Store = (*File)(nil)

// NewFile builds a file-backed snapshot store at the given path.
func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Load(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("read snapshot %s: %w", f.path, err)
	}
	return data, nil
}

func (f *File) Save(ctx context.Context, data []byte) error {
	if err := filex.EnsureParentDir(f.path); err != nil {
		return err
	}
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("write snapshot %s: %w", f.path, err)
	}
	return nil
}
