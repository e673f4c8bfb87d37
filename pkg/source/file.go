package source

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	apperrors "github.com/matzehuels/sitegraph/pkg/errors"
	"github.com/matzehuels/sitegraph/pkg/observability"
)

// FileSource reads variants from a directory.
type FileSource struct {
	dir string
}

// NewFileSource returns a source rooted at dir.
func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

func (s *FileSource) Name() string { return "file:" + s.dir }

// Fetch reads the variant's file. A missing file is NOT_FOUND.
func (s *FileSource) Fetch(ctx context.Context, v Variant) ([]byte, error) {
	hooks := observability.Load()
	hooks.OnFetchStart(ctx, s.Name(), v.String())
	start := time.Now()

	path := filepath.Join(s.dir, v.FileName())
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = apperrors.Wrap(apperrors.ErrCodeNotFound, err, "variant %s not found in %s", v, s.dir)
		} else {
			err = apperrors.Wrap(apperrors.ErrCodeInternal, err, "read %s", path)
		}
	}
	hooks.OnFetchComplete(ctx, s.Name(), v.String(), len(data), time.Since(start), err)
	return data, err
}

var _ Source = (*FileSource)(nil)
