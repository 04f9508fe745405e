package repository

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/marcus/pollexa/internal/assets"
	"github.com/marcus/pollexa/internal/dataset"
	"github.com/marcus/pollexa/internal/models"
)

// FileSource reads a JSON dataset file from a filesystem
type FileSource struct {
	fsys    fs.FS
	name    string
	catalog assets.Catalog
}

// NewFileSource reads name from fsys and resolves images through catalog
func NewFileSource(fsys fs.FS, name string, catalog assets.Catalog) *FileSource {
	return &FileSource{fsys: fsys, name: name, catalog: catalog}
}

// Bundled returns a source over the dataset compiled into the binary
func Bundled() *FileSource {
	fsys := dataset.FS()
	return NewFileSource(fsys, dataset.PostsFile, assets.NewFSCatalog(fsys, dataset.AssetDir))
}

// FromPath returns a source over a dataset file on disk
func FromPath(path string, catalog assets.Catalog) *FileSource {
	return NewFileSource(os.DirFS(filepath.Dir(path)), filepath.Base(path), catalog)
}

// Name returns the dataset file name
func (s *FileSource) Name() string {
	return s.name
}

// FetchAll implements Source
func (s *FileSource) FetchAll(ctx context.Context) ([]models.Poll, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if _, err := fs.Stat(s.fsys, s.name); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, NotFound(s.name, nil)
		}
		return nil, ReadFailure(s.name, err)
	}

	data, err := fs.ReadFile(s.fsys, s.name)
	if err != nil {
		return nil, ReadFailure(s.name, err)
	}

	polls, err := Decode(data, s.catalog)
	if err != nil {
		return nil, DecodeFailure(s.name, err)
	}

	slog.Debug("dataset loaded", "source", s.name, "posts", len(polls))
	return polls, nil
}
