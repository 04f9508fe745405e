// Package assets resolves image names referenced by the dataset into bytes.
package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sync"

	"github.com/marcus/pollexa/internal/models"
)

// ErrNotFound is returned when no asset exists for a name
var ErrNotFound = errors.New("asset not found")

// DefaultExtensions are tried in order when a name has no extension
var DefaultExtensions = []string{".png", ".jpg", ".jpeg", ".svg"}

// Catalog resolves an image name to an asset
type Catalog interface {
	Lookup(name string) (models.Asset, error)
}

// FSCatalog looks names up inside a directory of an fs.FS. Resolved assets
// are cached, they never change once loaded.
type FSCatalog struct {
	fsys       fs.FS
	dir        string
	extensions []string

	mu    sync.Mutex
	cache map[string]models.Asset
}

// NewFSCatalog creates a catalog rooted at dir within fsys
func NewFSCatalog(fsys fs.FS, dir string) *FSCatalog {
	if dir == "" {
		dir = "."
	}
	return &FSCatalog{
		fsys:       fsys,
		dir:        dir,
		extensions: DefaultExtensions,
		cache:      make(map[string]models.Asset),
	}
}

// NewDirCatalog creates a catalog over a directory on disk
func NewDirCatalog(dir string) *FSCatalog {
	return NewFSCatalog(os.DirFS(dir), ".")
}

// Lookup returns the asset for name. A name may carry its own extension;
// otherwise each of the catalog extensions is tried in order.
func (c *FSCatalog) Lookup(name string) (models.Asset, error) {
	if name == "" || !fs.ValidPath(name) {
		return models.Asset{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if a, ok := c.cache[name]; ok {
		return a, nil
	}

	candidates := []string{name}
	if path.Ext(name) == "" {
		candidates = candidates[:0]
		for _, ext := range c.extensions {
			candidates = append(candidates, name+ext)
		}
	}

	for _, candidate := range candidates {
		data, err := fs.ReadFile(c.fsys, path.Join(c.dir, candidate))
		if err == nil {
			a := models.Asset{Name: name, Data: data}
			c.cache[name] = a
			return a, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return models.Asset{}, fmt.Errorf("read asset %q: %w", candidate, err)
		}
	}

	return models.Asset{}, fmt.Errorf("%w: %q", ErrNotFound, name)
}

// MapCatalog is an in-memory catalog, handy for tests and fixtures
type MapCatalog map[string][]byte

// Lookup implements Catalog
func (m MapCatalog) Lookup(name string) (models.Asset, error) {
	data, ok := m[name]
	if !ok {
		return models.Asset{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return models.Asset{Name: name, Data: data}, nil
}
