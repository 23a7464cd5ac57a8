package uploadsvc

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/trezcool/schoolhub/core"
)

// localBackend writes files under a directory served at a public base URL.
type localBackend struct {
	dir     string
	baseURL string
}

func newLocalBackend(conf core.StorageConfig) *localBackend {
	return &localBackend{dir: conf.LocalDir, baseURL: conf.PublicBaseURL}
}

func (b *localBackend) path(key string) string {
	return filepath.Join(b.dir, filepath.FromSlash(key))
}

func (b *localBackend) put(_ context.Context, key, _ string, content []byte) error {
	p := b.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return errors.Wrap(err, "creating upload dir")
	}
	return errors.Wrap(os.WriteFile(p, content, 0o644), "writing file")
}

func (b *localBackend) remove(_ context.Context, key string) error {
	if err := os.Remove(b.path(key)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing file")
	}
	return nil
}

func (b *localBackend) url(key string) string {
	return b.baseURL + "/" + key
}
