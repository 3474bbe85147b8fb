package staticstore

import (
	"context"
	"os"
	"sync"

	"github.com/cockroachdb/errors"

	"svc-registry/filer"
	"svc-registry/registry"
)

// ErrNotFound is returned by Delete when no service with the given ID
// exists.
var ErrNotFound = errors.New("staticstore: service not found")

// FileStore is a StaticStore backed by a single operator-maintained JSON
// file, loaded via filer.JsonFiler. The whole file is read once at
// construction and rewritten on every Put/Delete; this is a fine model for
// the handful-to-low-thousands of static entries a deployment is expected
// to declare, not a general-purpose datastore.
type FileStore struct {
	filer filer.JsonFiler
	path  string

	mu       sync.RWMutex
	services []registry.Service
}

// NewFileStore loads path, creating an empty store if the file does not
// exist yet (first run). A file that exists but does not parse as JSON is
// an error.
func NewFileStore(f filer.JsonFiler, path string) (*FileStore, error) {
	fs := &FileStore{filer: f, path: path}

	var services []registry.Service
	if err := f.Load(path, &services); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, errors.Wrapf(err, "staticstore: load %q", path)
		}
		services = nil
	}
	fs.services = services

	return fs, nil
}

func (fs *FileStore) GetAll(_ context.Context) ([]registry.Service, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	out := make([]registry.Service, len(fs.services))
	copy(out, fs.services)
	return out, nil
}

func (fs *FileStore) Put(_ context.Context, svc registry.Service) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	replaced := false
	for i, existing := range fs.services {
		if existing.ID == svc.ID {
			fs.services[i] = svc
			replaced = true
			break
		}
	}
	if !replaced {
		fs.services = append(fs.services, svc)
	}

	return fs.persistLocked()
}

func (fs *FileStore) Delete(_ context.Context, id registry.ServiceId) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	for i, existing := range fs.services {
		if existing.ID == id {
			fs.services = append(fs.services[:i], fs.services[i+1:]...)
			return fs.persistLocked()
		}
	}
	return ErrNotFound
}

func (fs *FileStore) persistLocked() error {
	if err := fs.filer.Save(fs.path, fs.services); err != nil {
		return errors.Wrapf(err, "staticstore: save %q", fs.path)
	}
	return nil
}
