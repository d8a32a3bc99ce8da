// Package storage implements the crawler's two persistence concerns: a
// registry of collection descriptors and a directory-hierarchy file
// store for the pages, PDS3 catalogs, and STAC documents derived from
// them. The registry is JSON-file-backed with write-temp-then-rename
// atomicity, matching boltmapper.go's bucket-commit discipline scaled
// down to a single document; a boltdb/bolt side index tracks page
// checksums for check_extract's verification.
package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/pdssp/pdscrawler/model"
	"github.com/pdssp/pdscrawler/pkgerr"
)

// Registry stores every collection descriptor the crawler has
// discovered, keyed by its Fingerprint.
type Registry interface {
	Put(fp model.Fingerprint, cd model.CollectionDescriptor) error
	Get(fp model.Fingerprint) (model.CollectionDescriptor, bool, error)
	List(filter func(model.CollectionDescriptor) bool) ([]model.CollectionDescriptor, error)
}

// JSONRegistry is a Registry backed by one JSON document on disk,
// guarded by an in-process mutex and an advisory file lock so a second
// crawler process can't corrupt it mid-write.
type JSONRegistry struct {
	path string
	mu   sync.Mutex
	lock *fileLock

	entries map[string]model.CollectionDescriptor
}

type registryDocument struct {
	Entries map[string]model.CollectionDescriptor `json:"entries"`
}

// OpenJSONRegistry loads path (creating an empty registry if it doesn't
// exist yet) and takes out the registry's exclusive file lock, which is
// held for the lifetime of the returned Registry.
func OpenJSONRegistry(path string) (*JSONRegistry, error) {
	lock, err := acquireFileLock(path + ".lock")
	if err != nil {
		return nil, errors.Wrap(err, "locking registry")
	}
	r := &JSONRegistry{path: path, lock: lock, entries: map[string]model.CollectionDescriptor{}}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return r, nil
	}
	if err != nil {
		lock.Release()
		return nil, errors.Wrapf(err, "reading registry %s", path)
	}
	var doc registryDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		lock.Release()
		return nil, &pkgerr.Storage{Op: "decode registry", Err: err}
	}
	if doc.Entries != nil {
		r.entries = doc.Entries
	}
	return r, nil
}

// Close releases the registry's exclusive file lock.
func (r *JSONRegistry) Close() error {
	return r.lock.Release()
}

func (r *JSONRegistry) Put(fp model.Fingerprint, cd model.CollectionDescriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[fp.String()] = cd
	return r.persist()
}

func (r *JSONRegistry) Get(fp model.Fingerprint) (model.CollectionDescriptor, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cd, ok := r.entries[fp.String()]
	return cd, ok, nil
}

func (r *JSONRegistry) List(filter func(model.CollectionDescriptor) bool) ([]model.CollectionDescriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]model.CollectionDescriptor, 0, len(keys))
	for _, k := range keys {
		cd := r.entries[k]
		if filter == nil || filter(cd) {
			out = append(out, cd)
		}
	}
	return out, nil
}

// persist writes the full registry document atomically: serialize to a
// temp file in the same directory, fsync, then rename over the target.
func (r *JSONRegistry) persist() error {
	data, err := json.MarshalIndent(registryDocument{Entries: r.entries}, "", "  ")
	if err != nil {
		return &pkgerr.Storage{Op: "encode registry", Err: err}
	}
	return atomicWrite(r.path, data)
}

// AtomicWriteFile writes data to a temp file beside path and renames it
// into place, so a crash mid-write never leaves a truncated document.
// Exported for callers outside this package (the stac tree builder)
// that persist their own JSON documents under the same atomicity
// discipline as the registry and file store.
func AtomicWriteFile(path string, data []byte) error {
	return atomicWrite(path, data)
}

// atomicWrite writes data to a temp file beside path and renames it
// into place, so a crash mid-write never leaves a truncated document.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &pkgerr.Storage{Op: "mkdir " + dir, Err: err}
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return &pkgerr.Storage{Op: "create temp file", Err: err}
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &pkgerr.Storage{Op: "write temp file", Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &pkgerr.Storage{Op: "sync temp file", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return &pkgerr.Storage{Op: "close temp file", Err: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return &pkgerr.Storage{Op: "rename into place", Err: err}
	}
	return nil
}
