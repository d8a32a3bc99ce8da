package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdssp/pdscrawler/model"
	"github.com/pdssp/pdscrawler/pkgerr"
)

// Scope names what Reset deletes under a collection's directory.
type Scope struct {
	Fingerprint model.Fingerprint
	Kind        ScopeKind
}

// ScopeKind enumerates the valid Reset targets.
type ScopeKind int

const (
	// ScopeFiles removes the collection's records/ and pds3/ directories,
	// leaving any existing STAC output untouched.
	ScopeFiles ScopeKind = iota
	// ScopeSTAC removes only the collection's stac/ directory.
	ScopeSTAC
	// ScopeCollection removes the entire collection directory.
	ScopeCollection
)

// FileStore is the content-addressed directory hierarchy
// target/mission/host/instrument/dataset_id/{records|pds3|stac}/... each
// collection is cached under. Each collection directory is self-contained
// and independently re-buildable.
type FileStore struct {
	root string
}

// NewFileStore returns a FileStore rooted at root, creating it if needed.
func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, &pkgerr.Storage{Op: "mkdir file store root", Err: err}
	}
	return &FileStore{root: root}, nil
}

func (s *FileStore) collectionDir(fp model.Fingerprint) string {
	return filepath.Join(append([]string{s.root}, fp.Path()...)...)
}

func (s *FileStore) recordsDir(fp model.Fingerprint) string {
	return filepath.Join(s.collectionDir(fp), "records")
}

func (s *FileStore) pds3Dir(fp model.Fingerprint) string {
	return filepath.Join(s.collectionDir(fp), "pds3")
}

func (s *FileStore) stacDir(fp model.Fingerprint) string {
	return filepath.Join(s.collectionDir(fp), "stac")
}

func (s *FileStore) quarantineDir(fp model.Fingerprint) string {
	return filepath.Join(s.collectionDir(fp), "quarantine")
}

// WriteQuarantine atomically persists a malformed upstream payload under
// the collection's quarantine directory, a sibling of records/ and
// pds3/, instead of discarding it: a transform that can't decode a page
// keeps the raw bytes around for inspection rather than losing them.
func (s *FileStore) WriteQuarantine(fp model.Fingerprint, name string, data []byte) (string, error) {
	dir := s.quarantineDir(fp)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &pkgerr.Storage{Op: "mkdir quarantine dir", Err: err}
	}
	path := filepath.Join(dir, name)
	if err := atomicWrite(path, data); err != nil {
		return "", err
	}
	return path, nil
}

func pagePath(dir string, pageIndex int) string {
	return filepath.Join(dir, fmt.Sprintf("page_%03d.json", pageIndex))
}

// HasPage reports whether the given page has already been persisted.
func (s *FileStore) HasPage(fp model.Fingerprint, pageIndex int) bool {
	_, err := os.Stat(pagePath(s.recordsDir(fp), pageIndex))
	return err == nil
}

// WritePage atomically persists one record page's raw bytes. On failure
// the previously written content, if any, is left untouched.
func (s *FileStore) WritePage(fp model.Fingerprint, pageIndex int, data []byte) error {
	dir := s.recordsDir(fp)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &pkgerr.Storage{Op: "mkdir records dir", Err: err}
	}
	return atomicWrite(pagePath(dir, pageIndex), data)
}

// ReadPage returns a previously written page's raw bytes.
func (s *FileStore) ReadPage(fp model.Fingerprint, pageIndex int) ([]byte, error) {
	data, err := os.ReadFile(pagePath(s.recordsDir(fp), pageIndex))
	if err != nil {
		return nil, &pkgerr.Storage{Op: "read page", Err: err}
	}
	return data, nil
}

// ListMissingPages returns, in increasing order, every page index in
// [0, totalPages) that hasn't been written yet -- the resume set for
// extraction.
func (s *FileStore) ListMissingPages(fp model.Fingerprint, totalPages int) []int {
	var missing []int
	for i := 0; i < totalPages; i++ {
		if !s.HasPage(fp, i) {
			missing = append(missing, i)
		}
	}
	return missing
}

// ListPages returns, in increasing order, every page index already
// written for fp, for callers (the STAC transformer) that need to walk
// every cached page rather than just the missing ones.
func (s *FileStore) ListPages(fp model.Fingerprint) ([]int, error) {
	dir := s.recordsDir(fp)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, &pkgerr.Storage{Op: "list records dir", Err: err}
	}
	out := make([]int, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		idx, err := PageIndexFromFilename(e.Name())
		if err != nil {
			continue
		}
		out = append(out, idx)
	}
	sort.Ints(out)
	return out, nil
}

// PDS3File names one catalog-object file on disk.
type PDS3File struct {
	Kind string
	Path string
}

// WritePDS3 atomically persists a downloaded catalog-object file, named
// by its catalog kind and the upstream filename.
func (s *FileStore) WritePDS3(fp model.Fingerprint, kind, upstreamFilename string, data []byte) (string, error) {
	dir := s.pds3Dir(fp)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &pkgerr.Storage{Op: "mkdir pds3 dir", Err: err}
	}
	path := filepath.Join(dir, strings.ToLower(kind)+"_"+filepath.Base(upstreamFilename))
	if err := atomicWrite(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// ListPDS3 enumerates the catalog-object files already on disk for a
// collection, returning each one's kind (inferred from its filename
// prefix) and path.
func (s *FileStore) ListPDS3(fp model.Fingerprint) ([]PDS3File, error) {
	dir := s.pds3Dir(fp)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, &pkgerr.Storage{Op: "list pds3 dir", Err: err}
	}
	out := make([]PDS3File, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		kind := e.Name()
		if i := strings.IndexByte(kind, '_'); i >= 0 {
			kind = kind[:i]
		}
		for _, k := range []string{"data_set_map_projection", "data_set", "instrument_host"} {
			if strings.HasPrefix(e.Name(), k+"_") {
				kind = k
				break
			}
		}
		out = append(out, PDS3File{Kind: strings.ToUpper(kind), Path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// STACDir returns the directory STAC output for this collection is
// written under, so the stac package can lay out collection.json and
// item files directly.
func (s *FileStore) STACDir(fp model.Fingerprint) string {
	return s.stacDir(fp)
}

// RootDir returns the file store's root directory, for STAC tree nodes
// (root catalog, mission/host/instrument catalogs) shared across
// collections rather than owned by any one of them.
func (s *FileStore) RootDir() string {
	return s.root
}

// Reset deletes the directories named by scope.Kind for scope.Fingerprint.
func (s *FileStore) Reset(scope Scope) error {
	var dir string
	switch scope.Kind {
	case ScopeFiles:
		if err := os.RemoveAll(s.recordsDir(scope.Fingerprint)); err != nil {
			return &pkgerr.Storage{Op: "reset records", Err: err}
		}
		if err := os.RemoveAll(s.pds3Dir(scope.Fingerprint)); err != nil {
			return &pkgerr.Storage{Op: "reset pds3", Err: err}
		}
		if err := os.RemoveAll(s.quarantineDir(scope.Fingerprint)); err != nil {
			return &pkgerr.Storage{Op: "reset quarantine", Err: err}
		}
		return nil
	case ScopeSTAC:
		dir = s.stacDir(scope.Fingerprint)
	case ScopeCollection:
		dir = s.collectionDir(scope.Fingerprint)
	default:
		return &pkgerr.Storage{Op: "reset", Err: fmt.Errorf("unknown scope kind %d", scope.Kind)}
	}
	if err := os.RemoveAll(dir); err != nil {
		return &pkgerr.Storage{Op: "reset " + dir, Err: err}
	}
	return nil
}

// PageIndexFromFilename parses the page index back out of a
// page_NNN.json filename, for callers that walked the records directory
// directly instead of calling ListMissingPages.
func PageIndexFromFilename(name string) (int, error) {
	name = strings.TrimSuffix(filepath.Base(name), ".json")
	name = strings.TrimPrefix(name, "page_")
	n, err := strconv.Atoi(name)
	if err != nil {
		return 0, fmt.Errorf("not a page filename: %q", name)
	}
	return n, nil
}
