package cmd

import (
	"path/filepath"

	"github.com/pdssp/pdscrawler/etl"
	"github.com/pdssp/pdscrawler/fetch"
	"github.com/pdssp/pdscrawler/storage"
)

// environment bundles the storage handles every subcommand needs: the file
// store, the collection registry, the page checksum index, and a driver
// wired to all three. Subcommands never touch storage directly -- they go
// through this so the on-disk layout stays centralized in one place.
type environment struct {
	Files     *storage.FileStore
	Registry  *storage.JSONRegistry
	PageIndex *storage.PageIndex
	Driver    *etl.Driver
}

func openEnvironment(root string, concurrency int) (*environment, error) {
	files, err := storage.NewFileStore(root)
	if err != nil {
		return nil, err
	}
	registry, err := storage.OpenJSONRegistry(filepath.Join(root, "registry.json"))
	if err != nil {
		return nil, err
	}
	pageIdx, err := storage.OpenPageIndex(filepath.Join(root, "pages.db"))
	if err != nil {
		registry.Close()
		return nil, err
	}

	driver := etl.NewDriver(files, registry, fetch.NewClient(), pageIdx)
	if concurrency > 0 {
		driver.Concurrency = concurrency
	}
	return &environment{Files: files, Registry: registry, PageIndex: pageIdx, Driver: driver}, nil
}

func (e *environment) Close() error {
	if err := e.PageIndex.Close(); err != nil {
		e.Registry.Close()
		return err
	}
	return e.Registry.Close()
}
