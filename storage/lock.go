package storage

import (
	"os"
	"syscall"

	"github.com/pkg/errors"
)

// fileLock wraps an advisory exclusive lock taken with flock(2) on a
// dedicated lock file, serializing registry access across processes.
type fileLock struct {
	f *os.File
}

func acquireFileLock(path string) (*fileLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "opening lock file %s", path)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "flocking %s", path)
	}
	return &fileLock{f: f}, nil
}

func (l *fileLock) Release() error {
	if err := syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN); err != nil {
		l.f.Close()
		return errors.Wrap(err, "unlocking")
	}
	return l.f.Close()
}
