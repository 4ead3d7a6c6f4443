package docstore

import (
	"errors"
	"os"
)

// FS is the slice of the filesystem the store touches. Tests substitute it to
// inject failures; production code uses OSFS.
type FS interface {
	ReadFile(name string) ([]byte, error)
	CreateTemp(dir, pattern string) (*os.File, error)
	Rename(oldpath, newpath string) error
	Remove(name string) error
	MkdirAll(path string, perm os.FileMode) error
	ReadDir(name string) ([]os.DirEntry, error)
}

// OSFS implements FS with the os package.
type OSFS struct{}

func (OSFS) ReadFile(name string) ([]byte, error)             { return os.ReadFile(name) }
func (OSFS) CreateTemp(dir, pattern string) (*os.File, error) { return os.CreateTemp(dir, pattern) }
func (OSFS) Rename(oldpath, newpath string) error             { return os.Rename(oldpath, newpath) }
func (OSFS) Remove(name string) error                         { return os.Remove(name) }
func (OSFS) MkdirAll(path string, perm os.FileMode) error     { return os.MkdirAll(path, perm) }
func (OSFS) ReadDir(name string) ([]os.DirEntry, error)       { return os.ReadDir(name) }

// IsLockViolation reports whether err carries one of the platform errnos a
// rename returns when another handle holds the target open.
func IsLockViolation(err error) bool {
	if err == nil {
		return false
	}
	for _, errno := range lockViolationErrnos {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}
