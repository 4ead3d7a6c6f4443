package docstore

import (
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
)

// readFile returns the raw collection bytes, or nil when the file does not
// exist. A collection whose file is parked aside by an in-flight write is
// read from its backup. Other errors are retried.
func (s *Store) readFile(name string) ([]byte, error) {
	path := s.Path(name)
	var err error
	for attempt := 1; attempt <= s.opts.Attempts; attempt++ {
		if attempt > 1 {
			s.sleep(s.opts.Delay)
		}
		var data []byte
		data, err = s.fs.ReadFile(path)
		if err == nil {
			return data, nil
		}
		if errors.Is(err, fs.ErrNotExist) {
			data, err = s.fs.ReadFile(s.backupPath(name))
			if err == nil {
				return data, nil
			}
			if errors.Is(err, fs.ErrNotExist) {
				return nil, nil
			}
		}
		slog.Debug("docstore: read attempt failed",
			"collection", name, "attempt", attempt, "err", err)
	}
	return nil, &StorageError{Op: "read", Collection: name, Attempts: s.opts.Attempts, Err: err}
}

// backupPath is where a locked target is parked while a write retries.
func (s *Store) backupPath(name string) string {
	return filepath.Join(s.root, "."+name+collectionExt+".bak")
}

// writeAtomic publishes data as the collection file via temp file + rename.
//
// The temp file is created once and reused across rename attempts. A rename
// refused with a lock-violation errno moves the target to a backup before
// the next attempt. The backup is dropped once the rename lands and put
// back if the attempts run out, so a failed write leaves the previous
// content in place. The temp file does not outlive the call.
func (s *Store) writeAtomic(name string, data []byte) error {
	path := s.Path(name)
	backup := s.backupPath(name)
	parked := false
	tmp := ""
	defer func() {
		if tmp != "" {
			_ = s.fs.Remove(tmp)
		}
	}()

	var err error
	for attempt := 1; attempt <= s.opts.Attempts; attempt++ {
		if attempt > 1 {
			s.sleep(s.opts.Delay)
		}
		if tmp == "" {
			if tmp, err = s.writeTemp(filepath.Base(path), data); err != nil {
				slog.Debug("docstore: temp write failed",
					"collection", name, "attempt", attempt, "err", err)
				continue
			}
		}
		if err = s.fs.Rename(tmp, path); err == nil {
			tmp = ""
			if parked {
				if rmErr := s.fs.Remove(backup); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
					slog.Warn("docstore: remove backup failed", "collection", name, "err", rmErr)
				}
			}
			return nil
		}
		if !IsLockViolation(err) {
			slog.Debug("docstore: rename attempt failed",
				"collection", name, "attempt", attempt, "err", err)
			continue
		}
		if parked || attempt == s.opts.Attempts {
			continue
		}
		slog.Warn("docstore: target locked, moving it aside before retry",
			"collection", name, "attempt", attempt, "err", err)
		switch mvErr := s.fs.Rename(path, backup); {
		case mvErr == nil:
			parked = true
		case errors.Is(mvErr, fs.ErrNotExist):
		default:
			slog.Debug("docstore: move target aside failed", "collection", name, "err", mvErr)
		}
	}

	if parked {
		if rsErr := s.fs.Rename(backup, path); rsErr != nil {
			slog.Error("docstore: restore backup failed, previous content kept in backup",
				"collection", name, "backup", backup, "err", rsErr)
		}
	}
	return &StorageError{Op: "write", Collection: name, Attempts: s.opts.Attempts, Err: err}
}

// writeTemp writes data to a new hidden temp file in the data root and
// returns its path. The file is fsynced before it is closed.
func (s *Store) writeTemp(base string, data []byte) (string, error) {
	f, err := s.fs.CreateTemp(s.root, "."+base+".*.tmp")
	if err != nil {
		return "", err
	}
	name := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = s.fs.Remove(name)
		return "", err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = s.fs.Remove(name)
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = s.fs.Remove(name)
		return "", err
	}
	return name, nil
}
