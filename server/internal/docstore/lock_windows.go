//go:build windows

package docstore

import "golang.org/x/sys/windows"

// Antivirus scanners and indexers hold collection files open long enough to
// make MoveFileEx fail with any of these.
var lockViolationErrnos = []error{
	windows.ERROR_SHARING_VIOLATION,
	windows.ERROR_LOCK_VIOLATION,
	windows.ERROR_ACCESS_DENIED,
}
