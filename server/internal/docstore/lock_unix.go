//go:build unix

package docstore

import "golang.org/x/sys/unix"

var lockViolationErrnos = []error{unix.EBUSY, unix.ETXTBSY}
