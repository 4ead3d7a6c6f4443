//go:build !unix && !windows

package docstore

var lockViolationErrnos []error
