//go:build !unix

package queue

// consumerLock is a no-op where flock is unavailable; Config.Exclusive then
// only documents intent.
type consumerLock struct{}

func acquireLock(string) (*consumerLock, error) { return &consumerLock{}, nil }

func (l *consumerLock) release() error { return nil }
