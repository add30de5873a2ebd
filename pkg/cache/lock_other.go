//go:build !unix

package cache

// withLock runs fn without file locking on platforms lacking flock(2).
func withLock(_ string, _ bool, fn func() error) error {
	return fn()
}
