//go:build unix

package cache

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/agentstation/orgsync/pkg/constants"
	"github.com/agentstation/orgsync/pkg/errors"
)

// withLock runs fn while holding flock(2) on lockPath.
func withLock(lockPath string, exclusive bool, fn func() error) error {
	f, err := os.OpenFile(filepath.Clean(lockPath), os.O_CREATE|os.O_RDWR, constants.SecureFilePermissions)
	if err != nil {
		if !exclusive && os.IsNotExist(err) {
			return fn()
		}
		return errors.WrapIO("open", lockPath, err)
	}
	defer func() { _ = f.Close() }()

	how := unix.LOCK_SH
	if exclusive {
		how = unix.LOCK_EX
	}
	for {
		err = unix.Flock(int(f.Fd()), how)
		if err != unix.EINTR {
			break
		}
	}
	if err != nil {
		return errors.WrapIO("lock", lockPath, err)
	}
	defer func() { _ = unix.Flock(int(f.Fd()), unix.LOCK_UN) }()

	return fn()
}
