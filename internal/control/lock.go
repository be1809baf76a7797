package control

import (
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/hardenedlabs/secadm/internal/fsx"
)

// Lock errors.
var (
	ErrLockTimeout  = errors.New("lock timeout")
	ErrLockFileOpen = errors.New("failed to open lock file")
)

// lockRetryInterval paces lock acquisition attempts.
const lockRetryInterval = 10 * time.Millisecond

// InstanceLock is an exclusive flock on the daemon's lock file, keeping a
// second daemon from serving the same socket.
type InstanceLock struct {
	path string
	file fsx.File
}

// AcquireInstanceLock takes the exclusive lock, retrying until timeout.
func AcquireInstanceLock(filesystem fsx.FS, path string, timeout time.Duration) (*InstanceLock, error) {
	file, err := filesystem.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLockFileOpen, err)
	}

	deadline := time.Now().Add(timeout)

	for {
		err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return &InstanceLock{path: path, file: file}, nil
		}

		if time.Now().After(deadline) {
			_ = file.Close()

			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, path)
		}

		time.Sleep(lockRetryInterval)
	}
}

// Release drops the lock and removes the lock file.
func (l *InstanceLock) Release() error {
	if err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN); err != nil {
		_ = l.file.Close()

		return fmt.Errorf("unlock %s: %w", l.path, err)
	}

	if err := l.file.Close(); err != nil {
		return fmt.Errorf("close lock %s: %w", l.path, err)
	}

	_ = os.Remove(l.path)

	return nil
}
