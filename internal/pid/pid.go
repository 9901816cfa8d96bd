// Package pid guards against two pulse daemons sharing a PID file.
package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"codeberg.org/mutker/pulse/internal/errors"
)

const defaultFile = "pulse.pid"

// DefaultPath returns the PID file location in the system temp directory.
func DefaultPath() string {
	return filepath.Join(os.TempDir(), defaultFile)
}

// Write records the current process ID at path. It fails with
// ErrAlreadyRunning when the file names a live process other than this one.
// Stale files are overwritten.
func Write(path string) error {
	errFactory := errors.New()

	if running, err := liveProcess(path); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	} else if running {
		return errFactory.WithData(errors.ErrAlreadyRunning, path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o600); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

func liveProcess(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 || pid == os.Getpid() {
		// Unreadable contents are treated as stale.
		return false, nil //nolint:nilerr
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false, nil //nolint:nilerr
	}

	return process.Signal(syscall.Signal(0)) == nil, nil
}

// Remove deletes the PID file at path. A missing file is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.New().Wrap(errors.ErrInternal, err)
	}

	return nil
}
