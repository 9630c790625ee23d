// Package pid guards an output path against concurrent writers with a
// process ID file.
package pid

import (
	"hash/fnv"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"codeberg.org/mutker/biolog/internal/errors"
)

const (
	pidPrefix = "biolog-"
	pidSuffix = ".pid"
)

type File struct {
	path string
}

// Path returns the PID file path used for output inside dir.
func Path(dir, output string) string {
	abs, err := filepath.Abs(output)
	if err != nil {
		abs = output
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(abs))

	return filepath.Join(dir, pidPrefix+strconv.FormatUint(h.Sum64(), 16)+pidSuffix)
}

// Write records the current process as the writer of output. It fails with
// ErrAlreadyRunning while another live process holds the same output.
func Write(dir, output string) (*File, error) {
	errFactory := errors.New()
	path := Path(dir, output)

	if bytes, err := os.ReadFile(path); err == nil {
		// PID file exists, check if the process is running
		if pid, err := strconv.Atoi(strings.TrimSpace(string(bytes))); err == nil && running(pid) {
			return nil, errFactory.WithData(errors.ErrAlreadyRunning, pid)
		}
	} else if !os.IsNotExist(err) {
		return nil, errFactory.Wrap(errors.ErrInternal, err)
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o600); err != nil {
		return nil, errFactory.Wrap(errors.ErrInternal, err)
	}

	return &File{path: path}, nil
}

func running(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

func (f *File) Path() string {
	return f.path
}

// Remove removes the PID file.
func (f *File) Remove() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return errors.New().Wrap(errors.ErrInternal, err)
	}
	return nil
}
