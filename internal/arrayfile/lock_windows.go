//go:build windows

package arrayfile

import (
	"io"
	"os"
)

type fileLock struct {
	f    *os.File
	name string
}

// lockFile creates name exclusively; readers and writers are not told apart.
func lockFile(name string, _ bool) (io.Closer, error) {
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, err
	}
	return &fileLock{f: f, name: name}, nil
}

func (l *fileLock) Close() error {
	err := l.f.Close()
	if rmErr := os.Remove(l.name); err == nil {
		err = rmErr
	}
	return err
}
