//go:build unix

package procsession

import (
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// nonBlockingRead performs one non-blocking read attempt against f, toggling
// O_NONBLOCK around the syscall so a normally-blocking pipe read returns
// immediately with whatever is currently buffered (§4.C: "this toggles
// O_NONBLOCK around the read"). Returns (0, nil) when nothing is currently
// available rather than blocking.
func nonBlockingRead(f *os.File, buf []byte) (int, error) {
	fd := int(f.Fd())

	if err := unix.SetNonblock(fd, true); err != nil {
		return 0, err
	}
	defer unix.SetNonblock(fd, false)

	n, err := unix.Read(fd, buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, nil
		}
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}
