//go:build unix

package consolein

import (
	"os"

	"golang.org/x/sys/unix"
)

// canSelect uses select(2) to see whether STDIN has input waiting,
// without blocking for more than a moment.
func canSelect() bool {

	fd := int(os.Stdin.Fd())
	fds := &unix.FdSet{}
	fds.Set(fd)

	// See if input is pending, for a while.
	tv := unix.Timeval{Usec: 200}

	nRead, err := unix.Select(fd+1, fds, nil, nil, &tv)
	if err != nil {
		return false
	}

	return nRead > 0
}
