//go:build linux

package engine

import (
	"golang.org/x/sys/unix"
)

// createWakeFd creates the self-pipe used to interrupt a blocked epoll
// wait. The read end is non-blocking (registered with the backend for
// EventRead); the write end is left blocking, since signal handlers and
// other goroutines writing a single byte never want to observe EAGAIN on
// a momentarily-full pipe — per the byte-protocol's own contract, a lost
// wake-up would silently drop a mailbox drain or a signal dispatch.
func createWakeFd(initval uint, flags int) (int, int, error) {
	_ = initval
	_ = flags

	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC); err != nil {
		return -1, -1, err
	}
	if err := unix.SetNonblock(fds[0], true); err != nil {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
		return -1, -1, err
	}
	return fds[0], fds[1], nil
}

// closeWakeFd closes both ends of the self-pipe.
func closeWakeFd(wakeFd, wakeWriteFd int) error {
	if wakeFd >= 0 {
		_ = unix.Close(wakeFd)
	}
	if wakeWriteFd >= 0 && wakeWriteFd != wakeFd {
		_ = unix.Close(wakeWriteFd)
	}
	return nil
}

// isWakeFdSupported reports that Linux always has a usable self-pipe.
func isWakeFdSupported() bool { return true }
