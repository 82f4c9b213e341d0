//go:build darwin

package engine

import (
	"syscall"
)

// createWakeFd creates the self-pipe used to interrupt a blocked kqueue
// wait. The read end is non-blocking (registered with the backend for
// EventRead); the write end is left blocking so a signal handler or
// another goroutine writing a single byte never drops a wake-up to
// EAGAIN on a momentarily-full pipe.
func createWakeFd(initval uint, flags int) (int, int, error) {
	_ = initval
	_ = flags

	var fds [2]int
	if err := syscall.Pipe(fds[:]); err != nil {
		return -1, -1, err
	}

	syscall.CloseOnExec(fds[0])
	syscall.CloseOnExec(fds[1])

	if err := syscall.SetNonblock(fds[0], true); err != nil {
		_ = syscall.Close(fds[0])
		_ = syscall.Close(fds[1])
		return -1, -1, err
	}

	return fds[0], fds[1], nil
}

// closeWakeFd closes both ends of the self-pipe.
func closeWakeFd(wakeFd, wakeWriteFd int) error {
	if wakeFd >= 0 {
		_ = syscall.Close(wakeFd)
	}
	if wakeWriteFd >= 0 && wakeWriteFd != wakeFd {
		_ = syscall.Close(wakeWriteFd)
	}
	return nil
}

// isWakeFdSupported reports that Darwin always has a usable self-pipe.
func isWakeFdSupported() bool { return true }
