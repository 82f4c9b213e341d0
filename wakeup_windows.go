//go:build windows

package engine

// createWakeFd is a no-op on Windows: IOCP is woken natively via
// IOCPBackend.WakeNative (PostQueuedCompletionStatus), so no self-pipe
// file descriptors are needed. Returning -1, -1 tells wakeupTransport to
// use the backend's nativeWaker path instead.
func createWakeFd(initval uint, flags int) (int, int, error) {
	return -1, -1, nil
}

// closeWakeFd is a no-op on Windows: there are no fds to close.
func closeWakeFd(wakeFd, wakeWriteFd int) error { return nil }

// isWakeFdSupported reports false on Windows: wake-up goes through the
// backend's native mechanism instead of a self-pipe.
func isWakeFdSupported() bool { return false }
