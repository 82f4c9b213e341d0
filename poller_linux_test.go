//go:build linux

package engine

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestEpollBackendRegisterFDDispatchesOnRead(t *testing.T) {
	e, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer e.Free()

	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC); err != nil {
		t.Fatalf("Pipe2 failed: %v", err)
	}
	defer unix.Close(fds[1])

	done := make(chan struct{})
	onRead := func() {
		var buf [1]byte
		unix.Read(fds[0], buf[:])
		close(done)
	}

	backend, ok := e.backend.(*EpollBackend)
	if !ok {
		t.Fatalf("default backend on linux should be *EpollBackend, got %T", e.backend)
	}
	if err := backend.RegisterFD(fds[0], EventRead, ClassRead, 0, onRead, nil, nil); err != nil {
		t.Fatalf("RegisterFD failed: %v", err)
	}
	defer backend.UnregisterFD(fds[0])
	defer unix.Close(fds[0])

	go func() {
		time.Sleep(10 * time.Millisecond)
		unix.Write(fds[1], []byte{1})
	}()

	go e.Start()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("registered fd never became readable")
	}
}

func TestEpollBackendRegisterFDAlreadyRegistered(t *testing.T) {
	backend := NewEpollBackend()
	e, err := New(WithBackend(backend))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer e.Free()

	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC); err != nil {
		t.Fatalf("Pipe2 failed: %v", err)
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	if err := backend.RegisterFD(fds[0], EventRead, ClassRead, 0, nil, nil, nil); err != nil {
		t.Fatalf("first RegisterFD failed: %v", err)
	}
	defer backend.UnregisterFD(fds[0])

	if err := backend.RegisterFD(fds[0], EventRead, ClassRead, 0, nil, nil, nil); err == nil {
		t.Fatal("second RegisterFD on the same fd should fail")
	}
}

func TestEpollBackendUnregisterUnknownFD(t *testing.T) {
	backend := NewEpollBackend()
	e, err := New(WithBackend(backend))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer e.Free()

	if err := backend.UnregisterFD(12345); err == nil {
		t.Fatal("UnregisterFD on an fd never registered should fail")
	}
}
