package event

import (
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// socketpair creates a connected pair of AF_UNIX SOCK_DGRAM descriptors and
// wraps them as *net.UnixConn, giving SocketPairCarrier two real file
// descriptors a WaitSet's epoll poller can register directly.
func socketpair() (a, b *net.UnixConn, err error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_DGRAM, 0)
	if err != nil {
		return nil, nil, err
	}
	fa := os.NewFile(uintptr(fds[0]), "shmbus-event-a")
	fb := os.NewFile(uintptr(fds[1]), "shmbus-event-b")
	ca, err := net.FileConn(fa)
	if err != nil {
		fa.Close()
		fb.Close()
		return nil, nil, err
	}
	fa.Close()
	cb, err := net.FileConn(fb)
	if err != nil {
		ca.Close()
		fb.Close()
		return nil, nil, err
	}
	fb.Close()
	return ca.(*net.UnixConn), cb.(*net.UnixConn), nil
}
