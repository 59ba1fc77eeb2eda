// Package fdpass transfers open file descriptors over unix sockets
// using SCM_RIGHTS. The daemon uses it to hand a pinned map's
// descriptor to an out-of-process consumer: the consumer listens on a
// socket path, the daemon connects and sends the map fd alongside the
// map's pin path as regular data.
package fdpass

import (
	"fmt"
	"net"
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

// MaxNameLen is the maximum length of the name sent with a descriptor.
const MaxNameLen = 4096

// oobSpace is the control-message space required for a single fd.
var oobSpace = unix.CmsgSpace(4)

// SendFd sends fd over the unix socket, with name as regular data.
func SendFd(socket *os.File, name string, fd int) error {
	if len(name) >= MaxNameLen {
		return fmt.Errorf("sendfd: name too long: %d >= %d", len(name), MaxNameLen)
	}

	oob := unix.UnixRights(fd)
	sockfd := int(socket.Fd())

	for {
		err := unix.Sendmsg(sockfd, []byte(name), oob, nil, 0)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return fmt.Errorf("sendmsg: %w", err)
		}
		return nil
	}
}

// SendFile sends file's descriptor over the unix socket, using the
// file's name as the accompanying data.
func SendFile(socket, file *os.File) error {
	err := SendFd(socket, file.Name(), int(file.Fd()))
	runtime.KeepAlive(file)
	return err
}

// SendFileTo connects to the unix socket at socketPath and sends
// file's descriptor to whoever is listening there.
func SendFileTo(socketPath string, file *os.File) error {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return fmt.Errorf("dial %s: %w", socketPath, err)
	}
	defer conn.Close()

	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return fmt.Errorf("dial %s: not a unix connection", socketPath)
	}
	sock, err := unixConn.File()
	if err != nil {
		return fmt.Errorf("get socket file: %w", err)
	}
	defer sock.Close()

	return SendFile(sock, file)
}

// SendFdTo connects to the unix socket at socketPath and sends fd to
// whoever is listening there, with name as the accompanying data.
func SendFdTo(socketPath, name string, fd int) error {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return fmt.Errorf("dial %s: %w", socketPath, err)
	}
	defer conn.Close()

	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return fmt.Errorf("dial %s: not a unix connection", socketPath)
	}
	sock, err := unixConn.File()
	if err != nil {
		return fmt.Errorf("get socket file: %w", err)
	}
	defer sock.Close()

	return SendFd(sock, name, fd)
}

// RecvFd receives a descriptor from the unix socket, returning the fd
// and the name sent with it.
func RecvFd(socket *os.File) (fd int, name string, err error) {
	nameBuf := make([]byte, MaxNameLen)
	oob := make([]byte, oobSpace)
	sockfd := int(socket.Fd())

	var n, oobn int
	for {
		n, oobn, _, _, err = unix.Recvmsg(sockfd, nameBuf, oob, unix.MSG_CMSG_CLOEXEC)
		if err == unix.EINTR {
			continue
		}
		break
	}

	if err != nil {
		return -1, "", fmt.Errorf("recvmsg: %w", err)
	}

	if n >= MaxNameLen {
		return -1, "", fmt.Errorf("recvfd: name too long: %d", n)
	}
	if oobn != oobSpace {
		return -1, "", fmt.Errorf("recvfd: unexpected oob length: got %d, want %d", oobn, oobSpace)
	}

	scms, err := unix.ParseSocketControlMessage(oob[:oobn])
	if err != nil {
		return -1, "", fmt.Errorf("parse control message: %w", err)
	}
	if len(scms) != 1 {
		return -1, "", fmt.Errorf("recvfd: expected 1 SCM, got %d", len(scms))
	}

	fds, err := unix.ParseUnixRights(&scms[0])
	if err != nil {
		return -1, "", fmt.Errorf("parse unix rights: %w", err)
	}
	if len(fds) != 1 {
		for _, extra := range fds {
			unix.Close(extra)
		}
		return -1, "", fmt.Errorf("recvfd: expected 1 fd, got %d", len(fds))
	}

	return fds[0], string(nameBuf[:n]), nil
}

// RecvFile receives a descriptor from the unix socket as an *os.File
// named after the data sent with it.
func RecvFile(socket *os.File) (*os.File, error) {
	fd, name, err := RecvFd(socket)
	if err != nil {
		return nil, err
	}
	return os.NewFile(uintptr(fd), name), nil
}

// Socketpair creates a pair of connected unix sockets.
func Socketpair() (parent, child *os.File, err error) {
	fds, err := unix.Socketpair(unix.AF_LOCAL, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("socketpair: %w", err)
	}

	parent = os.NewFile(uintptr(fds[0]), "fdpass-parent")
	child = os.NewFile(uintptr(fds[1]), "fdpass-child")
	return parent, child, nil
}
