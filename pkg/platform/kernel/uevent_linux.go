package kernel

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

const (
	ueventBufferSize = 64 * 1024
	// ueventPollInterval bounds how long a closed subscription keeps its socket
	ueventPollInterval = time.Second
)

// subscribeUevents listens on the kobject uevent multicast group and sends
// parsed events down ch until done is closed. ch is closed on exit, the way
// netlink subscriptions behave.
func subscribeUevents(group uint32, ch chan<- uevent, done <-chan struct{}, errorCallback func(error)) error {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.NETLINK_KOBJECT_UEVENT)
	if err != nil {
		return fmt.Errorf("unable to open uevent socket: %w", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: group}); err != nil {
		unix.Close(fd)
		return fmt.Errorf("unable to bind uevent socket to group %d: %w", group, err)
	}
	tv := unix.NsecToTimeval(ueventPollInterval.Nanoseconds())
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		unix.Close(fd)
		return fmt.Errorf("unable to set uevent socket timeout: %w", err)
	}

	go func() {
		defer close(ch)
		defer unix.Close(fd)

		buf := make([]byte, ueventBufferSize)
		for {
			select {
			case <-done:
				return
			default:
			}

			n, _, err := unix.Recvfrom(fd, buf, 0)
			if err != nil {
				if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
					continue
				}
				errorCallback(fmt.Errorf("uevent receive failed: %w", err))
				return
			}

			// other subsystems may send anything; only well formed events matter
			ev, err := parseUevent(buf[:n])
			if err != nil {
				continue
			}
			select {
			case ch <- ev:
			case <-done:
				return
			}
		}
	}()
	return nil
}
