//go:build linux
// +build linux

// File: reactor/poller_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7) poller in edge-triggered mode with zero-timeout waits.

package reactor

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// epollPoller implements Poller using Linux epoll.
type epollPoller struct {
	epfd int
	raw  []unix.EpollEvent
}

// NewPoller creates an epoll instance.
func NewPoller() (Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	return &epollPoller{epfd: epfd}, nil
}

// Register adds fd to the epoll interest list with EPOLLET.
func (p *epollPoller) Register(fd int, events EventType) error {
	ev := unix.EpollEvent{
		Events: toEpoll(events) | uint32(unix.EPOLLET),
		Fd:     int32(fd),
	}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl add: %w", err)
	}
	return nil
}

// Unregister removes fd from the interest list.
func (p *epollPoller) Unregister(fd int) error {
	var ev unix.EpollEvent
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl del: %w", err)
	}
	return nil
}

// Wait performs one epoll_wait with a zero timeout.
func (p *epollPoller) Wait(events []Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	if cap(p.raw) < len(events) {
		p.raw = make([]unix.EpollEvent, len(events))
	}
	raw := p.raw[:len(events)]

	n, err := unix.EpollWait(p.epfd, raw, 0)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, nil // interrupted by signal, nothing reported
		}
		return 0, fmt.Errorf("epoll wait: %w", err)
	}
	for i := 0; i < n; i++ {
		events[i] = Event{Fd: int(raw[i].Fd), Events: fromEpoll(raw[i].Events)}
	}
	return n, nil
}

// Close releases the epoll file descriptor.
func (p *epollPoller) Close() error {
	return unix.Close(p.epfd)
}

func toEpoll(events EventType) uint32 {
	var out uint32
	if events&EventRead != 0 {
		out |= unix.EPOLLIN | unix.EPOLLRDHUP
	}
	if events&EventWrite != 0 {
		out |= unix.EPOLLOUT
	}
	return out
}

func fromEpoll(raw uint32) EventType {
	var out EventType
	if raw&unix.EPOLLIN != 0 {
		out |= EventRead
	}
	if raw&unix.EPOLLOUT != 0 {
		out |= EventWrite
	}
	if raw&(unix.EPOLLERR|unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
		out |= EventError
	}
	return out
}
