//go:build linux

package pioline

import (
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// epollPoller is the single process-wide readiness-notification loop. Every
// watched line registers its value descriptor here; one goroutine blocks in
// EpollWait and dispatches sequentially, one line at a time. GPIO interrupts
// surface on sysfs value files as priority (EPOLLPRI) readiness.
type epollPoller struct {
	epfd int

	mu       sync.Mutex
	watchers map[int32]*watcher
}

var (
	pollerOnce sync.Once
	poller     *epollPoller
	pollerErr  error
)

// sharedNotifier starts the monitoring loop lazily, on the first armed watch
// in the process.
func sharedNotifier() (notifier, error) {
	pollerOnce.Do(func() {
		epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
		if err != nil {
			pollerErr = errors.Wrapf(ErrResource, "creating epoll instance: %v", err)
			return
		}
		poller = &epollPoller{epfd: epfd, watchers: make(map[int32]*watcher)}
		go poller.run()
	})
	if pollerErr != nil {
		return nil, pollerErr
	}
	return poller, nil
}

func eventMask(oneShot bool) uint32 {
	mask := uint32(unix.EPOLLPRI | unix.EPOLLERR)
	if oneShot {
		mask |= unix.EPOLLONESHOT
	}
	return mask
}

func (p *epollPoller) register(fd int, w *watcher, oneShot bool) error {
	p.mu.Lock()
	p.watchers[int32(fd)] = w
	p.mu.Unlock()

	event := unix.EpollEvent{Events: eventMask(oneShot), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &event); err != nil {
		p.mu.Lock()
		delete(p.watchers, int32(fd))
		p.mu.Unlock()
		return errors.Wrapf(ErrResource, "registering descriptor %d: %v", fd, err)
	}
	return nil
}

func (p *epollPoller) rearm(fd int, oneShot bool) error {
	event := unix.EpollEvent{Events: eventMask(oneShot), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &event); err != nil {
		return errors.Wrapf(ErrResource, "re-arming descriptor %d: %v", fd, err)
	}
	return nil
}

func (p *epollPoller) deregister(fd int) error {
	p.mu.Lock()
	delete(p.watchers, int32(fd))
	p.mu.Unlock()

	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return errors.Wrapf(ErrResource, "deregistering descriptor %d: %v", fd, err)
	}
	return nil
}

func (p *epollPoller) run() {
	events := make([]unix.EpollEvent, 8)
	for {
		n, err := unix.EpollWait(p.epfd, events, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}
		for i := 0; i < n; i++ {
			p.mu.Lock()
			w := p.watchers[events[i].Fd]
			p.mu.Unlock()
			if w != nil {
				w.ready()
			}
		}
	}
}
