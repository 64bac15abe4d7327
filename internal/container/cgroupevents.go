package container

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// watchCgroupEvents tails cgroup.events by polling it for PRIORITY/ERROR
// readiness rather than inotify: cgroupfs pseudo-files signal
// content changes through poll(2), not through the regular-file write
// notifications inotify instruments.
func (c *Container) watchCgroupEvents() {
	path := c.unifiedPath + "/cgroup.events"
	f, err := os.Open(path)
	if err != nil {
		log.WithError(err).WithField("path", path).Warn("failed to open cgroup.events; container exit will not be detected")
		close(c.populated)
		return
	}
	defer f.Close()

	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		log.WithError(err).Warn("epoll_create1 failed; falling back to a single unpopulated signal")
		close(c.populated)
		return
	}
	defer unix.Close(epfd)

	ev := unix.EpollEvent{Events: unix.EPOLLPRI | unix.EPOLLERR, Fd: int32(f.Fd())}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, int(f.Fd()), &ev); err != nil {
		log.WithError(err).Warn("epoll_ctl failed; falling back to a single unpopulated signal")
		close(c.populated)
		return
	}

	if populated, ok := readPopulated(path); ok && !populated {
		close(c.populated)
		return
	}

	events := make([]unix.EpollEvent, 1)
	for {
		n, err := unix.EpollWait(epfd, events, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			log.WithError(err).Warn("epoll_wait on cgroup.events failed")
			close(c.populated)
			return
		}
		if n == 0 {
			continue
		}

		populated, ok := readPopulated(path)
		if !ok {
			// cgroup has been removed out from under us; treat as exit.
			close(c.populated)
			return
		}
		if !populated {
			close(c.populated)
			return
		}
	}
}

// readPopulated re-reads cgroup.events from the start and parses the
// "populated" line. ok is false if the file could no longer be read.
func readPopulated(path string) (populated bool, ok bool) {
	f, err := os.Open(path)
	if err != nil {
		return false, false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		fields := strings.Fields(line)
		if len(fields) != 2 || fields[0] != "populated" {
			continue
		}
		v, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		return v != 0, true
	}
	return true, true // no "populated" line: assume still populated
}
