//go:build !windows
// +build !windows

package tin

import (
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"sync/atomic"
	"syscall"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Reads from a tty, but can be unblocked from another goroutine. Read
// blocks in select(2) over the tty and an internal shutdown pipe;
// Interrupt() closes the pipe's write end, which wakes the select up.
type interruptableReader struct {
	base *os.File

	shutdownPipeReader *os.File
	shutdownPipeWriter *os.File

	interrupted atomic.Bool
}

func newInterruptableReader(base *os.File) (*interruptableReader, error) {
	reader := interruptableReader{
		base: base,
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	reader.shutdownPipeReader = pr
	reader.shutdownPipeWriter = pw

	return &reader, nil
}

func (reader *interruptableReader) Read(p []byte) (n int, err error) {
	for {
		if reader.interrupted.Load() {
			return 0, io.EOF
		}

		n, err = reader.read(p)

		if err == syscall.EINTR {
			// Happens on window resizes for example, just try again
			continue
		}

		return
	}
}

func (reader *interruptableReader) read(p []byte) (n int, err error) {
	// select(2) wants the highest fd in any of the sets, plus one
	nfds := reader.base.Fd()
	if reader.shutdownPipeReader.Fd() > nfds {
		nfds = reader.shutdownPipeReader.Fd()
	}

	readFds := unix.FdSet{}
	readFds.Set(int(reader.shutdownPipeReader.Fd()))
	readFds.Set(int(reader.base.Fd()))

	_, err = unix.Select(int(nfds)+1, &readFds, nil, nil, nil)
	if err != nil {
		return
	}

	if readFds.IsSet(int(reader.shutdownPipeReader.Fd())) {
		// Shutdown requested
		if closeErr := reader.shutdownPipeReader.Close(); closeErr != nil {
			log.Debug("Failed to close shutdown pipe reader: ", closeErr)
		}

		err = io.EOF
		return
	}

	if readFds.IsSet(int(reader.base.Fd())) {
		return reader.base.Read(p)
	}

	// Neither fd was ready, this should never happen
	return
}

// Interrupt makes any pending and all future Read calls return io.EOF.
// Safe to call more than once.
func (reader *interruptableReader) Interrupt() {
	if !reader.interrupted.CompareAndSwap(false, true) {
		return
	}

	if err := reader.shutdownPipeWriter.Close(); err != nil {
		log.Warn("Failed to close shutdown pipe writer: ", err)
	}
}

func (session *Session) setupResizeNotification() {
	session.resized = make(chan struct{}, 1)

	session.signals = make(chan os.Signal, 1)
	signal.Notify(session.signals, syscall.SIGWINCH)

	signals := session.signals
	resized := session.resized
	go func() {
		defer func() {
			panicHandler("setupResizeNotification()/SIGWINCH", recover(), debug.Stack())
		}()

		for range signals {
			select {
			case resized <- struct{}{}:
				// Resize notification delivered
			default:
				// Notification already pending, never mind
			}
		}
	}()
}
