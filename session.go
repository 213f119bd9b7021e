//go:build !windows
// +build !windows

package tin

import (
	"io"
	"os"
	"os/signal"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// Session owns one terminal's input side state: the tty handles, raw
// mode, mouse reporting and bracketed paste. There are no package
// globals; make a Session, hand Input() to a Reader, Close() the session
// in your shutdown path.
//
// Every mode toggle is idempotent, and so is Close(). Call Close() from
// your panic recovery too; leaving the user's terminal in raw mode is the
// one sin a TUI must not commit.
type Session struct {
	ttyIn  *os.File
	ttyOut *os.File
	input  *interruptableReader

	oldTerminalState *term.State

	mouseReporting bool
	bracketedPaste bool

	signals chan os.Signal
	resized chan struct{}
}

// NewSession attaches to the process' controlling terminal on stdin /
// stdout. Close() the session when done.
func NewSession() (*Session, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, errors.Errorf("stdin (fd=%d) must be a terminal", os.Stdin.Fd())
	}

	return NewSessionFromFiles(os.Stdin, os.Stdout)
}

// NewSessionFromFiles is NewSession() with explicit tty handles and
// without the is-this-a-terminal check. Meant for tests and for embedders
// that already own the terminal files.
func NewSessionFromFiles(ttyIn *os.File, ttyOut *os.File) (*Session, error) {
	session := &Session{
		ttyIn:  ttyIn,
		ttyOut: ttyOut,
	}

	input, err := newInterruptableReader(ttyIn)
	if err != nil {
		return nil, errors.Wrap(err, "setting up tty reader")
	}
	session.input = input

	session.setupResizeNotification()

	return session, nil
}

// Input returns the raw byte source to feed a Reader. It implements
// Interrupter, so Reader.Stop can abort a read in flight.
func (session *Session) Input() io.Reader {
	return session.input
}

// EnableRawMode switches the terminal to raw mode: no echo, no line
// buffering, no signal keys. A no-op if raw mode is already on.
func (session *Session) EnableRawMode() error {
	if session.oldTerminalState != nil {
		return nil
	}

	state, err := term.MakeRaw(int(session.ttyIn.Fd()))
	if err != nil {
		return errors.Wrap(err, "enabling raw mode")
	}
	session.oldTerminalState = state

	return nil
}

// DisableRawMode restores the terminal settings from before
// EnableRawMode. A no-op if raw mode isn't on.
func (session *Session) DisableRawMode() error {
	if session.oldTerminalState == nil {
		return nil
	}

	state := session.oldTerminalState
	session.oldTerminalState = nil
	if err := term.Restore(int(session.ttyIn.Fd()), state); err != nil {
		return errors.Wrap(err, "restoring terminal state")
	}

	return nil
}

// EnableMouseReporting asks the terminal for SGR mouse reports, which is
// what the decoder understands. Idempotent.
func (session *Session) EnableMouseReporting() {
	session.setMouseReporting(true)
}

func (session *Session) DisableMouseReporting() {
	session.setMouseReporting(false)
}

func (session *Session) setMouseReporting(enable bool) {
	if session.mouseReporting == enable {
		return
	}
	session.mouseReporting = enable

	if enable {
		session.write("\x1b[?1006;1000h")
	} else {
		session.write("\x1b[?1006;1000l")
	}
}

// EnableBracketedPaste makes the terminal wrap pasted text in markers, so
// a paste arrives as one EventPaste instead of a keystroke storm.
// Idempotent.
func (session *Session) EnableBracketedPaste() {
	session.setBracketedPaste(true)
}

func (session *Session) DisableBracketedPaste() {
	session.setBracketedPaste(false)
}

func (session *Session) setBracketedPaste(enable bool) {
	if session.bracketedPaste == enable {
		return
	}
	session.bracketedPaste = enable

	if enable {
		session.write("\x1b[?2004h")
	} else {
		session.write("\x1b[?2004l")
	}
}

// Returns terminal width and height in cells.
//
// NOTE: Never cache this response! Await Resized() and this method will
// start returning the new size.
func (session *Session) Size() (width int, height int, err error) {
	width, height, err = term.GetSize(int(session.ttyOut.Fd()))
	if err != nil {
		return 0, 0, errors.Wrap(err, "querying terminal size")
	}
	return width, height, nil
}

// Resized delivers one notification per window resize, coalesced if you
// are slow to pick them up. Query Size() when it fires.
func (session *Session) Resized() <-chan struct{} {
	return session.resized
}

// Close turns off mouse reporting and bracketed paste, leaves raw mode,
// stops resize notifications and interrupts any pending Input() read.
// Safe to call more than once, and safe to call after a crash.
func (session *Session) Close() {
	session.setBracketedPaste(false)
	session.setMouseReporting(false)

	if err := session.DisableRawMode(); err != nil {
		log.Warn("Problem restoring TTY state: ", err)
	}

	if session.signals != nil {
		signal.Stop(session.signals)
		// No more signal deliveries after Stop, so this is safe, and it
		// lets the notification goroutine exit
		close(session.signals)
		session.signals = nil
	}

	session.input.Interrupt()
}

func (session *Session) write(controlString string) {
	if _, err := session.ttyOut.Write([]byte(controlString)); err != nil {
		log.Warn("Failed writing control string to terminal: ", err)
	}
}
