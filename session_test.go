//go:build !windows
// +build !windows

package tin

import (
	"io"
	"os"
	"testing"
	"time"

	"gotest.tools/v3/assert"
)

func TestInterruptableReaderBlockedOnRead(t *testing.T) {
	pipeReader, pipeWriter, err := os.Pipe()
	assert.NilError(t, err)
	defer pipeWriter.Close()

	testMe, err := newInterruptableReader(pipeReader)
	assert.NilError(t, err)
	assert.Assert(t, testMe != nil)

	type readResult struct {
		n   int
		err error
	}
	readResultChan := make(chan readResult)
	go func() {
		buffer := make([]byte, 1)
		n, err := testMe.Read(buffer)
		readResultChan <- readResult{n, err}
	}()

	// Give the reader goroutine some time to start waiting
	time.Sleep(100 * time.Millisecond)

	testMe.Interrupt()

	result := <-readResultChan
	assert.Equal(t, result.n, 0)
	assert.Equal(t, result.err, io.EOF)

	// Another read should return EOF immediately
	buffer := make([]byte, 1)
	n, err := testMe.Read(buffer)
	assert.Equal(t, err, io.EOF)
	assert.Equal(t, n, 0)

	// Even with bytes available, the interrupted reader stays EOF
	_, err = pipeWriter.Write([]byte{42})
	assert.NilError(t, err)
	n, err = testMe.Read(buffer)
	assert.Equal(t, err, io.EOF)
	assert.Equal(t, n, 0)
}

func TestInterruptableReaderPassesBytesThrough(t *testing.T) {
	pipeReader, pipeWriter, err := os.Pipe()
	assert.NilError(t, err)
	defer pipeWriter.Close()

	testMe, err := newInterruptableReader(pipeReader)
	assert.NilError(t, err)

	_, err = pipeWriter.Write([]byte("hello"))
	assert.NilError(t, err)

	buffer := make([]byte, 10)
	n, err := testMe.Read(buffer)
	assert.NilError(t, err)
	assert.Equal(t, string(buffer[:n]), "hello")
}

func TestInterruptableReaderInterruptTwice(t *testing.T) {
	pipeReader, _, err := os.Pipe()
	assert.NilError(t, err)

	testMe, err := newInterruptableReader(pipeReader)
	assert.NilError(t, err)

	testMe.Interrupt()
	testMe.Interrupt()

	buffer := make([]byte, 1)
	n, err := testMe.Read(buffer)
	assert.Equal(t, err, io.EOF)
	assert.Equal(t, n, 0)
}

// Make a session backed by pipes instead of a terminal, plus the read end
// of its output so tests can check which control strings it wrote.
func newPipeSession(t *testing.T) (*Session, *os.File) {
	t.Helper()

	inReader, inWriter, err := os.Pipe()
	assert.NilError(t, err)
	t.Cleanup(func() { inWriter.Close() })

	outReader, outWriter, err := os.Pipe()
	assert.NilError(t, err)

	session, err := NewSessionFromFiles(inReader, outWriter)
	assert.NilError(t, err)
	t.Cleanup(session.Close)

	return session, outReader
}

// Read exactly len(expected) bytes of control output and compare. If the
// session wrote too much or too little this times out or mismatches.
func assertControlOutput(t *testing.T, outReader *os.File, expected string) {
	t.Helper()

	resultChan := make(chan string, 1)
	go func() {
		buffer := make([]byte, len(expected))
		if _, err := io.ReadFull(outReader, buffer); err != nil {
			resultChan <- "read failed: " + err.Error()
			return
		}
		resultChan <- string(buffer)
	}()

	select {
	case result := <-resultChan:
		assert.Equal(t, printable(result), printable(expected))
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for control output")
	}
}

func TestSessionMouseReportingIdempotent(t *testing.T) {
	session, outReader := newPipeSession(t)

	// Double enable and double disable must write one toggle each
	session.EnableMouseReporting()
	session.EnableMouseReporting()
	session.DisableMouseReporting()
	session.DisableMouseReporting()

	assertControlOutput(t, outReader, "\x1b[?1006;1000h\x1b[?1006;1000l")
}

func TestSessionBracketedPasteIdempotent(t *testing.T) {
	session, outReader := newPipeSession(t)

	session.EnableBracketedPaste()
	session.EnableBracketedPaste()
	session.DisableBracketedPaste()
	session.DisableBracketedPaste()

	assertControlOutput(t, outReader, "\x1b[?2004h\x1b[?2004l")
}

func TestSessionDisableRawModeWithoutEnable(t *testing.T) {
	session, _ := newPipeSession(t)

	// Never enabled, so nothing to restore and no error
	assert.NilError(t, session.DisableRawMode())
	assert.NilError(t, session.DisableRawMode())
}

func TestSessionCloseTwice(t *testing.T) {
	session, outReader := newPipeSession(t)

	session.EnableMouseReporting()
	session.Close()
	session.Close()

	assertControlOutput(t, outReader, "\x1b[?1006;1000h\x1b[?1006;1000l")
}

// End to end over a pipe: bytes in, events out, Stop unblocks the pending
// tty read through the Interrupter plumbing.
func TestSessionFeedsReader(t *testing.T) {
	inReader, inWriter, err := os.Pipe()
	assert.NilError(t, err)
	defer inWriter.Close()

	outReader, outWriter, err := os.Pipe()
	assert.NilError(t, err)
	defer outReader.Close()

	session, err := NewSessionFromFiles(inReader, outWriter)
	assert.NilError(t, err)
	defer session.Close()

	sink := newRecordingSink()
	reader := NewReader(session.Input(), sink, ReaderOptions{Name: "session-test"})

	_, err = inWriter.Write([]byte("a\x1b[B"))
	assert.NilError(t, err)

	sink.awaitEventCount(t, 2)
	assert.DeepEqual(t, sink.recorded(), []Event{
		EventRune{rune: 'a'},
		EventKeyCode{keyCode: KeyDown},
	}, eventCmpOptions...)

	// Stop must return even though the tty read is blocked
	reader.Stop()
	assert.NilError(t, sink.awaitClose(t))
}
