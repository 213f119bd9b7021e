package tin

import (
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"gotest.tools/v3/assert"
)

type recordingSink struct {
	mutex  sync.Mutex
	events []Event

	closed chan error
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		closed: make(chan error, 1),
	}
}

func (sink *recordingSink) OnEvent(event Event) {
	sink.mutex.Lock()
	defer sink.mutex.Unlock()
	sink.events = append(sink.events, event)
}

func (sink *recordingSink) OnClose(err error) {
	sink.closed <- err
}

func (sink *recordingSink) recorded() []Event {
	sink.mutex.Lock()
	defer sink.mutex.Unlock()

	recorded := make([]Event, len(sink.events))
	copy(recorded, sink.events)
	return recorded
}

func (sink *recordingSink) awaitClose(t *testing.T) error {
	t.Helper()

	select {
	case err := <-sink.closed:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Reader never closed")
		return nil
	}
}

func (sink *recordingSink) awaitEventCount(t *testing.T, count int) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(sink.recorded()) >= count {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %d event(s), got %d: %#v",
		count, len(sink.recorded()), sink.recorded())
}

func TestReaderDeliversInOrder(t *testing.T) {
	source := NewScriptedSource(0, []byte("\x1b[<0;10;20Ma"))
	sink := newRecordingSink()

	reader := NewReader(source, sink, ReaderOptions{Name: "test"})
	defer reader.Stop()

	assert.NilError(t, sink.awaitClose(t))
	assert.DeepEqual(t, sink.recorded(), []Event{
		EventMouse{action: MousePress, button: MouseButtonLeft, x: 9, y: 19},
		EventRune{rune: 'a'},
	}, eventCmpOptions...)
}

// An arrow key arriving one byte per OS read must come out as one arrow
// key event, not as Escape plus garbage.
func TestReaderReassemblesChunkedSequence(t *testing.T) {
	source := NewScriptedSource(time.Millisecond,
		[]byte("\x1b"), []byte("["), []byte("A"))
	sink := newRecordingSink()

	reader := NewReader(source, sink, ReaderOptions{EscTimeout: time.Second})
	defer reader.Stop()

	assert.NilError(t, sink.awaitClose(t))
	assert.DeepEqual(t, sink.recorded(),
		[]Event{EventKeyCode{keyCode: KeyUp}}, eventCmpOptions...)
}

// A lone ESC with nothing after it resolves to the Escape key once the
// disambiguation timer fires.
func TestReaderEscTimeout(t *testing.T) {
	source := NewScriptedSource(0, []byte("\x1b"))
	source.KeepOpen()
	sink := newRecordingSink()

	reader := NewReader(source, sink, ReaderOptions{EscTimeout: 10 * time.Millisecond})
	defer reader.Stop()

	sink.awaitEventCount(t, 1)
	assert.DeepEqual(t, sink.recorded(),
		[]Event{EventKeyCode{keyCode: KeyEscape}}, eventCmpOptions...)

	// The buffer was flushed, nothing more shows up
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, len(sink.recorded()), 1)
}

// Bytes arriving before the timeout cancel the timer: no Escape event,
// just the completed sequence.
func TestReaderBytesCancelTimer(t *testing.T) {
	source := NewScriptedSource(5*time.Millisecond,
		[]byte("\x1b"), []byte("[1;2A"))
	sink := newRecordingSink()

	reader := NewReader(source, sink, ReaderOptions{EscTimeout: time.Second})
	defer reader.Stop()

	assert.NilError(t, sink.awaitClose(t))
	assert.DeepEqual(t, sink.recorded(),
		[]Event{EventKeyCode{keyCode: KeyUp, mods: ModShift}}, eventCmpOptions...)
}

func TestReaderStopIsIdempotent(t *testing.T) {
	source := NewScriptedSource(0)
	source.KeepOpen()
	sink := newRecordingSink()

	reader := NewReader(source, sink, ReaderOptions{})
	reader.Stop()
	reader.Stop()

	assert.NilError(t, sink.awaitClose(t))
	assert.Equal(t, len(sink.recorded()), 0)
}

func TestReaderSourceEofFlushesPending(t *testing.T) {
	// The source dies with a bare ESC still pending; it must come out as
	// an Escape keypress, not vanish
	source := NewScriptedSource(0, []byte("a\x1b"))
	sink := newRecordingSink()

	reader := NewReader(source, sink, ReaderOptions{EscTimeout: time.Minute})
	defer reader.Stop()

	assert.NilError(t, sink.awaitClose(t))
	assert.DeepEqual(t, sink.recorded(), []Event{
		EventRune{rune: 'a'},
		EventKeyCode{keyCode: KeyEscape},
	}, eventCmpOptions...)
}

type failingSource struct {
	err error
}

func (source failingSource) Read([]byte) (int, error) {
	return 0, source.err
}

func TestReaderSourceFailure(t *testing.T) {
	boom := errors.New("tty went away")
	sink := newRecordingSink()

	reader := NewReader(failingSource{err: boom}, sink, ReaderOptions{})
	defer reader.Stop()

	assert.Equal(t, sink.awaitClose(t), boom)
}

type panickySink struct {
	recordingSink
	panicked bool
}

func (sink *panickySink) OnEvent(event Event) {
	if !sink.panicked {
		sink.panicked = true
		panic("subscriber tantrum")
	}
	sink.recordingSink.OnEvent(event)
}

// A panicking subscriber must not bring the reader down or block later
// events.
func TestReaderSurvivesSubscriberPanic(t *testing.T) {
	source := NewScriptedSource(0, []byte("ab"))
	sink := &panickySink{recordingSink: recordingSink{closed: make(chan error, 1)}}

	reader := NewReader(source, sink, ReaderOptions{})
	defer reader.Stop()

	assert.NilError(t, sink.awaitClose(t))
	assert.DeepEqual(t, sink.recorded(),
		[]Event{EventRune{rune: 'b'}}, eventCmpOptions...)
}
