package tin

import (
	"io"
	"runtime/debug"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultEscTimeout is how long a Reader waits for the rest of an escape
// sequence before deciding that a lone ESC byte was the Escape key. Long
// enough for a terminal's own multi byte sequences to straggle in over
// separate OS reads, short enough that a human won't notice.
const DefaultEscTimeout = 50 * time.Millisecond

// Sink receives decoded events from a Reader, one at a time, in the order
// their bytes arrived on the wire.
//
// OnClose is called exactly once, when the reader is done: with nil after
// Stop() or a clean end of input, with the read error otherwise.
//
// Both methods run on the reader's own goroutine. Calling Reader.Stop
// from inside them will deadlock.
type Sink interface {
	OnEvent(event Event)
	OnClose(err error)
}

// Interrupter is implemented by byte sources whose blocked Read calls can
// be aborted, like the one handed out by Session.Input(). Reader.Stop
// uses it to unblock its read goroutine.
type Interrupter interface {
	Interrupt()
}

type ReaderOptions struct {
	// Name shows up in log messages. Helpful if you run more than one
	// reader.
	Name string

	// EscTimeout overrides DefaultEscTimeout when positive.
	EscTimeout time.Duration
}

// Reader pulls bytes from a source, decodes them and pushes the events to
// a Sink. It owns the buffer of not-yet-decodable bytes and the timer
// that resolves the ESC ambiguity.
//
// Create with NewReader(), dispose with Stop().
type Reader struct {
	name       string
	source     io.Reader
	sink       Sink
	escTimeout time.Duration

	chunks   chan []byte
	readErr  chan error
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewReader starts reading from source immediately. Stop() the returned
// reader when you are done with it.
func NewReader(source io.Reader, sink Sink, options ReaderOptions) *Reader {
	reader := &Reader{
		name:       options.Name,
		source:     source,
		sink:       sink,
		escTimeout: options.EscTimeout,

		chunks:   make(chan []byte),
		readErr:  make(chan error, 1),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
	if reader.name == "" {
		reader.name = "tin"
	}
	if reader.escTimeout <= 0 {
		reader.escTimeout = DefaultEscTimeout
	}

	go reader.readLoop()
	go reader.mainLoop()

	return reader
}

// Stop shuts the reader down: the disambiguation timer is cancelled, the
// pending source read is interrupted if the source supports that, and the
// sink gets its OnClose call.
//
// Safe to call any number of times. When Stop returns, no more events
// will be delivered.
func (reader *Reader) Stop() {
	reader.stopOnce.Do(func() {
		close(reader.stopChan)
		if interrupter, ok := reader.source.(Interrupter); ok {
			interrupter.Interrupt()
		}
	})

	<-reader.done
}

// Pull bytes from the source and hand them to mainLoop() in chunks.
func (reader *Reader) readLoop() {
	defer func() {
		panicHandler(reader.name+"/readLoop()", recover(), debug.Stack())
	}()

	// 1400 bytes holds the biggest bursts seen in practice, which are
	// fling scroll mouse report storms from a trackpad.
	buffer := make([]byte, 1400)

	maxBytesRead := 0
	for {
		count, err := reader.source.Read(buffer)

		if count > 0 {
			if count > maxBytesRead {
				maxBytesRead = count
				log.Trace(reader.name, ": read size high watermark bumped to ", maxBytesRead, " bytes")
			}

			chunk := make([]byte, count)
			copy(chunk, buffer[:count])
			select {
			case reader.chunks <- chunk:
			case <-reader.stopChan:
				return
			}
		}

		if err != nil {
			select {
			case reader.readErr <- err:
			case <-reader.stopChan:
			}
			return
		}
	}
}

// Owns the pending buffer and the ESC disambiguation timer. Nothing else
// touches either, so no locking here.
func (reader *Reader) mainLoop() {
	defer close(reader.done)
	defer func() {
		panicHandler(reader.name+"/mainLoop()", recover(), debug.Stack())
	}()

	var pending []byte
	var timer *time.Timer
	var timeout <-chan time.Time

	cancelTimer := func() {
		if timer == nil {
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer = nil
		timeout = nil
	}

	for {
		select {
		case chunk := <-reader.chunks:
			// Fresh bytes always win over the timer
			cancelTimer()
			pending = append(pending, chunk...)

		case <-timeout:
			// The timer won the race, but bytes may have arrived on the
			// channel in the meantime. Check before flushing.
			select {
			case chunk := <-reader.chunks:
				cancelTimer()
				pending = append(pending, chunk...)
			default:
				timer = nil
				timeout = nil
				reader.deliverAll(DecodeFinal(pending))
				pending = nil
				continue
			}

		case err := <-reader.readErr:
			cancelTimer()
			reader.deliverAll(DecodeFinal(pending))
			if err == io.EOF {
				err = nil
			} else {
				log.Debug(reader.name, ": input source failed: ", err)
			}
			reader.notifyClose(err)
			return

		case <-reader.stopChan:
			cancelTimer()
			reader.notifyClose(nil)
			return
		}

		events, remainder := Decode(pending)
		reader.deliverAll(events)
		pending = remainder

		if len(pending) == 0 {
			continue
		}

		if IsPartialSequence(pending) {
			timer = time.NewTimer(reader.escTimeout)
			timeout = timer.C
			continue
		}

		// Decode always leaves a waitable remainder, but if that ever
		// stops being true, flushing beats stalling the pipeline.
		reader.deliverAll(DecodeFinal(pending))
		pending = nil
	}
}

func (reader *Reader) deliverAll(events []Event) {
	for _, event := range events {
		reader.deliver(event)
	}
}

// A panicking sink must not take the input pipeline down with it.
func (reader *Reader) deliver(event Event) {
	defer func() {
		panicHandler(reader.name+"/OnEvent", recover(), debug.Stack())
	}()

	reader.sink.OnEvent(event)
}

func (reader *Reader) notifyClose(err error) {
	defer func() {
		panicHandler(reader.name+"/OnClose", recover(), debug.Stack())
	}()

	reader.sink.OnClose(err)
}
