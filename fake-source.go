package tin

import (
	"io"
	"sync"
	"time"
)

// Used for testing.
//
// ScriptedSource replays a fixed set of byte chunks, one chunk per Read
// call, optionally sleeping between chunks to mimic bytes trickling in
// from a real terminal. After the last chunk Read returns io.EOF, unless
// KeepOpen() was called, in which case it blocks until Interrupt().
type ScriptedSource struct {
	gap    time.Duration
	chunks [][]byte
	hold   bool

	mutex         sync.Mutex
	next          int
	interrupted   chan struct{}
	interruptOnce sync.Once
}

func NewScriptedSource(gap time.Duration, chunks ...[]byte) *ScriptedSource {
	return &ScriptedSource{
		gap:         gap,
		chunks:      chunks,
		interrupted: make(chan struct{}),
	}
}

// KeepOpen makes Read block rather than return io.EOF once all chunks are
// gone. Call before handing the source to a Reader.
func (source *ScriptedSource) KeepOpen() {
	source.hold = true
}

func (source *ScriptedSource) Read(p []byte) (int, error) {
	source.mutex.Lock()
	defer source.mutex.Unlock()

	select {
	case <-source.interrupted:
		return 0, io.EOF
	default:
	}

	if source.next >= len(source.chunks) {
		if !source.hold {
			return 0, io.EOF
		}
		<-source.interrupted
		return 0, io.EOF
	}

	if source.next > 0 && source.gap > 0 {
		select {
		case <-time.After(source.gap):
		case <-source.interrupted:
			return 0, io.EOF
		}
	}

	chunk := source.chunks[source.next]
	n := copy(p, chunk)
	if n < len(chunk) {
		// Deliver the rest on the next Read call
		source.chunks[source.next] = chunk[n:]
	} else {
		source.next++
	}

	return n, nil
}

// Interrupt makes any pending and all future Read calls return io.EOF.
// Safe to call more than once.
func (source *ScriptedSource) Interrupt() {
	source.interruptOnce.Do(func() {
		close(source.interrupted)
	})
}
