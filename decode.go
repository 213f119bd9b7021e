package tin

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
)

// Bracketed paste markers, sent by the terminal when paste reporting is
// enabled (Session.EnableBracketedPaste).
var (
	pasteStart = []byte("\x1b[200~")
	pasteEnd   = []byte("\x1b[201~")
)

// Decode consumes as many complete input tokens as possible from the
// front of input and returns the decoded events plus the unconsumed tail.
//
// Call it again with that tail prefixed onto newly arrived bytes, and the
// outcome is the same as if the whole stream had arrived in one go. The
// one exception is a trailing ESC byte: whether that is an Escape
// keypress or the start of a longer sequence is for the Reader's timer to
// decide, so Decode leaves it in the remainder and never guesses.
//
// Bytes that cannot be part of any sequence we know are dropped, with a
// debug log. No byte is ever decoded twice and none go missing: consumed
// bytes plus remainder always add up to the input.
func Decode(input []byte) (events []Event, remainder []byte) {
	position := 0
	for position < len(input) {
		event, consumed := consumeEvent(input[position:])
		if consumed == 0 {
			// Not decidable without more bytes
			break
		}

		if event != nil {
			events = append(events, event)
		}
		position += consumed
	}

	return events, input[position:]
}

// DecodeFinal decodes input as if no more bytes will ever arrive. What
// Decode would have left in the remainder resolves best effort: a leading
// ESC becomes an Escape keypress and decoding continues after it.
//
// The Reader calls this when its disambiguation timer fires, and when the
// byte source goes away with bytes still pending.
func DecodeFinal(input []byte) []Event {
	var events []Event

	for len(input) > 0 {
		decoded, remainder := Decode(input)
		events = append(events, decoded...)
		if len(remainder) == 0 {
			break
		}

		if remainder[0] == escByte {
			events = append(events, EventKeyCode{keyCode: KeyEscape})
		} else {
			log.Debug("Dropping undecodable trailing byte: ", fmt.Sprintf("0x%02x", remainder[0]))
		}
		input = remainder[1:]
	}

	return events
}

const escByte = '\x1b'

// Consume one token from the front of data.
//
// Returns the event (nil for tokens that decode to nothing, dropped
// malformed bytes for example) and the number of bytes consumed. Zero
// consumed means the front of data is an incomplete sequence and we need
// more bytes to decide.
func consumeEvent(data []byte) (Event, int) {
	if len(data) == 0 {
		return nil, 0
	}

	b := data[0]

	if b == escByte {
		return consumeEscape(data)
	}

	if b == 0x7f {
		return EventKeyCode{keyCode: KeyBackspace}, 1
	}

	if b < 0x20 {
		event := decodeControlByte(b)
		if event == nil {
			log.Debug("Dropping unmapped control byte: ", fmt.Sprintf("0x%02x", b))
		}
		return event, 1
	}

	if b < utf8.RuneSelf {
		return EventRune{rune: rune(b)}, 1
	}

	return consumeUtf8(data, 0)
}

// Control bytes 0x01-0x1a are Ctrl plus the corresponding letter, except
// the ones with dedicated keys on the keyboard.
func decodeControlByte(b byte) Event {
	switch b {
	case 0x08:
		return EventKeyCode{keyCode: KeyBackspace}
	case 0x09:
		return EventKeyCode{keyCode: KeyTab}
	case 0x0d:
		return EventKeyCode{keyCode: KeyEnter}
	}

	if b >= 0x01 && b <= 0x1a {
		return EventRune{rune: rune('a' + b - 1), mods: ModCtrl}
	}

	return nil
}

// data starts with ESC.
func consumeEscape(data []byte) (Event, int) {
	if len(data) == 1 {
		// Bare ESC at the end of the buffer. Escape keypress, or the
		// first byte of a sequence still in flight? The Reader's timer
		// gets to decide, not us.
		return nil, 0
	}

	switch data[1] {
	case '[':
		return consumeCsi(data)
	case 'O':
		return consumeSs3(data)
	case escByte:
		// ESC ESC, the first one is an Escape keypress on its own
		return EventKeyCode{keyCode: KeyEscape}, 1
	}

	if data[1] == 0x7f || data[1] < 0x20 {
		// Alt + control byte, no mapping for that. Resolve the ESC by
		// itself and let the control byte be its own token.
		return EventKeyCode{keyCode: KeyEscape}, 1
	}

	// Alt + character
	if data[1] < utf8.RuneSelf {
		return EventRune{rune: rune(data[1]), mods: ModAlt}, 2
	}
	event, consumed := consumeUtf8(data[1:], ModAlt)
	if consumed == 0 {
		return nil, 0
	}
	if event == nil {
		// Invalid UTF-8 after the ESC, resolve the ESC alone
		return EventKeyCode{keyCode: KeyEscape}, 1
	}
	return event, consumed + 1
}

// data starts with ESC [.
func consumeCsi(data []byte) (Event, int) {
	if len(data) == 2 {
		return nil, 0
	}

	if data[2] == '<' {
		return consumeSgrMouse(data)
	}

	var params []int
	current := 0
	haveCurrent := false
	private := false

	for position := 2; position < len(data); position++ {
		b := data[position]
		switch {
		case position == 2 && (b == '?' || b == '=' || b == '>'):
			// Private parameter marker. We don't decode any of these
			// sequences, but terminals do send them as query replies, so
			// swallow the whole thing rather than letting its parameters
			// degrade into rune events.
			private = true

		case b >= '0' && b <= '9':
			current = current*10 + int(b-'0')
			haveCurrent = true

		case b == ';':
			params = append(params, current)
			current = 0
			haveCurrent = false

		case b >= 0x40 && b <= 0x7e:
			// Final byte
			if private {
				log.Debug("Dropping private CSI sequence: ", describeBytes(data[:position+1]))
				return nil, position + 1
			}
			if haveCurrent {
				params = append(params, current)
			}
			if b == '~' && len(params) > 0 && params[0] == 200 {
				return consumePaste(data, position+1)
			}
			return decodeCsi(params, b), position + 1

		default:
			log.Debug("Dropping malformed CSI sequence: ", describeBytes(data[:position+1]))
			return nil, position + 1
		}
	}

	// No final byte yet
	return nil, 0
}

// Decode a complete CSI sequence from its parameters and final byte.
func decodeCsi(params []int, final byte) Event {
	mods := ModMask(0)
	if len(params) >= 2 {
		mods = decodeXtermMods(params[1])
	}

	switch final {
	case 'A':
		return EventKeyCode{keyCode: KeyUp, mods: mods}
	case 'B':
		return EventKeyCode{keyCode: KeyDown, mods: mods}
	case 'C':
		return EventKeyCode{keyCode: KeyRight, mods: mods}
	case 'D':
		return EventKeyCode{keyCode: KeyLeft, mods: mods}
	case 'H':
		return EventKeyCode{keyCode: KeyHome, mods: mods}
	case 'F':
		return EventKeyCode{keyCode: KeyEnd, mods: mods}
	case 'Z':
		// Backtab
		return EventKeyCode{keyCode: KeyTab, mods: mods | ModShift}
	case '~':
		if len(params) == 0 {
			log.Debug("Dropping CSI ~ sequence without parameters")
			return nil
		}
		keyCode, ok := tildeKeyCodes[params[0]]
		if !ok {
			log.Debug("Unhandled CSI ~ key number: ", params[0])
			return nil
		}
		return EventKeyCode{keyCode: keyCode, mods: mods}
	}

	log.Debug("Unhandled CSI final byte: ", string(rune(final)))
	return nil
}

// xterm encodes modifiers as one plus a bitmask: 2 is shift, 3 is alt,
// 5 is ctrl, 8 is all three.
func decodeXtermMods(param int) ModMask {
	if param < 2 {
		return 0
	}

	flags := param - 1
	var mods ModMask
	if flags&1 != 0 {
		mods |= ModShift
	}
	if flags&2 != 0 {
		mods |= ModAlt
	}
	if flags&4 != 0 {
		mods |= ModCtrl
	}
	return mods
}

// data starts with ESC [ 200 ~, the paste body begins at bodyStart. The
// paste is done when the end marker shows up; until then the whole thing
// stays in the remainder.
func consumePaste(data []byte, bodyStart int) (Event, int) {
	end := bytes.Index(data[bodyStart:], pasteEnd)
	if end < 0 {
		return nil, 0
	}

	body := data[bodyStart : bodyStart+end]
	return EventPaste{text: string(body)}, bodyStart + end + len(pasteEnd)
}

// data starts with ESC [ <, an SGR mouse report.
//
// Example: "\x1b[<65;127;41M" means wheel down at column 127, row 41.
// The first parameter carries button identity, motion flag and modifiers
// all mashed into one number; the coordinates are one based on the wire.
func consumeSgrMouse(data []byte) (Event, int) {
	var params [3]int
	paramIndex := 0
	tooManyParams := false

	for position := 3; position < len(data); position++ {
		b := data[position]
		switch {
		case b >= '0' && b <= '9':
			if !tooManyParams {
				params[paramIndex] = params[paramIndex]*10 + int(b-'0')
			}

		case b == ';':
			paramIndex++
			if paramIndex > 2 {
				// Keep scanning to the terminator so the whole broken
				// report gets dropped in one piece
				tooManyParams = true
				paramIndex = 2
			}

		case b == 'M' || b == 'm':
			if tooManyParams || paramIndex != 2 {
				log.Debug("Dropping SGR mouse report with bad parameter count: ", describeBytes(data[:position+1]))
				return nil, position + 1
			}
			return decodeSgrMouse(params, b == 'm'), position + 1

		default:
			log.Debug("Dropping malformed SGR mouse report: ", describeBytes(data[:position+1]))
			return nil, position + 1
		}
	}

	return nil, 0
}

func decodeSgrMouse(params [3]int, release bool) Event {
	code := params[0]

	mods := ModMask(0)
	if code&4 != 0 {
		mods |= ModShift
	}
	if code&8 != 0 {
		mods |= ModAlt
	}
	if code&16 != 0 {
		mods |= ModCtrl
	}
	code &^= 4 | 8 | 16

	event := EventMouse{
		// The wire coordinates are one based
		x:    params[1] - 1,
		y:    params[2] - 1,
		mods: mods,
	}
	if event.x < 0 {
		event.x = 0
	}
	if event.y < 0 {
		event.y = 0
	}

	if code&64 != 0 {
		// Wheel event, no button reported
		if code&1 != 0 {
			event.action = MouseScrollDown
		} else {
			event.action = MouseScrollUp
		}
		return event
	}

	switch code & 3 {
	case 0:
		event.button = MouseButtonLeft
	case 1:
		event.button = MouseButtonMiddle
	case 2:
		event.button = MouseButtonRight
	case 3:
		event.button = MouseButtonNone
	}

	switch {
	case code&32 != 0:
		event.action = MouseDrag
	case release:
		event.action = MouseRelease
	default:
		event.action = MousePress
	}

	return event
}

// data starts with ESC O.
func consumeSs3(data []byte) (Event, int) {
	if len(data) == 2 {
		return nil, 0
	}

	var keyCode KeyCode
	switch data[2] {
	case 'P':
		keyCode = KeyF1
	case 'Q':
		keyCode = KeyF2
	case 'R':
		keyCode = KeyF3
	case 'S':
		keyCode = KeyF4

	// Some terminals send arrows and Home / End as SS3 in application
	// cursor mode
	case 'A':
		keyCode = KeyUp
	case 'B':
		keyCode = KeyDown
	case 'C':
		keyCode = KeyRight
	case 'D':
		keyCode = KeyLeft
	case 'H':
		keyCode = KeyHome
	case 'F':
		keyCode = KeyEnd

	default:
		log.Debug("Unhandled SS3 sequence: ", describeBytes(data[:3]))
		return nil, 3
	}

	return EventKeyCode{keyCode: keyCode}, 3
}

// Consume one UTF-8 encoded rune. A truncated multi byte sequence means
// "wait for more", an outright invalid byte gets dropped.
func consumeUtf8(data []byte, mods ModMask) (Event, int) {
	if !utf8.FullRune(data) {
		return nil, 0
	}

	r, size := utf8.DecodeRune(data)
	if r == utf8.RuneError && size == 1 {
		log.Debug("Dropping invalid UTF-8 byte: ", fmt.Sprintf("0x%02x", data[0]))
		return nil, 1
	}

	return EventRune{rune: r, mods: mods}, size
}

// IsPartialSequence reports whether buf is a strict, extensible prefix of
// some token the decoder understands, meaning more bytes could still turn
// it into something complete.
//
// The Reader uses this to tell "arm the timer and wait" apart from "this
// is never going to decode, flush it".
func IsPartialSequence(buf []byte) bool {
	if len(buf) == 0 {
		return false
	}

	if buf[0] == escByte {
		return isPartialEscape(buf)
	}

	// Truncated UTF-8 multi byte sequence?
	return buf[0] >= utf8.RuneSelf && !utf8.FullRune(buf)
}

func isPartialEscape(buf []byte) bool {
	if len(buf) == 1 {
		return true
	}

	switch buf[1] {
	case '[':
		if bytes.HasPrefix(buf, pasteStart) {
			// Paste in progress, anything goes until the end marker
			return !bytes.Contains(buf, pasteEnd)
		}

		for position := 2; position < len(buf); position++ {
			b := buf[position]
			if b >= '0' && b <= '9' || b == ';' {
				continue
			}
			if position == 2 && (b == '<' || b == '?' || b == '=' || b == '>') {
				continue
			}

			// Hit a final byte or garbage, either way the sequence isn't
			// waiting on more input
			return false
		}
		return true

	case 'O':
		return len(buf) == 2
	}

	// ESC + start of a multi byte character?
	return buf[1] >= utf8.RuneSelf && !utf8.FullRune(buf[1:])
}

// For logging. Escape sequences are unreadable when printed raw.
func describeBytes(data []byte) string {
	return fmt.Sprintf("%q", data)
}
