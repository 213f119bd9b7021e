// Package tin turns the raw byte stream coming out of a terminal into
// typed input events: key presses with modifiers, mouse actions, pasted
// text. It is the input half of a terminal UI stack; rendering is
// somebody else's job.
package tin

import "strings"

type Event interface {
	// This interface will be blank until further notice
}

// EventRune is a keypress that produced a character: exactly one Unicode
// code point, plus any modifiers.
type EventRune struct {
	rune rune
	mods ModMask
}

// EventKeyCode is a keypress of a named key (arrows, F-keys, Enter, ...),
// plus any modifiers. A key event is either an EventRune or an
// EventKeyCode, never both.
type EventKeyCode struct {
	keyCode KeyCode
	mods    ModMask
}

type MouseAction uint8

const (
	MousePress MouseAction = iota
	MouseRelease
	MouseDrag
	MouseScrollUp
	MouseScrollDown
)

type MouseButton uint8

const (
	// MouseButtonNone is used for actions where the terminal doesn't
	// report a button, scroll events for example.
	MouseButtonNone MouseButton = iota
	MouseButtonLeft
	MouseButtonMiddle
	MouseButtonRight
)

// EventMouse is a decoded SGR mouse report. Coordinates are zero based
// screen cells; the top left cell is (0, 0).
type EventMouse struct {
	action MouseAction
	button MouseButton
	x      int
	y      int
	mods   ModMask
}

// EventPaste is one bracketed paste: everything the terminal sent between
// the paste start and paste end markers, verbatim.
type EventPaste struct {
	text string
}

// After you get this, query Session.Size() to get the new size
type EventResize struct {
	// This interface intentionally left blank
}

// ModMask is a set of modifier keys.
type ModMask uint8

const (
	ModShift ModMask = 1 << iota
	ModAlt
	ModCtrl
)

func (event EventRune) Rune() rune {
	return event.rune
}

func (event EventRune) Mods() ModMask {
	return event.mods
}

func (event EventKeyCode) KeyCode() KeyCode {
	return event.keyCode
}

func (event EventKeyCode) Mods() ModMask {
	return event.mods
}

func (event EventMouse) Action() MouseAction {
	return event.action
}

func (event EventMouse) Button() MouseButton {
	return event.button
}

// X is the zero based column of the event, leftmost column is 0.
func (event EventMouse) X() int {
	return event.x
}

// Y is the zero based row of the event, topmost row is 0.
func (event EventMouse) Y() int {
	return event.y
}

func (event EventMouse) Mods() ModMask {
	return event.mods
}

func (event EventPaste) Text() string {
	return event.text
}

func (mods ModMask) Has(mod ModMask) bool {
	return mods&mod != 0
}

func (mods ModMask) String() string {
	if mods == 0 {
		return "none"
	}

	var names []string
	if mods.Has(ModShift) {
		names = append(names, "shift")
	}
	if mods.Has(ModAlt) {
		names = append(names, "alt")
	}
	if mods.Has(ModCtrl) {
		names = append(names, "ctrl")
	}
	return strings.Join(names, "+")
}

func (action MouseAction) String() string {
	switch action {
	case MousePress:
		return "press"
	case MouseRelease:
		return "release"
	case MouseDrag:
		return "drag"
	case MouseScrollUp:
		return "scroll-up"
	case MouseScrollDown:
		return "scroll-down"
	}
	return "unknown"
}

func (button MouseButton) String() string {
	switch button {
	case MouseButtonNone:
		return "no-button"
	case MouseButtonLeft:
		return "left"
	case MouseButtonMiddle:
		return "middle"
	case MouseButtonRight:
		return "right"
	}
	return "unknown"
}
