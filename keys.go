package tin

import "fmt"

type KeyCode uint16

const (
	KeyEscape KeyCode = iota
	KeyEnter
	KeyTab
	KeyBackspace
	KeyDelete
	KeyInsert

	KeyUp
	KeyDown
	KeyRight
	KeyLeft

	KeyHome
	KeyEnd
	KeyPgUp
	KeyPgDown

	KeyF1
	KeyF2
	KeyF3
	KeyF4
	KeyF5
	KeyF6
	KeyF7
	KeyF8
	KeyF9
	KeyF10
	KeyF11
	KeyF12
)

var keyCodeNames = map[KeyCode]string{
	KeyEscape:    "Escape",
	KeyEnter:     "Enter",
	KeyTab:       "Tab",
	KeyBackspace: "Backspace",
	KeyDelete:    "Delete",
	KeyInsert:    "Insert",

	KeyUp:    "Up",
	KeyDown:  "Down",
	KeyRight: "Right",
	KeyLeft:  "Left",

	KeyHome:   "Home",
	KeyEnd:    "End",
	KeyPgUp:   "PgUp",
	KeyPgDown: "PgDown",

	KeyF1:  "F1",
	KeyF2:  "F2",
	KeyF3:  "F3",
	KeyF4:  "F4",
	KeyF5:  "F5",
	KeyF6:  "F6",
	KeyF7:  "F7",
	KeyF8:  "F8",
	KeyF9:  "F9",
	KeyF10: "F10",
	KeyF11: "F11",
	KeyF12: "F12",
}

func (keyCode KeyCode) String() string {
	name, ok := keyCodeNames[keyCode]
	if !ok {
		return fmt.Sprintf("KeyCode(%d)", uint16(keyCode))
	}
	return name
}

// Map the digit parameter of "ESC [ <digits> ~" sequences to key codes.
//
// The function key numbers have gaps, that's how xterm emits them:
// 11-15 are F1-F5, 17-21 are F6-F10, 23-24 are F11-F12.
var tildeKeyCodes = map[int]KeyCode{
	1: KeyHome,
	2: KeyInsert,
	3: KeyDelete,
	4: KeyEnd,
	5: KeyPgUp,
	6: KeyPgDown,

	11: KeyF1,
	12: KeyF2,
	13: KeyF3,
	14: KeyF4,
	15: KeyF5,
	17: KeyF6,
	18: KeyF7,
	19: KeyF8,
	20: KeyF9,
	21: KeyF10,
	23: KeyF11,
	24: KeyF12,
}
