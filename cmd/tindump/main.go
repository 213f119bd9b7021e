// tindump prints every input event your terminal produces. Good for
// checking what some terminal emulator actually sends, and for debugging
// the decoder against real hardware.
//
// Quit with Ctrl+C or q.
package main

import (
	"fmt"
	"os"
	"time"

	flags "github.com/jessevdk/go-flags"
	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"
	log "github.com/sirupsen/logrus"

	"github.com/asklund/tin"
)

type options struct {
	Config     string `short:"c" long:"config" description:"YAML config file"`
	EscTimeout int    `long:"esc-timeout" description:"ESC disambiguation timeout in milliseconds" default:"-1"`
	Mouse      bool   `short:"m" long:"mouse" description:"Enable SGR mouse reporting"`
	Paste      bool   `short:"p" long:"paste" description:"Enable bracketed paste"`
	LogFile    string `long:"log-file" description:"Append debug logs to this file"`
	Trace      bool   `long:"trace" description:"Log at trace level"`
}

func main() {
	var opts options
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.Parse(); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	conf, err := loadConfig(opts.Config)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	conf.apply(&opts)

	setupLogging(conf)

	session, err := tin.NewSession()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer session.Close()

	if err := session.EnableRawMode(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if conf.Mouse {
		session.EnableMouseReporting()
	}
	if conf.Paste {
		session.EnableBracketedPaste()
	}

	sink := newPrintingSink()
	reader := tin.NewReader(session.Input(), sink, tin.ReaderOptions{
		Name:       "tindump",
		EscTimeout: time.Duration(conf.EscTimeoutMillis) * time.Millisecond,
	})
	defer reader.Stop()

	// Raw mode, so \r\n
	fmt.Print("Type away, Ctrl+C or q quits.\r\n")

	for {
		select {
		case event := <-sink.events:
			fmt.Print(describe(event) + "\r\n")
			if isQuit(event) {
				return
			}

		case err := <-sink.closed:
			if err != nil {
				fmt.Print("Input source failed: " + err.Error() + "\r\n")
			}
			return

		case <-session.Resized():
			width, height, err := session.Size()
			if err != nil {
				log.Warn("Terminal size query failed: ", err)
				continue
			}
			fmt.Print(describe(tin.EventResize{}) +
				fmt.Sprintf(" now %dx%d\r\n", width, height))
		}
	}
}

type printingSink struct {
	events chan tin.Event
	closed chan error
}

func newPrintingSink() *printingSink {
	return &printingSink{
		// 80 slots soaks up fling scroll bursts without dropping
		events: make(chan tin.Event, 80),
		closed: make(chan error, 1),
	}
}

func (sink *printingSink) OnEvent(event tin.Event) {
	select {
	case sink.events <- event:
	default:
		log.Warn("Event buffer full, events are being dropped")
	}
}

func (sink *printingSink) OnClose(err error) {
	sink.closed <- err
}

func describe(event tin.Event) string {
	switch event := event.(type) {
	case tin.EventRune:
		display := string(event.Rune())
		// Pad narrow characters so the columns line up with double width
		// CJK and emoji
		padding := 2 - runewidth.StringWidth(display)
		if padding > 0 {
			display += fmt.Sprintf("%*s", padding, "")
		}
		return fmt.Sprintf("rune   %s U+%04X  mods=%s", display, event.Rune(), event.Mods())

	case tin.EventKeyCode:
		return fmt.Sprintf("key    %-9s  mods=%s", event.KeyCode(), event.Mods())

	case tin.EventMouse:
		return fmt.Sprintf("mouse  %s %s at (%d,%d)  mods=%s",
			event.Action(), event.Button(), event.X(), event.Y(), event.Mods())

	case tin.EventPaste:
		return fmt.Sprintf("paste  %d byte(s), %d glyph(s)",
			len(event.Text()), uniseg.GraphemeClusterCount(event.Text()))

	case tin.EventResize:
		return "resize"
	}

	return fmt.Sprintf("unknown event %#v", event)
}

func isQuit(event tin.Event) bool {
	keypress, ok := event.(tin.EventRune)
	if !ok {
		return false
	}

	if keypress.Rune() == 'c' && keypress.Mods().Has(tin.ModCtrl) {
		return true
	}
	return keypress.Rune() == 'q' && keypress.Mods() == 0
}

func setupLogging(conf config) {
	log.SetLevel(log.WarnLevel)
	if conf.Trace {
		log.SetLevel(log.TraceLevel)
	}

	if conf.LogFile == "" {
		return
	}

	logFile, err := os.OpenFile(conf.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to open log file: ", err)
		os.Exit(1)
	}
	log.SetOutput(logFile)
}
