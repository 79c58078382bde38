package console

import "unicode/utf8"

const (
	keyCtrlC     = 0x03
	keyBackspace = 0x08
	keyCtrlQ     = 0x11
	keyEscape    = 0x1b
	keyDelete    = 0x7f
)

type escState int

const (
	escNone escState = iota
	escStart
	escSeq
)

// Editor is the single-line input buffer fed one raw byte at a time.
// Escape sequences (arrows, function keys) are swallowed.
type Editor struct {
	buf     []rune
	partial []byte // incomplete UTF-8 sequence
	esc     escState
}

// Feed consumes one input byte.  submitted is true when Enter finished
// a line, which is returned and cleared from the buffer.  quit is true
// on Ctrl-Q or Ctrl-C.
func (e *Editor) Feed(b byte) (line string, submitted, quit bool) {
	switch e.esc {
	case escStart:
		e.esc = escNone
		if b == '[' || b == 'O' {
			e.esc = escSeq
		}
		return "", false, false
	case escSeq:
		if b >= 0x40 && b <= 0x7e {
			e.esc = escNone
		}
		return "", false, false
	}

	if len(e.partial) > 0 && utf8.RuneStart(b) {
		// Truncated sequence: drop it and take b on its own.
		e.partial = e.partial[:0]
	}
	if len(e.partial) > 0 || b >= utf8.RuneSelf {
		e.partial = append(e.partial, b)
		if utf8.FullRune(e.partial) {
			r, _ := utf8.DecodeRune(e.partial)
			if r != utf8.RuneError {
				e.buf = append(e.buf, r)
			}
			e.partial = e.partial[:0]
		}
		return "", false, false
	}

	switch b {
	case keyCtrlC, keyCtrlQ:
		return "", false, true
	case '\r', '\n':
		line = string(e.buf)
		e.buf = e.buf[:0]
		return line, true, false
	case keyBackspace, keyDelete:
		if n := len(e.buf); n > 0 {
			e.buf = e.buf[:n-1]
		}
	case keyEscape:
		e.esc = escStart
	default:
		if b >= 0x20 {
			e.buf = append(e.buf, rune(b))
		}
	}
	return "", false, false
}

// Line returns the text typed so far.
func (e *Editor) Line() string { return string(e.buf) }
