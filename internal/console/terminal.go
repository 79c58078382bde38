package console

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// Terminal owns stdin for the life of the console.  When stdin is a
// terminal it is switched to raw mode until Restore.
type Terminal struct {
	fd    int
	state *term.State
	keys  chan byte
}

// OpenTerminal puts in into raw mode when it is a terminal and starts
// reading keys from it.
func OpenTerminal(in *os.File) (*Terminal, error) {
	t := &Terminal{fd: int(in.Fd()), keys: make(chan byte, 1024)}
	if term.IsTerminal(t.fd) {
		st, err := term.MakeRaw(t.fd)
		if err != nil {
			return nil, fmt.Errorf("raw mode: %w", err)
		}
		t.state = st
	}
	go t.read(in)
	return t, nil
}

func (t *Terminal) read(r io.Reader) {
	defer close(t.keys)
	buf := make([]byte, 256)
	for {
		n, err := r.Read(buf)
		for _, b := range buf[:n] {
			t.keys <- b
		}
		if err != nil {
			return
		}
	}
}

// Keys delivers raw input bytes.  It is closed when stdin ends.
func (t *Terminal) Keys() <-chan byte { return t.keys }

// Raw reports whether the terminal was switched to raw mode.
func (t *Terminal) Raw() bool { return t.state != nil }

// Restore puts the terminal back the way OpenTerminal found it.
func (t *Terminal) Restore() error {
	if t.state == nil {
		return nil
	}
	err := term.Restore(t.fd, t.state)
	t.state = nil
	return err
}

// ── Screen ───────────────────────────────────────────────────────────

const clearLine = "\r\x1b[2K"

// Screen draws output lines above a prompt that stays on the last
// row.  Only the UI goroutine writes to it.
type Screen struct {
	w      io.Writer
	prompt string // last prompt drawn, "" after a line was printed
}

// NewScreen writes to w.
func NewScreen(w io.Writer) *Screen { return &Screen{w: w} }

// Println replaces the prompt row with line and moves down.
func (s *Screen) Println(line string) {
	fmt.Fprintf(s.w, "%s%s\r\n", clearLine, line)
	s.prompt = ""
}

// Prompt redraws the prompt row if it changed.
func (s *Screen) Prompt(state, typed string) {
	p := state + "> " + typed
	if p == s.prompt {
		return
	}
	fmt.Fprintf(s.w, "%s%s", clearLine, p)
	s.prompt = p
}

// Finish leaves the cursor on a clean line.
func (s *Screen) Finish() {
	fmt.Fprint(s.w, clearLine+"\r\n")
	s.prompt = ""
}

// ── Raw-mode log output ──────────────────────────────────────────────

// CRLF returns a writer that turns "\n" into "\r\n", so log lines
// written while the terminal is raw start at column zero.
func CRLF(w io.Writer) io.Writer { return crlfWriter{w} }

type crlfWriter struct{ w io.Writer }

func (c crlfWriter) Write(p []byte) (int, error) {
	out := make([]byte, 0, len(p)+8)
	for _, b := range p {
		if b == '\n' {
			out = append(out, '\r')
		}
		out = append(out, b)
	}
	if _, err := c.w.Write(out); err != nil {
		return 0, err
	}
	return len(p), nil
}
