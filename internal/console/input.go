package console

import "strings"

// Action is what a submitted line asks for.
type Action int

const (
	ActNone Action = iota // blank line
	ActSend
	ActConnect
	ActListen
	ActClose
	ActStats
	ActExit
	ActHelp
	ActUnknown
)

// Input is a parsed console line.
type Input struct {
	Action Action
	Arg    string // message text, or the command's first argument
}

// ParseInput classifies one submitted line.  Lines starting with '/'
// are commands; anything else is chat text and is kept verbatim.
func ParseInput(line string) Input {
	if strings.TrimSpace(line) == "" {
		return Input{Action: ActNone}
	}
	if !strings.HasPrefix(line, "/") {
		return Input{Action: ActSend, Arg: line}
	}

	fields := strings.Fields(line)
	in := Input{}
	if len(fields) > 1 {
		in.Arg = fields[1]
	}
	switch strings.ToLower(fields[0]) {
	case "/connect", "/open":
		in.Action = ActConnect
	case "/listen":
		in.Action = ActListen
	case "/close":
		in.Action = ActClose
	case "/stats":
		in.Action = ActStats
	case "/exit", "/quit":
		in.Action = ActExit
	case "/help":
		in.Action = ActHelp
	default:
		in.Action = ActUnknown
		in.Arg = fields[0]
	}
	return in
}

// helpLines is printed at startup and on /help.
var helpLines = []string{
	"Type '/connect' {url} to connect to a server.",
	"Type '/listen' {host:port} to listen on another address.",
	"Type '/close' to close the current connection.",
	"Type '/stats' [json] to show connection statistics.",
	"Type '/exit' or press ctrl-q to quit.",
}
