package supervisor

import "fmt"

// Role is the node's current connection role.
type Role int

const (
	Idle Role = iota
	Listening
	ServerActive
	ClientActive
)

func (r Role) String() string {
	switch r {
	case Idle:
		return "Idle"
	case Listening:
		return "Listening"
	case ServerActive:
		return "ServerActive"
	case ClientActive:
		return "ClientActive"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// Printer receives the console lines the supervisor produces.
type Printer interface {
	Println(line string)
}

// PrinterFunc adapts a function to [Printer].
type PrinterFunc func(line string)

// Println calls f(line).
func (f PrinterFunc) Println(line string) { f(line) }
