package util

import (
	"testing"
)

func TestFormatAddr(t *testing.T) {
	if got := FormatAddr("1.2.3.4", 3030); got != "1.2.3.4:3030" {
		t.Errorf("got %q, want %q", got, "1.2.3.4:3030")
	}
	if got := FormatAddr("::1", 3030); got != "[::1]:3030" {
		t.Errorf("got %q, want %q", got, "[::1]:3030")
	}
}

func TestSplitAddr(t *testing.T) {
	tests := []struct {
		in       string
		wantHost string
		wantPort int
		wantErr  bool
	}{
		{"localhost:3030", "localhost", 3030, false},
		{"0.0.0.0:1", "0.0.0.0", 1, false},
		{":8080", "", 8080, false},
		{"[::1]:443", "::1", 443, false},
		{"localhost", "", 0, true},
		{"host:http", "", 0, true},
		{"host:70000", "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			host, port, err := SplitAddr(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SplitAddr(%q) err=%v wantErr=%v", tt.in, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if host != tt.wantHost || port != tt.wantPort {
				t.Errorf("got (%q, %d), want (%q, %d)", host, port, tt.wantHost, tt.wantPort)
			}
		})
	}
}

func TestWebSocketURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"127.0.0.1:3030", "ws://127.0.0.1:3030/", false},
		{"//localhost:3030", "ws://localhost:3030/", false},
		{"ws://chat.example.com:80/room", "ws://chat.example.com:80/room", false},
		{"wss://chat.example.com:443", "wss://chat.example.com:443/", false},
		{"  10.0.0.2:9000 ", "ws://10.0.0.2:9000/", false},
		{"", "", true},
		{"localhost", "", true},
		{"http://localhost:3030", "", true},
		{"ws://:3030", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			u, err := WebSocketURL(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("WebSocketURL(%q) err=%v wantErr=%v", tt.in, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if got := u.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFindFreePort(t *testing.T) {
	port, err := FindFreePort()
	if err != nil {
		t.Fatal(err)
	}
	if port < 1 || port > 65535 {
		t.Errorf("port %d out of range", port)
	}
}
