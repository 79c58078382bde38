package errors

import (
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"testing"
)

func TestNetworkError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  NetworkError
		want string
	}{
		{
			name: "retryable",
			err:  NetworkError{Op: "dial", Addr: "ws://example.com:3030", Err: io.EOF, Retryable: true},
			want: "dial ws://example.com:3030: EOF (retryable)",
		},
		{
			name: "non-retryable",
			err:  NetworkError{Op: "listen", Addr: ":3030", Err: fmt.Errorf("bind failed")},
			want: "listen :3030: bind failed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNetworkError_Unwrap(t *testing.T) {
	err := &NetworkError{Op: "dial", Addr: "x", Err: io.EOF}
	if !Is(err, io.EOF) {
		t.Error("should unwrap to io.EOF")
	}
}

func TestSSHError_Format(t *testing.T) {
	err := WrapSSH("handshake", "bastion.example.com", 22, fmt.Errorf("connection refused"))
	want := "ssh handshake bastion.example.com:22: connection refused"
	if got := err.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestConfigError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  ConfigError
		want string
	}{
		{
			name: "with value and hint",
			err: ConfigError{
				Field:   "timeout",
				Value:   -1,
				Message: "must not be negative",
				Hint:    "use 0 to keep the default",
			},
			want: "config: --timeout=-1: must not be negative\n  hint: use 0 to keep the default",
		},
		{
			name: "missing value no hint",
			err:  ConfigError{Field: "tunnel", Message: "host is required"},
			want: "config: --tunnel: host is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got:\n%s\nwant:\n%s", got, tt.want)
			}
		})
	}
}

func TestProtocolStateError(t *testing.T) {
	err := fmt.Errorf("apply: %w", &ProtocolStateError{Role: "client-active", Event: "ServerOpened"})
	if !IsProtocolState(err) {
		t.Fatal("wrapped ProtocolStateError not detected")
	}
	if IsProtocolState(io.EOF) {
		t.Error("io.EOF is not a protocol-state error")
	}
	want := "apply: invalid connection state: ServerOpened received while client-active"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestMalformed(t *testing.T) {
	err := Malformed("want %d bytes, got %d", 12, 3)
	if !Is(err, ErrMalformedFrame) {
		t.Fatal("Malformed should wrap ErrMalformedFrame")
	}
	if got, want := err.Error(), "malformed probe frame: want 12 bytes, got 3"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"retryable network", &NetworkError{Op: "dial", Addr: "x", Err: io.EOF, Retryable: true}, true},
		{"non-retryable network", &NetworkError{Op: "dial", Addr: "x", Err: io.EOF}, false},
		{"address error", &AddressError{Input: "::", Reason: "missing port"}, false},
		{"refused dial", &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}, true},
		{"plain error", fmt.Errorf("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyBind(t *testing.T) {
	wrapErrno := func(errno syscall.Errno) error {
		return Wrap("listen", "0.0.0.0:1", &net.OpError{
			Op:  "listen",
			Net: "tcp",
			Err: os.NewSyscallError("bind", errno),
		})
	}

	tests := []struct {
		name string
		err  error
		want BindClass
	}{
		{"nil", nil, BindOther},
		{"in use errno", wrapErrno(syscall.EADDRINUSE), AddressInUse},
		{"unavailable errno", wrapErrno(syscall.EADDRNOTAVAIL), AddressUnavailable},
		{"permission", wrapErrno(syscall.EACCES), BindOther},
		{"in use text", fmt.Errorf("bind: address already in use"), AddressInUse},
		{"unavailable text", fmt.Errorf("bind: cannot assign requested address"), AddressUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyBind(tt.err); got != tt.want {
				t.Errorf("ClassifyBind() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestClassifyBind_RealConflict binds the same port twice.
func TestClassifyBind_RealConflict(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	_, err = net.Listen("tcp", ln.Addr().String())
	if err == nil {
		t.Fatal("second bind should fail")
	}
	if got := ClassifyBind(err); got != AddressInUse {
		t.Errorf("ClassifyBind(%v) = %v, want %v", err, got, AddressInUse)
	}
	if !ClassifyBind(err).Invalidates() {
		t.Error("address in use should invalidate the address")
	}
}

func TestSentinels(t *testing.T) {
	sentinels := []error{
		ErrNotConnected, ErrAddressInvalid, ErrConnClosed, ErrSendBufferFull,
		ErrMalformedFrame, ErrTimeout, ErrAuthFailed, ErrHostKeyMismatch,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && Is(a, b) {
				t.Errorf("sentinel %d and %d should not match", i, j)
			}
		}
	}
}
