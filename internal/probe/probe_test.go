package probe

import (
	"errors"
	"testing"
	"time"

	ncerr "hudchat/internal/errors"
	"hudchat/internal/metrics"
	"hudchat/internal/transport"
	"hudchat/internal/transport/transporttest"
)

func TestStamp_EncodeLayout(t *testing.T) {
	at := time.Unix(0, 0x0102030405060708)
	b := Stamp{Kind: Pong, At: at}.Encode()

	want := []byte{
		1, 0, 0, 0, // tag
		8, 7, 6, 5, 4, 3, 2, 1, // nanos, little-endian
	}
	if string(b) != string(want) {
		t.Errorf("Encode = % x, want % x", b, want)
	}
}

func TestStamp_Decode(t *testing.T) {
	at := time.Unix(1700000000, 123456789)

	for _, k := range []Kind{Ping, Pong} {
		s, err := Decode(Stamp{Kind: k, At: at}.Encode())
		if err != nil {
			t.Fatalf("%s: %v", k, err)
		}
		if s.Kind != k || !s.At.Equal(at) {
			t.Errorf("%s: got %+v", k, s)
		}
	}
}

func TestDecode_Malformed(t *testing.T) {
	badTag := Stamp{Kind: Pong, At: time.Now()}.Encode()
	badTag[0] = 7

	tests := []struct {
		name string
		in   []byte
	}{
		{"empty", nil},
		{"short", make([]byte, 11)},
		{"long", make([]byte, 13)},
		{"unknown tag", badTag},
		{"text", []byte("hello, world")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.in); !errors.Is(err, ncerr.ErrMalformedFrame) {
				t.Errorf("Decode(% x) = %v, want ErrMalformedFrame", tt.in, err)
			}
		})
	}
}

func TestProbe_SendTextBatchesPing(t *testing.T) {
	now := time.Unix(100, 0)
	m := metrics.New()
	p := New(m).WithClock(func() time.Time { return now })
	c := transporttest.NewConn(1, "peer")

	if err := p.SendText(c, "hi"); err != nil {
		t.Fatal(err)
	}

	batches := c.Batches()
	if len(batches) != 1 || len(batches[0]) != 2 {
		t.Fatalf("batches = %v", batches)
	}
	text, ping := batches[0][0], batches[0][1]
	if text.Kind != transport.Text || string(text.Data) != "hi" {
		t.Errorf("first frame = %+v", text)
	}
	s, err := Decode(ping.Data)
	if err != nil || ping.Kind != transport.Binary {
		t.Fatalf("second frame = %+v (%v)", ping, err)
	}
	if s.Kind != Ping || !s.At.Equal(now) {
		t.Errorf("ping = %+v", s)
	}
	if m.Snapshot().PingsSent != 1 {
		t.Error("ping not counted")
	}
}

func TestProbe_SendTextFailure(t *testing.T) {
	m := metrics.New()
	c := transporttest.NewConn(1, "peer")
	c.FailSends(ncerr.ErrSendBufferFull)

	if err := New(m).SendText(c, "hi"); !errors.Is(err, ncerr.ErrSendBufferFull) {
		t.Fatalf("SendText = %v", err)
	}
	if m.Snapshot().PingsSent != 0 {
		t.Error("failed send counted as ping")
	}
}

// TestProbe_RoundTrip feeds a ping back into Handle, then the pong.
func TestProbe_RoundTrip(t *testing.T) {
	t0 := time.Unix(50, 0)
	clock := t0
	p := New(nil).WithClock(func() time.Time { return clock })

	a := transporttest.NewConn(1, "a")
	b := transporttest.NewConn(2, "b")

	if err := p.SendText(a, "x"); err != nil {
		t.Fatal(err)
	}
	ping := a.Batches()[0][1].Data

	res, err := p.Handle(b, ping)
	if err != nil || res.Kind != Ping {
		t.Fatalf("Handle(ping) = %+v, %v", res, err)
	}
	replies := b.Batches()
	if len(replies) != 1 || len(replies[0]) != 1 {
		t.Fatalf("want exactly one pong, got %v", replies)
	}
	pong, err := Decode(replies[0][0].Data)
	if err != nil || pong.Kind != Pong || !pong.At.Equal(t0) {
		t.Fatalf("pong = %+v (%v)", pong, err)
	}

	clock = t0.Add(1500 * time.Microsecond)
	res, err = p.Handle(a, replies[0][0].Data)
	if err != nil || res.Kind != Pong {
		t.Fatalf("Handle(pong) = %+v, %v", res, err)
	}
	if res.Elapsed != 1500*time.Microsecond {
		t.Errorf("elapsed = %v", res.Elapsed)
	}
	if len(a.Batches()) != 1 {
		t.Error("a pong must not trigger a reply")
	}
}

func TestProbe_PongFromTheFuture(t *testing.T) {
	now := time.Unix(10, 0)
	p := New(nil).WithClock(func() time.Time { return now })

	future := Stamp{Kind: Pong, At: now.Add(time.Second)}.Encode()
	res, err := p.Handle(transporttest.NewConn(1, "a"), future)
	if err != nil {
		t.Fatal(err)
	}
	if res.Elapsed != 0 {
		t.Errorf("elapsed = %v, want clamp to 0", res.Elapsed)
	}
}

func TestProbe_MalformedLeavesConnOpen(t *testing.T) {
	c := transporttest.NewConn(1, "a")
	_, err := New(nil).Handle(c, []byte{1, 2, 3})
	if !errors.Is(err, ncerr.ErrMalformedFrame) {
		t.Fatalf("Handle = %v", err)
	}
	if closed, _, _ := c.Closed(); closed {
		t.Error("decode failure closed the connection")
	}
	if len(c.Batches()) != 0 {
		t.Error("decode failure sent a reply")
	}
}

func TestFormatRoundTrip(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "Round-trip: 0.000000s"},
		{1500 * time.Microsecond, "Round-trip: 0.001500s"},
		{2*time.Second + 42*time.Microsecond, "Round-trip: 2.000042s"},
		{999 * time.Nanosecond, "Round-trip: 0.000000s"},
		{-time.Second, "Round-trip: 0.000000s"},
	}
	for _, tt := range tests {
		if got := FormatRoundTrip(tt.in); got != tt.want {
			t.Errorf("FormatRoundTrip(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
