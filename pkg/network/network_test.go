package network

import "testing"

func TestAcceptAndDisconnectLifecycle(t *testing.T) {
	ls := NewLines(2)
	l := ls.Accept("127.0.0.1:1234")
	if l == nil || l.Status != Connecting {
		t.Fatalf("got %+v", l)
	}
	pump := NewPump(ls)
	ev, n, _ := pump.Poll()
	if ev != EventConnected || n != l.Num {
		t.Fatalf("got ev=%v n=%d", ev, n)
	}
	if l.Status != Idle {
		t.Fatalf("expected Idle after pump visit, got %v", l.Status)
	}

	ls.Disconnect(l.Num)
	ev, n, _ = pump.Poll()
	if ev != EventDisconnected || n != l.Num {
		t.Fatalf("got ev=%v n=%d", ev, n)
	}
	if l.Status != Empty {
		t.Fatalf("expected Empty after reap, got %v", l.Status)
	}
}

func TestMaxConnsExhausted(t *testing.T) {
	ls := NewLines(1)
	if ls.Accept("a") == nil {
		t.Fatal("first accept should succeed")
	}
	if ls.Accept("b") != nil {
		t.Fatal("second accept should fail: no empty slots")
	}
}

func TestFeedLineSplitsOnNewline(t *testing.T) {
	ls := NewLines(1)
	l := ls.Accept("host")
	ls.Feed(l.Num, []byte("look\r\nnorth\r\n"))
	if l.Status != HasData {
		t.Fatalf("got %v, want HasData", l.Status)
	}
	cmd, ok := ls.NextLine(l.Num)
	if !ok || cmd != "look" {
		t.Fatalf("got %q, %v", cmd, ok)
	}
	if l.Status != HasData {
		t.Fatal("more data buffered, should still be HasData")
	}
	cmd, ok = ls.NextLine(l.Num)
	if !ok || cmd != "north" {
		t.Fatalf("got %q, %v", cmd, ok)
	}
	if l.Status != Idle {
		t.Fatalf("no more newlines buffered, want Idle, got %v", l.Status)
	}
}

func TestTelnetDecoderStripsNegotiationAndEchoesPolicy(t *testing.T) {
	d := &telnetDecoder{}
	// IAC DO ECHO: peer asks us to echo -> we reply IAC WILL ECHO.
	data, replies := d.decode([]byte{iac, do, optEcho})
	if len(data) != 0 {
		t.Fatalf("expected no app data, got %v", data)
	}
	want := []byte{iac, will, optEcho}
	if string(replies) != string(want) {
		t.Fatalf("got %v, want %v", replies, want)
	}

	// IAC WILL ECHO: peer offers to echo itself -> refused (DONT).
	_, replies = d.decode([]byte{iac, will, optEcho})
	want = []byte{iac, dont, optEcho}
	if string(replies) != string(want) {
		t.Fatalf("got %v, want %v", replies, want)
	}

	// Plain text with an escaped 0xFF passes through untouched.
	data, replies = d.decode([]byte{'h', 'i', iac, iac, '!'})
	if string(data) != "hi\xff!" {
		t.Fatalf("got %q", data)
	}
	if len(replies) != 0 {
		t.Fatalf("unexpected replies %v", replies)
	}
}

func TestFairRoundRobinVisitsAllLines(t *testing.T) {
	ls := NewLines(3)
	a := ls.Accept("a")
	b := ls.Accept("b")
	c := ls.Accept("c")
	pump := NewPump(ls)

	seen := map[int]bool{}
	for i := 0; i < 3; i++ {
		_, n, _ := pump.Poll()
		seen[n] = true
	}
	if !seen[a.Num] || !seen[b.Num] || !seen[c.Num] {
		t.Fatalf("round robin starved a line: %v", seen)
	}
}
