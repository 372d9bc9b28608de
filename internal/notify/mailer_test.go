package notify

import (
	"bufio"
	"errors"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestBuildMessage(t *testing.T) {
	msg := Message{
		Subject:    "Snow alert",
		Body:       "12.5 mm of snow expected overnight.",
		Recipients: []string{"me@example.com", "5551234567@sms.example.com"},
	}

	got := string(buildMessage("sender@example.com", msg))

	want := "From: sender@example.com\r\n" +
		"To: me@example.com, 5551234567@sms.example.com\r\n" +
		"Subject: Snow alert\r\n" +
		"\r\n" +
		"12.5 mm of snow expected overnight.\r\n"
	if got != want {
		t.Errorf("buildMessage =\n%q\nwant\n%q", got, want)
	}
}

func TestSendNoRecipients(t *testing.T) {
	m := NewMailer("smtp.example.com", 587, "a@example.com", "pw", time.Second)

	err := m.Send(Message{Subject: "s", Body: "b"})
	var serr *SendError
	if !errors.As(err, &serr) {
		t.Fatalf("expected *SendError, got %v", err)
	}
	if serr.Kind != KindProtocol {
		t.Errorf("kind = %v, want protocol", serr.Kind)
	}
}

func TestSendConnectFailure(t *testing.T) {
	// Grab a port and close it again so the dial is refused.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()

	m := NewMailer("127.0.0.1", addr.Port, "a@example.com", "pw", time.Second)
	err = m.Send(Message{Subject: "s", Body: "b", Recipients: []string{"r@example.com"}})

	var serr *SendError
	if !errors.As(err, &serr) {
		t.Fatalf("expected *SendError, got %v", err)
	}
	if serr.Kind != KindProtocol {
		t.Errorf("kind = %v, want protocol", serr.Kind)
	}
}

// fakeRelay speaks just enough SMTP to get the client to the STARTTLS step
// and then refuses the upgrade.
func fakeRelay(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		r := bufio.NewReader(conn)
		write := func(s string) { conn.Write([]byte(s + "\r\n")) }

		write("220 fake ESMTP ready")
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			cmd := strings.ToUpper(strings.TrimSpace(line))
			switch {
			case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
				write("250-fake")
				write("250 STARTTLS")
			case cmd == "STARTTLS":
				write("502 command not implemented")
			case cmd == "QUIT":
				write("221 bye")
				return
			default:
				write("500 unrecognized command")
			}
		}
	}()

	return ln.Addr().String()
}

func TestSendStartTLSRefused(t *testing.T) {
	addr := fakeRelay(t)
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatal(err)
	}

	m := NewMailer(host, port, "a@example.com", "pw", time.Second)
	err = m.Send(Message{Subject: "s", Body: "b", Recipients: []string{"r@example.com"}})

	var serr *SendError
	if !errors.As(err, &serr) {
		t.Fatalf("expected *SendError, got %v", err)
	}
	if serr.Kind != KindProtocol {
		t.Errorf("kind = %v, want protocol", serr.Kind)
	}
	if !strings.Contains(err.Error(), "starttls") {
		t.Errorf("error should name the failed step, got %q", err.Error())
	}
}

func TestSendErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	serr := &SendError{Kind: KindAuth, Err: inner}

	if !errors.Is(serr, inner) {
		t.Error("SendError should unwrap to its cause")
	}
	if !strings.Contains(serr.Error(), "auth") {
		t.Errorf("auth errors should say so, got %q", serr.Error())
	}
}
