// Package notify sends alert messages through an authenticated SMTP relay.
package notify

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

type Message struct {
	Subject    string
	Body       string
	Recipients []string
}

// Kind classifies a failed send. Authentication failures are distinguished
// from every other step of the session so the caller can report them
// separately.
type Kind int

const (
	KindProtocol Kind = iota
	KindAuth
)

func (k Kind) String() string {
	if k == KindAuth {
		return "auth"
	}
	return "protocol"
}

type SendError struct {
	Kind Kind
	Err  error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("smtp %s error: %v", e.Kind, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

type Sender interface {
	Send(msg Message) error
}

// Mailer submits mail over a plaintext connection upgraded with STARTTLS.
// One session per send; the connection is closed on every exit path.
type Mailer struct {
	server   string
	port     int
	address  string
	password string
	timeout  time.Duration
}

func NewMailer(server string, port int, address, password string, timeout time.Duration) *Mailer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Mailer{
		server:   server,
		port:     port,
		address:  address,
		password: password,
		timeout:  timeout,
	}
}

func protocolErr(step string, err error) *SendError {
	return &SendError{Kind: KindProtocol, Err: fmt.Errorf("%s: %w", step, err)}
}

// Send transmits one message addressed to all recipients in a single DATA
// exchange; the relay fans out per-recipient delivery.
func (m *Mailer) Send(msg Message) error {
	if len(msg.Recipients) == 0 {
		return protocolErr("send", fmt.Errorf("no recipients"))
	}

	addr := net.JoinHostPort(m.server, strconv.Itoa(m.port))
	conn, err := net.DialTimeout("tcp", addr, m.timeout)
	if err != nil {
		return protocolErr("connect "+addr, err)
	}

	// NewClient reads the server greeting.
	client, err := smtp.NewClient(conn, m.server)
	if err != nil {
		conn.Close()
		return protocolErr("greeting", err)
	}
	defer client.Close()

	if err := client.StartTLS(&tls.Config{ServerName: m.server}); err != nil {
		return protocolErr("starttls", err)
	}

	auth := smtp.PlainAuth("", m.address, m.password, m.server)
	if err := client.Auth(auth); err != nil {
		return &SendError{Kind: KindAuth, Err: fmt.Errorf("login as %s: %w", m.address, err)}
	}

	if err := client.Mail(m.address); err != nil {
		return protocolErr("mail from", err)
	}
	for _, rcpt := range msg.Recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return protocolErr("rcpt to "+rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return protocolErr("data", err)
	}
	if _, err := w.Write(buildMessage(m.address, msg)); err != nil {
		return protocolErr("write body", err)
	}
	if err := w.Close(); err != nil {
		return protocolErr("close body", err)
	}

	if err := client.Quit(); err != nil {
		return protocolErr("quit", err)
	}
	return nil
}

func buildMessage(from string, msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.Recipients, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	b.WriteString("\r\n")
	return []byte(b.String())
}
