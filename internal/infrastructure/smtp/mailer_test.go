package smtp

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/go-otp-auth/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessage(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	msg, err := buildMessage("noreply@example.com", "a@b.com", "Your One-Time Password (OTP) – TLE Fighters", "<p>123456</p>", now)
	require.NoError(t, err)

	s := string(msg)
	assert.Contains(t, s, "From: noreply@example.com\r\n")
	assert.Contains(t, s, "To: a@b.com\r\n")
	assert.Contains(t, s, "Subject: =?utf-8?q?")
	assert.Contains(t, s, "Content-Type: text/html; charset=UTF-8\r\n")
	assert.Contains(t, s, "Date: Sun, 01 Mar 2026 10:00:00 +0000\r\n")
	assert.True(t, strings.HasSuffix(s, "<p>123456</p>"))
}

// fakeSMTP serves a single SMTP session on a loopback listener and sends the
// DATA payload on the returned channel.
func fakeSMTP(t *testing.T, extensions ...string) (host, port string, data <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	out := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		write := func(s string) { _, _ = conn.Write([]byte(s + "\r\n")) }

		write("220 fake ESMTP")
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			cmd := strings.ToUpper(strings.TrimSpace(line))
			switch {
			case strings.HasPrefix(cmd, "EHLO"):
				write("250-fake")
				for _, ext := range extensions {
					write("250-" + ext)
				}
				write("250 HELP")
			case strings.HasPrefix(cmd, "MAIL"), strings.HasPrefix(cmd, "RCPT"):
				write("250 OK")
			case cmd == "DATA":
				write("354 go ahead")
				var body strings.Builder
				for {
					l, err := r.ReadString('\n')
					if err != nil {
						return
					}
					if l == ".\r\n" {
						break
					}
					body.WriteString(l)
				}
				out <- body.String()
				write("250 queued")
			case cmd == "QUIT":
				write("221 bye")
				return
			default:
				write("502 not implemented")
			}
		}
	}()

	h, p, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	return h, p, out
}

func TestMailer_SendEmail_Plaintext(t *testing.T) {
	host, port, data := fakeSMTP(t)
	m := NewMailer(&config.Config{
		SMTPHost: host, SMTPPort: port, SMTPFrom: "noreply@example.com",
		SMTPTimeout: 5 * time.Second, SMTPRequireTLS: false,
	})

	require.NoError(t, m.SendEmail(context.Background(), "a@b.com", "hello", "<b>654321</b>"))
	select {
	case body := <-data:
		assert.Contains(t, body, "To: a@b.com")
		assert.Contains(t, body, "<b>654321</b>")
	case <-time.After(5 * time.Second):
		t.Fatal("no message delivered")
	}
}

func TestMailer_SendEmail_RequiresTLS(t *testing.T) {
	host, port, _ := fakeSMTP(t)
	m := NewMailer(&config.Config{
		SMTPHost: host, SMTPPort: port, SMTPFrom: "noreply@example.com",
		SMTPTimeout: 5 * time.Second, SMTPRequireTLS: true,
	})

	err := m.SendEmail(context.Background(), "a@b.com", "hello", "<b>654321</b>")
	assert.ErrorContains(t, err, "does not offer STARTTLS")
}

func TestMailer_SendEmail_DialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, port, _ := net.SplitHostPort(ln.Addr().String())
	ln.Close()

	m := NewMailer(&config.Config{SMTPHost: "127.0.0.1", SMTPPort: port, SMTPTimeout: time.Second})
	err = m.SendEmail(context.Background(), "a@b.com", "s", "b")
	assert.ErrorContains(t, err, "dial smtp")
}
