package n

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Sink delivers rendered alert messages to operators
type Sink interface {
	Deliver(ctx context.Context, msg Message) error
}

// SinkFn is a function that implements the Sink interface
type SinkFn func(context.Context, Message) error

// Deliver executes the wrapped function
func (fn SinkFn) Deliver(ctx context.Context, msg Message) error {
	return fn(ctx, msg)
}

// DeliveryError is reported when a sink could not deliver a message
type DeliveryError struct {
	sinkName string
	alert    Alert
	attempts int
	err      error
}

// GetSinkName returns the name of the sink that failed
func (err *DeliveryError) GetSinkName() string {
	return err.sinkName
}

// GetAlert returns the alert that was dropped
func (err *DeliveryError) GetAlert() Alert {
	return err.alert
}

func (err *DeliveryError) Error() string {
	return fmt.Sprintf(
		"sink %s dropped %s alert %s after %d attempt(s): %v",
		err.sinkName, err.alert.Kind, err.alert.ID, err.attempts, err.err,
	)
}

// Unwrap returns the last delivery error
func (err *DeliveryError) Unwrap() error {
	return err.err
}

////////////////////////////////////////////////////////////////////////////////

// LogSink writes alerts to a logrus logger; it is the fallback sink when no
// transport is configured
type LogSink struct {
	log logrus.FieldLogger
}

// NewLogSink creates a LogSink
func NewLogSink(log logrus.FieldLogger) LogSink {
	return LogSink{log: log}
}

// Deliver logs the message at warning level
func (ls LogSink) Deliver(_ context.Context, msg Message) error {
	ls.log.WithFields(logrus.Fields{
		"recipient": msg.Recipient,
		"body":      strings.ReplaceAll(strings.TrimSpace(msg.Body), "\n", "; "),
	}).Warn(msg.Subject)
	return nil
}

////////////////////////////////////////////////////////////////////////////////

// MailSink delivers alerts over SMTP
type MailSink struct {
	addr     string
	from     string
	username string
	password string
}

// NewMailSink creates a MailSink that talks to the SMTP server on addr
// (host:port). Authentication is used when username is not empty.
func NewMailSink(addr, from, username, password string) MailSink {
	return MailSink{addr: addr, from: from, username: username, password: password}
}

func (ms MailSink) buildMail(msg Message) []byte {
	var buffer bytes.Buffer
	buffer.WriteString(fmt.Sprintf("From: %s\r\n", ms.from))
	buffer.WriteString(fmt.Sprintf("To: %s\r\n", msg.Recipient))
	buffer.WriteString(fmt.Sprintf("Subject: %s\r\n", msg.Subject))
	buffer.WriteString(fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z)))
	buffer.WriteString("MIME-Version: 1.0\r\n")
	buffer.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	buffer.WriteString("\r\n")
	buffer.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return buffer.Bytes()
}

// Deliver sends the message to its recipient. The whole SMTP conversation is
// bound to the context deadline.
func (ms MailSink) Deliver(ctx context.Context, msg Message) error {
	if msg.Recipient == "" {
		return fmt.Errorf("mail sink: no recipient")
	}
	host, _, err := net.SplitHostPort(ms.addr)
	if err != nil {
		return fmt.Errorf("mail sink: invalid address %q: %w", ms.addr, err)
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", ms.addr)
	if err != nil {
		return fmt.Errorf("mail sink: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("mail sink: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return fmt.Errorf("mail sink: starttls: %w", err)
		}
	}
	if ms.username != "" {
		auth := smtp.PlainAuth("", ms.username, ms.password, host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("mail sink: auth: %w", err)
		}
	}
	if err := client.Mail(ms.from); err != nil {
		return fmt.Errorf("mail sink: mail from: %w", err)
	}
	if err := client.Rcpt(msg.Recipient); err != nil {
		return fmt.Errorf("mail sink: rcpt to: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("mail sink: data: %w", err)
	}
	if _, err := w.Write(ms.buildMail(msg)); err != nil {
		return fmt.Errorf("mail sink: write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("mail sink: %w", err)
	}
	return client.Quit()
}

////////////////////////////////////////////////////////////////////////////////

// WebhookSink posts alerts as JSON documents to an HTTP endpoint
type WebhookSink struct {
	url    string
	client *http.Client
}

// webhookPayload is the JSON document posted by WebhookSink
type webhookPayload struct {
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	Recipient string `json:"recipient,omitempty"`
	Text      string `json:"text"`
}

// NewWebhookSink creates a WebhookSink; a nil client uses http.DefaultClient
func NewWebhookSink(url string, client *http.Client) WebhookSink {
	if client == nil {
		client = http.DefaultClient
	}
	return WebhookSink{url: url, client: client}
}

// Deliver posts the message; any non 2xx response is an error
func (ws WebhookSink) Deliver(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(webhookPayload{
		Subject:   msg.Subject,
		Body:      msg.Body,
		Recipient: msg.Recipient,
		Text:      fmt.Sprintf("%s\n%s", msg.Subject, msg.Body),
	})
	if err != nil {
		return fmt.Errorf("webhook sink: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ws.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("webhook sink: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ws.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook sink: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook sink: unexpected status %d", resp.StatusCode)
	}
	return nil
}
